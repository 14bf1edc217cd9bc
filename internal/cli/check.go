package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/G0th1/brandsphere1-sub001/internal/control"
	"github.com/G0th1/brandsphere1-sub001/internal/startup"
)

var strictCheck bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the boot checks and exit",
	Run:   runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&strictCheck, "strict", false, "exit non-zero on any failure, not only critical ones")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg == nil {
		return
	}

	app, err := control.NewApp(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		exitFunc(1)
		return
	}

	verifyOrExit(context.Background(), app, os.Stdout, strictCheck)
}

// verifyOrExit runs the boot checks, optionally prints them, and calls
// exitFunc when the outcome requires it. It reports whether to continue.
func verifyOrExit(ctx context.Context, app *control.App, out io.Writer, strict bool) bool {
	boot := app.Verify(ctx)
	if out != nil {
		printBoot(out, boot)
	}
	if code := enforceBoot(boot, strict); code != 0 {
		exitFunc(code)
		return false
	}
	return true
}

// enforceBoot returns the exit code a boot outcome calls for.
func enforceBoot(boot startup.BootResult, strict bool) int {
	switch {
	case boot.ShouldAbort:
		return 1
	case strict && !boot.Success:
		return 1
	default:
		return 0
	}
}

func printBoot(out io.Writer, boot startup.BootResult) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHECK\tRESULT\tMESSAGE")
	for _, r := range boot.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, verdict(r), r.Message)
	}
	_ = w.Flush()
}

func verdict(r startup.Result) string {
	switch {
	case r.Success:
		return "ok"
	case r.Critical:
		return "critical"
	default:
		return "warning"
	}
}
