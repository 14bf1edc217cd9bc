package main

import "github.com/G0th1/brandsphere1-sub001/internal/cli"

func main() {
	cli.Execute()
}
