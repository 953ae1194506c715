package main

import (
	"os"

	"homedash/cmd/homedash/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
