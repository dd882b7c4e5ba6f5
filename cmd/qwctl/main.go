// Package main is the entry point for the querywatch CLI tool.
package main

import (
	"os"

	"github.com/brisk-orange-fox/querywatch/cmd/qwctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
