// Package main provides the entry point for the resumatch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/resumatch/cmd/resumatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
