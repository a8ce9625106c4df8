// Package main is the entry point for the buddy CLI tool.
package main

import (
	"github.com/codebuddy/buddy/internal/cmd"
)

func main() {
	cmd.Execute()
}
