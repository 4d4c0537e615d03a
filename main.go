// Package main is the entry point for the patchwatch CLI.
package main

import "patchwatch.dev/pkg/patchwatch/cmd"

func main() {
	cmd.Execute()
}
