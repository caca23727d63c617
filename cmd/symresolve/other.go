//go:build !windows || !amd64

package main

import "github.com/spf13/cobra"

// Lookups read the live loader list, which only exists on windows/amd64.
func platformCommands() []*cobra.Command {
	return nil
}
