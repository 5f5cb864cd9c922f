// Command guardctl is an internal diagnostic tool for inspecting a
// runtime data directory: config health, run-graph contents, and spilled
// (truncated) tool-result content. It is not the product's CLI entry
// point — sessions are driven by the orchestrator, not this binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guardctl",
		Short: "Diagnostic tool for agentcore-dev/runtime data directories",
	}
	root.AddCommand(versionCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(spillCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("guardctl %s\n", Version)
		},
	}
}
