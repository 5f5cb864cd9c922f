package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentcore-dev/runtime/internal/config"
)

func doctorCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config resolution and data-directory health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "project directory to resolve config against")
	return cmd
}

func runDoctor(dir string) {
	fmt.Println("guardctl doctor")
	fmt.Printf("  Go:  %s (%s/%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Println()

	paths := config.GetPaths()
	fmt.Println("  Paths:")
	checkDir("Config", paths.Config)
	checkDir("Data", paths.Data)
	checkDir("State", paths.State)
	checkDir("Cache", paths.Cache)

	fmt.Println()
	cfg, err := config.Load(dir)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println("  Config:")
	fmt.Printf("    %-14s %s\n", "Model:", orNotSet(cfg.Model))
	fmt.Printf("    %-14s %s\n", "Small model:", orNotSet(cfg.SmallModel))
	fmt.Printf("    %-14s %d\n", "Providers:", len(cfg.Provider))
	fmt.Printf("    %-14s %d\n", "Agents:", len(cfg.Agent))
	fmt.Printf("    %-14s %d\n", "MCP servers:", len(cfg.MCP))
	fmt.Printf("    %-14s %v\n", "Lanes:", cfg.Lanes)

	if cfg.Guardrails.SpillDir != "" {
		fmt.Println()
		fmt.Println("  Guardrails:")
		checkDir("Spill dir", cfg.Guardrails.SpillDir)
	}
}

func checkDir(label, path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("    %-14s %s (NOT FOUND)\n", label+":", path)
		return
	}
	fmt.Printf("    %-14s %s (OK)\n", label+":", path)
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
