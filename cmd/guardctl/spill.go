package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func spillCmd() *cobra.Command {
	var spillDir, label string
	var show string
	cmd := &cobra.Command{
		Use:   "spill",
		Short: "List or inspect spilled (truncated) tool-result content",
		Run: func(cmd *cobra.Command, args []string) {
			var err error
			if show != "" {
				err = catSpillFile(spillDir, show)
			} else {
				err = listSpillFiles(spillDir, label)
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&spillDir, "spill-dir", "", "guardrails spill directory (from guardrails.spill_dir config)")
	cmd.Flags().StringVar(&label, "label", "", "only list entries under this label (args, tool_results, images)")
	cmd.Flags().StringVar(&show, "show", "", "print one spilled entry by its <label>/<sha>.<ext> path")
	cmd.MarkFlagRequired("spill-dir")
	return cmd
}

func listSpillFiles(spillDir, filterLabel string) error {
	entries, err := os.ReadDir(spillDir)
	if err != nil {
		return fmt.Errorf("read spill dir: %w", err)
	}

	total := 0
	for _, labelEntry := range entries {
		if !labelEntry.IsDir() {
			continue
		}
		label := labelEntry.Name()
		if filterLabel != "" && label != filterLabel {
			continue
		}
		files, err := os.ReadDir(filepath.Join(spillDir, label))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", label, err)
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			size := int64(-1)
			if err == nil {
				size = info.Size()
			}
			fmt.Printf("%-14s %10d bytes  %s\n", label, size, filepath.Join(label, f.Name()))
			total++
		}
	}
	fmt.Fprintf(os.Stderr, "%d spilled file(s)\n", total)
	return nil
}

func catSpillFile(spillDir, rel string) error {
	rel = filepath.Clean(rel)
	if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("invalid path %q: must be relative to the spill directory", rel)
	}
	data, err := os.ReadFile(filepath.Join(spillDir, rel))
	if err != nil {
		return fmt.Errorf("read spill entry: %w", err)
	}
	os.Stdout.Write(data)
	return nil
}
