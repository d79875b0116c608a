package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codemend"
	"codemend/internal/config"
)

var (
	dedupeTree  string
	dedupeWrite bool
)

// dedupeCmd collapses duplicate artifacts in a tree
var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Collapse duplicate artifacts in a source tree",
	Long: `Find files that share a basename, keep the canonical copy (preferred
root first, deepest nesting second, first seen last), and list the
rest. Nothing is written unless --write is given.`,
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeTree, "tree", "", "Source tree directory (required)")
	dedupeCmd.Flags().BoolVar(&dedupeWrite, "write", false, "Apply the deduplication to disk")
	dedupeCmd.MarkFlagRequired("tree")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath(workspace, cfgPath))
	if err != nil {
		return err
	}

	files, err := loadTree(dedupeTree)
	if err != nil {
		return err
	}

	engine, err := codemend.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	result := engine.Dedupe(files)
	if len(result.Removed) == 0 {
		fmt.Println("no duplicates found")
		return nil
	}

	for _, p := range result.Removed {
		fmt.Printf("duplicate: %s\n", p)
	}
	logger.Info("Deduplication computed",
		zap.Int("kept", len(result.Files)),
		zap.Int("removed", len(result.Removed)))

	if dedupeWrite {
		if err := writeTree(dedupeTree, result.Files, result.Removed); err != nil {
			return err
		}
		fmt.Printf("removed %d duplicate file(s)\n", len(result.Removed))
	}
	return nil
}
