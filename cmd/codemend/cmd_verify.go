package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codemend"
	"codemend/internal/config"
)

var (
	verifyOriginal  string
	verifyCandidate string
	verifyRequest   string
)

// verifyCmd compares a candidate tree against its original
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that a modification produced a real diff",
	Long: `Compare a candidate tree against the original it was derived from
and report changed, added, unchanged, and missing paths with per-path
similarity ratios.

Exits 1 when the candidate dropped original files or, given a
non-empty --request, changed nothing at all.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOriginal, "original", "", "Original tree directory (required)")
	verifyCmd.Flags().StringVar(&verifyCandidate, "candidate", "", "Candidate tree directory (required)")
	verifyCmd.Flags().StringVar(&verifyRequest, "request", "", "The modification request the candidate should fulfil")
	verifyCmd.MarkFlagRequired("original")
	verifyCmd.MarkFlagRequired("candidate")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath(workspace, cfgPath))
	if err != nil {
		return err
	}

	original, err := loadTree(verifyOriginal)
	if err != nil {
		return err
	}
	candidate, err := loadTree(verifyCandidate)
	if err != nil {
		return err
	}

	engine, err := codemend.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.VerifyModification(original, candidate, verifyRequest)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if len(report.Issues) > 0 {
		return fmt.Errorf("verification found %d issue(s)", len(report.Issues))
	}
	return nil
}
