package main

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codemend"
	"codemend/internal/config"
	"codemend/internal/recovery"
)

var (
	recoverAppType     string
	recoverDiagnostics string
	recoverTree        string
	recoverOut         string
	recoverTrail       string
)

// errExhausted marks a recover run that cleared some but not all
// diagnostics; main maps it to exit code 2.
var errExhausted = errors.New("recovery exhausted")

// recoverCmd runs the repair chain against a failing tree
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Repair a source tree from its build diagnostics",
	Long: `Classify the build diagnostics, run the repair chain against the
tree, and write the repaired tree back out.

The exit code is 0 when every diagnostic was cleared and 2 when the
chain exhausted its strategies. The fix-attempt trail can be exported
as JSON with --trail.`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().StringVar(&recoverAppType, "app-type", "app", "App type scoping identifier learning")
	recoverCmd.Flags().StringVar(&recoverDiagnostics, "diagnostics", "-", "Diagnostics file, one per line (- for stdin)")
	recoverCmd.Flags().StringVar(&recoverTree, "tree", "", "Source tree directory (required)")
	recoverCmd.Flags().StringVar(&recoverOut, "out", "", "Output directory (default: repair in place)")
	recoverCmd.Flags().StringVar(&recoverTrail, "trail", "", "Write the fix-attempt trail JSON to this file")
	recoverCmd.MarkFlagRequired("tree")
}

// typeDeclaration finds the type-like names a tree declares, so the
// registry can seed identifier mappings before the chain runs.
var typeDeclaration = regexp.MustCompile(`(?m)^\s*(?:public\s+|private\s+|internal\s+)?(?:struct|class|enum|protocol|actor)\s+([A-Za-z_]\w*)`)

func declaredTypeNames(files []codemend.SourceFile) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range files {
		for _, m := range typeDeclaration.FindAllStringSubmatch(f.Content, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

func runRecover(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath(workspace, cfgPath))
	if err != nil {
		return err
	}

	files, err := loadTree(recoverTree)
	if err != nil {
		return err
	}
	diags, err := readDiagnostics(recoverDiagnostics)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine, err := codemend.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	sessionID := engine.StartSession(recoverAppType, declaredTypeNames(files))
	defer engine.CloseSession(sessionID)

	logger.Info("Starting recovery",
		zap.String("session", sessionID),
		zap.String("app_type", recoverAppType),
		zap.Int("files", len(files)),
		zap.Int("diagnostics", len(diags)))

	outcome, err := engine.Recover(ctx, sessionID, diags, files)
	if err != nil {
		return err
	}

	out := recoverOut
	if out == "" {
		out = recoverTree
	}
	if err := writeTree(out, outcome.Files, nil); err != nil {
		return err
	}

	if recoverTrail != "" {
		f, err := os.Create(recoverTrail)
		if err != nil {
			return fmt.Errorf("failed to create trail file: %w", err)
		}
		defer f.Close()
		if err := recovery.WriteTrail(f, outcome.Attempts); err != nil {
			return err
		}
	}

	logger.Info("Recovery finished",
		zap.String("status", string(outcome.Status)),
		zap.Strings("strategies_applied", outcome.StrategiesApplied),
		zap.Int("remaining", len(outcome.Remaining)))

	if outcome.Status != recovery.StatusSucceeded {
		for _, d := range outcome.Remaining {
			fmt.Fprintf(os.Stderr, "unresolved: [%s] %s\n", d.Category, d.Raw)
		}
		return fmt.Errorf("%w: %d diagnostic(s) unresolved", errExhausted, len(outcome.Remaining))
	}
	return nil
}
