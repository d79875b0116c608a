package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"codemend/internal/diagnose"
	"codemend/internal/llm"
	"codemend/internal/logging"
	"codemend/internal/types"
)

// generativeSystemPrompt constrains the model to a parseable reply.
const generativeSystemPrompt = `You repair source files that failed to compile.
You receive build diagnostics and the current content of the affected files.
Return ONLY the corrected files, each delimited exactly like this:

--- FILE: <path> ---
<complete corrected file content>
--- END FILE ---

Return every file you change in full. Do not abbreviate, do not add
commentary, do not remove files.`

// fileBlock parses one delimited file from a model reply.
var fileBlock = regexp.MustCompile(`(?s)--- FILE: (.+?) ---\n(.*?)--- END FILE ---`)

// GenerativeStrategy is the last-resort model-assisted rewrite. It
// declares every category, suspends on network I/O, and relies on the
// verifier's blocking structural checks because its output carries no
// syntactic guarantees of its own.
type GenerativeStrategy struct {
	client llm.Client
}

// NewGenerative creates the generative fallback strategy.
func NewGenerative(client llm.Client) *GenerativeStrategy {
	return &GenerativeStrategy{client: client}
}

func (s *GenerativeStrategy) Name() string { return "generative" }

func (s *GenerativeStrategy) Suspending() bool { return true }

func (s *GenerativeStrategy) Handles() map[diagnose.Category]bool {
	return map[diagnose.Category]bool{
		diagnose.CategoryMissingImport:        true,
		diagnose.CategoryUnresolvedIdentifier: true,
		diagnose.CategoryReservedIdentifier:   true,
		diagnose.CategoryDeprecatedAPI:        true,
		diagnose.CategoryBraceMismatch:        true,
		diagnose.CategoryUnterminatedLiteral:  true,
		diagnose.CategoryTypeConformance:      true,
		diagnose.CategoryNetworkSecurity:      true,
		diagnose.CategoryUnknown:              true,
	}
}

// Apply sends the diagnostics plus affected files to the model and
// merges the returned files over the input tree.
func (s *GenerativeStrategy) Apply(ctx context.Context, files []types.SourceFile, diags []diagnose.Diagnostic) (Result, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "GenerativeRepair")
	defer timer.Stop()

	prompt := buildRepairPrompt(files, diags)
	reply, err := s.client.CompleteWithSystem(ctx, generativeSystemPrompt, prompt)
	if err != nil {
		return unchanged(files), fmt.Errorf("generative repair call failed: %w", err)
	}

	parsed := ParseFileBlocks(reply)
	if len(parsed) == 0 {
		return unchanged(files), fmt.Errorf("no file blocks in model reply")
	}

	out := types.CloneTree(files)
	idx := types.IndexByPath(out)
	result := Result{Files: out}
	for _, f := range parsed {
		if i, ok := idx[f.Path]; ok {
			if out[i].Content != f.Content {
				out[i].Content = f.Content
				result.Changed = true
				result.Notes = append(result.Notes, fmt.Sprintf("rewrote %s", f.Path))
			}
			continue
		}
		out = append(out, f)
		idx[f.Path] = len(out) - 1
		result.Changed = true
		result.Notes = append(result.Notes, fmt.Sprintf("added %s", f.Path))
	}

	if !result.Changed {
		return unchanged(files), nil
	}
	result.Files = out
	logging.Get(logging.CategoryLLM).Info("generative repair touched %d file(s)", len(result.Notes))
	return result, nil
}

// buildRepairPrompt lists diagnostics first, then the current content
// of every diagnosed file (or the whole tree when diagnostics carry no
// locations).
func buildRepairPrompt(files []types.SourceFile, diags []diagnose.Diagnostic) string {
	var b strings.Builder
	b.WriteString("Build diagnostics:\n")
	affected := make(map[string]bool)
	for _, d := range diags {
		b.WriteString("  " + d.Raw + "\n")
		if d.File != "" {
			affected[d.File] = true
		}
	}

	b.WriteString("\nCurrent files:\n")
	for _, f := range files {
		if len(affected) > 0 && !affected[f.Path] {
			continue
		}
		b.WriteString("\n--- FILE: " + f.Path + " ---\n")
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("--- END FILE ---\n")
	}
	return b.String()
}

// ParseFileBlocks extracts delimited files from a model reply,
// tolerating markdown fences around the block content.
func ParseFileBlocks(reply string) []types.SourceFile {
	var out []types.SourceFile
	for _, m := range fileBlock.FindAllStringSubmatch(reply, -1) {
		path := strings.TrimSpace(m[1])
		content := m[2]
		content = strings.TrimPrefix(content, "```swift\n")
		content = strings.TrimPrefix(content, "```\n")
		content = strings.TrimSuffix(content, "```\n")
		if path == "" || strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, types.SourceFile{Path: path, Content: content})
	}
	return out
}
