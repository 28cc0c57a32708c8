// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/weaveloop/weave/internal/diff"
)

// filePatch is one file's hunks, parsed out of a unified diff.
type filePatch struct {
	Path  string
	Hunks []patchHunk
}

type patchHunk struct {
	OldStart int
	Lines    []string // each "[ +-]rest-of-line", as in the diff body
}

type patchOutcome struct {
	Content string
	Added   int
	Removed int
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// runApplyPatch implements the apply_patch special shell command: args[0]
// is the unified diff text. Every touched path must resolve under the
// Dispatcher's workspace root.
func (d *Dispatcher) runApplyPatch(ctx context.Context, args []string) (string, bool, error) {
	_ = ctx
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", true, fmt.Errorf("apply_patch requires a patch argument")
	}

	patches, err := parseUnifiedDiff(args[0])
	if err != nil {
		return "", true, err
	}

	resolver := Resolver{Root: d.workspaceRoot}
	var summary strings.Builder
	for _, patch := range patches {
		resolved, err := resolver.Resolve(patch.Path)
		if err != nil {
			return "", true, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return "", true, fmt.Errorf("read %s: %w", patch.Path, err)
		}
		before := string(data)
		outcome, err := applyFilePatch(before, patch)
		if err != nil {
			return "", true, fmt.Errorf("apply patch to %s: %w", patch.Path, err)
		}
		if err := os.WriteFile(resolved, []byte(outcome.Content), 0o644); err != nil {
			return "", true, fmt.Errorf("write %s: %w", patch.Path, err)
		}
		unified, _, _ := diff.GenerateDiff(before, outcome.Content, patch.Path)
		fmt.Fprintf(&summary, "%s: +%d -%d\n%s", patch.Path, outcome.Added, outcome.Removed, unified)
	}
	return summary.String(), false, nil
}

func parseUnifiedDiff(patch string) ([]filePatch, error) {
	lines := strings.Split(patch, "\n")
	var patches []filePatch
	var current *filePatch
	var currentHunk *patchHunk

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("invalid patch: missing +++ header")
			}
			newPath := strings.TrimSpace(strings.TrimPrefix(lines[i+1], "+++ "))
			newPath = strings.TrimPrefix(strings.TrimPrefix(newPath, "b/"), "a/")
			patches = append(patches, filePatch{Path: newPath})
			current = &patches[len(patches)-1]
			currentHunk = nil
			i++
		case strings.HasPrefix(line, "@@ "):
			if current == nil {
				return nil, fmt.Errorf("invalid patch: hunk without file header")
			}
			match := hunkHeader.FindStringSubmatch(line)
			if match == nil {
				return nil, fmt.Errorf("invalid patch: malformed hunk header")
			}
			oldStart, _ := strconv.Atoi(match[1])
			h := patchHunk{OldStart: oldStart}
			current.Hunks = append(current.Hunks, h)
			currentHunk = &current.Hunks[len(current.Hunks)-1]
		default:
			if currentHunk == nil || line == "" || line == "\\ No newline at end of file" {
				continue
			}
			prefix := line[:1]
			if prefix != " " && prefix != "+" && prefix != "-" {
				return nil, fmt.Errorf("invalid patch line: %q", line)
			}
			currentHunk.Lines = append(currentHunk.Lines, line)
		}
	}

	if len(patches) == 0 {
		return nil, fmt.Errorf("invalid patch: no file headers found")
	}
	return patches, nil
}

func applyFilePatch(content string, patch filePatch) (patchOutcome, error) {
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	trimmed := strings.TrimSuffix(content, "\n")
	var lines []string
	if trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	added, removed := 0, 0
	for _, h := range patch.Hunks {
		idx := h.OldStart - 1
		if idx < 0 {
			idx = 0
		}
		for _, line := range h.Lines {
			prefix, text := line[:1], ""
			if len(line) > 1 {
				text = line[1:]
			}
			switch prefix {
			case " ":
				if idx >= len(lines) || lines[idx] != text {
					return patchOutcome{}, fmt.Errorf("context mismatch at line %d", idx+1)
				}
				idx++
			case "-":
				if idx >= len(lines) || lines[idx] != text {
					return patchOutcome{}, fmt.Errorf("delete mismatch at line %d", idx+1)
				}
				lines = append(lines[:idx], lines[idx+1:]...)
				removed++
			case "+":
				lines = append(lines[:idx], append([]string{text}, lines[idx:]...)...)
				idx++
				added++
			}
		}
	}

	result := strings.Join(lines, "\n")
	if hadTrailingNewline {
		result += "\n"
	}
	return patchOutcome{Content: result, Added: added, Removed: removed}, nil
}
