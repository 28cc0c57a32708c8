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

// Package diff computes and renders textual diffs, backing the apply_patch
// tool's change summary.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffType classifies one chunk of a Lines diff.
type DiffType int

const (
	DiffEqual DiffType = iota
	DiffInsert
	DiffDelete
)

// DiffLine is one chunk of a line-oriented diff between two texts.
type DiffLine struct {
	Type    DiffType
	Content string
}

func fromDMP(t diffmatchpatch.Diff) DiffType {
	switch t.Type {
	case diffmatchpatch.DiffInsert:
		return DiffInsert
	case diffmatchpatch.DiffDelete:
		return DiffDelete
	default:
		return DiffEqual
	}
}

// Lines returns a cleaned-up, line-oriented diff between a and b.
func Lines(a, b string) []DiffLine {
	dmp := diffmatchpatch.New()
	wSrc, wDst, warray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(wSrc, wDst, false)
	diffs = dmp.DiffCharsToLines(diffs, warray)
	diffs = dmp.DiffCleanupSemantic(diffs)

	lines := make([]DiffLine, 0, len(diffs))
	for _, d := range diffs {
		lines = append(lines, DiffLine{Type: fromDMP(d), Content: d.Text})
	}
	return lines
}

// Unified renders a +/- prefixed diff between a and b: every line of each
// chunk is written on its own line with a "+ ", "- " or "  " prefix — the
// shape apply_patch's human-readable stdout summary uses.
func Unified(a, b string) string {
	var sb strings.Builder
	for _, line := range Lines(a, b) {
		prefix := "  "
		switch line.Type {
		case DiffInsert:
			prefix = "+ "
		case DiffDelete:
			prefix = "- "
		}
		for _, l := range strings.Split(strings.TrimSuffix(line.Content, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(l)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// GenerateDiff renders a unified diff between old and new content along
// with both texts' line counts. Its one caller, apply_patch's change
// summary, uses only the diff text.
func GenerateDiff(old, new, filename string) (string, int, int) {
	if old == new {
		return "", strings.Count(old, "\n"), strings.Count(new, "\n")
	}
	header := fmt.Sprintf("--- %s\n+++ %s\n", filename, filename)
	return header + Unified(old, new), strings.Count(old, "\n") + 1, strings.Count(new, "\n") + 1
}

// Similarity scores how alike a and b are, from 0 (completely different)
// to 1 (identical), based on the proportion of characters the two texts
// share once diffed.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	var common, total int
	for _, d := range diffs {
		total += len(d.Text)
		if d.Type == diffmatchpatch.DiffEqual {
			common += len(d.Text)
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(common) / float64(total)
}
