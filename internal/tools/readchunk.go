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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/weaveloop/weave/internal/fsext"
)

// eofMarker is appended when the requested window runs past the file's
// last line, so the model can tell "end of range" from "end of file".
const eofMarker = "-----EOF-----"

// runReadChunk implements the read_chunk special shell command: args are
// [file_name, start_line, end_line], 1-indexed and inclusive.
func (d *Dispatcher) runReadChunk(args []string) (string, bool, error) {
	if len(args) != 3 {
		return "", true, fmt.Errorf("read_chunk requires file_name, start_line, end_line")
	}
	fileName, startArg, endArg := args[0], args[1], args[2]

	start, err := strconv.Atoi(startArg)
	if err != nil || start < 1 {
		return "", true, fmt.Errorf("start_line must be a positive integer")
	}
	end, err := strconv.Atoi(endArg)
	if err != nil || end < start {
		return "", true, fmt.Errorf("end_line must be an integer >= start_line")
	}

	resolved, err := (Resolver{Root: d.workspaceRoot}).Resolve(fileName)
	if err != nil {
		return "", true, err
	}
	if !fsext.Exists(resolved) {
		return "", true, fmt.Errorf("read %s: no such file", fileName)
	}
	if fsext.IsDir(resolved) {
		return "", true, fmt.Errorf("read %s: is a directory", fileName)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", true, fmt.Errorf("read %s: %w", fileName, err)
	}

	lines := strings.Split(string(data), "\n")

	var b strings.Builder
	for lineNo := start; lineNo <= end; lineNo++ {
		if lineNo > len(lines) {
			b.WriteString(eofMarker)
			b.WriteByte('\n')
			break
		}
		fmt.Fprintf(&b, "%d\t%s\n", lineNo, lines[lineNo-1])
	}
	return b.String(), false, nil
}

// runListDir implements the list_dir special shell command: args are
// [dir_name] and optionally [max_depth, limit], both defaulted by
// fsext.ListDirectory when omitted or non-positive.
func (d *Dispatcher) runListDir(args []string) (string, bool, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", true, fmt.Errorf("list_dir requires a dir_name")
	}

	resolved, err := (Resolver{Root: d.workspaceRoot}).Resolve(args[0])
	if err != nil {
		return "", true, err
	}
	if !fsext.IsDir(resolved) {
		return "", true, fmt.Errorf("list_dir %s: not a directory", args[0])
	}

	depth, limit := 0, 0
	if len(args) > 1 {
		depth, _ = strconv.Atoi(args[1])
	}
	if len(args) > 2 {
		limit, _ = strconv.Atoi(args[2])
	}

	files, truncated, err := fsext.ListDirectory(resolved, nil, depth, limit)
	if err != nil {
		return "", true, fmt.Errorf("list_dir %s: %w", args[0], err)
	}

	var b strings.Builder
	for _, f := range files {
		rel, err := filepath.Rel(resolved, f)
		if err != nil {
			rel = f
		}
		b.WriteString(rel)
		b.WriteByte('\n')
	}
	if truncated {
		b.WriteString(eofMarker)
		b.WriteByte('\n')
	}
	return b.String(), false, nil
}
