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

// Package tools implements the built-in tool catalog and the Dispatcher
// that resolves, validates, approves, and executes a tool call.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver confines a tool's file-system access to one root directory.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path guaranteed to live under the
// Resolver's Root, or an error if path would escape it.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes %q", path, r.Root)
	}
	return targetAbs, nil
}

// withinAny reports whether absPath falls under one of roots. Used by the
// auto-edit approval policy to decide whether a patch's targets can be
// auto-approved without asking.
func withinAny(absPath string, roots []string) bool {
	for _, root := range roots {
		r := Resolver{Root: root}
		if _, err := r.Resolve(absPath); err == nil {
			return true
		}
	}
	return false
}
