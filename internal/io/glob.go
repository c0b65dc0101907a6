package io

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Glob expands a path into inputs sorted by name. The path may name a
// file, a directory (its regular files are used) or a glob pattern.
func Glob(path string) ([]Input, error) {
	var paths []string

	if !strings.ContainsAny(path, "*?[") {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", SanitizeURL(path), err)
		}
		if !fi.IsDir() {
			return []Input{FileInput(path)}, nil
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", SanitizeURL(path), err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
	} else {
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", SanitizeURL(path), err)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				paths = append(paths, m)
			}
		}
	}

	sort.Strings(paths)
	inputs := make([]Input, 0, len(paths))
	for _, p := range paths {
		inputs = append(inputs, FileInput(p))
	}
	return inputs, nil
}

// SanitizeURL removes credentials from a URL-like path so it can be
// logged. Plain paths are returned unchanged.
func SanitizeURL(path string) string {
	if !strings.Contains(path, "://") {
		return path
	}
	u, err := url.Parse(path)
	if err != nil || u.User == nil {
		return path
	}
	return u.Redacted()
}
