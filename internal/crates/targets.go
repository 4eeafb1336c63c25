// Package crates resolves and fetches crate sources from a Cargo registry.
package crates

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Target is one line of a targets file: a crate name and a version
// requirement in Cargo syntax.
type Target struct {
	Name string
	Req  string
}

// String returns the target as it appears in the targets file.
func (t Target) String() string {
	return t.Name + " " + t.Req
}

// ParseTargets reads `name version-req` lines. Blank lines and lines starting
// with '#' are skipped.
func ParseTargets(r io.Reader) ([]Target, error) {
	var targets []Target
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		name, req, ok := strings.Cut(text, " ")
		name, req = strings.TrimSpace(name), strings.TrimSpace(req)
		if !ok || name == "" || req == "" {
			return nil, fmt.Errorf("targets line %d: want \"name version-req\", got %q", line, text)
		}
		targets = append(targets, Target{Name: name, Req: req})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	return targets, nil
}
