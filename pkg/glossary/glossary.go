// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package glossary manages the ordered set of regex replacement rules.
package glossary

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 📖 Rule is one pattern → replacement mapping with metadata
type Rule struct {
	ID            string `json:"id" yaml:"id"`
	Pattern       string `json:"pattern" yaml:"pattern"`
	Replacement   string `json:"replacement" yaml:"replacement"`
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Priority      int    `json:"priority" yaml:"priority"`
	CaseSensitive bool   `json:"case_sensitive" yaml:"case_sensitive"`
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Compile compiles the rule's pattern. When the rule is case-insensitive the
// (?i) flag is prepended; the replacement is always inserted verbatim.
func (r Rule) Compile() (*regexp.Regexp, error) {
	pattern := r.Pattern
	if !r.CaseSensitive && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Errorf("compiling pattern for rule %q: %w", r.ID, err)
	}
	return re, nil
}

// Validate checks the rule's shape and that its pattern compiles.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.Errorf("rule id is required")
	}
	if r.Pattern == "" {
		return errors.Errorf("rule %q: pattern is required", r.ID)
	}
	if _, err := r.Compile(); err != nil {
		return err
	}
	return nil
}

// ❌ CompileError reports every rule in a set whose pattern failed to compile.
// A set containing any invalid rule is rejected whole; rules are never
// silently dropped.
type CompileError struct {
	RuleIDs []string
	Reasons map[string]string
}

func (e *CompileError) Error() string {
	parts := make([]string, 0, len(e.RuleIDs))
	for _, id := range e.RuleIDs {
		parts = append(parts, fmt.Sprintf("%s (%s)", id, e.Reasons[id]))
	}
	return fmt.Sprintf("invalid rule patterns: %s", strings.Join(parts, "; "))
}

// validateAll compiles every rule, collecting all failures so the caller can
// report the complete list of offending ids.
func validateAll(rules []Rule) error {
	var bad []string
	reasons := map[string]string{}
	seen := map[string]bool{}
	for _, r := range rules {
		if r.ID == "" {
			bad = append(bad, "(missing id)")
			reasons["(missing id)"] = "rule id is required"
			continue
		}
		if seen[r.ID] {
			bad = append(bad, r.ID)
			reasons[r.ID] = "duplicate rule id"
			continue
		}
		seen[r.ID] = true
		if _, err := r.Compile(); err != nil {
			bad = append(bad, r.ID)
			reasons[r.ID] = err.Error()
		}
	}
	if len(bad) > 0 {
		return &CompileError{RuleIDs: bad, Reasons: reasons}
	}
	return nil
}

// sortByPriority orders rules by priority ascending, ties broken by the
// stable insertion order of the slice.
func sortByPriority(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
}

// normalize re-assigns contiguous priorities 1..n in the current order so
// priority values never drift after reorders.
func normalize(rules []Rule) {
	for i := range rules {
		rules[i].Priority = i + 1
	}
}
