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

// Package engine applies a compiled glossary snapshot to caption text.
// Rules chain: rule N+1 sees the output of rule N, never the original, so
// rule order is semantically significant.
package engine

import (
	"regexp"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/srtgloss/pkg/glossary"
	"gitlab.com/tozd/go/errors"
)

// 🧩 CompiledRule pairs a validated pattern with its replacement template.
type CompiledRule struct {
	ID          string
	Replacement string
	re          *regexp.Regexp
}

// 📊 Match records that a rule changed text and how many replacements it made.
type Match struct {
	RuleID string `json:"rule_id"`
	Count  int    `json:"count"`
}

// ⚠️ Failure records a rule that blew up while matching one unit. The rule is
// skipped for that unit only; remaining rules still run.
type Failure struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of applying the snapshot to one piece of text. When
// no rule matches, Text equals the input and Matches is empty.
type Result struct {
	Text     string
	Matches  []Match
	Failures []Failure
}

// Changed reports whether any rule altered the text.
func (r Result) Changed() bool {
	return len(r.Matches) > 0
}

// 🏭 Compile builds the run snapshot from enabled rules, sorted by priority
// ascending with insertion order breaking ties. Patterns were validated at
// load time; a compile failure here means the set bypassed validation.
func Compile(rules []glossary.Rule) ([]CompiledRule, error) {
	ordered := make([]glossary.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	compiled := make([]CompiledRule, 0, len(ordered))
	for _, r := range ordered {
		if !r.Enabled {
			continue
		}
		re, err := r.Compile()
		if err != nil {
			return nil, errors.Errorf("compiling rule snapshot: %w", err)
		}
		compiled = append(compiled, CompiledRule{ID: r.ID, Replacement: r.Replacement, re: re})
	}
	return compiled, nil
}

// 🏃 Apply runs each rule in order over the text, feeding every rule the
// previous rule's output. Replacement templates may use $1-style
// back-references; on case-insensitive rules the replacement is inserted
// verbatim, never case-adapted.
func Apply(text string, rules []CompiledRule) Result {
	result := Result{Text: text}
	for _, rule := range rules {
		next, count, err := applyOne(rule, result.Text)
		if err != nil {
			result.Failures = append(result.Failures, Failure{RuleID: rule.ID, Reason: err.Error()})
			continue
		}
		if count > 0 && next != result.Text {
			result.Matches = append(result.Matches, Match{RuleID: rule.ID, Count: count})
			result.Text = next
		}
	}
	return result
}

// applyOne isolates a single rule so one misbehaving pattern cannot abort
// the whole unit.
func applyOne(rule CompiledRule, text string) (out string, count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("rule %s panicked: %v", rule.ID, r)
		}
	}()
	count = len(rule.re.FindAllStringIndex(text, -1))
	if count == 0 {
		return text, 0, nil
	}
	return rule.re.ReplaceAllString(text, rule.Replacement), count, nil
}

// LogResult emits a debug trace of what a snapshot did to one unit.
func LogResult(logger *zerolog.Logger, path string, unit int, result Result) {
	if !result.Changed() && len(result.Failures) == 0 {
		return
	}
	ev := logger.Debug().Str("file", path).Int("unit", unit)
	for _, m := range result.Matches {
		ev = ev.Int("rule_"+m.RuleID, m.Count)
	}
	ev.Int("failures", len(result.Failures)).Msg("rules applied")
}
