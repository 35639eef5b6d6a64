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

package glossary

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📚 RuleSet is the in-memory ordered rule collection plus its file
// persistence. The slice is kept in priority order with contiguous
// priorities at all times.
type RuleSet struct {
	mu    sync.Mutex
	path  string
	rules []Rule
}

// glossaryFile is the on-disk JSON shape: an object wrapping the ordered
// rule array.
type glossaryFile struct {
	Rules []Rule `json:"rules"`
}

// DefaultRules is the seed glossary written when no glossary file exists yet.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "hinh-anh",
			Pattern:     `\bhình\s*ảnh\b|\bhinh\s*anh\b`,
			Replacement: "Image",
			Enabled:     true,
			Priority:    1,
			Notes:       "hình ảnh -> Image",
		},
		{
			ID:          "nut",
			Pattern:     `\bnút\b|\bnut\b`,
			Replacement: "node",
			Enabled:     true,
			Priority:    2,
			Notes:       "nút -> node",
		},
		{
			ID:          "thung-chua",
			Pattern:     `\bthùng\s*chứa\b|\bthùng\s*chưa\b|\bthung\s*chua\b`,
			Replacement: "container",
			Enabled:     true,
			Priority:    3,
			Notes:       "thùng chứa -> container",
		},
	}
}

// 🎯 Load reads the glossary file at path, seeding it with the default rules
// when it does not exist. Every pattern is validated here, never at apply
// time.
func Load(ctx context.Context, path string) (*RuleSet, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading glossary")

	rs := &RuleSet{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		rs.rules = DefaultRules()
		sortByPriority(rs.rules)
		normalize(rs.rules)
		if err := rs.save(); err != nil {
			return nil, err
		}
		return rs, nil
	}
	if err != nil {
		return nil, errors.Errorf("reading glossary file: %w", err)
	}

	rules, err := decodeRules(data)
	if err != nil {
		return nil, err
	}
	rs.rules = rules
	return rs, nil
}

// decodeRules parses and validates a glossary JSON payload. Accepts either
// the wrapped {"rules": [...]} object or a bare rule array.
func decodeRules(data []byte) ([]Rule, error) {
	var file glossaryFile
	if err := json.Unmarshal(data, &file); err != nil {
		var bare []Rule
		if err2 := json.Unmarshal(data, &bare); err2 != nil {
			return nil, errors.Errorf("parsing glossary JSON: %w", err)
		}
		file.Rules = bare
	}
	if err := validateAll(file.Rules); err != nil {
		return nil, err
	}
	sortByPriority(file.Rules)
	normalize(file.Rules)
	return file.Rules, nil
}

// save persists the full rule set, enabled and disabled alike, preserving
// order. Caller holds the lock or has exclusive access.
func (rs *RuleSet) save() error {
	data, err := json.MarshalIndent(glossaryFile{Rules: rs.rules}, "", "  ")
	if err != nil {
		return errors.Errorf("encoding glossary: %w", err)
	}
	if err := os.WriteFile(rs.path, append(data, '\n'), 0644); err != nil {
		return errors.Errorf("writing glossary file: %w", err)
	}
	return nil
}

// Path returns the glossary file location.
func (rs *RuleSet) Path() string {
	return rs.path
}

// Rules returns a copy of all rules in priority order.
func (rs *RuleSet) Rules() []Rule {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Active returns a copy of the enabled rules in priority order. This is the
// snapshot a run applies; later edits to the set do not affect it.
func (rs *RuleSet) Active() []Rule {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the rule with the given id.
func (rs *RuleSet) Get(id string) (Rule, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, r := range rs.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// ➕ Add validates and appends a rule. A zero priority places it last;
// otherwise the rule is inserted at its requested position.
func (rs *RuleSet) Add(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.find(rule.ID); ok {
		return errors.Errorf("rule %q already exists", rule.ID)
	}
	if rule.Priority <= 0 || rule.Priority > len(rs.rules) {
		rs.rules = append(rs.rules, rule)
	} else {
		at := rule.Priority - 1
		rs.rules = append(rs.rules[:at], append([]Rule{rule}, rs.rules[at:]...)...)
	}
	normalize(rs.rules)
	return rs.save()
}

// Update replaces the rule with the same id, keeping its position.
func (rs *RuleSet) Update(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	i, ok := rs.find(rule.ID)
	if !ok {
		return errors.Errorf("rule %q not found", rule.ID)
	}
	rule.Priority = rs.rules[i].Priority
	rs.rules[i] = rule
	return rs.save()
}

// Remove deletes the rule with the given id.
func (rs *RuleSet) Remove(id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	i, ok := rs.find(id)
	if !ok {
		return errors.Errorf("rule %q not found", id)
	}
	rs.rules = append(rs.rules[:i], rs.rules[i+1:]...)
	normalize(rs.rules)
	return rs.save()
}

// SetEnabled flips a rule on or off without touching its position.
func (rs *RuleSet) SetEnabled(id string, enabled bool) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	i, ok := rs.find(id)
	if !ok {
		return errors.Errorf("rule %q not found", id)
	}
	rs.rules[i].Enabled = enabled
	return rs.save()
}

// ↕️ Move repositions a rule to the given priority (1-based). Priorities are
// re-normalized to contiguous integers afterwards.
func (rs *RuleSet) Move(id string, priority int) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	i, ok := rs.find(id)
	if !ok {
		return errors.Errorf("rule %q not found", id)
	}
	rule := rs.rules[i]
	rest := append(append([]Rule{}, rs.rules[:i]...), rs.rules[i+1:]...)
	at := priority - 1
	if at < 0 {
		at = 0
	}
	if at > len(rest) {
		at = len(rest)
	}
	rs.rules = append(rest[:at], append([]Rule{rule}, rest[at:]...)...)
	normalize(rs.rules)
	return rs.save()
}

// 📥 Import loads rules from another glossary file. With merge=false the
// incoming rules replace the set; with merge=true they are appended after
// the existing rules. A single invalid pattern fails the whole import with
// a CompileError naming every offending rule id.
func (rs *RuleSet) Import(ctx context.Context, path string, merge bool) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Bool("merge", merge).Msg("importing glossary")

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Errorf("reading import file: %w", err)
	}
	incoming, err := decodeRules(data)
	if err != nil {
		return err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if merge {
		merged := append(append([]Rule{}, rs.rules...), incoming...)
		if err := validateAll(merged); err != nil {
			return err
		}
		rs.rules = merged
	} else {
		rs.rules = incoming
	}
	normalize(rs.rules)
	return rs.save()
}

// 📤 Export writes the full ordered rule set, enabled and disabled alike,
// to the given path.
func (rs *RuleSet) Export(ctx context.Context, path string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	data, err := json.MarshalIndent(glossaryFile{Rules: rs.rules}, "", "  ")
	if err != nil {
		return errors.Errorf("encoding glossary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Errorf("writing export file: %w", err)
	}
	return nil
}

// find locates a rule index by id. Caller holds the lock.
func (rs *RuleSet) find(id string) (int, bool) {
	for i, r := range rs.rules {
		if r.ID == id {
			return i, true
		}
	}
	return 0, false
}
