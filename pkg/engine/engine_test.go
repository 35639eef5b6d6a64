package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/srtgloss/pkg/glossary"
)

func mustCompile(t *testing.T, rules []glossary.Rule) []CompiledRule {
	t.Helper()
	compiled, err := Compile(rules)
	require.NoError(t, err)
	return compiled
}

func TestApplyChainsRules(t *testing.T) {
	// Rule 2 must see rule 1's output, not the original text.
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "a-to-b", Pattern: "A", Replacement: "B", Enabled: true, Priority: 1, CaseSensitive: true},
		{ID: "b-to-c", Pattern: "B", Replacement: "C", Enabled: true, Priority: 2, CaseSensitive: true},
	})

	result := Apply("A", compiled)
	assert.Equal(t, "C", result.Text)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "a-to-b", result.Matches[0].RuleID)
	assert.Equal(t, "b-to-c", result.Matches[1].RuleID)
}

func TestApplyOrdersByPriority(t *testing.T) {
	// Deliberately out of order: priority decides, not slice position.
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "second", Pattern: "B", Replacement: "C", Enabled: true, Priority: 2, CaseSensitive: true},
		{ID: "first", Pattern: "A", Replacement: "B", Enabled: true, Priority: 1, CaseSensitive: true},
	})

	result := Apply("A", compiled)
	assert.Equal(t, "C", result.Text)
}

func TestApplyStableTieBreak(t *testing.T) {
	// Equal priorities keep insertion order, so the first rule consumes
	// the text before the second one runs.
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "winner", Pattern: "x", Replacement: "1", Enabled: true, Priority: 1, CaseSensitive: true},
		{ID: "loser", Pattern: "x", Replacement: "2", Enabled: true, Priority: 1, CaseSensitive: true},
	})

	result := Apply("x", compiled)
	assert.Equal(t, "1", result.Text)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "winner", result.Matches[0].RuleID)
}

func TestCompileSkipsDisabled(t *testing.T) {
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "on", Pattern: "a", Replacement: "b", Enabled: true, Priority: 1},
		{ID: "off", Pattern: "b", Replacement: "c", Enabled: false, Priority: 2},
	})

	require.Len(t, compiled, 1)
	result := Apply("a", compiled)
	assert.Equal(t, "b", result.Text, "disabled rule must not chain")
}

func TestCaseInsensitiveVerbatimReplacement(t *testing.T) {
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "nut", Pattern: `\bnút\b|\bnut\b`, Replacement: "node", Enabled: true, Priority: 1},
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase", input: "nhấn nút nguồn", want: "nhấn node nguồn"},
		{name: "titlecase", input: "Nút nguồn", want: "node nguồn"},
		{name: "uppercase_ascii", input: "NUT nguồn", want: "node nguồn"},
		{name: "no_match", input: "nothing here", want: "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Apply(tt.input, compiled)
			assert.Equal(t, tt.want, result.Text, "replacement is inserted verbatim, never case-adjusted")
		})
	}
}

func TestMatchCounts(t *testing.T) {
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "hinh-anh", Pattern: `\bhình\s*ảnh\b|\bhinh\s*anh\b`, Replacement: "Image", Enabled: true, Priority: 1},
	})

	result := Apply("hình ảnh và hinh anh", compiled)
	assert.Equal(t, "Image và Image", result.Text)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 2, result.Matches[0].Count)
}

func TestApplyIsIdempotentForSeedRules(t *testing.T) {
	compiled := mustCompile(t, glossary.DefaultRules())

	once := Apply("hinh anh của nút trong thùng chứa", compiled)
	assert.Equal(t, "Image của node trong container", once.Text)

	twice := Apply(once.Text, compiled)
	assert.Equal(t, once.Text, twice.Text)
	assert.False(t, twice.Changed())
}

func TestUnchangedWhenNoRuleMatches(t *testing.T) {
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "x", Pattern: "zzz", Replacement: "y", Enabled: true, Priority: 1},
	})

	result := Apply("plain caption text", compiled)
	assert.Equal(t, "plain caption text", result.Text)
	assert.False(t, result.Changed())
	assert.Empty(t, result.Failures)
}

func TestCaptureGroupReplacement(t *testing.T) {
	compiled := mustCompile(t, []glossary.Rule{
		{ID: "swap", Pattern: `(\w+) (\w+)`, Replacement: "$2 $1", Enabled: true, Priority: 1},
	})

	result := Apply("hello world", compiled)
	assert.Equal(t, "world hello", result.Text)
}

func TestApplyIsolatesRulePanic(t *testing.T) {
	good := mustCompile(t, []glossary.Rule{
		{ID: "a-to-b", Pattern: "A", Replacement: "B", Enabled: true, Priority: 2, CaseSensitive: true},
	})
	// A compiled rule with no regexp panics on apply; the failure must be
	// recorded against that rule only, with the rest of the chain intact.
	broken := CompiledRule{ID: "boom", Replacement: "x"}
	rules := append([]CompiledRule{broken}, good...)

	result := Apply("A", rules)
	assert.Equal(t, "B", result.Text, "later rules still run after one fails")
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "boom", result.Failures[0].RuleID)
	assert.Contains(t, result.Failures[0].Reason, "panicked")
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "a-to-b", result.Matches[0].RuleID)
}

func TestApplyEmptyRuleSet(t *testing.T) {
	result := Apply("anything", nil)
	assert.Equal(t, "anything", result.Text)
	assert.False(t, result.Changed())
}
