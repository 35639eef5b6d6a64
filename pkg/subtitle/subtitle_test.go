package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "single_block_lf",
			text: "1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		},
		{
			name: "single_block_crlf",
			text: "1\r\n00:00:01,000 --> 00:00:02,000\r\nHello\r\n",
		},
		{
			name: "two_blocks",
			text: "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n",
		},
		{
			name: "double_blank_separator",
			text: "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n",
		},
		{
			name: "no_trailing_newline",
			text: "1\n00:00:01,000 --> 00:00:02,000\nHello",
		},
		{
			name: "multi_line_caption",
			text: "1\n00:00:01,000 --> 00:00:02,000\nline one\nline two\n",
		},
		{
			name: "malformed_block_passthrough",
			text: "WEBVTT header junk\nstill junk\n\n1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		},
		{
			name: "leading_blank_lines",
			text: "\n\n1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		},
		{
			name: "blank_line_with_spaces",
			text: "1\n00:00:01,000 --> 00:00:02,000\nHello\n \n2\n00:00:03,000 --> 00:00:04,000\nWorld\n",
		},
		{
			name: "empty_file",
			text: "",
		},
		{
			name: "only_newline",
			text: "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Parse(tt.text)
			assert.Equal(t, tt.text, doc.Serialize(), "serialize(parse(x)) must reproduce input")
		})
	}
}

func TestParseShape(t *testing.T) {
	doc := Parse("12\n00:00:01,000 --> 00:00:02,000\nfirst\nsecond\n\nnot a block\n")
	require.Len(t, doc.Units, 2)

	unit := doc.Units[0]
	assert.False(t, unit.Passthrough)
	assert.Equal(t, "12", unit.Index)
	assert.Equal(t, "00:00:01,000 --> 00:00:02,000", unit.TimeRange)
	assert.Equal(t, []string{"first", "second"}, unit.TextLines)
	assert.Equal(t, "first\nsecond", unit.Text())

	assert.True(t, doc.Units[1].Passthrough)
	assert.Equal(t, []string{"not a block"}, doc.Units[1].Raw)
}

func TestSetTextChangesOnlyCaption(t *testing.T) {
	doc := Parse("1\n00:00:01,000 --> 00:00:02,000\nHello\n")
	doc.Units[0].SetText("Goodbye")
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nGoodbye\n", doc.Serialize())
}

func TestSetTextMayChangeLineCount(t *testing.T) {
	doc := Parse("1\n00:00:01,000 --> 00:00:02,000\nHello\n")
	doc.Units[0].SetText("Hello\nthere")
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHello\nthere\n", doc.Serialize())
}

func TestCRLFPreserved(t *testing.T) {
	doc := Parse("1\r\n00:00:01,000 --> 00:00:02,000\r\nHello\r\n")
	require.Len(t, doc.Units, 1)
	doc.Units[0].SetText("Hi")
	assert.Equal(t, "1\r\n00:00:01,000 --> 00:00:02,000\r\nHi\r\n", doc.Serialize())
}

// parse(serialize(parse(x))) == parse(x) even for odd but well-formed input.
func TestReparseStability(t *testing.T) {
	text := "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n\nstray line\n\n3\n00:00:05,000 --> 00:00:06,000\nWorld\n"
	first := Parse(text)
	second := Parse(first.Serialize())
	require.Equal(t, len(first.Units), len(second.Units))
	for i := range first.Units {
		assert.Equal(t, first.Units[i], second.Units[i])
	}
}
