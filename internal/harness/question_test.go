package harness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChoices = []Choice{
	{ID: "answer_0", Label: "root: channels: GainControl: gain"},
	{ID: "answer_1", Label: "root: channels: GainControl: label"},
	{ID: "answer_2", Label: "root: channels: nested: Meter: offset"},
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr string
	}{
		{name: "empty", line: "", want: nil},
		{name: "blank", line: "   ", want: nil},
		{name: "single", line: "2", want: []string{"answer_1"}},
		{name: "commas", line: "3,1", want: []string{"answer_0", "answer_2"}},
		{name: "spaces and commas", line: " 1, 3 ", want: []string{"answer_0", "answer_2"}},
		{name: "duplicates", line: "2 2", want: []string{"answer_1"}},
		{name: "all", line: "ALL", want: []string{"answer_0", "answer_1", "answer_2"}},
		{name: "zero", line: "0", wantErr: `invalid selection "0"`},
		{name: "out of range", line: "4", wantErr: `invalid selection "4"`},
		{name: "not a number", line: "gain", wantErr: `invalid selection "gain"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSelection(tt.line, testChoices)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsoleQuestion_MultiChoice(t *testing.T) {
	var out bytes.Buffer
	q := NewConsoleQuestion(strings.NewReader("1,3\n"), &out, time.Second)

	ids, err := q.Ask(context.Background(), Prompt{Kind: PromptMultiChoice, Text: "\nPick properties\n", Choices: testChoices})
	require.NoError(t, err)
	assert.Equal(t, []string{"answer_0", "answer_2"}, ids)

	printed := out.String()
	assert.True(t, strings.HasPrefix(printed, "Pick properties\n"))
	assert.Contains(t, printed, "  [1] root: channels: GainControl: gain\n")
	assert.Contains(t, printed, "  [3] root: channels: nested: Meter: offset\n")
}

func TestConsoleQuestion_SequentialPrompts(t *testing.T) {
	var out bytes.Buffer
	q := NewConsoleQuestion(strings.NewReader("\n2\n\n"), &out, time.Second)
	ctx := context.Background()

	ids, err := q.Ask(ctx, Prompt{Kind: PromptAction, Text: "Starting"})
	require.NoError(t, err)
	assert.Nil(t, ids)

	ids, err = q.Ask(ctx, Prompt{Kind: PromptMultiChoice, Text: "Pick", Choices: testChoices})
	require.NoError(t, err)
	assert.Equal(t, []string{"answer_1"}, ids)

	ids, err = q.Ask(ctx, Prompt{Kind: PromptAction, Text: "Done"})
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestConsoleQuestion_InvalidSelection(t *testing.T) {
	q := NewConsoleQuestion(strings.NewReader("7\n"), io.Discard, time.Second)

	_, err := q.Ask(context.Background(), Prompt{Kind: PromptMultiChoice, Text: "Pick", Choices: testChoices})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selection")
}

func TestConsoleQuestion_Timeout(t *testing.T) {
	in, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	q := NewConsoleQuestion(in, io.Discard, 20*time.Millisecond)

	_, err := q.Ask(context.Background(), Prompt{Kind: PromptAction, Text: "Waiting"})
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestConsoleQuestion_Cancelled(t *testing.T) {
	in, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	q := NewConsoleQuestion(in, io.Discard, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Ask(ctx, Prompt{Kind: PromptAction, Text: "Waiting"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConsoleQuestion_EOF(t *testing.T) {
	q := NewConsoleQuestion(strings.NewReader(""), io.Discard, time.Second)

	_, err := q.Ask(context.Background(), Prompt{Kind: PromptAction, Text: "Waiting"})
	assert.ErrorIs(t, err, io.EOF)
}
