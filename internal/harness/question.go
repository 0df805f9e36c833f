package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PromptKind selects how a prompt is answered.
type PromptKind int

const (
	// PromptAction is an acknowledgement; the answer carries no data.
	PromptAction PromptKind = iota
	// PromptMultiChoice selects any number of choices.
	PromptMultiChoice
)

// Choice is one selectable item of a multi-choice prompt.
type Choice struct {
	ID    string
	Label string
}

// Prompt is a question put to the operator.
type Prompt struct {
	Kind    PromptKind
	Text    string
	Choices []Choice
}

// ErrNoAnswer is returned when the operator does not answer in time.
var ErrNoAnswer = errors.New("no answer before timeout")

// Question presents prompts to a human operator and blocks until they
// answer or the wait times out. Ask returns the selected choice ids; an
// acknowledged action prompt returns nil.
type Question interface {
	Ask(ctx context.Context, p Prompt) ([]string, error)
}

// ConsoleQuestion asks on a terminal: prompts are written to out and
// answers read one line at a time from in.
type ConsoleQuestion struct {
	out     io.Writer
	timeout time.Duration

	once  sync.Once
	in    *bufio.Scanner
	lines chan string
}

// NewConsoleQuestion creates a console question. A timeout of zero waits
// until ctx is done.
func NewConsoleQuestion(in io.Reader, out io.Writer, timeout time.Duration) *ConsoleQuestion {
	return &ConsoleQuestion{out: out, timeout: timeout, in: bufio.NewScanner(in)}
}

// start runs a single reader for the lifetime of the question so that a
// timed-out prompt does not leave a second reader racing for input.
func (q *ConsoleQuestion) start() {
	q.lines = make(chan string)
	go func() {
		defer close(q.lines)
		for q.in.Scan() {
			q.lines <- q.in.Text()
		}
	}()
}

// Ask writes p and waits for one line of input.
func (q *ConsoleQuestion) Ask(ctx context.Context, p Prompt) ([]string, error) {
	q.once.Do(q.start)

	fmt.Fprintln(q.out, strings.TrimSpace(p.Text))
	switch p.Kind {
	case PromptMultiChoice:
		for i, c := range p.Choices {
			fmt.Fprintf(q.out, "  [%d] %s\n", i+1, c.Label)
		}
		fmt.Fprint(q.out, "Select (numbers separated by commas, \"all\", or empty for none): ")
	default:
		fmt.Fprint(q.out, "Press Enter to continue. ")
	}

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	var line string
	select {
	case l, ok := <-q.lines:
		if !ok {
			return nil, fmt.Errorf("read answer: %w", io.EOF)
		}
		line = l
	case <-ctx.Done():
		fmt.Fprintln(q.out)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrNoAnswer
		}
		return nil, ctx.Err()
	}

	if p.Kind != PromptMultiChoice {
		return nil, nil
	}
	return parseSelection(line, p.Choices)
}

// parseSelection maps a line of 1-based indices to choice ids, in choice
// order without duplicates.
func parseSelection(line string, choices []Choice) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if strings.EqualFold(line, "all") {
		ids := make([]string, len(choices))
		for i, c := range choices {
			ids[i] = c.ID
		}
		return ids, nil
	}

	picked := make([]bool, len(choices))
	for _, field := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' }) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(choices) {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		picked[n-1] = true
	}

	var ids []string
	for i, ok := range picked {
		if ok {
			ids = append(ids, choices[i].ID)
		}
	}
	return ids, nil
}
