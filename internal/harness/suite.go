package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ms05probe/internal/modelcheck"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/probe"
	"github.com/roach88/ms05probe/internal/schema"
)

// DefaultSpecBranch is the MS-05-02 branch spec links point at when none
// is configured.
const DefaultSpecBranch = "v1.0.x"

// Config describes one suite run.
type Config struct {
	// URL is the device's IS-12 control endpoint.
	URL string
	// SpecBranch selects the MS-05-02 documentation branch for spec links.
	SpecBranch string
	// Reference holds the descriptors and schemas the device is checked
	// against.
	Reference *schema.Reference
	// Interactive enables operator prompts.
	Interactive bool
	// ExcludedRoles are object roles the constraint probe must not touch.
	ExcludedRoles []string
	// Seed seeds pattern string generation.
	Seed int64
}

// Option configures a Suite.
type Option func(*Suite)

// WithQuestion sets the operator prompt used in interactive mode.
func WithQuestion(q Question) Option {
	return func(s *Suite) { s.question = q }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Suite) { s.logger = logger }
}

// WithValidator replaces the schema validator.
func WithValidator(v modelcheck.SchemaValidator) Option {
	return func(s *Suite) { s.validator = v }
}

// Suite runs the device model checks against one device.
//
// The control channel is opened on first use and closed exactly once when
// Run returns, whichever way it returns.
type Suite struct {
	client    ncp.Client
	cfg       Config
	question  Question
	validator modelcheck.SchemaValidator
	prober    *probe.Prober
	logger    *slog.Logger

	opened bool
}

// New creates a suite talking to the device through client.
func New(client ncp.Client, cfg Config, opts ...Option) *Suite {
	if cfg.SpecBranch == "" {
		cfg.SpecBranch = DefaultSpecBranch
	}
	s := &Suite{client: client, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.validator == nil {
		s.validator = schema.NewValidator()
	}
	s.prober = probe.New(client,
		probe.WithGenerator(probe.ReggenGenerator(cfg.Seed)),
		probe.WithLogger(s.logger),
	)
	return s
}

// Run executes every check in order and returns their results.
func (s *Suite) Run(ctx context.Context) []Result {
	defer s.teardown()

	s.message(ctx, preTestsMessage)

	var results []Result
	dm := s.checkDeviceModel(ctx)
	results = append(results, dm.result)
	results = append(results, s.checkManager(dm, classManagerCheck))
	results = append(results, s.checkManager(dm, deviceManagerCheck))
	results = append(results, s.checkControlClasses(dm)...)
	results = append(results, s.checkDatatypes(dm)...)
	results = append(results, s.checkConstraints(ctx, dm))

	s.message(ctx, postTestsMessage)

	s.logger.Info("suite complete", "results", len(results))
	return results
}

// connect opens the control channel on first use.
func (s *Suite) connect(ctx context.Context) error {
	if s.opened {
		return nil
	}
	if err := s.client.Open(ctx, s.cfg.URL); err != nil {
		return err
	}
	s.opened = true
	return nil
}

func (s *Suite) teardown() {
	if !s.opened {
		return
	}
	s.opened = false
	if err := s.client.Close(); err != nil {
		s.logger.Warn("failed to close control channel", "error", err)
	}
}

// message shows an informational prompt. A timeout is not an error.
func (s *Suite) message(ctx context.Context, text string) {
	if !s.cfg.Interactive || s.question == nil {
		return
	}
	if _, err := s.question.Ask(ctx, Prompt{Kind: PromptAction, Text: text}); err != nil {
		s.logger.Debug("message not acknowledged", "error", err)
	}
}

func (s *Suite) specLink(page string) string {
	return fmt.Sprintf("https://specs.amwa.tv/ms-05-02/branches/%s/docs/%s.html", s.cfg.SpecBranch, page)
}

const preTestsMessage = `
These tests validate a Node under test's MS-05 Device Model using IS-12.

These tests are invasive and could cause harm to the Node under test.

!!!Care should therefore be taken when running these tests!!!

Each test will allow parts of the Device Model to be excluded from the testing.
`

const postTestsMessage = `
IS-12 tests complete!
`
