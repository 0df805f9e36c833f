// Package probe drives set/verify cycles against constrained properties.
//
// For each property it writes one value the constraint allows and a
// handful of values it forbids, expecting the device to accept the first
// and reject the rest. Any error the device answers with counts as a
// rejection; the status is not inspected. A write that gets no answer is a
// failure. The property's original value is written back afterwards
// whatever happened, even after the run is cancelled.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lucasjones/reggen"

	"github.com/roach88/ms05probe/internal/constraint"
	"github.com/roach88/ms05probe/internal/ncp"
	"github.com/roach88/ms05probe/internal/resolve"
)

// MaxSentinel stands in for an undeclared numeric maximum.
const MaxSentinel = float64(math.MaxInt64)

// DefaultPatternLimit bounds generated strings when no maxCharacters is
// declared.
const DefaultPatternLimit = 10

// NegativeExamples are strings tried against a pattern constraint. Each is
// only used when it does not match the pattern.
var NegativeExamples = []string{"!$%^&*()+_:;/", "*********", "000000000", "AAAAAAAA"}

// Generator returns a string matching pattern, with repetitions bounded by
// limit.
type Generator func(pattern string, limit int) (string, error)

// ReggenGenerator returns a Generator backed by reggen. A zero seed seeds
// from the clock.
func ReggenGenerator(seed int64) Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return func(pattern string, limit int) (string, error) {
		g, err := reggen.NewGenerator(pattern)
		if err != nil {
			return "", fmt.Errorf("generate from pattern %q: %w", pattern, err)
		}
		g.SetSeed(seed)
		return g.Generate(limit), nil
	}
}

// Option configures a Prober.
type Option func(*Prober)

// WithGenerator replaces the pattern string generator.
func WithGenerator(gen Generator) Option {
	return func(p *Prober) { p.generate = gen }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) { p.logger = logger }
}

// Prober runs the checks. It holds no state between properties.
type Prober struct {
	client   ncp.Client
	generate Generator
	logger   *slog.Logger
}

// New creates a prober writing through client.
func New(client ncp.Client, opts ...Option) *Prober {
	p := &Prober{
		client:   client,
		generate: ReggenGenerator(0),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProbeAll probes every record in order and returns the combined report.
// It stops early only if ctx is cancelled.
func (p *Prober) ProbeAll(ctx context.Context, records []resolve.Record) Report {
	var report Report
	for _, rec := range records {
		if ctx.Err() != nil {
			report.Violations = append(report.Violations, Violation{
				Property: rec.Name,
				Check:    CheckRead,
				Err:      ctx.Err(),
			})
			break
		}
		report.Merge(p.Probe(ctx, rec))
	}
	return report
}

// Probe checks one record against its selected constraint tier.
func (p *Prober) Probe(ctx context.Context, rec resolve.Record) Report {
	run := &session{p: p, ctx: ctx, rec: rec}

	raw, tier, ok := rec.Select()
	if !ok {
		return Report{}
	}
	run.tier = tier

	param, err := constraint.Upcast(raw)
	if err != nil {
		run.fail(CheckConstraint, nil, err)
		return run.report
	}

	original, err := p.client.GetProperty(ctx, rec.OID, rec.PropertyID)
	if err != nil {
		run.fail(CheckRead, nil, err)
		return run.report
	}
	run.report.Probed = 1

	p.logger.Debug("probing property",
		"oid", rec.OID,
		"property", rec.PropertyID.String(),
		"tier", tier.String(),
		"constraint", param.TypeName(),
	)

	switch c := param.(type) {
	case constraint.Number:
		run.checkNumber(c)
	case constraint.String:
		run.checkString(c)
	}

	if err := p.client.SetProperty(context.WithoutCancel(ctx), rec.OID, rec.PropertyID, original); err != nil {
		run.fail(CheckRestore, original, err)
	}
	return run.report
}

type session struct {
	p      *Prober
	ctx    context.Context
	rec    resolve.Record
	tier   constraint.Tier
	report Report
}

func (s *session) fail(check Check, value any, err error) {
	v := Violation{Property: s.rec.Name, Tier: s.tier, Check: check, Value: value, Err: err}
	s.p.logger.Warn("constraint check failed",
		"oid", s.rec.OID,
		"property", s.rec.PropertyID.String(),
		"check", string(check),
		"error", v.Error(),
	)
	s.report.Violations = append(s.report.Violations, v)
}

// accept writes a value the device must take.
func (s *session) accept(value any) bool {
	if err := s.p.client.SetProperty(s.ctx, s.rec.OID, s.rec.PropertyID, value); err != nil {
		s.fail(CheckLegal, value, err)
		return false
	}
	return true
}

// reject writes a value the device must refuse.
func (s *session) reject(check Check, value any) {
	err := s.p.client.SetProperty(s.ctx, s.rec.OID, s.rec.PropertyID, value)
	if err == nil {
		s.fail(check, value, nil)
		return
	}
	if !ncp.IsDeviceError(err) {
		s.fail(check, value, err)
		return
	}
	s.p.logger.Debug("value rejected",
		"oid", s.rec.OID,
		"check", string(check),
		"detail", ncp.Detail(err),
	)
}

// LegalNumber returns the value the number check expects the device to
// accept: the midpoint of the range rounded down to a step multiple.
func LegalNumber(c constraint.Number) float64 {
	minimum, maximum, step := bounds(c)
	return math.Floor(((maximum-minimum)/2+minimum)/step) * step
}

func bounds(c constraint.Number) (minimum, maximum, step float64) {
	minimum, maximum, step = 0, MaxSentinel, 1
	if c.Minimum != nil {
		minimum = *c.Minimum
	}
	if c.Maximum != nil {
		maximum = *c.Maximum
	}
	if c.Step != nil {
		step = *c.Step
	}
	return minimum, maximum, step
}

func (s *session) checkNumber(c constraint.Number) {
	minimum, maximum, step := bounds(c)
	legal := LegalNumber(c)

	s.accept(legal)

	if c.Minimum != nil {
		s.reject(CheckMinimum, minimum-step)
	}
	if c.Maximum != nil {
		s.reject(CheckMaximum, maximum+step)
	}
	if c.Step != nil {
		s.reject(CheckStep, legal+step/2)
	}
}

func (s *session) checkString(c constraint.String) {
	if c.Pattern != nil {
		re, err := regexp.Compile(*c.Pattern)
		if err != nil {
			s.fail(CheckConstraint, *c.Pattern, err)
			return
		}

		limit := DefaultPatternLimit
		if c.MaxCharacters != nil {
			limit = *c.MaxCharacters
		}
		legal, err := s.p.generate(*c.Pattern, limit)
		if err != nil {
			s.fail(CheckConstraint, *c.Pattern, err)
			return
		}
		s.accept(legal)

		for _, example := range NegativeExamples {
			if !re.MatchString(example) {
				s.reject(CheckPattern, example)
			}
		}
	}

	if c.MaxCharacters != nil {
		value := OversizedString(c, s.p.generate)
		if utf8.RuneCountInString(value) > *c.MaxCharacters {
			s.reject(CheckMaxCharacters, value)
		}
	}
}

// OversizedString builds a string longer than c.MaxCharacters: generated
// from the pattern when there is one, otherwise (or when the pattern cannot
// produce enough characters) repeated '*'.
func OversizedString(c constraint.String, gen Generator) string {
	if c.MaxCharacters == nil {
		return ""
	}
	limit := *c.MaxCharacters
	if c.Pattern != nil && gen != nil {
		if v, err := gen(*c.Pattern, limit*2); err == nil && utf8.RuneCountInString(v) > limit {
			return v
		}
	}
	return strings.Repeat("*", limit*2)
}
