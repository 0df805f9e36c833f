package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/ms05probe/internal/ir"
	"github.com/roach88/ms05probe/internal/ncp"
)

// Run is one suite run against a device.
type Run struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	SpecBranch string    `json:"spec_branch,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	// FinishedAt is zero for a run that never finished.
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Unclear    int       `json:"unclear"`
	ReportHash string    `json:"report_hash,omitempty"`
}

// Result is one check outcome within a run.
type Result struct {
	Seq         int    `json:"seq"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	Message     string `json:"message,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Exchange is a stored device exchange.
type Exchange struct {
	RunID string `json:"run_id"`
	Hash  string `json:"hash"`
	ncp.Exchange
}

// BeginRun inserts a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, url, specBranch string, startedAt time.Time) (string, error) {
	id := s.ids.Generate()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, url, spec_branch, started_at)
		VALUES (?, ?, ?, ?)
	`, id, url, specBranch, formatTime(startedAt))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stores the results of a run and its outcome counts in one
// transaction. Result Seq values are assigned from slice order.
func (s *Store) FinishRun(ctx context.Context, runID string, finishedAt time.Time, results []Result, reportHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var passed, failed, unclear int
	for i, r := range results {
		switch r.State {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		default:
			unclear++
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (run_id, seq, name, description, state, message, link)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, i+1, r.Name, r.Description, r.State, r.Message, r.Link)
		if err != nil {
			return fmt.Errorf("finish run: insert result %q: %w", r.Name, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, passed = ?, failed = ?, unclear = ?, report_hash = ?
		WHERE id = ?
	`, formatTime(finishedAt), passed, failed, unclear, reportHash, runID)
	if err != nil {
		return fmt.Errorf("finish run: update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("finish run: commit: %w", err)
	}
	return nil
}

// ExchangeRecorder writes exchanges for one run. It implements ncp.Recorder.
type ExchangeRecorder struct {
	store *Store
	runID string
}

// Recorder returns a recorder that files exchanges under runID.
func (s *Store) Recorder(runID string) *ExchangeRecorder {
	return &ExchangeRecorder{store: s, runID: runID}
}

// RecordExchange inserts ex. Writing the same (run, seq) twice keeps the
// first row.
func (r *ExchangeRecorder) RecordExchange(ctx context.Context, ex ncp.Exchange) error {
	args, err := toJSONValue(ex.Arguments)
	if err != nil {
		return fmt.Errorf("record exchange: arguments: %w", err)
	}
	value, err := toJSONValue(ex.Value)
	if err != nil {
		return fmt.Errorf("record exchange: value: %w", err)
	}

	hash, err := ir.ExchangeHash(ex.Seq, ex.OID, ex.Method, args, value, int(ex.Status))
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	argsJSON, err := marshalJSON(args)
	if err != nil {
		return fmt.Errorf("record exchange: arguments: %w", err)
	}
	valueJSON, err := marshalJSON(value)
	if err != nil {
		return fmt.Errorf("record exchange: value: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO exchanges (run_id, seq, hash, oid, method, arguments, status, value, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, r.runID, ex.Seq, hash, ex.OID, ex.Method, argsJSON, int(ex.Status), valueJSON, ex.Error)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
