package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/ms05probe/internal/ncp"
)

var (
	// ErrRunNotFound is returned when no run matches an id or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRun is returned when a prefix matches more than one run.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// ListRuns returns up to limit runs, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, url, spec_branch, started_at, finished_at, passed, failed, unclear, report_hash
		FROM runs
		ORDER BY id COLLATE BINARY DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run whose id starts with prefix.
func (s *Store) ReadRun(ctx context.Context, prefix string) (Run, error) {
	if prefix == "" {
		return Run{}, ErrRunNotFound
	}
	// Escape LIKE wildcards in the user-supplied prefix.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, spec_branch, started_at, finished_at, passed, failed, unclear, report_hash
		FROM runs
		WHERE id LIKE ? ESCAPE '\'
		ORDER BY id COLLATE BINARY ASC
		LIMIT 2
	`, escaped+"%")
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate run: %w", err)
	}

	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%q: %w", prefix, ErrRunNotFound)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%q: %w", prefix, ErrAmbiguousRun)
	}
}

// Results returns the results of a run in execution order.
func (s *Store) Results(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, description, state, message, link
		FROM results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Seq, &r.Name, &r.Description, &r.State, &r.Message, &r.Link); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Exchanges returns the exchanges of a run ordered by seq.
func (s *Store) Exchanges(ctx context.Context, runID string) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, hash, seq, oid, method, arguments, status, value, error
		FROM exchanges
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

// ExchangesByHash returns every stored exchange with the given hash, across
// runs, ordered by run then seq.
func (s *Store) ExchangesByHash(ctx context.Context, hash string) ([]Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, hash, seq, oid, method, arguments, status, value, error
		FROM exchanges
		WHERE hash = ?
		ORDER BY run_id COLLATE BINARY ASC, seq ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query exchanges by hash: %w", err)
	}
	defer rows.Close()

	exchanges := []Exchange{}
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var started string
	var finished sql.NullString
	if err := rows.Scan(
		&run.ID, &run.URL, &run.SpecBranch, &started, &finished,
		&run.Passed, &run.Failed, &run.Unclear, &run.ReportHash,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	run.StartedAt = t
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("scan run %s: finished_at: %w", run.ID, err)
		}
		run.FinishedAt = t
	}
	return run, nil
}

func scanExchange(rows *sql.Rows) (Exchange, error) {
	var ex Exchange
	var argsJSON, valueJSON string
	var status int
	if err := rows.Scan(
		&ex.RunID, &ex.Hash, &ex.Seq, &ex.OID, &ex.Method,
		&argsJSON, &status, &valueJSON, &ex.Error,
	); err != nil {
		return Exchange{}, fmt.Errorf("scan exchange: %w", err)
	}
	ex.Status = ncp.Status(status)

	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return Exchange{}, err
	}
	ex.Arguments = args

	value, err := unmarshalValue(valueJSON)
	if err != nil {
		return Exchange{}, err
	}
	ex.Value = value
	return ex, nil
}
