package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ms05probe/internal/ir"
)

// Snapshot renders results as canonical JSON, one result per line, in run
// order. Identical runs produce identical bytes.
func Snapshot(results []Result) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range results {
		line, err := ir.MarshalCanonical(r.toCanonicalMap())
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ReportHash returns the content hash of a run's results. It is stored with
// the run so two runs can be compared without reading their results.
func ReportHash(results []Result) (string, error) {
	list := make([]any, len(results))
	for i, r := range results {
		list[i] = r.toCanonicalMap()
	}
	return ir.ReportHash(list)
}

// AssertGolden compares the snapshot of results against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, results []Result) {
	t.Helper()

	snapshot, err := Snapshot(results)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
}
