// Package ir holds the canonical JSON encoding used wherever device data
// must serialize identically across runs: exchange hashes in the trace
// store and golden suite reports.
//
// Values are the ones encoding/json decodes into: nil, bool, float64,
// string, []any and map[string]any, plus int and int64 for values built in
// Go. Numbers with no fractional part are written as integers, so 4.0
// read from a device and 4 built in a test encode the same way.
package ir
