package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainExchange = "ms05probe/exchange/v1"
	DomainReport   = "ms05probe/report/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ExchangeHash identifies one device exchange by its content. Two runs that
// sent the same command and got the same answer at the same position in
// the run share a hash.
func ExchangeHash(seq int64, oid int, method string, args, value any, status int) (string, error) {
	obj := map[string]any{
		"seq":    seq,
		"oid":    oid,
		"method": method,
		"args":   args,
		"value":  value,
		"status": status,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ExchangeHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExchange, canonical), nil
}

// ReportHash identifies a suite report by its content.
func ReportHash(report any) (string, error) {
	canonical, err := MarshalCanonical(report)
	if err != nil {
		return "", fmt.Errorf("ReportHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainReport, canonical), nil
}
