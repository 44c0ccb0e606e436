// Package fingerprint implements the dedup index (L4, ) that
// enforces at-most-once external draft creation for logically identical
// orders.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orderflow/core/pkg/orders"
)

// Granularity buckets the fingerprint's date component.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// lineTuple is the normalized (SKU, GTIN) pair sorted into the
// fingerprint's line-item hash.
type lineTuple struct {
	SKU  string
	GTIN string
}

// Compute builds the deterministic fingerprint key: SHA-256 of
// (file SHA-256 || resolved customer id || SHA-256(sorted(normalized
// line tuples)) || date bucket),
func Compute(fileSHA256, resolvedCustomerID string, lines []orders.LineItem, at time.Time, granularity Granularity) orders.Fingerprint {
	tuples := make([]lineTuple, 0, len(lines))
	for _, l := range lines {
		tuples = append(tuples, lineTuple{
			SKU:  strings.ToUpper(strings.TrimSpace(l.SKU)),
			GTIN: strings.TrimSpace(l.GTIN),
		})
	}
	sort.Slice(tuples, func(i, j int) bool {
		if tuples[i].SKU != tuples[j].SKU {
			return tuples[i].SKU < tuples[j].SKU
		}
		return tuples[i].GTIN < tuples[j].GTIN
	})

	var linesBuf strings.Builder
	for _, t := range tuples {
		linesBuf.WriteString(t.SKU)
		linesBuf.WriteByte('|')
		linesBuf.WriteString(t.GTIN)
		linesBuf.WriteByte(';')
	}
	linesHash := sha256.Sum256([]byte(linesBuf.String()))

	bucket := dateBucket(at, granularity)

	composite := fmt.Sprintf("%s|%s|%s|%s", fileSHA256, resolvedCustomerID, hex.EncodeToString(linesHash[:]), bucket)
	final := sha256.Sum256([]byte(composite))
	return orders.Fingerprint(hex.EncodeToString(final[:]))
}

func dateBucket(at time.Time, granularity Granularity) string {
	u := at.UTC()
	switch granularity {
	case GranularityHour:
		return u.Format("2006-01-02T15")
	case GranularityWeek:
		year, week := u.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonth:
		return u.Format("2006-01")
	default: // day
		return u.Format("2006-01-02")
	}
}
