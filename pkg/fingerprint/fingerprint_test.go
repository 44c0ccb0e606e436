package fingerprint

import (
	"testing"
	"time"

	"github.com/orderflow/core/pkg/orders"
)

func sampleLines() []orders.LineItem {
	return []orders.LineItem{
		{LineNumber: 1, SKU: " sku-002 ", GTIN: ""},
		{LineNumber: 2, SKU: "SKU-001", GTIN: "0012345678905"},
	}
}

func TestCompute_Deterministic(t *testing.T) {
	at := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	fp1 := Compute("filesha", "cust-1", sampleLines(), at, GranularityDay)
	fp2 := Compute("filesha", "cust-1", sampleLines(), at, GranularityDay)
	if fp1 != fp2 {
		t.Errorf("Compute should be deterministic: %s != %s", fp1, fp2)
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	at := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	lines := sampleLines()
	reversed := []orders.LineItem{lines[1], lines[0]}

	fp1 := Compute("filesha", "cust-1", lines, at, GranularityDay)
	fp2 := Compute("filesha", "cust-1", reversed, at, GranularityDay)
	if fp1 != fp2 {
		t.Error("Compute should sort line items before hashing, independent of input order")
	}
}

func TestCompute_DifferentDayBucketsDiffer(t *testing.T) {
	day1 := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC)

	fp1 := Compute("filesha", "cust-1", sampleLines(), day1, GranularityDay)
	fp2 := Compute("filesha", "cust-1", sampleLines(), day2, GranularityDay)
	if fp1 == fp2 {
		t.Error("orders in different day buckets must not collide, by design")
	}
}

func TestCompute_DifferentHoursSameDayDifferWithHourGranularity(t *testing.T) {
	at1 := time.Date(2026, 7, 30, 10, 30, 0, 0, time.UTC)
	at2 := time.Date(2026, 7, 30, 11, 30, 0, 0, time.UTC)

	fp1 := Compute("filesha", "cust-1", sampleLines(), at1, GranularityHour)
	fp2 := Compute("filesha", "cust-1", sampleLines(), at2, GranularityHour)
	if fp1 == fp2 {
		t.Error("hour granularity should distinguish different hours")
	}
}

func TestCompute_DifferentCustomerDiffers(t *testing.T) {
	at := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	fp1 := Compute("filesha", "cust-1", sampleLines(), at, GranularityDay)
	fp2 := Compute("filesha", "cust-2", sampleLines(), at, GranularityDay)
	if fp1 == fp2 {
		t.Error("different resolved customer ids must produce different fingerprints")
	}
}
