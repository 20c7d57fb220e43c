package staking

import (
	"math/big"
	"testing"
)

func TestManualOracleQuoteLifecycle(t *testing.T) {
	oracle := NewManualOracle()
	if _, err := oracle.LatestPrice(); err == nil {
		t.Fatal("expected error before first quote")
	}
	if err := oracle.SetQuote(nil, 100); err == nil {
		t.Fatal("expected nil rate to be rejected")
	}
	if err := oracle.SetQuote(big.NewInt(0), 100); err == nil {
		t.Fatal("expected zero rate to be rejected")
	}

	rate := big.NewInt(5)
	if err := oracle.SetQuote(rate, 100); err != nil {
		t.Fatalf("set quote: %v", err)
	}
	rate.SetInt64(99) // caller mutation must not leak into the stored quote

	quote, err := oracle.LatestPrice()
	if err != nil {
		t.Fatalf("latest price: %v", err)
	}
	if quote.Rate.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected rate %s", quote.Rate)
	}
	if quote.Timestamp != 100 {
		t.Fatalf("unexpected timestamp %d", quote.Timestamp)
	}

	if err := oracle.SetQuote(big.NewInt(7), 200); err != nil {
		t.Fatalf("replace quote: %v", err)
	}
	quote, err = oracle.LatestPrice()
	if err != nil {
		t.Fatalf("latest price after replace: %v", err)
	}
	if quote.Rate.Cmp(big.NewInt(7)) != 0 || quote.Timestamp != 200 {
		t.Fatalf("quote not replaced: %s at %d", quote.Rate, quote.Timestamp)
	}
}
