package staking

import (
	"fmt"
	"math/big"
	"sync"
)

// ManualOracle is a price source fed by an operator or an external relay
// rather than an on-chain feed. The latest quote wins; staleness is enforced
// by the ratio strategy reading it.
type ManualOracle struct {
	mu    sync.RWMutex
	quote *PriceQuote
}

// NewManualOracle returns an oracle with no quote. Reads fail until the first
// SetQuote.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{}
}

// SetQuote replaces the current quote. The rate is asset B per asset A in
// 1e18 fixed point and must be positive.
func (o *ManualOracle) SetQuote(rate *big.Int, timestamp int64) error {
	if rate == nil || rate.Sign() <= 0 {
		return fmt.Errorf("staking oracle: rate must be positive")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quote = &PriceQuote{Rate: new(big.Int).Set(rate), Timestamp: timestamp}
	return nil
}

// LatestPrice implements PriceOracle.
func (o *ManualOracle) LatestPrice() (PriceQuote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.quote == nil {
		return PriceQuote{}, fmt.Errorf("staking oracle: no quote published")
	}
	return PriceQuote{Rate: new(big.Int).Set(o.quote.Rate), Timestamp: o.quote.Timestamp}, nil
}
