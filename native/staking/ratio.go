package staking

import (
	"fmt"
	"math/big"
)

// PriceQuote carries an asset-B-per-asset-A exchange rate in 1e18 fixed point
// along with the unix timestamp reported by the upstream oracle.
type PriceQuote struct {
	Rate      *big.Int
	Timestamp int64
}

// PriceOracle resolves the current exchange rate between the two asset legs.
// Queried read-only; the validator rejects zero or stale quotes.
type PriceOracle interface {
	LatestPrice() (PriceQuote, error)
}

// RatioStrategy validates or derives the asset-B amount paired with amountA.
// Implementations are pure apart from the oracle read; the returned amount is
// what the engine transfers in and accrues on.
type RatioStrategy interface {
	PairAmount(amountA, amountB *big.Int, now int64) (*big.Int, error)
}

// FixedRatio validates caller-supplied pairs against a fixed asset-B-per-
// asset-A ratio in 1e18 fixed point. A one-unit slack absorbs the rounding
// drift between legs with different decimal precision.
type FixedRatio struct {
	ratio *big.Int
}

// NewFixedRatio constructs the fixed-ratio strategy. The ratio must be a
// positive 1e18 fixed-point value.
func NewFixedRatio(ratio *big.Int) (FixedRatio, error) {
	if ratio == nil || ratio.Sign() <= 0 {
		return FixedRatio{}, fmt.Errorf("staking ratio: ratio must be positive")
	}
	return FixedRatio{ratio: new(big.Int).Set(ratio)}, nil
}

// PairAmount checks amountB is within one unit of amountA*ratio/1e18 and
// returns it unchanged.
func (r FixedRatio) PairAmount(amountA, amountB *big.Int, _ int64) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if amountB == nil || amountB.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	expected := new(big.Int).Mul(amountA, r.ratio)
	expected.Quo(expected, ratioScale)
	diff := new(big.Int).Sub(amountB, expected)
	if diff.CmpAbs(big.NewInt(1)) > 0 {
		return nil, ErrRatioMismatch
	}
	return new(big.Int).Set(amountB), nil
}

// OracleRatio derives the asset-B amount from the oracle rate. Quotes older
// than maxAge seconds, zero rates and oracle failures all reject the deposit.
type OracleRatio struct {
	oracle PriceOracle
	maxAge int64
}

// NewOracleRatio constructs the oracle-derived strategy. maxAge bounds quote
// staleness in seconds; zero disables the age check.
func NewOracleRatio(oracle PriceOracle, maxAge int64) (OracleRatio, error) {
	if oracle == nil {
		return OracleRatio{}, fmt.Errorf("staking ratio: oracle not configured")
	}
	if maxAge < 0 {
		return OracleRatio{}, fmt.Errorf("staking ratio: max quote age must not be negative")
	}
	return OracleRatio{oracle: oracle, maxAge: maxAge}, nil
}

// PairAmount ignores any caller-supplied asset-B amount and computes
// amountA * 1e18 / rate from the latest quote.
func (r OracleRatio) PairAmount(amountA, _ *big.Int, now int64) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	quote, err := r.oracle.LatestPrice()
	if err != nil {
		return nil, ErrInvalidPrice
	}
	if quote.Rate == nil || quote.Rate.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if r.maxAge > 0 && now-quote.Timestamp > r.maxAge {
		return nil, ErrInvalidPrice
	}
	amountB := new(big.Int).Mul(amountA, ratioScale)
	amountB.Quo(amountB, quote.Rate)
	if amountB.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	return amountB, nil
}
