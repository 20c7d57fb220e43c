package staking

import "errors"

var (
	errNilState  = errors.New("staking engine: state not configured")
	errNilVault  = errors.New("staking engine: asset vault not configured")
	errNilParams = errors.New("staking engine: parameter source not configured")
	errNilRatio  = errors.New("staking engine: ratio strategy not configured")
)

var (
	// ErrZeroAmount rejects deposits or withdrawals of a zero primary amount.
	ErrZeroAmount = errors.New("staking engine: amount must be positive")
	// ErrRatioMismatch rejects paired deposits outside the fixed-ratio tolerance.
	ErrRatioMismatch = errors.New("staking engine: paired amount does not match configured ratio")
	// ErrInvalidPrice rejects oracle-derived deposits when the price is zero or stale.
	ErrInvalidPrice = errors.New("staking engine: oracle price invalid or stale")
	// ErrInsufficientRewardLiquidity rejects stakes whose obligations exceed
	// the unreserved custody balance of either asset.
	ErrInsufficientRewardLiquidity = errors.New("staking engine: insufficient reward liquidity")
	// ErrUnknownPosition is returned when no position exists for the id.
	ErrUnknownPosition = errors.New("staking engine: unknown position")
	// ErrPositionInactive is returned for claims or unstakes on a settled position.
	ErrPositionInactive = errors.New("staking engine: position inactive")
	// ErrIntervalNotElapsed gates claims until a full reward interval has passed.
	ErrIntervalNotElapsed = errors.New("staking engine: reward interval not elapsed")
	// ErrLockNotElapsed gates unstakes until the lock period has passed.
	ErrLockNotElapsed = errors.New("staking engine: lock period not elapsed")
	// ErrInsufficientCustody reports a custody balance below the amount due at
	// payout time. Unreachable while reservation bookkeeping holds; surfaced
	// rather than silently truncating the payout.
	ErrInsufficientCustody = errors.New("staking engine: custody balance below payout")
	// ErrReentrantCall rejects nested mutating calls triggered by transfer callbacks.
	ErrReentrantCall = errors.New("staking engine: reentrant call")
	// ErrInsufficientExcess rejects operator withdrawals that would dip into
	// reserved obligations.
	ErrInsufficientExcess = errors.New("staking engine: withdrawal exceeds unreserved balance")
	// ErrReservationUnderflow signals a release larger than the tracked
	// reservation. This is a bookkeeping invariant violation, not a user error.
	ErrReservationUnderflow = errors.New("staking engine: reservation underflow")
)
