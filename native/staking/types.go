package staking

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies one leg of the dual-asset pair.
type Asset uint8

const (
	// AssetA is the primary deposit asset.
	AssetA Asset = iota
	// AssetB is the paired deposit asset.
	AssetB
)

// String renders the canonical lowercase asset symbol.
func (a Asset) String() string {
	switch a {
	case AssetA:
		return "a"
	case AssetB:
		return "b"
	default:
		return fmt.Sprintf("asset(%d)", uint8(a))
	}
}

// Valid reports whether the asset value is within the supported range.
func (a Asset) Valid() bool { return a == AssetA || a == AssetB }

// ParseAsset resolves the canonical symbol for an asset leg.
func ParseAsset(symbol string) (Asset, error) {
	switch strings.ToLower(strings.TrimSpace(symbol)) {
	case "a":
		return AssetA, nil
	case "b":
		return AssetB, nil
	default:
		return 0, fmt.Errorf("unsupported staking asset: %s", symbol)
	}
}

// Position captures one fixed-term dual-asset deposit together with the
// parameter snapshot taken at creation. Principals and obligations are
// immutable after creation; claimed amounts only grow.
type Position struct {
	Owner common.Address
	// ID is the dense, zero-based, per-owner sequence number. Ids are never
	// reused; settled positions remain readable for audit.
	ID uint64

	StartTime     int64
	LockEndTime   int64
	LastClaimTime int64

	PrincipalA *big.Int
	PrincipalB *big.Int

	// RewardObligationX is the total reward promised over the full lock
	// duration, fixed when the position is created.
	RewardObligationA *big.Int
	RewardObligationB *big.Int

	RewardClaimedA *big.Int
	RewardClaimedB *big.Int

	// Parameter snapshot captured at creation. Later admin updates never
	// touch existing positions.
	ApyBps         uint64
	RewardInterval int64
	LockPeriod     int64

	Active bool
}

// Clone returns a deep copy so callers can mutate safely before persisting.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.PrincipalA = cloneBigInt(p.PrincipalA)
	clone.PrincipalB = cloneBigInt(p.PrincipalB)
	clone.RewardObligationA = cloneBigInt(p.RewardObligationA)
	clone.RewardObligationB = cloneBigInt(p.RewardObligationB)
	clone.RewardClaimedA = cloneBigInt(p.RewardClaimedA)
	clone.RewardClaimedB = cloneBigInt(p.RewardClaimedB)
	return &clone
}

// Remaining returns obligation minus claimed for the asset leg, floored at zero.
func (p *Position) Remaining(asset Asset) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	var obligation, claimed *big.Int
	switch asset {
	case AssetA:
		obligation, claimed = p.RewardObligationA, p.RewardClaimedA
	case AssetB:
		obligation, claimed = p.RewardObligationB, p.RewardClaimedB
	default:
		return big.NewInt(0)
	}
	remaining := new(big.Int).Sub(cloneBigInt(obligation), cloneBigInt(claimed))
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// Params groups the governance-controlled staking terms read at the top of
// each mutating operation and snapshotted into new positions.
type Params struct {
	// ApyBps is the annual reward rate in basis points (10000 = 100%).
	ApyBps uint64
	// LockPeriod is the minimum staking duration in seconds.
	LockPeriod int64
	// RewardInterval is the minimum spacing between claims in seconds.
	RewardInterval int64
}

// Validate performs static validation of the staking terms.
func (p Params) Validate() error {
	if p.ApyBps == 0 {
		return fmt.Errorf("staking params: apy bps must be positive")
	}
	if p.ApyBps > 100_000 {
		return fmt.Errorf("staking params: apy bps out of range: %d", p.ApyBps)
	}
	if p.LockPeriod <= 0 {
		return fmt.Errorf("staking params: lock period must be positive")
	}
	if p.RewardInterval <= 0 {
		return fmt.Errorf("staking params: reward interval must be positive")
	}
	if p.RewardInterval > p.LockPeriod {
		return fmt.Errorf("staking params: reward interval exceeds lock period")
	}
	return nil
}

// ParamSource supplies the current staking terms. Implementations belong to
// the administration collaborator; the engine only reads.
type ParamSource interface {
	StakingParams() (Params, error)
}

// StaticParams is a ParamSource returning a fixed parameter set.
type StaticParams struct {
	Params Params
}

// StakingParams implements the ParamSource interface.
func (s StaticParams) StakingParams() (Params, error) { return s.Params, nil }

// AssetVault abstracts the custody collaborator holding both asset legs.
// Transfers are atomic and balance conserving; failures propagate without
// partial effect.
type AssetVault interface {
	TransferIn(asset Asset, from common.Address, amount *big.Int) error
	TransferOut(asset Asset, to common.Address, amount *big.Int) error
	BalanceOf(asset Asset) (*big.Int, error)
}

// PoolStatus is the aggregate solvency view for one asset leg.
type PoolStatus struct {
	Custody  *big.Int
	Reserved *big.Int
	Excess   *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
