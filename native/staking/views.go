package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GetPosition returns a copy of the position, active or settled.
func (e *Engine) GetPosition(owner common.Address, id uint64) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPosition(owner, id)
}

// Positions returns copies of every position the owner has ever opened, in
// id order. Ids are dense, so this is a straight count walk.
func (e *Engine) Positions(owner common.Address) ([]*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.StakingPositionCount(owner)
	if err != nil {
		return nil, err
	}
	positions := make([]*Position, 0, count)
	for id := uint64(0); id < count; id++ {
		pos, err := e.loadPosition(owner, id)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// Accrued reports the reward claimable right now for both legs. Settled
// positions always report zero.
func (e *Engine) Accrued(owner common.Address, id uint64) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	pos, err := e.loadPosition(owner, id)
	if err != nil {
		return nil, nil, err
	}
	if !pos.Active {
		return big.NewInt(0), big.NewInt(0), nil
	}
	accruedA, accruedB := accruedUpTo(pos, e.now())
	return accruedA, accruedB, nil
}

// NextPayoutTime reports the earliest unix timestamp a claim can succeed.
// Settled positions report zero.
func (e *Engine) NextPayoutTime(owner common.Address, id uint64) (int64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	pos, err := e.loadPosition(owner, id)
	if err != nil {
		return 0, err
	}
	if !pos.Active {
		return 0, nil
	}
	return pos.LastClaimTime + pos.RewardInterval, nil
}

// IsUnlockable reports whether the position is active and past its lock end.
func (e *Engine) IsUnlockable(owner common.Address, id uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	pos, err := e.loadPosition(owner, id)
	if err != nil {
		return false, err
	}
	return pos.Active && e.now() >= pos.LockEndTime, nil
}

// TotalPrincipal reports the aggregate principal in custody for the asset leg.
func (e *Engine) TotalPrincipal(asset Asset) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return pool.TotalPrincipal(asset), nil
}

// PoolStatus reports custody, reserved and unreserved balances for the asset
// leg.
func (e *Engine) PoolStatus(asset Asset) (PoolStatus, error) {
	if e == nil || e.state == nil {
		return PoolStatus{}, errNilState
	}
	if e.vault == nil {
		return PoolStatus{}, errNilVault
	}
	balance, err := e.vault.BalanceOf(asset)
	if err != nil {
		return PoolStatus{}, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return PoolStatus{}, err
	}
	rewardCustody, err := e.rewardCustody(pool, asset)
	if err != nil {
		return PoolStatus{}, err
	}
	return PoolStatus{
		Custody:  cloneBigInt(balance),
		Reserved: pool.Reserved(asset),
		Excess:   pool.Excess(asset, rewardCustody),
	}, nil
}

// RecomputeReserved rebuilds the reservation scalar from scratch by summing
// obligation minus claimed over every active position. This is the audit
// counterpart to the incrementally maintained pool value and walks the whole
// roster, so it belongs on reporting paths only.
func (e *Engine) RecomputeReserved(asset Asset) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	owners, err := e.state.StakingOwners()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, owner := range owners {
		count, err := e.state.StakingPositionCount(owner)
		if err != nil {
			return nil, err
		}
		for id := uint64(0); id < count; id++ {
			pos, found, err := e.state.StakingPosition(owner, id)
			if err != nil {
				return nil, err
			}
			if !found || pos == nil || !pos.Active {
				continue
			}
			total.Add(total, pos.Remaining(asset))
		}
	}
	return total, nil
}
