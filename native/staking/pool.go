package staking

import "math/big"

// PoolState is the incrementally maintained aggregate ledger: per-asset
// reserved reward liability (sum of obligation minus claimed over active
// positions) and per-asset total principal in custody. A full recomputation
// over the roster must always match these scalars.
type PoolState struct {
	ReservedA *big.Int
	ReservedB *big.Int

	TotalPrincipalA *big.Int
	TotalPrincipalB *big.Int
}

// NewPoolState returns an empty, normalized pool.
func NewPoolState() *PoolState {
	return (&PoolState{}).Normalize()
}

// Normalize ensures all scalar fields are non-nil. Returns the receiver for
// chaining.
func (p *PoolState) Normalize() *PoolState {
	if p == nil {
		return nil
	}
	if p.ReservedA == nil {
		p.ReservedA = big.NewInt(0)
	}
	if p.ReservedB == nil {
		p.ReservedB = big.NewInt(0)
	}
	if p.TotalPrincipalA == nil {
		p.TotalPrincipalA = big.NewInt(0)
	}
	if p.TotalPrincipalB == nil {
		p.TotalPrincipalB = big.NewInt(0)
	}
	return p
}

// Clone returns a deep copy of the pool scalars.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	return &PoolState{
		ReservedA:       cloneBigInt(p.ReservedA),
		ReservedB:       cloneBigInt(p.ReservedB),
		TotalPrincipalA: cloneBigInt(p.TotalPrincipalA),
		TotalPrincipalB: cloneBigInt(p.TotalPrincipalB),
	}
}

// Reserved returns the tracked reservation for the asset leg.
func (p *PoolState) Reserved(asset Asset) *big.Int {
	p.Normalize()
	switch asset {
	case AssetA:
		return cloneBigInt(p.ReservedA)
	case AssetB:
		return cloneBigInt(p.ReservedB)
	default:
		return big.NewInt(0)
	}
}

// TotalPrincipal returns the tracked principal for the asset leg.
func (p *PoolState) TotalPrincipal(asset Asset) *big.Int {
	p.Normalize()
	switch asset {
	case AssetA:
		return cloneBigInt(p.TotalPrincipalA)
	case AssetB:
		return cloneBigInt(p.TotalPrincipalB)
	default:
		return big.NewInt(0)
	}
}

// CanReserve reports whether an additional obligation fits under the custody
// balance. Callers must pass the vault's current holdings of the asset.
func (p *PoolState) CanReserve(asset Asset, custody, additional *big.Int) bool {
	if custody == nil {
		return false
	}
	next := new(big.Int).Add(p.Reserved(asset), cloneBigInt(additional))
	return next.Cmp(custody) <= 0
}

// Reserve earmarks an obligation against the asset leg. The caller must have
// verified CanReserve under the same serialized operation.
func (p *PoolState) Reserve(asset Asset, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Normalize()
	switch asset {
	case AssetA:
		p.ReservedA = new(big.Int).Add(p.ReservedA, amount)
	case AssetB:
		p.ReservedB = new(big.Int).Add(p.ReservedB, amount)
	}
}

// Release returns an obligation to the unreserved balance. Underflow means
// the incremental bookkeeping diverged from the position set and is reported
// as ErrReservationUnderflow rather than clamped.
func (p *PoolState) Release(asset Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	p.Normalize()
	var reserved *big.Int
	switch asset {
	case AssetA:
		reserved = p.ReservedA
	case AssetB:
		reserved = p.ReservedB
	default:
		return nil
	}
	if reserved.Cmp(amount) < 0 {
		return ErrReservationUnderflow
	}
	next := new(big.Int).Sub(reserved, amount)
	switch asset {
	case AssetA:
		p.ReservedA = next
	case AssetB:
		p.ReservedB = next
	}
	return nil
}

// Excess returns custody minus reserved for the asset leg, floored at zero.
// Only the administrative funding surface consumes this.
func (p *PoolState) Excess(asset Asset, custody *big.Int) *big.Int {
	excess := new(big.Int).Sub(cloneBigInt(custody), p.Reserved(asset))
	if excess.Sign() < 0 {
		return big.NewInt(0)
	}
	return excess
}

// AddPrincipal tracks principal entering custody for the asset leg.
func (p *PoolState) AddPrincipal(asset Asset, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Normalize()
	switch asset {
	case AssetA:
		p.TotalPrincipalA = new(big.Int).Add(p.TotalPrincipalA, amount)
	case AssetB:
		p.TotalPrincipalB = new(big.Int).Add(p.TotalPrincipalB, amount)
	}
}

// SubPrincipal tracks principal leaving custody for the asset leg, floored at
// zero to keep the aggregate view sane even under bookkeeping drift.
func (p *PoolState) SubPrincipal(asset Asset, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Normalize()
	var total *big.Int
	switch asset {
	case AssetA:
		total = p.TotalPrincipalA
	case AssetB:
		total = p.TotalPrincipalB
	default:
		return
	}
	next := new(big.Int).Sub(total, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	switch asset {
	case AssetA:
		p.TotalPrincipalA = next
	case AssetB:
		p.TotalPrincipalB = next
	}
}
