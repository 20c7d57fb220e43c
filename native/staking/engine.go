package staking

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"duostake/core/events"
	nativecommon "duostake/native/common"
)

const moduleName = "staking"

// engineState describes the persistence the staking engine needs from the
// surrounding state implementation. Positions are keyed by (owner, dense
// per-owner id); the owner roster is append-only and only consumed by
// audit-only aggregate scans.
type engineState interface {
	StakingPosition(owner common.Address, id uint64) (*Position, bool, error)
	PutStakingPosition(pos *Position) error
	StakingPositionCount(owner common.Address) (uint64, error)
	SetStakingPositionCount(owner common.Address, count uint64) error
	AppendStakingOwner(owner common.Address) error
	StakingOwners() ([]common.Address, error)
	StakingPool() (*PoolState, error)
	PutStakingPool(pool *PoolState) error
}

// Engine orchestrates the staking state transitions: ratio validation,
// obligation reservation, linear accrual and settlement. The host serializes
// mutating calls; the engine itself only defends against re-entrancy through
// transfer callbacks.
type Engine struct {
	state   engineState
	vault   AssetVault
	params  ParamSource
	ratio   RatioStrategy
	pauses  nativecommon.PauseView
	emitter events.Emitter
	nowFn   func() int64
	entered bool
}

// NewEngine constructs a staking engine with a no-op emitter and wall-clock
// time source. State, vault, params and ratio strategy must be wired before
// use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault wires the asset custody collaborator.
func (e *Engine) SetVault(vault AssetVault) { e.vault = vault }

// SetParamSource wires the administration collaborator supplying staking terms.
func (e *Engine) SetParamSource(params ParamSource) { e.params = params }

// SetRatioStrategy selects the deployment's paired-amount validation variant.
func (e *Engine) SetRatioStrategy(ratio RatioStrategy) { e.ratio = ratio }

// SetPauses wires the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for tests needing
// deterministic timestamps; passing nil restores the wall clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) ensureConfigured() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.vault == nil {
		return errNilVault
	}
	if e.params == nil {
		return errNilParams
	}
	if e.ratio == nil {
		return errNilRatio
	}
	return nil
}

// enter trips the re-entrancy guard for the duration of a mutating call. The
// returned release must run on every exit path.
func (e *Engine) enter() (func(), error) {
	if e.entered {
		return nil, ErrReentrantCall
	}
	e.entered = true
	return func() { e.entered = false }, nil
}

func (e *Engine) guardPaused(operation string, owner common.Address) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		e.emit(events.OperationPaused{Operation: operation, Owner: owner})
		return err
	}
	return nil
}

func (e *Engine) loadPool() (*PoolState, error) {
	pool, err := e.state.StakingPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return NewPoolState(), nil
	}
	return pool.Clone().Normalize(), nil
}

// loadPosition resolves a position by its dense id. Ids at or beyond the
// owner's count are unknown even when a row exists: a stake unwound after a
// failed transfer leaves its row behind until the next stake overwrites it.
func (e *Engine) loadPosition(owner common.Address, id uint64) (*Position, error) {
	count, err := e.state.StakingPositionCount(owner)
	if err != nil {
		return nil, err
	}
	if id >= count {
		return nil, ErrUnknownPosition
	}
	pos, found, err := e.state.StakingPosition(owner, id)
	if err != nil {
		return nil, err
	}
	if !found || pos == nil {
		return nil, ErrUnknownPosition
	}
	return pos.Clone(), nil
}

func (e *Engine) restorePool(prev *PoolState) {
	if prev == nil {
		return
	}
	// Best effort: the guard blocks nested mutation, so the snapshot is still
	// the pre-operation truth.
	_ = e.state.PutStakingPool(prev)
}

// accruedUpTo computes the claimable reward for both legs between the last
// claim and cutoff, capped at the lock end and at the remaining obligation.
// The remaining-obligation clamp is the safety net against rounding drift
// ever paying out more than was reserved.
func accruedUpTo(p *Position, cutoff int64) (*big.Int, *big.Int) {
	windowEnd := cutoff
	if p.LockEndTime < windowEnd {
		windowEnd = p.LockEndTime
	}
	if windowEnd <= p.LastClaimTime {
		return big.NewInt(0), big.NewInt(0)
	}
	elapsed := windowEnd - p.LastClaimTime
	accruedA := RewardFor(p.PrincipalA, p.ApyBps, elapsed)
	accruedB := RewardFor(p.PrincipalB, p.ApyBps, elapsed)
	if remaining := p.Remaining(AssetA); accruedA.Cmp(remaining) > 0 {
		accruedA = remaining
	}
	if remaining := p.Remaining(AssetB); accruedB.Cmp(remaining) > 0 {
		accruedB = remaining
	}
	return accruedA, accruedB
}

// Stake opens a new fixed-term position for the owner. The paired asset-B
// amount is validated (fixed-ratio variant) or derived (oracle variant), both
// full-lock obligations are reserved against current custody balances, and
// only then are the principals transferred in. A stake that fails any check
// has no side effect.
func (e *Engine) Stake(owner common.Address, amountA, amountB *big.Int) (*Position, error) {
	if err := e.ensureConfigured(); err != nil {
		return nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	if err := e.guardPaused("stake", owner); err != nil {
		return nil, err
	}

	params, err := e.params.StakingParams()
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	pairedB, err := e.ratio.PairAmount(amountA, amountB, now)
	if err != nil {
		return nil, err
	}

	// Obligations cover the full lock duration, locked in at stake time.
	obligationA := RewardFor(amountA, params.ApyBps, params.LockPeriod)
	obligationB := RewardFor(pairedB, params.ApyBps, params.LockPeriod)

	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	custodyA, err := e.rewardCustody(pool, AssetA)
	if err != nil {
		return nil, err
	}
	custodyB, err := e.rewardCustody(pool, AssetB)
	if err != nil {
		return nil, err
	}
	if !pool.CanReserve(AssetA, custodyA, obligationA) || !pool.CanReserve(AssetB, custodyB, obligationB) {
		return nil, ErrInsufficientRewardLiquidity
	}

	count, err := e.state.StakingPositionCount(owner)
	if err != nil {
		return nil, err
	}
	pos := &Position{
		Owner:             owner,
		ID:                count,
		StartTime:         now,
		LockEndTime:       now + params.LockPeriod,
		LastClaimTime:     now,
		PrincipalA:        cloneBigInt(amountA),
		PrincipalB:        cloneBigInt(pairedB),
		RewardObligationA: obligationA,
		RewardObligationB: obligationB,
		RewardClaimedA:    big.NewInt(0),
		RewardClaimedB:    big.NewInt(0),
		ApyBps:            params.ApyBps,
		RewardInterval:    params.RewardInterval,
		LockPeriod:        params.LockPeriod,
		Active:            true,
	}

	prevPool := pool.Clone()
	pool.Reserve(AssetA, obligationA)
	pool.Reserve(AssetB, obligationB)
	pool.AddPrincipal(AssetA, pos.PrincipalA)
	pool.AddPrincipal(AssetB, pos.PrincipalB)
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}

	// The position row, count and roster are committed before principal moves
	// in, so a storage failure can never strand funds in custody without a
	// recorded position. The count guard in loadPosition keeps an unwound row
	// invisible until the next stake overwrites it.
	if err := e.state.PutStakingPosition(pos); err != nil {
		e.restorePool(prevPool)
		return nil, err
	}
	if err := e.state.SetStakingPositionCount(owner, count+1); err != nil {
		e.restorePool(prevPool)
		return nil, err
	}
	if count == 0 {
		if err := e.state.AppendStakingOwner(owner); err != nil {
			_ = e.state.SetStakingPositionCount(owner, count)
			e.restorePool(prevPool)
			return nil, err
		}
	}

	if err := e.vault.TransferIn(AssetA, owner, pos.PrincipalA); err != nil {
		_ = e.state.SetStakingPositionCount(owner, count)
		e.restorePool(prevPool)
		return nil, fmt.Errorf("staking engine: transfer in asset a: %w", err)
	}
	if err := e.vault.TransferIn(AssetB, owner, pos.PrincipalB); err != nil {
		_ = e.vault.TransferOut(AssetA, owner, pos.PrincipalA)
		_ = e.state.SetStakingPositionCount(owner, count)
		e.restorePool(prevPool)
		return nil, fmt.Errorf("staking engine: transfer in asset b: %w", err)
	}

	e.emit(events.StakingCreated{
		Owner:       owner,
		PositionID:  pos.ID,
		PrincipalA:  cloneBigInt(pos.PrincipalA),
		PrincipalB:  cloneBigInt(pos.PrincipalB),
		ObligationA: cloneBigInt(pos.RewardObligationA),
		ObligationB: cloneBigInt(pos.RewardObligationB),
		LockEndTime: pos.LockEndTime,
		ApyBps:      pos.ApyBps,
	})
	return pos.Clone(), nil
}

// Claim pays out the reward accrued since the last claim, capped at the lock
// end. The claim succeeds with a zero payout once the interval gate passes,
// still advancing the claim clock; that cadence reset is deliberate and
// matches the position lifecycle contract.
func (e *Engine) Claim(owner common.Address, id uint64) (*big.Int, *big.Int, error) {
	if err := e.ensureConfigured(); err != nil {
		return nil, nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()
	if err := e.guardPaused("claim", owner); err != nil {
		return nil, nil, err
	}

	pos, err := e.loadPosition(owner, id)
	if err != nil {
		return nil, nil, err
	}
	if !pos.Active {
		return nil, nil, ErrPositionInactive
	}
	now := e.now()
	if now < pos.LastClaimTime+pos.RewardInterval {
		return nil, nil, ErrIntervalNotElapsed
	}

	accruedA, accruedB := accruedUpTo(pos, now)
	if err := e.checkCustody(AssetA, accruedA); err != nil {
		return nil, nil, err
	}
	if err := e.checkCustody(AssetB, accruedB); err != nil {
		return nil, nil, err
	}

	pool, err := e.loadPool()
	if err != nil {
		return nil, nil, err
	}
	prevPool := pool.Clone()
	prevPos := pos.Clone()

	pos.RewardClaimedA = new(big.Int).Add(pos.RewardClaimedA, accruedA)
	pos.RewardClaimedB = new(big.Int).Add(pos.RewardClaimedB, accruedB)
	pos.LastClaimTime = now
	if err := pool.Release(AssetA, accruedA); err != nil {
		return nil, nil, err
	}
	if err := pool.Release(AssetB, accruedB); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutStakingPosition(pos); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, nil, err
	}

	// Mutate-then-transfer: claimed amounts and reservation releases are
	// committed before any outbound transfer can re-enter.
	if accruedA.Sign() > 0 {
		if err := e.vault.TransferOut(AssetA, owner, accruedA); err != nil {
			_ = e.state.PutStakingPosition(prevPos)
			e.restorePool(prevPool)
			return nil, nil, fmt.Errorf("staking engine: transfer out asset a: %w", err)
		}
	}
	if accruedB.Sign() > 0 {
		if err := e.vault.TransferOut(AssetB, owner, accruedB); err != nil {
			// Funds already left custody for leg A; the commit stands and the
			// failure surfaces for operator resolution.
			return nil, nil, fmt.Errorf("staking engine: transfer out asset b: %w", err)
		}
	}

	e.emit(events.StakingClaimed{
		Owner:      owner,
		PositionID: id,
		AmountA:    cloneBigInt(accruedA),
		AmountB:    cloneBigInt(accruedB),
		ClaimTime:  now,
	})
	return accruedA, accruedB, nil
}

// Unstake settles a matured position: the final accrual is computed with the
// lock end as cutoff (time held past expiry earns nothing), reservations are
// released, and principal plus final reward is returned for both legs. The
// transition is terminal; repeat calls fail with ErrPositionInactive.
func (e *Engine) Unstake(owner common.Address, id uint64) (*big.Int, *big.Int, error) {
	if err := e.ensureConfigured(); err != nil {
		return nil, nil, err
	}
	release, err := e.enter()
	if err != nil {
		return nil, nil, err
	}
	defer release()
	if err := e.guardPaused("unstake", owner); err != nil {
		return nil, nil, err
	}

	pos, err := e.loadPosition(owner, id)
	if err != nil {
		return nil, nil, err
	}
	if !pos.Active {
		return nil, nil, ErrPositionInactive
	}
	now := e.now()
	if now < pos.LockEndTime {
		return nil, nil, ErrLockNotElapsed
	}

	finalA, finalB := accruedUpTo(pos, pos.LockEndTime)
	// The whole residual obligation leaves the reservation, not just the
	// final accrual: per-claim floor division can leave claimed short of the
	// obligation, and that dust must return to the unreserved balance when
	// the position goes inactive.
	residualA := pos.Remaining(AssetA)
	residualB := pos.Remaining(AssetB)
	payoutA := new(big.Int).Add(pos.PrincipalA, finalA)
	payoutB := new(big.Int).Add(pos.PrincipalB, finalB)
	if err := e.checkCustody(AssetA, payoutA); err != nil {
		return nil, nil, err
	}
	if err := e.checkCustody(AssetB, payoutB); err != nil {
		return nil, nil, err
	}

	pool, err := e.loadPool()
	if err != nil {
		return nil, nil, err
	}
	prevPool := pool.Clone()
	prevPos := pos.Clone()

	pos.RewardClaimedA = new(big.Int).Add(pos.RewardClaimedA, finalA)
	pos.RewardClaimedB = new(big.Int).Add(pos.RewardClaimedB, finalB)
	pos.LastClaimTime = now
	pos.Active = false
	if err := pool.Release(AssetA, residualA); err != nil {
		return nil, nil, err
	}
	if err := pool.Release(AssetB, residualB); err != nil {
		return nil, nil, err
	}
	pool.SubPrincipal(AssetA, pos.PrincipalA)
	pool.SubPrincipal(AssetB, pos.PrincipalB)
	if err := e.state.PutStakingPosition(pos); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, nil, err
	}

	if err := e.vault.TransferOut(AssetA, owner, payoutA); err != nil {
		_ = e.state.PutStakingPosition(prevPos)
		e.restorePool(prevPool)
		return nil, nil, fmt.Errorf("staking engine: transfer out asset a: %w", err)
	}
	if err := e.vault.TransferOut(AssetB, owner, payoutB); err != nil {
		return nil, nil, fmt.Errorf("staking engine: transfer out asset b: %w", err)
	}

	e.emit(events.StakingClosed{
		Owner:      owner,
		PositionID: id,
		PayoutA:    payoutA,
		PayoutB:    payoutB,
		ClosedAt:   now,
	})
	return payoutA, payoutB, nil
}

// rewardCustody nets tracked principal out of the vault balance. Principal
// belongs to stakers and is never available to back new reward obligations.
func (e *Engine) rewardCustody(pool *PoolState, asset Asset) (*big.Int, error) {
	balance, err := e.vault.BalanceOf(asset)
	if err != nil {
		return nil, err
	}
	custody := new(big.Int).Sub(cloneBigInt(balance), pool.TotalPrincipal(asset))
	if custody.Sign() < 0 {
		custody = big.NewInt(0)
	}
	return custody, nil
}

func (e *Engine) checkCustody(asset Asset, due *big.Int) error {
	if due == nil || due.Sign() == 0 {
		return nil
	}
	custody, err := e.vault.BalanceOf(asset)
	if err != nil {
		return err
	}
	if custody == nil || custody.Cmp(due) < 0 {
		return ErrInsufficientCustody
	}
	return nil
}

// FundRewards moves reward liquidity from the funder into custody. Funding
// never touches reservations; it only widens the unreserved balance new
// stakes can draw on.
func (e *Engine) FundRewards(funder common.Address, asset Asset, amount *big.Int) error {
	if e == nil || e.vault == nil {
		return errNilVault
	}
	if !asset.Valid() {
		return fmt.Errorf("staking engine: invalid asset: %d", asset)
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := e.guardPaused("fund", funder); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.vault.TransferIn(asset, funder, amount); err != nil {
		return fmt.Errorf("staking engine: fund transfer: %w", err)
	}
	e.emit(events.PoolFunded{Funder: funder, Asset: asset.String(), Amount: cloneBigInt(amount)})
	return nil
}

// WithdrawExcess returns unreserved custody to the operator. The amount is
// capped at custody minus reserved so obligations can never be raided.
func (e *Engine) WithdrawExcess(to common.Address, asset Asset, amount *big.Int) error {
	if err := e.ensureConfigured(); err != nil {
		return err
	}
	if !asset.Valid() {
		return fmt.Errorf("staking engine: invalid asset: %d", asset)
	}
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()
	if err := e.guardPaused("withdraw", to); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	custody, err := e.rewardCustody(pool, asset)
	if err != nil {
		return err
	}
	excess := pool.Excess(asset, custody)
	if amount.Cmp(excess) > 0 {
		return ErrInsufficientExcess
	}
	if err := e.vault.TransferOut(asset, to, amount); err != nil {
		return fmt.Errorf("staking engine: excess withdrawal: %w", err)
	}
	e.emit(events.PoolWithdrawn{Recipient: to, Asset: asset.String(), Amount: cloneBigInt(amount), Excess: excess})
	return nil
}
