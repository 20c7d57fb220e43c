package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"duostake/core/types"
)

const (
	// TypeStakingCreated is emitted when a new dual-asset position is opened.
	TypeStakingCreated = "staking.created"
	// TypeStakingClaimed is emitted when accrued rewards are paid out.
	TypeStakingClaimed = "staking.claimed"
	// TypeStakingClosed is emitted when a position is unstaked and settled.
	TypeStakingClosed = "staking.closed"
	// TypeStakingPaused signals a mutating call rejected by the pause switch.
	TypeStakingPaused = "staking.paused"
	// TypeStakingPoolFunded captures reward liquidity added to custody.
	TypeStakingPoolFunded = "staking.pool.funded"
	// TypeStakingPoolWithdrawn captures unreserved liquidity withdrawn by the operator.
	TypeStakingPoolWithdrawn = "staking.pool.withdrawn"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// StakingCreated captures the obligations reserved when a position is opened.
type StakingCreated struct {
	Owner       common.Address
	PositionID  uint64
	PrincipalA  *big.Int
	PrincipalB  *big.Int
	ObligationA *big.Int
	ObligationB *big.Int
	LockEndTime int64
	ApyBps      uint64
}

// EventType satisfies the Event interface.
func (StakingCreated) EventType() string { return TypeStakingCreated }

// Event converts the structured payload into a broadcastable event.
func (e StakingCreated) Event() *types.Event {
	return &types.Event{Type: TypeStakingCreated, Attributes: map[string]string{
		"owner":       e.Owner.Hex(),
		"positionId":  strconv.FormatUint(e.PositionID, 10),
		"principalA":  formatAmount(e.PrincipalA),
		"principalB":  formatAmount(e.PrincipalB),
		"obligationA": formatAmount(e.ObligationA),
		"obligationB": formatAmount(e.ObligationB),
		"lockEnd":     strconv.FormatInt(e.LockEndTime, 10),
		"apyBps":      strconv.FormatUint(e.ApyBps, 10),
	}}
}

// StakingClaimed captures a reward payout on an active position.
type StakingClaimed struct {
	Owner      common.Address
	PositionID uint64
	AmountA    *big.Int
	AmountB    *big.Int
	ClaimTime  int64
}

// EventType satisfies the Event interface.
func (StakingClaimed) EventType() string { return TypeStakingClaimed }

// Event converts the structured payload into a broadcastable event.
func (e StakingClaimed) Event() *types.Event {
	return &types.Event{Type: TypeStakingClaimed, Attributes: map[string]string{
		"owner":      e.Owner.Hex(),
		"positionId": strconv.FormatUint(e.PositionID, 10),
		"amountA":    formatAmount(e.AmountA),
		"amountB":    formatAmount(e.AmountB),
		"claimedAt":  strconv.FormatInt(e.ClaimTime, 10),
	}}
}

// StakingClosed captures the terminal settlement of a position.
type StakingClosed struct {
	Owner      common.Address
	PositionID uint64
	PayoutA    *big.Int
	PayoutB    *big.Int
	ClosedAt   int64
}

// EventType satisfies the Event interface.
func (StakingClosed) EventType() string { return TypeStakingClosed }

// Event converts the structured payload into a broadcastable event.
func (e StakingClosed) Event() *types.Event {
	return &types.Event{Type: TypeStakingClosed, Attributes: map[string]string{
		"owner":      e.Owner.Hex(),
		"positionId": strconv.FormatUint(e.PositionID, 10),
		"payoutA":    formatAmount(e.PayoutA),
		"payoutB":    formatAmount(e.PayoutB),
		"closedAt":   strconv.FormatInt(e.ClosedAt, 10),
	}}
}

// OperationPaused captures a mutating call rejected by the pause switch.
type OperationPaused struct {
	Operation string
	Owner     common.Address
}

// EventType satisfies the Event interface.
func (OperationPaused) EventType() string { return TypeStakingPaused }

// Event converts the structured payload into a broadcastable event.
func (e OperationPaused) Event() *types.Event {
	return &types.Event{Type: TypeStakingPaused, Attributes: map[string]string{
		"operation": e.Operation,
		"owner":     e.Owner.Hex(),
	}}
}

// PoolFunded captures reward liquidity transferred into custody.
type PoolFunded struct {
	Funder common.Address
	Asset  string
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (PoolFunded) EventType() string { return TypeStakingPoolFunded }

// Event converts the structured payload into a broadcastable event.
func (e PoolFunded) Event() *types.Event {
	return &types.Event{Type: TypeStakingPoolFunded, Attributes: map[string]string{
		"funder": e.Funder.Hex(),
		"asset":  e.Asset,
		"amount": formatAmount(e.Amount),
	}}
}

// PoolWithdrawn captures unreserved liquidity returned to the operator.
type PoolWithdrawn struct {
	Recipient common.Address
	Asset     string
	Amount    *big.Int
	Excess    *big.Int
}

// EventType satisfies the Event interface.
func (PoolWithdrawn) EventType() string { return TypeStakingPoolWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e PoolWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeStakingPoolWithdrawn, Attributes: map[string]string{
		"recipient": e.Recipient.Hex(),
		"asset":     e.Asset,
		"amount":    formatAmount(e.Amount),
		"excess":    formatAmount(e.Excess),
	}}
}
