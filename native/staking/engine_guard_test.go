package staking

import (
	"errors"
	"math/big"
	"testing"

	"duostake/core/events"
	nativecommon "duostake/native/common"
)

type stubPauses struct{ paused bool }

func (s stubPauses) IsPaused(module string) bool { return s.paused && module == moduleName }

type recordingEmitter struct{ emitted []events.Event }

func (r *recordingEmitter) Emit(evt events.Event) { r.emitted = append(r.emitted, evt) }

func (r *recordingEmitter) types() []string {
	types := make([]string, 0, len(r.emitted))
	for _, evt := range r.emitted {
		types = append(types, evt.EventType())
	}
	return types
}

func TestPauseRejectsAllMutations(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, _, clock := newTestEngine(t, vault)
	owner := addr(1)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.now += testLockPeriod

	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)
	engine.SetPauses(stubPauses{paused: true})

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("stake under pause: %v", err)
	}
	if _, _, err := engine.Claim(owner, 0); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("claim under pause: %v", err)
	}
	if _, _, err := engine.Unstake(owner, 0); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("unstake under pause: %v", err)
	}
	if err := engine.FundRewards(owner, AssetA, big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("fund under pause: %v", err)
	}
	for _, typ := range emitter.types() {
		if typ != events.TypeStakingPaused {
			t.Fatalf("unexpected event under pause: %s", typ)
		}
	}
	if len(emitter.emitted) != 4 {
		t.Fatalf("expected 4 pause events, got %d", len(emitter.emitted))
	}

	// Views stay readable while paused.
	engine.SetPauses(stubPauses{paused: true})
	if _, _, err := engine.Accrued(owner, 0); err != nil {
		t.Fatalf("accrued view under pause: %v", err)
	}

	engine.SetPauses(stubPauses{})
	if _, _, err := engine.Unstake(owner, 0); err != nil {
		t.Fatalf("unstake after unpause: %v", err)
	}
}

func TestReentrantTransferCallbackIsRejected(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, _, clock := newTestEngine(t, vault)
	owner := addr(1)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.now += testRewardInterval

	var nestedErr error
	vault.outHook = func() {
		_, _, nestedErr = engine.Claim(owner, 0)
	}
	if _, _, err := engine.Claim(owner, 0); err != nil {
		t.Fatalf("outer claim: %v", err)
	}
	if !errors.Is(nestedErr, ErrReentrantCall) {
		t.Fatalf("expected nested call to fail with ErrReentrantCall, got %v", nestedErr)
	}
}

func TestGuardReleasedAfterFailedCall(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, _, clock := newTestEngine(t, vault)
	owner := addr(1)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, _, err := engine.Claim(owner, 0); !errors.Is(err, ErrIntervalNotElapsed) {
		t.Fatalf("expected ErrIntervalNotElapsed, got %v", err)
	}
	// The failed claim must not leave the guard held.
	clock.now += testRewardInterval
	if _, _, err := engine.Claim(owner, 0); err != nil {
		t.Fatalf("claim after failed attempt: %v", err)
	}
}

func TestClaimDefensiveCustodyCheck(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, _, clock := newTestEngine(t, vault)
	owner := addr(1)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	// Drain custody behind the engine's back to simulate broken bookkeeping.
	vault.balances[AssetA] = big.NewInt(3)
	clock.now += testRewardInterval

	if _, _, err := engine.Claim(owner, 0); !errors.Is(err, ErrInsufficientCustody) {
		t.Fatalf("expected ErrInsufficientCustody, got %v", err)
	}
}

func TestFailedTransferInUnwindsReservation(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, state, _ := newTestEngine(t, vault)
	owner := addr(1)

	vault.inErr = errors.New("custody rejected transfer")
	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err == nil {
		t.Fatal("expected stake to fail")
	}
	if state.pool != nil && state.pool.Reserved(AssetA).Sign() != 0 {
		t.Fatalf("reservation not unwound: %s", state.pool.Reserved(AssetA))
	}
	if state.counts[owner] != 0 {
		t.Fatal("failed stake must not create a position")
	}
	if _, err := engine.GetPosition(owner, 0); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("unwound position must be invisible, got %v", err)
	}

	vault.inErr = nil
	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake after transfer recovery: %v", err)
	}
}

func TestStakePersistsPositionBeforeTransfers(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, state, _ := newTestEngine(t, vault)
	owner := addr(1)

	// A crash between the transfer-ins and any later write must never leave
	// principal in custody without a recorded position.
	var sawRow, sawCount bool
	vault.inHook = func() {
		pos, found, err := state.StakingPosition(owner, 0)
		sawRow = err == nil && found && pos != nil
		count, _ := state.StakingPositionCount(owner)
		sawCount = count == 1
	}
	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if !sawRow || !sawCount {
		t.Fatal("position row and count must be committed before principal moves")
	}
}

func TestFailedSecondLegUnwindsStake(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, state, _ := newTestEngine(t, vault)
	owner := addr(1)

	calls := 0
	vault.inHook = func() {
		calls++
		if calls == 2 {
			vault.inErr = errors.New("second leg rejected")
		}
	}
	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err == nil {
		t.Fatal("expected stake to fail on the second leg")
	}

	// Leg A is compensated back out and all state writes are unwound.
	requireInt(t, vault.balances[AssetA], 49, "custody a after unwind")
	requireInt(t, vault.balances[AssetB], 98, "custody b after unwind")
	if state.counts[owner] != 0 {
		t.Fatal("failed stake must not advance the position count")
	}
	if state.pool != nil && state.pool.Reserved(AssetB).Sign() != 0 {
		t.Fatalf("reservation not unwound: %s", state.pool.Reserved(AssetB))
	}
	if _, err := engine.GetPosition(owner, 0); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("unwound position must be invisible, got %v", err)
	}

	vault.inHook = nil
	vault.inErr = nil
	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake after recovery: %v", err)
	}
}

func TestFundRewardsWidensLiquidity(t *testing.T) {
	vault := newMockVault(0, 0)
	engine, _, _ := newTestEngine(t, vault)
	owner := addr(1)
	operator := addr(9)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); !errors.Is(err, ErrInsufficientRewardLiquidity) {
		t.Fatalf("expected ErrInsufficientRewardLiquidity on empty pool, got %v", err)
	}

	if err := engine.FundRewards(operator, AssetA, big.NewInt(49)); err != nil {
		t.Fatalf("fund a: %v", err)
	}
	if err := engine.FundRewards(operator, AssetB, big.NewInt(98)); err != nil {
		t.Fatalf("fund b: %v", err)
	}
	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake after funding: %v", err)
	}

	if err := engine.FundRewards(operator, AssetA, nil); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestWithdrawExcessNeverTouchesReservations(t *testing.T) {
	vault := newMockVault(60, 120)
	engine, _, _ := newTestEngine(t, vault)
	owner := addr(1)
	operator := addr(9)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	// Reward custody is 60 with 49 reserved: 11 withdrawable on leg A.
	if err := engine.WithdrawExcess(operator, AssetA, big.NewInt(12)); !errors.Is(err, ErrInsufficientExcess) {
		t.Fatalf("expected ErrInsufficientExcess, got %v", err)
	}
	if err := engine.WithdrawExcess(operator, AssetA, big.NewInt(11)); err != nil {
		t.Fatalf("withdraw within excess: %v", err)
	}
	if err := engine.WithdrawExcess(operator, AssetA, big.NewInt(1)); !errors.Is(err, ErrInsufficientExcess) {
		t.Fatalf("expected ErrInsufficientExcess after draining excess, got %v", err)
	}
	requireInt(t, vault.balances[AssetA], 1049, "custody a after withdrawal")
}

func TestEngineRequiresCollaborators(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Stake(addr(1), big.NewInt(1), big.NewInt(2)); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
	engine.SetState(newMockState())
	if _, err := engine.Stake(addr(1), big.NewInt(1), big.NewInt(2)); !errors.Is(err, errNilVault) {
		t.Fatalf("expected errNilVault, got %v", err)
	}
	engine.SetVault(newMockVault(0, 0))
	if _, err := engine.Stake(addr(1), big.NewInt(1), big.NewInt(2)); !errors.Is(err, errNilParams) {
		t.Fatalf("expected errNilParams, got %v", err)
	}
	engine.SetParamSource(StaticParams{Params: Params{ApyBps: 1, LockPeriod: 1, RewardInterval: 1}})
	if _, err := engine.Stake(addr(1), big.NewInt(1), big.NewInt(2)); !errors.Is(err, errNilRatio) {
		t.Fatalf("expected errNilRatio, got %v", err)
	}
}

func TestLifecycleEventSequence(t *testing.T) {
	vault := newMockVault(49, 98)
	engine, _, clock := newTestEngine(t, vault)
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)
	owner := addr(1)

	if _, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	clock.now += testRewardInterval
	if _, _, err := engine.Claim(owner, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}
	clock.now += testLockPeriod
	if _, _, err := engine.Unstake(owner, 0); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	want := []string{events.TypeStakingCreated, events.TypeStakingClaimed, events.TypeStakingClosed}
	got := emitter.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, got[i], want[i])
		}
	}
}
