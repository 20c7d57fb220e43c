package storage

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"duostake/native/staking"
)

func openTestState(t *testing.T) (*SQLiteState, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	state, err := NewGormState(db)
	require.NoError(t, err)
	return state, db
}

func testPosition(owner common.Address, id uint64) *staking.Position {
	return &staking.Position{
		Owner:             owner,
		ID:                id,
		StartTime:         1_700_000_000,
		LockEndTime:       1_715_552_000,
		LastClaimTime:     1_700_000_000,
		PrincipalA:        big.NewInt(1000),
		PrincipalB:        big.NewInt(2000),
		RewardObligationA: big.NewInt(49),
		RewardObligationB: big.NewInt(98),
		RewardClaimedA:    big.NewInt(0),
		RewardClaimedB:    big.NewInt(0),
		ApyBps:            1000,
		RewardInterval:    2_592_000,
		LockPeriod:        15_552_000,
		Active:            true,
	}
}

func TestSQLiteStatePositionRoundTrip(t *testing.T) {
	state, _ := openTestState(t)
	owner := common.HexToAddress("0x0000000000000000000000000000000000000001")

	_, found, err := state.StakingPosition(owner, 0)
	require.NoError(t, err)
	require.False(t, found)

	stored := testPosition(owner, 0)
	require.NoError(t, state.PutStakingPosition(stored))

	loaded, found, err := state.StakingPosition(owner, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, stored.Owner, loaded.Owner)
	require.Zero(t, stored.PrincipalA.Cmp(loaded.PrincipalA))
	require.Zero(t, stored.RewardObligationB.Cmp(loaded.RewardObligationB))
	require.Equal(t, stored.LockEndTime, loaded.LockEndTime)
	require.True(t, loaded.Active)

	// Mutate and upsert: claims advance in place.
	loaded.RewardClaimedA = big.NewInt(8)
	loaded.LastClaimTime = 1_702_592_000
	require.NoError(t, state.PutStakingPosition(loaded))
	again, _, err := state.StakingPosition(owner, 0)
	require.NoError(t, err)
	require.Zero(t, again.RewardClaimedA.Cmp(big.NewInt(8)))
}

func TestSQLiteStateHugeAmountsSurvive(t *testing.T) {
	state, _ := openTestState(t)
	owner := common.HexToAddress("0x0000000000000000000000000000000000000002")

	huge, ok := new(big.Int).SetString("1000000000000000000000000000000", 10) // 1e30
	require.True(t, ok)
	pos := testPosition(owner, 0)
	pos.PrincipalA = huge
	require.NoError(t, state.PutStakingPosition(pos))

	loaded, _, err := state.StakingPosition(owner, 0)
	require.NoError(t, err)
	require.Zero(t, huge.Cmp(loaded.PrincipalA))
}

func TestSQLiteStateCountsAndRoster(t *testing.T) {
	state, _ := openTestState(t)
	alice := common.HexToAddress("0x000000000000000000000000000000000000000a")
	bob := common.HexToAddress("0x000000000000000000000000000000000000000b")

	count, err := state.StakingPositionCount(alice)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, state.SetStakingPositionCount(alice, 1))
	require.NoError(t, state.AppendStakingOwner(alice))
	require.NoError(t, state.SetStakingPositionCount(bob, 1))
	require.NoError(t, state.AppendStakingOwner(bob))
	require.NoError(t, state.SetStakingPositionCount(alice, 2))
	// Re-enrollment is a no-op.
	require.NoError(t, state.AppendStakingOwner(alice))

	count, err = state.StakingPositionCount(alice)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	owners, err := state.StakingOwners()
	require.NoError(t, err)
	require.Equal(t, []common.Address{alice, bob}, owners)
}

func TestSQLiteStatePoolRoundTrip(t *testing.T) {
	state, _ := openTestState(t)

	pool, err := state.StakingPool()
	require.NoError(t, err)
	require.Nil(t, pool)

	stored := staking.NewPoolState()
	stored.Reserve(staking.AssetA, big.NewInt(49))
	stored.Reserve(staking.AssetB, big.NewInt(98))
	stored.AddPrincipal(staking.AssetA, big.NewInt(1000))
	require.NoError(t, state.PutStakingPool(stored))

	loaded, err := state.StakingPool()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.Reserved(staking.AssetA).Cmp(big.NewInt(49)))
	require.Zero(t, loaded.Reserved(staking.AssetB).Cmp(big.NewInt(98)))
	require.Zero(t, loaded.TotalPrincipal(staking.AssetA).Cmp(big.NewInt(1000)))
}

func TestEngineRunsAgainstSQLiteState(t *testing.T) {
	state, db := openTestState(t)
	vault, err := NewLedgerVault(db)
	require.NoError(t, err)

	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	operator := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	require.NoError(t, vault.Credit(owner, staking.AssetA, big.NewInt(1000)))
	require.NoError(t, vault.Credit(owner, staking.AssetB, big.NewInt(2000)))
	require.NoError(t, vault.Credit(operator, staking.AssetA, big.NewInt(49)))
	require.NoError(t, vault.Credit(operator, staking.AssetB, big.NewInt(98)))

	ratio, err := staking.NewFixedRatio(new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)))
	require.NoError(t, err)

	now := int64(1_700_000_000)
	engine := staking.NewEngine()
	engine.SetState(state)
	engine.SetVault(vault)
	engine.SetRatioStrategy(ratio)
	engine.SetParamSource(staking.StaticParams{Params: staking.Params{
		ApyBps:         1000,
		LockPeriod:     15_552_000,
		RewardInterval: 2_592_000,
	}})
	engine.SetNowFunc(func() int64 { return now })

	require.NoError(t, engine.FundRewards(operator, staking.AssetA, big.NewInt(49)))
	require.NoError(t, engine.FundRewards(operator, staking.AssetB, big.NewInt(98)))

	pos, err := engine.Stake(owner, big.NewInt(1000), big.NewInt(2000))
	require.NoError(t, err)
	require.Zero(t, pos.RewardObligationA.Cmp(big.NewInt(49)))

	now += 2_592_000
	claimedA, claimedB, err := engine.Claim(owner, 0)
	require.NoError(t, err)
	require.Zero(t, claimedA.Cmp(big.NewInt(8)))
	require.Zero(t, claimedB.Cmp(big.NewInt(16)))

	now += 15_552_000
	payoutA, payoutB, err := engine.Unstake(owner, 0)
	require.NoError(t, err)
	require.Zero(t, payoutA.Cmp(big.NewInt(1041)))
	require.Zero(t, payoutB.Cmp(big.NewInt(2082)))

	// Everything the owner put in came back with the full obligation on top.
	balanceA, err := vault.AccountBalance(owner, staking.AssetA)
	require.NoError(t, err)
	require.Zero(t, balanceA.Cmp(big.NewInt(1049)))
	custodyA, err := vault.BalanceOf(staking.AssetA)
	require.NoError(t, err)
	require.Zero(t, custodyA.Sign())
}
