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

type vaultUnderTest interface {
	staking.AssetVault
	Credit(owner common.Address, asset staking.Asset, amount *big.Int) error
	AccountBalance(owner common.Address, asset staking.Asset) (*big.Int, error)
}

func openLedgerVault(t *testing.T) vaultUnderTest {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	vault, err := NewLedgerVault(db)
	require.NoError(t, err)
	return vault
}

func runVaultSuite(t *testing.T, vault vaultUnderTest) {
	owner := common.HexToAddress("0x0000000000000000000000000000000000000001")

	require.Error(t, vault.Credit(owner, staking.AssetA, big.NewInt(0)))
	require.NoError(t, vault.Credit(owner, staking.AssetA, big.NewInt(500)))

	// More than the account holds.
	require.ErrorIs(t, vault.TransferIn(staking.AssetA, owner, big.NewInt(501)), ErrInsufficientFunds)

	require.NoError(t, vault.TransferIn(staking.AssetA, owner, big.NewInt(300)))
	custody, err := vault.BalanceOf(staking.AssetA)
	require.NoError(t, err)
	require.Zero(t, custody.Cmp(big.NewInt(300)))
	balance, err := vault.AccountBalance(owner, staking.AssetA)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(200)))

	// Custody cannot be overdrawn either.
	require.ErrorIs(t, vault.TransferOut(staking.AssetA, owner, big.NewInt(301)), ErrInsufficientFunds)
	require.NoError(t, vault.TransferOut(staking.AssetA, owner, big.NewInt(300)))

	custody, err = vault.BalanceOf(staking.AssetA)
	require.NoError(t, err)
	require.Zero(t, custody.Sign())
	balance, err = vault.AccountBalance(owner, staking.AssetA)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(500)))

	// Legs never mix.
	custodyB, err := vault.BalanceOf(staking.AssetB)
	require.NoError(t, err)
	require.Zero(t, custodyB.Sign())
}

func TestLedgerVault(t *testing.T) {
	runVaultSuite(t, openLedgerVault(t))
}

func TestMemoryVault(t *testing.T) {
	runVaultSuite(t, NewMemoryVault())
}
