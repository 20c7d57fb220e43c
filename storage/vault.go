package storage

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"

	"duostake/native/staking"
)

// ErrInsufficientFunds rejects transfers that would overdraw a ledger account
// or the custody balance.
var ErrInsufficientFunds = errors.New("vault: insufficient funds")

// custodyKey is the reserved ledger key holding pooled custody per asset.
const custodyKey = "custody"

// BalanceRecord is one ledger account balance for one asset leg.
type BalanceRecord struct {
	Owner  string `gorm:"primaryKey;size:42"`
	Asset  string `gorm:"primaryKey;size:8"`
	Amount string `gorm:"size:96"`
}

// LedgerVault is a balance-conserving custody ledger backed by gorm. It
// implements the staking engine's vault contract: TransferIn debits the
// depositor and credits custody, TransferOut does the reverse, and every
// movement is atomic within a transaction.
type LedgerVault struct {
	db *gorm.DB
}

// NewLedgerVault wraps an open gorm handle and migrates the balances table.
func NewLedgerVault(db *gorm.DB) (*LedgerVault, error) {
	if db == nil {
		return nil, fmt.Errorf("vault: nil db handle")
	}
	if err := db.AutoMigrate(&BalanceRecord{}); err != nil {
		return nil, fmt.Errorf("vault: migrate: %w", err)
	}
	return &LedgerVault{db: db}, nil
}

func loadBalance(tx *gorm.DB, owner, asset string) (*big.Int, error) {
	var rec BalanceRecord
	err := tx.Where("owner = ? AND asset = ?", owner, asset).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseAmount("balance", rec.Amount)
}

func storeBalance(tx *gorm.DB, owner, asset string, amount *big.Int) error {
	return tx.Save(&BalanceRecord{Owner: owner, Asset: asset, Amount: formatAmount(amount)}).Error
}

func move(tx *gorm.DB, from, to, asset string, amount *big.Int) error {
	source, err := loadBalance(tx, from, asset)
	if err != nil {
		return err
	}
	if source.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	dest, err := loadBalance(tx, to, asset)
	if err != nil {
		return err
	}
	if err := storeBalance(tx, from, asset, new(big.Int).Sub(source, amount)); err != nil {
		return err
	}
	return storeBalance(tx, to, asset, new(big.Int).Add(dest, amount))
}

// Credit records an external deposit onto a ledger account. This is how funds
// arrive from outside rails before they can be staked.
func (v *LedgerVault) Credit(owner common.Address, asset staking.Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: credit amount must be positive")
	}
	return v.db.Transaction(func(tx *gorm.DB) error {
		balance, err := loadBalance(tx, owner.Hex(), asset.String())
		if err != nil {
			return err
		}
		return storeBalance(tx, owner.Hex(), asset.String(), new(big.Int).Add(balance, amount))
	})
}

// AccountBalance reports a ledger account's holdings of one asset leg.
func (v *LedgerVault) AccountBalance(owner common.Address, asset staking.Asset) (*big.Int, error) {
	return loadBalance(v.db, owner.Hex(), asset.String())
}

// TransferIn moves funds from the depositor's ledger account into custody.
func (v *LedgerVault) TransferIn(asset staking.Asset, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	return v.db.Transaction(func(tx *gorm.DB) error {
		return move(tx, from.Hex(), custodyKey, asset.String(), amount)
	})
}

// TransferOut moves funds from custody back to a ledger account.
func (v *LedgerVault) TransferOut(asset staking.Asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	return v.db.Transaction(func(tx *gorm.DB) error {
		return move(tx, custodyKey, to.Hex(), asset.String(), amount)
	})
}

// BalanceOf reports the pooled custody balance for the asset leg.
func (v *LedgerVault) BalanceOf(asset staking.Asset) (*big.Int, error) {
	return loadBalance(v.db, custodyKey, asset.String())
}

// MemoryVault is the in-memory counterpart of LedgerVault for tests and
// ephemeral deployments.
type MemoryVault struct {
	mu       sync.Mutex
	balances map[string]*big.Int
}

// NewMemoryVault constructs an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{balances: make(map[string]*big.Int)}
}

func memoryKey(owner string, asset staking.Asset) string {
	return owner + "/" + asset.String()
}

func (v *MemoryVault) balance(key string) *big.Int {
	if b, ok := v.balances[key]; ok {
		return b
	}
	zero := big.NewInt(0)
	v.balances[key] = zero
	return zero
}

// Credit records an external deposit onto a ledger account.
func (v *MemoryVault) Credit(owner common.Address, asset staking.Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("vault: credit amount must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := memoryKey(owner.Hex(), asset)
	v.balances[key] = new(big.Int).Add(v.balance(key), amount)
	return nil
}

// AccountBalance reports a ledger account's holdings of one asset leg.
func (v *MemoryVault) AccountBalance(owner common.Address, asset staking.Asset) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(memoryKey(owner.Hex(), asset))), nil
}

func (v *MemoryVault) move(fromKey, toKey string, amount *big.Int) error {
	source := v.balance(fromKey)
	if source.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	v.balances[fromKey] = new(big.Int).Sub(source, amount)
	v.balances[toKey] = new(big.Int).Add(v.balance(toKey), amount)
	return nil
}

// TransferIn moves funds from the depositor's account into custody.
func (v *MemoryVault) TransferIn(asset staking.Asset, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.move(memoryKey(from.Hex(), asset), memoryKey(custodyKey, asset), amount)
}

// TransferOut moves funds from custody back to an account.
func (v *MemoryVault) TransferOut(asset staking.Asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.move(memoryKey(custodyKey, asset), memoryKey(to.Hex(), asset), amount)
}

// BalanceOf reports the pooled custody balance for the asset leg.
func (v *MemoryVault) BalanceOf(asset staking.Asset) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balance(memoryKey(custodyKey, asset))), nil
}
