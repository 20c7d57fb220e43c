package storage

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"duostake/native/staking"
)

// PositionRecord is the persisted form of a staking position. Amounts are
// stored as decimal strings so arbitrary-precision values survive the round
// trip untouched.
type PositionRecord struct {
	Owner         string `gorm:"primaryKey;size:42"`
	ID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	StartTime     int64
	LockEndTime   int64
	LastClaimTime int64
	PrincipalA    string `gorm:"size:96"`
	PrincipalB    string `gorm:"size:96"`
	ObligationA   string `gorm:"size:96"`
	ObligationB   string `gorm:"size:96"`
	ClaimedA      string `gorm:"size:96"`
	ClaimedB      string `gorm:"size:96"`
	ApyBps        uint64
	RewardInt     int64
	LockPeriod    int64
	Active        bool `gorm:"index"`
}

// OwnerRecord tracks per-owner position counts and roster enrollment order.
type OwnerRecord struct {
	Seq      int64  `gorm:"primaryKey;autoIncrement"`
	Owner    string `gorm:"uniqueIndex;size:42"`
	Count    uint64
	Enrolled bool
}

// PoolRecord is the singleton row holding the aggregate pool scalars.
type PoolRecord struct {
	ID         uint   `gorm:"primaryKey"`
	ReservedA  string `gorm:"size:96"`
	ReservedB  string `gorm:"size:96"`
	PrincipalA string `gorm:"size:96"`
	PrincipalB string `gorm:"size:96"`
}

// AutoMigrate creates or updates the staking tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PositionRecord{}, &OwnerRecord{}, &PoolRecord{})
}

// SQLiteState persists staking state through gorm. Open it with OpenSQLite
// for the embedded driver or wrap an existing *gorm.DB with NewGormState.
type SQLiteState struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates the
// staking tables.
func OpenSQLite(path string) (*SQLiteState, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	return NewGormState(db)
}

// NewGormState wraps an already-open gorm handle and migrates the staking
// tables.
func NewGormState(db *gorm.DB) (*SQLiteState, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: nil db handle")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &SQLiteState{db: db}, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("storage: corrupt %s amount: %q", field, value)
	}
	return amount, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func toPositionRecord(pos *staking.Position) *PositionRecord {
	return &PositionRecord{
		Owner:         pos.Owner.Hex(),
		ID:            pos.ID,
		StartTime:     pos.StartTime,
		LockEndTime:   pos.LockEndTime,
		LastClaimTime: pos.LastClaimTime,
		PrincipalA:    formatAmount(pos.PrincipalA),
		PrincipalB:    formatAmount(pos.PrincipalB),
		ObligationA:   formatAmount(pos.RewardObligationA),
		ObligationB:   formatAmount(pos.RewardObligationB),
		ClaimedA:      formatAmount(pos.RewardClaimedA),
		ClaimedB:      formatAmount(pos.RewardClaimedB),
		ApyBps:        pos.ApyBps,
		RewardInt:     pos.RewardInterval,
		LockPeriod:    pos.LockPeriod,
		Active:        pos.Active,
	}
}

func fromPositionRecord(rec *PositionRecord) (*staking.Position, error) {
	principalA, err := parseAmount("principal a", rec.PrincipalA)
	if err != nil {
		return nil, err
	}
	principalB, err := parseAmount("principal b", rec.PrincipalB)
	if err != nil {
		return nil, err
	}
	obligationA, err := parseAmount("obligation a", rec.ObligationA)
	if err != nil {
		return nil, err
	}
	obligationB, err := parseAmount("obligation b", rec.ObligationB)
	if err != nil {
		return nil, err
	}
	claimedA, err := parseAmount("claimed a", rec.ClaimedA)
	if err != nil {
		return nil, err
	}
	claimedB, err := parseAmount("claimed b", rec.ClaimedB)
	if err != nil {
		return nil, err
	}
	return &staking.Position{
		Owner:             common.HexToAddress(rec.Owner),
		ID:                rec.ID,
		StartTime:         rec.StartTime,
		LockEndTime:       rec.LockEndTime,
		LastClaimTime:     rec.LastClaimTime,
		PrincipalA:        principalA,
		PrincipalB:        principalB,
		RewardObligationA: obligationA,
		RewardObligationB: obligationB,
		RewardClaimedA:    claimedA,
		RewardClaimedB:    claimedB,
		ApyBps:            rec.ApyBps,
		RewardInterval:    rec.RewardInt,
		LockPeriod:        rec.LockPeriod,
		Active:            rec.Active,
	}, nil
}

// StakingPosition returns the stored position, if any.
func (s *SQLiteState) StakingPosition(owner common.Address, id uint64) (*staking.Position, bool, error) {
	var rec PositionRecord
	err := s.db.Where("owner = ? AND id = ?", owner.Hex(), id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	pos, err := fromPositionRecord(&rec)
	if err != nil {
		return nil, false, err
	}
	return pos, true, nil
}

// PutStakingPosition upserts the position row.
func (s *SQLiteState) PutStakingPosition(pos *staking.Position) error {
	if pos == nil {
		return nil
	}
	return s.db.Save(toPositionRecord(pos)).Error
}

// StakingPositionCount returns the number of positions the owner has opened.
func (s *SQLiteState) StakingPositionCount(owner common.Address) (uint64, error) {
	var rec OwnerRecord
	err := s.db.Where("owner = ?", owner.Hex()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// SetStakingPositionCount upserts the owner's position count.
func (s *SQLiteState) SetStakingPositionCount(owner common.Address, count uint64) error {
	var rec OwnerRecord
	err := s.db.Where("owner = ?", owner.Hex()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&OwnerRecord{Owner: owner.Hex(), Count: count}).Error
	}
	if err != nil {
		return err
	}
	rec.Count = count
	return s.db.Save(&rec).Error
}

// AppendStakingOwner enrolls the owner in the append-only roster.
func (s *SQLiteState) AppendStakingOwner(owner common.Address) error {
	var rec OwnerRecord
	err := s.db.Where("owner = ?", owner.Hex()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&OwnerRecord{Owner: owner.Hex(), Enrolled: true}).Error
	}
	if err != nil {
		return err
	}
	if rec.Enrolled {
		return nil
	}
	rec.Enrolled = true
	return s.db.Save(&rec).Error
}

// StakingOwners returns enrolled owners in enrollment order.
func (s *SQLiteState) StakingOwners() ([]common.Address, error) {
	var recs []OwnerRecord
	if err := s.db.Where("enrolled = ?", true).Order("seq asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	owners := make([]common.Address, 0, len(recs))
	for _, rec := range recs {
		owners = append(owners, common.HexToAddress(rec.Owner))
	}
	return owners, nil
}

// StakingPool returns the aggregate pool scalars, or nil before first use.
func (s *SQLiteState) StakingPool() (*staking.PoolState, error) {
	var rec PoolRecord
	err := s.db.First(&rec, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	reservedA, err := parseAmount("reserved a", rec.ReservedA)
	if err != nil {
		return nil, err
	}
	reservedB, err := parseAmount("reserved b", rec.ReservedB)
	if err != nil {
		return nil, err
	}
	principalA, err := parseAmount("pool principal a", rec.PrincipalA)
	if err != nil {
		return nil, err
	}
	principalB, err := parseAmount("pool principal b", rec.PrincipalB)
	if err != nil {
		return nil, err
	}
	return &staking.PoolState{
		ReservedA:       reservedA,
		ReservedB:       reservedB,
		TotalPrincipalA: principalA,
		TotalPrincipalB: principalB,
	}, nil
}

// PutStakingPool upserts the singleton pool row.
func (s *SQLiteState) PutStakingPool(pool *staking.PoolState) error {
	if pool == nil {
		return nil
	}
	pool = pool.Clone().Normalize()
	return s.db.Save(&PoolRecord{
		ID:         1,
		ReservedA:  formatAmount(pool.ReservedA),
		ReservedB:  formatAmount(pool.ReservedB),
		PrincipalA: formatAmount(pool.TotalPrincipalA),
		PrincipalB: formatAmount(pool.TotalPrincipalB),
	}).Error
}
