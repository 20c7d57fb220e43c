package storage

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"duostake/native/staking"
)

// MemoryState is an in-memory staking state used by tests and single-process
// deployments without durability requirements. All accessors copy on the way
// in and out so callers never alias stored values.
type MemoryState struct {
	mu        sync.RWMutex
	positions map[common.Address]map[uint64]*staking.Position
	counts    map[common.Address]uint64
	owners    []common.Address
	enrolled  map[common.Address]struct{}
	pool      *staking.PoolState
}

// NewMemoryState constructs an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{
		positions: make(map[common.Address]map[uint64]*staking.Position),
		counts:    make(map[common.Address]uint64),
		enrolled:  make(map[common.Address]struct{}),
	}
}

// StakingPosition returns the stored position, if any.
func (m *MemoryState) StakingPosition(owner common.Address, id uint64) (*staking.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[owner][id]
	if !ok {
		return nil, false, nil
	}
	return pos.Clone(), true, nil
}

// PutStakingPosition stores a copy of the position.
func (m *MemoryState) PutStakingPosition(pos *staking.Position) error {
	if pos == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.positions[pos.Owner]
	if !ok {
		byID = make(map[uint64]*staking.Position)
		m.positions[pos.Owner] = byID
	}
	byID[pos.ID] = pos.Clone()
	return nil
}

// StakingPositionCount returns the number of positions the owner has opened.
func (m *MemoryState) StakingPositionCount(owner common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[owner], nil
}

// SetStakingPositionCount records the owner's position count.
func (m *MemoryState) SetStakingPositionCount(owner common.Address, count uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[owner] = count
	return nil
}

// AppendStakingOwner enrolls the owner in the append-only roster.
func (m *MemoryState) AppendStakingOwner(owner common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrolled[owner]; ok {
		return nil
	}
	m.enrolled[owner] = struct{}{}
	m.owners = append(m.owners, owner)
	return nil
}

// StakingOwners returns the roster in enrollment order.
func (m *MemoryState) StakingOwners() ([]common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]common.Address(nil), m.owners...), nil
}

// StakingPool returns a copy of the aggregate pool scalars.
func (m *MemoryState) StakingPool() (*staking.PoolState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pool == nil {
		return nil, nil
	}
	return m.pool.Clone(), nil
}

// PutStakingPool stores a copy of the aggregate pool scalars.
func (m *MemoryState) PutStakingPool(pool *staking.PoolState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool = pool.Clone()
	return nil
}
