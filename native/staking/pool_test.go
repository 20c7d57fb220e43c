package staking

import (
	"errors"
	"math/big"
	"testing"
)

func TestPoolCanReserveBoundary(t *testing.T) {
	pool := NewPoolState()
	pool.Reserve(AssetA, big.NewInt(90))

	if !pool.CanReserve(AssetA, big.NewInt(100), big.NewInt(10)) {
		t.Fatal("reservation exactly at custody should be allowed")
	}
	if pool.CanReserve(AssetA, big.NewInt(100), big.NewInt(11)) {
		t.Fatal("reservation one unit over custody should be rejected")
	}
	if pool.CanReserve(AssetA, nil, big.NewInt(1)) {
		t.Fatal("nil custody should reject all reservations")
	}
}

func TestPoolReleaseUnderflow(t *testing.T) {
	pool := NewPoolState()
	pool.Reserve(AssetB, big.NewInt(5))

	if err := pool.Release(AssetB, big.NewInt(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pool.Release(AssetB, big.NewInt(1)); !errors.Is(err, ErrReservationUnderflow) {
		t.Fatalf("expected ErrReservationUnderflow, got %v", err)
	}
	if pool.Reserved(AssetB).Sign() != 0 {
		t.Fatalf("reservation mutated on failed release: %s", pool.Reserved(AssetB))
	}
}

func TestPoolLegsAreIndependent(t *testing.T) {
	pool := NewPoolState()
	pool.Reserve(AssetA, big.NewInt(10))
	pool.Reserve(AssetB, big.NewInt(20))

	if pool.Reserved(AssetA).Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("asset a reservation: %s", pool.Reserved(AssetA))
	}
	if pool.Reserved(AssetB).Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("asset b reservation: %s", pool.Reserved(AssetB))
	}
	if err := pool.Release(AssetA, big.NewInt(10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Reserved(AssetB).Cmp(big.NewInt(20)) != 0 {
		t.Fatal("releasing asset a must not touch asset b")
	}
}

func TestPoolExcessFloorsAtZero(t *testing.T) {
	pool := NewPoolState()
	pool.Reserve(AssetA, big.NewInt(50))

	if got := pool.Excess(AssetA, big.NewInt(80)); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("unexpected excess: %s", got)
	}
	if got := pool.Excess(AssetA, big.NewInt(40)); got.Sign() != 0 {
		t.Fatalf("excess should floor at zero, got %s", got)
	}
}

func TestPoolPrincipalTracking(t *testing.T) {
	pool := NewPoolState()
	pool.AddPrincipal(AssetA, big.NewInt(1000))
	pool.AddPrincipal(AssetA, big.NewInt(500))
	pool.SubPrincipal(AssetA, big.NewInt(700))

	if got := pool.TotalPrincipal(AssetA); got.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("unexpected principal: %s", got)
	}
	pool.SubPrincipal(AssetA, big.NewInt(10_000))
	if got := pool.TotalPrincipal(AssetA); got.Sign() != 0 {
		t.Fatalf("principal should floor at zero, got %s", got)
	}
}

func TestPoolCloneIsDeep(t *testing.T) {
	pool := NewPoolState()
	pool.Reserve(AssetA, big.NewInt(7))
	clone := pool.Clone()
	clone.Reserve(AssetA, big.NewInt(100))

	if pool.Reserved(AssetA).Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("clone mutation leaked into source: %s", pool.Reserved(AssetA))
	}
}
