package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "staking"); err != nil {
		t.Fatalf("nil view should never block: %v", err)
	}
	if err := Guard(pauseMap{}, ""); err != nil {
		t.Fatalf("empty module should never block: %v", err)
	}
	if err := Guard(pauseMap{"staking": true}, "staking"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauseMap{"staking": true}, "other"); err != nil {
		t.Fatalf("pause must be scoped per module: %v", err)
	}
}
