package memory_test

import (
	"testing"

	"github.com/resilientcore/resilientcore/adapters/memory"
	"github.com/resilientcore/resilientcore/lock"
	"github.com/resilientcore/resilientcore/locktest"
)

func TestLockAdapterConformance(t *testing.T) {
	locktest.RunAdapterConformance(t, func(t *testing.T) lock.Adapter {
		return memory.NewLockAdapter()
	})
}
