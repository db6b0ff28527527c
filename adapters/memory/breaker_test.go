package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/adapters/memory"
	"github.com/resilientcore/resilientcore/breaker"
	"github.com/resilientcore/resilientcore/breakertest"
)

func TestBreakerAdapterConformance(t *testing.T) {
	breakertest.RunAdapterConformance(t, func(t *testing.T) breaker.Adapter {
		a, err := memory.NewBreakerAdapter(0)
		require.NoError(t, err)
		return a
	})
}
