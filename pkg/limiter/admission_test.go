package limiter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Javier1112/BookGame/pkg/limiter"
)

func TestGateRejectsExtraTurnFromSameIdentity(t *testing.T) {
	gate := limiter.NewGate(1)

	require.NoError(t, gate.Enter("10.0.0.1"))
	err := gate.Enter("10.0.0.1")
	require.ErrorIs(t, err, limiter.ErrTooBusy)

	// A different identity is unaffected.
	require.NoError(t, gate.Enter("10.0.0.2"))

	gate.Leave("10.0.0.1")
	require.NoError(t, gate.Enter("10.0.0.1"))
}

func TestGateAllowsUpToLimitPerIdentity(t *testing.T) {
	gate := limiter.NewGate(2)

	require.NoError(t, gate.Enter("client"))
	require.NoError(t, gate.Enter("client"))
	assert.ErrorIs(t, gate.Enter("client"), limiter.ErrTooBusy)

	gate.Leave("client")
	assert.NoError(t, gate.Enter("client"))
}

func TestGateCleansUpCounters(t *testing.T) {
	gate := limiter.NewGate(1)

	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Enter("client"))
		gate.Leave("client")
	}
	assert.Zero(t, gate.Active("client"))
}

func TestGateLeaveWithoutEnterIsHarmless(t *testing.T) {
	gate := limiter.NewGate(1)
	gate.Leave("nobody")
	assert.Zero(t, gate.Active("nobody"))
	assert.NoError(t, gate.Enter("nobody"))
}
