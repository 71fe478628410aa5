package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:        {StatusConfirmed, StatusCancelled},
		StatusConfirmed:      {StatusReadyToShip, StatusCancelled},
		StatusReadyToShip:    {StatusShipping, StatusCancelled},
		StatusShipping:       {StatusPaymentPending, StatusCancelled},
		StatusPaymentPending: {StatusCompleted, StatusCancelled},
	}
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := false
			for _, target := range allowed[from] {
				if target == to {
					want = true
				}
			}
			require.Equalf(t, want, IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		require.True(t, terminal.IsTerminal())
		require.Empty(t, AllowedTransitions(terminal))
		for _, to := range AllStatuses() {
			require.False(t, IsValidTransition(terminal, to))
		}
	}
}

func TestSameStateIsRejected(t *testing.T) {
	for _, s := range AllStatuses() {
		require.False(t, IsValidTransition(s, s), s)
	}
}

func TestSkippingConfirmedIsRejected(t *testing.T) {
	require.False(t, IsValidTransition(StatusPending, StatusReadyToShip))
}

func TestUnknownStatus(t *testing.T) {
	require.False(t, Status("shipped").IsValid())
	require.False(t, IsValidTransition(Status("shipped"), StatusCompleted))
	require.False(t, IsValidTransition(StatusShipping, Status("shipped")))
}

func TestShipActionLeadsToPaymentPending(t *testing.T) {
	target, ok := TargetFor(ActionShip)
	require.True(t, ok)
	require.Equal(t, StatusPaymentPending, target)
	require.True(t, IsValidTransition(StatusShipping, target))

	_, ok = TargetFor(Action("teleport"))
	require.False(t, ok)
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	targets := AllowedTransitions(StatusPending)
	targets[0] = StatusCompleted
	require.Equal(t, []Status{StatusConfirmed, StatusCancelled}, AllowedTransitions(StatusPending))
}
