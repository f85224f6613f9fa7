package propagate

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/tracker"
	"github.com/BearBump/TourSync/internal/storage/memorders"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func fixture(t *testing.T) *memorders.Storage {
	t.Helper()
	st := memorders.New()
	st.PutTour(&models.Tour{TourID: "T1", RiderName: str("R1")})

	protected := &models.Order{OrderID: "O1", TourID: str("T1"), RiderName: str("Own rider")}
	protected.Touch("rider_name", "bob", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	st.PutOrder(protected)
	st.PutOrder(&models.Order{OrderID: "O2", TourID: str("T1"), RiderName: str("R1")})
	st.PutOrder(&models.Order{OrderID: "O3", TourID: str("OTHER"), RiderName: str("R1")})
	return st
}

func TestPropagate_RespectsOrderProtection(t *testing.T) {
	st := fixture(t)
	p := New(st, tracker.New())

	res, err := p.Propagate(context.Background(), "T1", map[string]any{"rider_name": "R2"}, "alice")
	require.NoError(t, err)
	require.Equal(t, "R2", *res.Tour.RiderName)
	require.True(t, res.Tour.IsProtected("rider_name"))
	require.Equal(t, 1, res.PropagatedOrders)
	require.Empty(t, res.Failed)

	orders, err := st.GetOrdersByIDs(context.Background(), []string{"O1", "O2", "O3"})
	require.NoError(t, err)
	require.Equal(t, "Own rider", *orders[0].RiderName)
	require.Equal(t, "bob", *orders[0].LastModifiedBy)
	require.Equal(t, "R2", *orders[1].RiderName)
	require.True(t, orders[1].IsProtected("rider_name"))
	require.Equal(t, "alice", *orders[1].LastModifiedBy)
	require.Equal(t, "R1", *orders[2].RiderName)
}

func TestPropagate_PartialProtectionStillPropagatesOtherFields(t *testing.T) {
	st := fixture(t)
	p := New(st, tracker.New())

	res, err := p.Propagate(context.Background(), "T1", map[string]any{"rider_name": "R2", "vehicle_model": "Truck"}, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, res.PropagatedOrders)

	orders, _ := st.GetOrdersByIDs(context.Background(), []string{"O1"})
	require.Equal(t, "Own rider", *orders[0].RiderName)
	require.Equal(t, "Truck", *orders[0].VehicleModel)
	require.ElementsMatch(t, []string{"rider_name", "vehicle_model"}, orders[0].ModifiedFields())
}

func TestPropagate_NothingApplied_NoWrites(t *testing.T) {
	st := fixture(t)
	p := New(st, tracker.New())

	_, err := p.Propagate(context.Background(), "T1", map[string]any{"total_orders": 3}, "alice")
	require.ErrorIs(t, err, ErrNothingApplied)

	tour, _ := st.GetTour(context.Background(), "T1")
	require.False(t, tour.IsModified)
	orders, _ := st.GetOrdersByIDs(context.Background(), []string{"O2"})
	require.False(t, orders[0].IsModified)
}

func TestPropagate_UnknownTour(t *testing.T) {
	p := New(memorders.New(), tracker.New())
	_, err := p.Propagate(context.Background(), "NOPE", map[string]any{"rider_name": "R2"}, "alice")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestPropagate_ConflictRetriedOnce(t *testing.T) {
	st := fixture(t)
	st.FailNextOrderUpdate("O2", errors.WithStack(models.ErrPersistenceConflict))
	p := New(st, tracker.New())

	res, err := p.Propagate(context.Background(), "T1", map[string]any{"rider_name": "R2"}, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, res.PropagatedOrders)
	require.Empty(t, res.Failed)
}

func TestPropagate_OrderFailureDoesNotAbort(t *testing.T) {
	st := fixture(t)
	boom := errors.New("disk full")
	st.FailNextOrderUpdate("O1", boom)
	p := New(st, tracker.New())

	res, err := p.Propagate(context.Background(), "T1", map[string]any{"vehicle_model": "Truck"}, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, res.PropagatedOrders)
	require.ErrorIs(t, res.Failed["O1"], boom)
}
