package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/TourSync/internal/broker/messages"
	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/tracker"
	"github.com/BearBump/TourSync/internal/storage/memorders"
	"github.com/stretchr/testify/require"
)

func task(id, tour, status, city string) map[string]any {
	return map[string]any{
		"taskId":     id,
		"status":     status,
		"tourDetail": map[string]any{"tourId": tour},
		"fleetInfo": map[string]any{
			"rider": map[string]any{"id": "R-1", "name": "Rider One"},
		},
		"customerVisit": map[string]any{
			"location": map[string]any{"address": map[string]any{"city": city}},
		},
	}
}

func cancelledTask(id, tour, reason string) map[string]any {
	t := task(id, tour, "SCHEDULED", "Springfield")
	t["customerVisit"].(map[string]any)["checklists"] = map[string]any{
		"cancelled": map[string]any{
			"status":    "CANCELLED",
			"updatedOn": "2026-10-17T10:00:00Z",
			"items": []any{
				map[string]any{"id": "Cancellation-reason", "selectedValue": reason},
			},
		},
	}
	return t
}

func newFlowService(t *testing.T) (*Service, *memorders.Storage) {
	t.Helper()
	st := memorders.New()
	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	svc := New(st, nil, 0).WithTracker(tracker.New().WithClock(func() time.Time { return clock }))
	return svc, st
}

func TestReconcileSnapshot_Flow(t *testing.T) {
	svc, st := newFlowService(t)
	ctx := context.Background()

	res, err := svc.ReconcileSnapshot(ctx, []map[string]any{
		task("O1", "T1", "COMPLETED", "OldCity"),
		cancelledTask("O2", "T1", "Customer unavailable"),
		{"status": "COMPLETED"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, 3, res.Received)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, 2, res.OrdersCreated)
	require.Equal(t, 1, res.ToursReconciled)
	require.Empty(t, res.Failed)

	o2, err := svc.GetOrder(ctx, "O2")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusScheduled, o2.Status)
	require.Equal(t, models.OrderStatusCancelled, o2.EffectiveStatus)
	require.Equal(t, "Customer unavailable", *o2.CancellationReason)

	tour, err := svc.GetTour(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, models.TourCounters{TotalOrders: 2, CompletedOrders: 1, CancelledOrders: 1}, tour.TourCounters)
	require.Equal(t, models.TourStatusCompleted, tour.TourStatus)

	// правка оператора защищает поле от следующего снимка
	sum, err := svc.EditOrder(ctx, "O1", EditRequest{Actor: "alice", FieldChanges: map[string]any{"location_city": "Edited", "bogus": 1}})
	require.NoError(t, err)
	require.Equal(t, []string{"location_city"}, sum.UpdatedFields)
	require.Len(t, sum.Rejected, 1)
	require.Equal(t, "bogus", sum.Rejected[0].Field)

	res, err = svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "COMPLETED", "NewCity")})
	require.NoError(t, err)
	require.Equal(t, 1, res.OrdersUpdated)

	orders, err := st.GetOrdersByIDs(ctx, []string{"O1"})
	require.NoError(t, err)
	require.Equal(t, "Edited", *orders[0].LocationCity)
	require.Equal(t, []string{"location_city"}, orders[0].ModifiedFields())
}

func TestReconcileSnapshot_Idempotent(t *testing.T) {
	svc, st := newFlowService(t)
	ctx := context.Background()
	batch := []map[string]any{task("O1", "T1", "ONGOING", "C"), task("O2", "T1", "SCHEDULED", "C")}

	_, err := svc.ReconcileSnapshot(ctx, batch)
	require.NoError(t, err)
	first, _ := st.ListOrders(ctx, models.OrderFilter{})
	firstTour, _ := st.GetTour(ctx, "T1")

	_, err = svc.ReconcileSnapshot(ctx, batch)
	require.NoError(t, err)
	second, _ := st.ListOrders(ctx, models.OrderFilter{})
	secondTour, _ := st.GetTour(ctx, "T1")

	for i := range first {
		first[i].UpdatedAt, second[i].UpdatedAt = time.Time{}, time.Time{}
	}
	firstTour.UpdatedAt, secondTour.UpdatedAt = time.Time{}, time.Time{}
	require.Equal(t, first, second)
	require.Equal(t, firstTour, secondTour)
	require.Equal(t, models.TourStatusOngoing, secondTour.TourStatus)
}

func TestReconcileSnapshot_OrderFailureDoesNotAbort(t *testing.T) {
	svc, st := newFlowService(t)
	st.FailNextOrderUpdate("O1", models.ErrNotFound)

	res, err := svc.ReconcileSnapshot(context.Background(), []map[string]any{
		task("O1", "T1", "ONGOING", "C"),
		task("O2", "T1", "ONGOING", "C"),
	})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	require.Equal(t, EntityOrder, res.Failed[0].Entity)
	require.Equal(t, "O1", res.Failed[0].ID)
	require.Equal(t, 1, res.OrdersCreated)
	require.Equal(t, 1, res.ToursReconciled)
}

func TestReconcileSnapshot_ConflictRetried(t *testing.T) {
	svc, st := newFlowService(t)
	st.FailNextOrderUpdate("O1", models.ErrPersistenceConflict)

	res, err := svc.ReconcileSnapshot(context.Background(), []map[string]any{task("O1", "T1", "ONGOING", "C")})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	require.Equal(t, 1, res.OrdersCreated)
}

func TestReconcileSnapshot_ContextCancelled(t *testing.T) {
	svc, _ := newFlowService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "ONGOING", "C")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEditOrder_StatusChangeRecountsTour(t *testing.T) {
	svc, _ := newFlowService(t)
	ctx := context.Background()
	_, err := svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "ONGOING", "C")})
	require.NoError(t, err)

	_, err = svc.EditOrder(ctx, "O1", EditRequest{Actor: "alice", FieldChanges: map[string]any{"effective_status": "completed"}})
	require.NoError(t, err)

	tour, err := svc.GetTour(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, 1, tour.CompletedOrders)
	require.Equal(t, models.TourStatusCompleted, tour.TourStatus)

	// защищённый effective_status не перетирается следующим снимком
	_, err = svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "ONGOING", "C")})
	require.NoError(t, err)
	tour, _ = svc.GetTour(ctx, "T1")
	require.Equal(t, models.TourStatusCompleted, tour.TourStatus)
}

func TestEditOrder_NothingApplied(t *testing.T) {
	svc, _ := newFlowService(t)
	ctx := context.Background()
	_, err := svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "ONGOING", "C")})
	require.NoError(t, err)

	sum, err := svc.EditOrder(ctx, "O1", EditRequest{Actor: "alice", FieldChanges: map[string]any{"order_id": "X"}})
	require.NoError(t, err)
	require.Empty(t, sum.UpdatedFields)
	require.False(t, sum.IsModified)
	require.Len(t, sum.Rejected, 1)

	_, err = svc.EditOrder(ctx, "MISSING", EditRequest{Actor: "alice", FieldChanges: map[string]any{"rider_name": "X"}})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestEditTour_SingleAndPropagate(t *testing.T) {
	svc, st := newFlowService(t)
	ctx := context.Background()
	_, err := svc.ReconcileSnapshot(ctx, []map[string]any{
		task("O1", "T1", "ONGOING", "C"),
		task("O2", "T1", "ONGOING", "C"),
	})
	require.NoError(t, err)
	_, err = svc.EditOrder(ctx, "O1", EditRequest{Actor: "bob", FieldChanges: map[string]any{"rider_name": "Own"}})
	require.NoError(t, err)

	single, err := svc.EditTour(ctx, "T1", EditRequest{Actor: "alice", FieldChanges: map[string]any{"vehicle_model": "Truck"}})
	require.NoError(t, err)
	require.False(t, single.Propagated)
	require.Equal(t, "Truck", *single.Tour.VehicleModel)
	o2, _ := st.GetOrdersByIDs(ctx, []string{"O2"})
	require.Nil(t, o2[0].VehicleModel)

	prop, err := svc.EditTour(ctx, "T1", EditRequest{Actor: "alice", FieldChanges: map[string]any{"rider_name": "R2"}, Propagate: true})
	require.NoError(t, err)
	require.True(t, prop.Propagated)
	require.Equal(t, 1, prop.PropagatedOrders)
	require.Equal(t, []string{"rider_name"}, prop.UpdatedFields)

	got, _ := st.GetOrdersByIDs(ctx, []string{"O1", "O2"})
	require.Equal(t, "Own", *got[0].RiderName)
	require.Equal(t, "R2", *got[1].RiderName)

	_, err = svc.EditTour(ctx, "NOPE", EditRequest{Actor: "alice", FieldChanges: map[string]any{"rider_name": "R2"}})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestListTourOrders(t *testing.T) {
	svc, _ := newFlowService(t)
	ctx := context.Background()
	_, err := svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "ONGOING", "C"), task("O2", "T2", "ONGOING", "C")})
	require.NoError(t, err)

	out, err := svc.ListTourOrders(ctx, "T1", 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "O1", out[0].OrderID)

	_, err = svc.ListTourOrders(ctx, "T9", 0, 0)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplySnapshotPage_SkipsMalformed(t *testing.T) {
	svc, _ := newFlowService(t)
	raw, _ := json.Marshal(task("O1", "T1", "ONGOING", "C"))

	res, err := svc.ApplySnapshotPage(context.Background(), messages.SnapshotPage{
		RunID: "w-1",
		Page:  1,
		Tasks: []json.RawMessage{raw, json.RawMessage(`[1,2]`), json.RawMessage(`null`)},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Received)
	require.Equal(t, 2, res.Skipped)
	require.Equal(t, 1, res.OrdersCreated)
}

func TestReconcileSnapshot_StatusChangeRecountsLinkedTour(t *testing.T) {
	svc, _ := newFlowService(t)
	ctx := context.Background()

	_, err := svc.ReconcileSnapshot(ctx, []map[string]any{task("O1", "T1", "SCHEDULED", "C")})
	require.NoError(t, err)
	tour, err := svc.GetTour(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, models.TourStatusWaiting, tour.TourStatus)

	// второй снимок без tourDetail: тур берётся из сохранённого заказа
	res, err := svc.ReconcileSnapshot(ctx, []map[string]any{{"taskId": "O1", "status": "COMPLETED"}})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	require.Equal(t, 1, res.OrdersUpdated)
	require.Equal(t, 1, res.ToursReconciled)

	o1, err := svc.GetOrder(ctx, "O1")
	require.NoError(t, err)
	require.Equal(t, "T1", *o1.TourID)
	require.Equal(t, models.OrderStatusCompleted, o1.EffectiveStatus)

	tour, err = svc.GetTour(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, models.TourCounters{TotalOrders: 1, CompletedOrders: 1}, tour.TourCounters)
	require.Equal(t, models.TourStatusCompleted, tour.TourStatus)
}

func TestReconcileSnapshot_RecountOfMissingTourIsNotAFailure(t *testing.T) {
	svc, st := newFlowService(t)
	ctx := context.Background()
	tourID := "T9"
	st.PutOrder(&models.Order{OrderID: "O1", TourID: &tourID, Status: models.OrderStatusScheduled, EffectiveStatus: models.OrderStatusScheduled})

	res, err := svc.ReconcileSnapshot(ctx, []map[string]any{{"taskId": "O1", "status": "COMPLETED"}})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	require.Equal(t, 0, res.ToursReconciled)

	_, err = svc.GetTour(ctx, "T9")
	require.ErrorIs(t, err, models.ErrNotFound)
}
