package orders_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BearBump/TourSync/internal/auth"
	"github.com/BearBump/TourSync/internal/models"
	"github.com/BearBump/TourSync/internal/services/orders"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const maxBodyBytes = 32 << 20

type OrdersAPI struct {
	svc *orders.Service
}

func New(svc *orders.Service) *OrdersAPI {
	return &OrdersAPI{svc: svc}
}

// Routes монтирует операторский API под /v1.
func (a *OrdersAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/snapshots", a.IngestSnapshot)

	r.Get("/orders", a.ListOrders)
	r.Get("/orders/{orderID}", a.GetOrder)
	r.Patch("/orders/{orderID}", a.EditOrder)

	r.Get("/tours/{tourID}", a.GetTour)
	r.Get("/tours/{tourID}/orders", a.ListTourOrders)
	r.Patch("/tours/{tourID}", a.EditTour)
	return r
}

type snapshotRequest struct {
	Tasks []map[string]any `json:"tasks"`
}

type editRequest struct {
	Actor        string         `json:"actor"`
	FieldChanges map[string]any `json:"field_changes"`
	Propagate    bool           `json:"propagate"`
}

type tourEditResponse struct {
	orders.EditSummary
	Tour             *models.Tour      `json:"updated_tour,omitempty"`
	PropagatedOrders *int              `json:"propagated_orders,omitempty"`
	Failed           map[string]string `json:"failed,omitempty"`
}

func (a *OrdersAPI) IngestSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.svc.ReconcileSnapshot(r.Context(), req.Tasks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *OrdersAPI) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.svc.ListOrders(r.Context(), models.OrderFilter{
		TourID:          q.Get("tour_id"),
		EffectiveStatus: q.Get("status"),
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (a *OrdersAPI) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.svc.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *OrdersAPI) EditOrder(w http.ResponseWriter, r *http.Request) {
	req, err := readEdit(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	sum, err := a.svc.EditOrder(r.Context(), chi.URLParam(r, "orderID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *OrdersAPI) GetTour(w http.ResponseWriter, r *http.Request) {
	t, err := a.svc.GetTour(r.Context(), chi.URLParam(r, "tourID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *OrdersAPI) ListTourOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := a.svc.ListTourOrders(r.Context(), chi.URLParam(r, "tourID"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (a *OrdersAPI) EditTour(w http.ResponseWriter, r *http.Request) {
	req, err := readEdit(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.svc.EditTour(r.Context(), chi.URLParam(r, "tourID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	out := tourEditResponse{EditSummary: res.EditSummary, Tour: res.Tour}
	if res.Propagated {
		n := res.PropagatedOrders
		out.PropagatedOrders = &n
		out.Failed = res.Failed
	}
	writeJSON(w, http.StatusOK, out)
}

// readEdit декодирует тело правки; актор из токена важнее актора из тела.
func readEdit(w http.ResponseWriter, r *http.Request) (orders.EditRequest, error) {
	var body editRequest
	if err := decodeBody(w, r, &body); err != nil {
		return orders.EditRequest{}, err
	}
	actor := body.Actor
	if a, ok := auth.ActorFromContext(r.Context()); ok {
		actor = a
	}
	return orders.EditRequest{Actor: actor, FieldChanges: body.FieldChanges, Propagate: body.Propagate}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrapf(models.ErrInvalidValue, "decode body: %v", err)
	}
	return nil
}

func paging(limitRaw, offsetRaw string) (int, int, error) {
	var limit, offset int
	var err error
	if limitRaw != "" {
		if limit, err = strconv.Atoi(limitRaw); err != nil || limit < 0 {
			return 0, 0, errors.Wrap(models.ErrInvalidValue, "limit")
		}
	}
	if offsetRaw != "" {
		if offset, err = strconv.Atoi(offsetRaw); err != nil || offset < 0 {
			return 0, 0, errors.Wrap(models.ErrInvalidValue, "offset")
		}
	}
	return limit, offset, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPersistenceConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidValue), errors.Is(err, models.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", msg)
		msg = http.StatusText(code)
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
