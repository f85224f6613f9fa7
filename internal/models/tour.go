package models

import (
	"encoding/json"
	"time"
)

const (
	TourStatusWaiting   = "WAITING"
	TourStatusOngoing   = "ONGOING"
	TourStatusCompleted = "COMPLETED"
	TourStatusCancelled = "CANCELLED"
)

type Tour struct {
	TourID string `json:"tour_id"`

	RiderID             *string    `json:"rider_id,omitempty"`
	RiderName           *string    `json:"rider_name,omitempty"`
	RiderPhone          *string    `json:"rider_phone,omitempty"`
	VehicleID           *string    `json:"vehicle_id,omitempty"`
	VehicleRegistration *string    `json:"vehicle_registration,omitempty"`
	VehicleModel        *string    `json:"vehicle_model,omitempty"`
	TransporterName     *string    `json:"transporter_name,omitempty"`
	PlanID              *string    `json:"plan_id,omitempty"`
	TourDate            *time.Time `json:"tour_date,omitempty"`

	TourCounters
	TourStatus string `json:"tour_status"`

	Audit

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TourCounters are always recomputed from linked orders.
// Completed + Pending + Cancelled == Total; Waiting is the not-yet-started part of Pending.
type TourCounters struct {
	TotalOrders     int `json:"total_orders"`
	CompletedOrders int `json:"completed_orders"`
	PendingOrders   int `json:"pending_orders"`
	CancelledOrders int `json:"cancelled_orders"`
	WaitingOrders   int `json:"waiting_orders"`
}

func (t *Tour) Clone() *Tour {
	if t == nil {
		return nil
	}
	c := *t
	c.Audit = t.Audit.Clone()
	return &c
}

// MarshalJSON добавляет modified_fields; при чтении поле игнорируется.
func (t Tour) MarshalJSON() ([]byte, error) {
	type plain Tour
	raw, err := json.Marshal(plain(t))
	if err != nil {
		return nil, err
	}
	return withModifiedFields(raw, &t.Audit)
}
