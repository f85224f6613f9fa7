package models

import (
	"encoding/json"
	"time"
)

// Статусы заказа в нормализованном виде. Внешняя платформа может прислать и другие,
// они сохраняются как есть (upper-case).
const (
	OrderStatusUnassigned = "UNASSIGNED"
	OrderStatusCreated    = "CREATED"
	OrderStatusScheduled  = "SCHEDULED"
	OrderStatusAssigned   = "ASSIGNED"
	OrderStatusWaiting    = "WAITING"
	OrderStatusStarted    = "STARTED"
	OrderStatusOngoing    = "ONGOING"
	OrderStatusArrived    = "ARRIVED"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusFailed     = "FAILED"
	OrderStatusCancelled  = "CANCELLED"
)

type LineItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// StatusUpdate is one observed status transition of an order.
type StatusUpdate struct {
	Status string     `json:"status"`
	At     *time.Time `json:"at,omitempty"`
	Source string     `json:"source"`
}

type Order struct {
	OrderID string  `json:"order_id"`
	TourID  *string `json:"tour_id,omitempty"`

	Status             string         `json:"status"`
	EffectiveStatus    string         `json:"effective_status"`
	CancellationReason *string        `json:"cancellation_reason,omitempty"`
	StatusUpdates      []StatusUpdate `json:"status_updates,omitempty"`

	RiderID             *string `json:"rider_id,omitempty"`
	RiderName           *string `json:"rider_name,omitempty"`
	RiderPhone          *string `json:"rider_phone,omitempty"`
	VehicleID           *string `json:"vehicle_id,omitempty"`
	VehicleRegistration *string `json:"vehicle_registration,omitempty"`
	VehicleModel        *string `json:"vehicle_model,omitempty"`
	TransporterName     *string `json:"transporter_name,omitempty"`
	TaskSource          *string `json:"task_source,omitempty"`
	PlanID              *string `json:"plan_id,omitempty"`

	LocationName      *string  `json:"location_name,omitempty"`
	LocationAddress   *string  `json:"location_address,omitempty"`
	LocationCity      *string  `json:"location_city,omitempty"`
	LocationLatitude  *float64 `json:"location_latitude,omitempty"`
	LocationLongitude *float64 `json:"location_longitude,omitempty"`

	LineItems []LineItem `json:"line_items,omitempty"`

	Tardiness *float64 `json:"tardiness,omitempty"`
	SLAStatus *string  `json:"sla_status,omitempty"`

	TaskCreatedAt *time.Time `json:"task_created_at,omitempty"`
	TaskUpdatedAt *time.Time `json:"task_updated_at,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Audit

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy, so merges and edits never alias the persisted value.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.StatusUpdates != nil {
		c.StatusUpdates = append([]StatusUpdate(nil), o.StatusUpdates...)
	}
	if o.LineItems != nil {
		c.LineItems = append([]LineItem(nil), o.LineItems...)
	}
	c.Audit = o.Audit.Clone()
	return &c
}

type OrderFilter struct {
	TourID          string
	EffectiveStatus string
	Limit           int
	Offset          int
}

// MarshalJSON добавляет modified_fields; при чтении поле игнорируется.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	raw, err := json.Marshal(plain(o))
	if err != nil {
		return nil, err
	}
	return withModifiedFields(raw, &o.Audit)
}
