package extractor

import (
	"strings"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/pkg/errors"
)

// ErrExtractionSkipped означает, что у задачи нет идентификатора заказа.
// Это не ошибка пайплайна: вызывающий просто считает такие задачи пропущенными.
var ErrExtractionSkipped = errors.New("extraction skipped: no order id")

// StatusSource is the raw status sub-structure, passed through for the status resolver.
type StatusSource struct {
	BaseStatus    string
	Checklists    map[string]any
	StatusUpdates []any
}

type Result struct {
	Order  *models.Order
	Tour   *models.Tour // nil when the task isn't linked to a tour
	Status StatusSource
}

// Extract maps one raw task payload into an unpersisted Order and its Tour fragment.
// Missing nested paths yield empty values; only a missing order id is reported.
func Extract(task map[string]any) (Result, error) {
	orderID := firstString(task, "taskId", "id", "orderId")
	if orderID == nil || strings.TrimSpace(*orderID) == "" {
		return Result{}, ErrExtractionSkipped
	}

	baseStatus := ""
	if s := firstString(task, "status", "taskStatus"); s != nil {
		baseStatus = strings.ToUpper(strings.TrimSpace(*s))
	}

	o := &models.Order{
		OrderID:         strings.TrimSpace(*orderID),
		TourID:          nonEmpty(firstString(task, "tourDetail.tourId", "tourId", "tour.id")),
		Status:          baseStatus,
		EffectiveStatus: baseStatus,

		RiderID:             firstString(task, "fleetInfo.rider.id"),
		RiderName:           firstString(task, "fleetInfo.rider.name"),
		RiderPhone:          firstString(task, "fleetInfo.rider.phone", "fleetInfo.rider.contact.phone"),
		VehicleID:           firstString(task, "fleetInfo.vehicle.id"),
		VehicleRegistration: firstString(task, "fleetInfo.vehicle.registrationNumber"),
		VehicleModel:        firstString(task, "fleetInfo.vehicle.model"),
		TransporterName:     firstString(task, "fleetInfo.transporter.name", "fleetInfo.transporterName"),
		TaskSource:          firstString(task, "taskSource", "source"),
		PlanID:              firstString(task, "planId", "tourDetail.planId"),

		LocationName:      firstString(task, "customerVisit.location.name"),
		LocationAddress:   firstString(task, "customerVisit.location.address.formattedAddress", "customerVisit.location.address"),
		LocationCity:      firstString(task, "customerVisit.location.address.city", "customerVisit.location.city"),
		LocationLatitude:  firstFloat(task, "customerVisit.location.latLng.lat", "customerVisit.location.latitude"),
		LocationLongitude: firstFloat(task, "customerVisit.location.latLng.lng", "customerVisit.location.longitude"),

		LineItems: lineItems(lookup(task, "customerVisit.orderDetail.lineItems")),

		Tardiness: firstFloat(task, "customerVisit.tardiness", "tardiness"),
		SLAStatus: firstString(task, "customerVisit.slaStatus", "slaStatus"),

		TaskCreatedAt: firstTime(task, "createdOn"),
		TaskUpdatedAt: firstTime(task, "updatedOn"),
		ScheduledAt:   firstTime(task, "customerVisit.scheduledTime", "scheduledTime"),
		CompletedAt:   firstTime(task, "customerVisit.completedOn", "completedOn"),
	}

	res := Result{
		Order: o,
		Status: StatusSource{
			BaseStatus: baseStatus,
		},
	}
	if m, ok := lookup(task, "customerVisit.checklists").(map[string]any); ok {
		res.Status.Checklists = m
	}
	if l, ok := lookup(task, "statusUpdates").([]any); ok {
		res.Status.StatusUpdates = l
	}

	if o.TourID != nil {
		res.Tour = &models.Tour{
			TourID:              *o.TourID,
			RiderID:             o.RiderID,
			RiderName:           o.RiderName,
			RiderPhone:          o.RiderPhone,
			VehicleID:           o.VehicleID,
			VehicleRegistration: o.VehicleRegistration,
			VehicleModel:        o.VehicleModel,
			TransporterName:     o.TransporterName,
			PlanID:              o.PlanID,
			TourDate:            firstTime(task, "tourDetail.date", "tourDate"),
		}
	}
	return res, nil
}

func lineItems(v any) []models.LineItem {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]models.LineItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		it := models.LineItem{}
		if s := firstString(m, "id", "skuId", "sku"); s != nil {
			it.SKU = *s
		}
		if s := firstString(m, "name"); s != nil {
			it.Name = *s
		}
		if q := firstFloat(m, "quantity"); q != nil {
			it.Quantity = *q
		}
		if s := firstString(m, "quantityUnit", "unit"); s != nil {
			it.Unit = *s
		}
		out = append(out, it)
	}
	return out
}
