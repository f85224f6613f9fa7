package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Field describes one named, mergeable field of an entity.
type Field[E any] struct {
	Name string
	// Editable fields can be changed by operators (and become protected).
	Editable bool

	copyFn func(dst, src *E)
	setFn  func(e *E, v any) error
}

// Copy overwrites dst's value of the field with src's.
func (f Field[E]) Copy(dst, src *E) { f.copyFn(dst, src) }

// Set assigns an operator-supplied value, coercing JSON-decoded shapes.
func (f Field[E]) Set(e *E, v any) error {
	if f.setFn == nil {
		return errors.Wrap(ErrUnknownField, f.Name)
	}
	if err := f.setFn(e, v); err != nil {
		return errors.Wrapf(ErrInvalidValue, "%s: %v", f.Name, err)
	}
	return nil
}

type Schema[E any] struct {
	fields []Field[E]
	byName map[string]int
}

func NewSchema[E any](fields ...Field[E]) Schema[E] {
	s := Schema[E]{fields: fields, byName: make(map[string]int, len(fields))}
	for i, f := range fields {
		s.byName[f.Name] = i
	}
	return s
}

func (s Schema[E]) Fields() []Field[E] { return s.fields }

func (s Schema[E]) Lookup(name string) (Field[E], bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field[E]{}, false
	}
	return s.fields[i], true
}

// Editable reports whether name is a field operators may edit.
func (s Schema[E]) Editable(name string) bool {
	f, ok := s.Lookup(name)
	return ok && f.Editable
}

// statusField holds a mandatory, upper-cased status value.
func statusField[E any](name string, p func(*E) *string) Field[E] {
	return Field[E]{
		Name:     name,
		Editable: true,
		copyFn:   func(dst, src *E) { *p(dst) = *p(src) },
		setFn: func(e *E, v any) error {
			s, err := asString(v)
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("value is required")
			}
			*p(e) = strings.ToUpper(*s)
			return nil
		},
	}
}

func optStringField[E any](name string, p func(*E) **string) Field[E] {
	return Field[E]{
		Name:     name,
		Editable: true,
		copyFn:   func(dst, src *E) { *p(dst) = cloneString(*p(src)) },
		setFn: func(e *E, v any) error {
			s, err := asString(v)
			if err != nil {
				return err
			}
			*p(e) = s
			return nil
		},
	}
}

func optFloatField[E any](name string, p func(*E) **float64) Field[E] {
	return Field[E]{
		Name:     name,
		Editable: true,
		copyFn: func(dst, src *E) {
			if v := *p(src); v != nil {
				c := *v
				*p(dst) = &c
				return
			}
			*p(dst) = nil
		},
		setFn: func(e *E, v any) error {
			f, err := AsFloat(v)
			if err != nil {
				return err
			}
			*p(e) = f
			return nil
		},
	}
}

func optTimeField[E any](name string, p func(*E) **time.Time) Field[E] {
	return Field[E]{
		Name:     name,
		Editable: true,
		copyFn: func(dst, src *E) {
			if v := *p(src); v != nil {
				c := *v
				*p(dst) = &c
				return
			}
			*p(dst) = nil
		},
		setFn: func(e *E, v any) error {
			t, err := AsTime(v)
			if err != nil {
				return err
			}
			*p(e) = t
			return nil
		},
	}
}

// readOnly fields are merged from snapshots but can't be edited by operators.
func readOnly[E any](f Field[E]) Field[E] {
	f.Editable = false
	f.setFn = nil
	return f
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func asString(v any) (*string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &x, nil
	case *string:
		return cloneString(x), nil
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		return &s, nil
	case json.Number:
		s := x.String()
		return &s, nil
	default:
		return nil, errors.Errorf("expected string, got %T", v)
	}
}

// AsFloat accepts numbers and numeric strings; nil and "" map to nil.
func AsFloat(v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case *float64:
		if x == nil {
			return nil, nil
		}
		f = *x
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return nil, err
		}
		f = p
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, err
		}
		f = p
	default:
		return nil, errors.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.New("not a finite number")
	}
	return &f, nil
}

// AsTime accepts RFC3339 strings and epoch milliseconds; nil and "" map to nil.
func AsTime(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := x.UTC()
		return &t, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		t := x.UTC()
		return &t, nil
	case string:
		if x == "" {
			return nil, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				t = t.UTC()
				return &t, nil
			}
		}
		return nil, errors.Errorf("unparsable time %q", x)
	default:
		ms, err := AsFloat(v)
		if err != nil {
			return nil, errors.Errorf("expected time, got %T", v)
		}
		t := time.UnixMilli(int64(*ms)).UTC()
		return &t, nil
	}
}

func asLineItems(v any) ([]LineItem, error) {
	if v == nil {
		return nil, nil
	}
	if items, ok := v.([]LineItem); ok {
		return append([]LineItem(nil), items...), nil
	}
	// JSON-decoded []any of objects: round-trip through encoding/json.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out []LineItem
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "line items")
	}
	for i, it := range out {
		if it.Quantity < 0 {
			return nil, errors.Errorf("line item %d: negative quantity", i)
		}
	}
	return out, nil
}

// OrderSchema lists the Order fields taking part in merge and edits.
// order_id and tour_id are matching keys and are deliberately absent.
var OrderSchema = NewSchema(
	statusField("status", func(o *Order) *string { return &o.Status }),
	statusField("effective_status", func(o *Order) *string { return &o.EffectiveStatus }),
	optStringField("cancellation_reason", func(o *Order) **string { return &o.CancellationReason }),
	readOnly(Field[Order]{
		Name: "status_updates",
		copyFn: func(dst, src *Order) {
			if src.StatusUpdates == nil {
				dst.StatusUpdates = nil
				return
			}
			dst.StatusUpdates = append(make([]StatusUpdate, 0, len(src.StatusUpdates)), src.StatusUpdates...)
		},
	}),
	optStringField("rider_id", func(o *Order) **string { return &o.RiderID }),
	optStringField("rider_name", func(o *Order) **string { return &o.RiderName }),
	optStringField("rider_phone", func(o *Order) **string { return &o.RiderPhone }),
	optStringField("vehicle_id", func(o *Order) **string { return &o.VehicleID }),
	optStringField("vehicle_registration", func(o *Order) **string { return &o.VehicleRegistration }),
	optStringField("vehicle_model", func(o *Order) **string { return &o.VehicleModel }),
	optStringField("transporter_name", func(o *Order) **string { return &o.TransporterName }),
	optStringField("task_source", func(o *Order) **string { return &o.TaskSource }),
	optStringField("plan_id", func(o *Order) **string { return &o.PlanID }),
	optStringField("location_name", func(o *Order) **string { return &o.LocationName }),
	optStringField("location_address", func(o *Order) **string { return &o.LocationAddress }),
	optStringField("location_city", func(o *Order) **string { return &o.LocationCity }),
	optFloatField("location_latitude", func(o *Order) **float64 { return &o.LocationLatitude }),
	optFloatField("location_longitude", func(o *Order) **float64 { return &o.LocationLongitude }),
	Field[Order]{
		Name:     "line_items",
		Editable: true,
		copyFn: func(dst, src *Order) {
			if src.LineItems == nil {
				dst.LineItems = nil
				return
			}
			dst.LineItems = append(make([]LineItem, 0, len(src.LineItems)), src.LineItems...)
		},
		setFn: func(o *Order, v any) error {
			items, err := asLineItems(v)
			if err != nil {
				return err
			}
			o.LineItems = items
			return nil
		},
	},
	optFloatField("tardiness", func(o *Order) **float64 { return &o.Tardiness }),
	optStringField("sla_status", func(o *Order) **string { return &o.SLAStatus }),
	readOnly(optTimeField("task_created_at", func(o *Order) **time.Time { return &o.TaskCreatedAt })),
	readOnly(optTimeField("task_updated_at", func(o *Order) **time.Time { return &o.TaskUpdatedAt })),
	optTimeField("scheduled_at", func(o *Order) **time.Time { return &o.ScheduledAt }),
	optTimeField("completed_at", func(o *Order) **time.Time { return &o.CompletedAt }),
)

// TourSchema lists the Tour fields observable from snapshots. Counters and
// tour_status are derived and never merged or edited.
var TourSchema = NewSchema(
	optStringField("rider_id", func(t *Tour) **string { return &t.RiderID }),
	optStringField("rider_name", func(t *Tour) **string { return &t.RiderName }),
	optStringField("rider_phone", func(t *Tour) **string { return &t.RiderPhone }),
	optStringField("vehicle_id", func(t *Tour) **string { return &t.VehicleID }),
	optStringField("vehicle_registration", func(t *Tour) **string { return &t.VehicleRegistration }),
	optStringField("vehicle_model", func(t *Tour) **string { return &t.VehicleModel }),
	optStringField("transporter_name", func(t *Tour) **string { return &t.TransporterName }),
	optStringField("plan_id", func(t *Tour) **string { return &t.PlanID }),
	optTimeField("tour_date", func(t *Tour) **time.Time { return &t.TourDate }),
)
