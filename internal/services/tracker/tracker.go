package tracker

import (
	"sort"
	"time"

	"github.com/BearBump/TourSync/internal/models"
	"github.com/pkg/errors"
)

// Applied is the outcome of one operator edit proposal.
type Applied struct {
	Updated  []string
	Rejected []models.FieldError
}

func (a Applied) Changed() bool { return len(a.Updated) > 0 }

// Tracker applies operator edits and records field protection.
// Editing a field is what protects it: the first accepted edit adds the field
// to the entity's modified set, later edits only refresh the audit entry.
type Tracker struct {
	now func() time.Time
}

func New() *Tracker {
	return &Tracker{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock is used by tests to pin the edit time.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) ProposeOrder(o *models.Order, changes map[string]any, actor string) Applied {
	return propose(o, &o.Audit, models.OrderSchema, changes, actor, t.now())
}

func (t *Tracker) ProposeTour(tr *models.Tour, changes map[string]any, actor string) Applied {
	return propose(tr, &tr.Audit, models.TourSchema, changes, actor, t.now())
}

func propose[E any](e *E, audit *models.Audit, schema models.Schema[E], changes map[string]any, actor string, now time.Time) Applied {
	var res Applied

	// Stable order for responses and audit logs.
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := schema.Lookup(name)
		if !ok || !f.Editable {
			res.Rejected = append(res.Rejected, models.FieldError{Field: name, Err: errors.WithStack(models.ErrUnknownField)})
			continue
		}
		if err := f.Set(e, changes[name]); err != nil {
			res.Rejected = append(res.Rejected, models.FieldError{Field: name, Err: err})
			continue
		}
		audit.Touch(name, actor, now)
		res.Updated = append(res.Updated, name)
	}
	return res
}
