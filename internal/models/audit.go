package models

import (
	"encoding/json"
	"sort"
	"time"
)

// Modification is the audit entry of one protected field.
type Modification struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// Audit is the edit-tracking part shared by Order and Tour.
// A field present in Modifications is protected from snapshot overwrite.
type Audit struct {
	IsModified     bool                    `json:"is_modified"`
	Modifications  map[string]Modification `json:"modifications,omitempty"`
	LastModifiedBy *string                 `json:"last_modified_by,omitempty"`
	LastModifiedAt *time.Time              `json:"last_modified_at,omitempty"`
}

func (a *Audit) IsProtected(field string) bool {
	_, ok := a.Modifications[field]
	return ok
}

// ModifiedFields returns protected field names, sorted.
func (a *Audit) ModifiedFields() []string {
	out := make([]string, 0, len(a.Modifications))
	for f := range a.Modifications {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Touch marks field as edited by actor at the given time. Membership is idempotent.
func (a *Audit) Touch(field, actor string, at time.Time) {
	if a.Modifications == nil {
		a.Modifications = make(map[string]Modification)
	}
	a.Modifications[field] = Modification{By: actor, At: at}
	a.IsModified = true
	by := actor
	a.LastModifiedBy = &by
	t := at
	a.LastModifiedAt = &t
}

func (a Audit) Clone() Audit {
	c := a
	if a.Modifications != nil {
		c.Modifications = make(map[string]Modification, len(a.Modifications))
		for k, v := range a.Modifications {
			c.Modifications[k] = v
		}
	}
	return c
}

// withModifiedFields adds the sorted protected set under "modified_fields"
// to an already encoded object.
func withModifiedFields(raw []byte, a *Audit) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	fields, err := json.Marshal(a.ModifiedFields())
	if err != nil {
		return nil, err
	}
	obj["modified_fields"] = fields
	return json.Marshal(obj)
}
