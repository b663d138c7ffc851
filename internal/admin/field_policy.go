package admin

import (
	"sort"

	"github.com/itdesk-io/itdesk/internal/models"
)

// FieldPolicy lists the fields of an admin form and which of them are read-only. The
// read-only set depends on whether the record is being created or edited.
type FieldPolicy struct {
	fields         []string
	createReadOnly map[string]bool
	editReadOnly   map[string]bool
}

func NewFieldPolicy(fields, createReadOnly, editReadOnly []string) *FieldPolicy {
	return &FieldPolicy{
		fields:         append([]string(nil), fields...),
		createReadOnly: toSet(createReadOnly),
		editReadOnly:   toSet(editReadOnly),
	}
}

// TicketFieldPolicy: timestamps are never editable and the customer is fixed once the
// ticket exists.
func TicketFieldPolicy() *FieldPolicy {
	return NewFieldPolicy(
		[]string{"customer", "agent", "title", "description", "status", "priority", "created_at", "updated_at"},
		[]string{"created_at", "updated_at"},
		[]string{"customer", "created_at", "updated_at"},
	)
}

// UserFieldPolicy: the mobile number identifies the account and cannot be changed by
// an edit.
func UserFieldPolicy() *FieldPolicy {
	return NewFieldPolicy(
		[]string{"mobile", "email", "first_name", "last_name", "password", "groups", "is_active", "is_staff", "is_superuser", "date_joined", "last_login"},
		[]string{"date_joined", "last_login"},
		[]string{"mobile", "password", "date_joined", "last_login"},
	)
}

func (p *FieldPolicy) Fields() []string {
	return append([]string(nil), p.fields...)
}

// ReadOnlyFields returns the read-only set for a new (isNew) or existing record.
func (p *FieldPolicy) ReadOnlyFields(isNew bool) []string {
	set := p.set(isNew)
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (p *FieldPolicy) IsReadOnly(field string, isNew bool) bool {
	return p.set(isNew)[field]
}

// EditableFields keeps form order.
func (p *FieldPolicy) EditableFields(isNew bool) []string {
	set := p.set(isNew)
	out := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		if !set[f] {
			out = append(out, f)
		}
	}
	return out
}

// Check rejects submitted fields that are read-only or unknown.
func (p *FieldPolicy) Check(submitted []string, isNew bool) error {
	known := toSet(p.fields)
	verr := models.NewValidationError()
	for _, f := range submitted {
		switch {
		case !known[f]:
			verr.Add(f, "Unknown field.")
		case p.IsReadOnly(f, isNew):
			verr.Add(f, "This field is read-only.")
		}
	}
	return verr.OrNil()
}

func (p *FieldPolicy) set(isNew bool) map[string]bool {
	if isNew {
		return p.createReadOnly
	}
	return p.editReadOnly
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
