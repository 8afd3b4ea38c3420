// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search holds the smart-search side of the client: the
// editable schema draft with its validation gate, and the query
// runner over the backend's search index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/morganforge/parley/internal/api"
)

// FieldType is the value type of a schema field.
type FieldType string

// Valid schema field types.
const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldDatetime FieldType = "datetime"
)

// Valid reports whether t is a recognized field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDatetime:
		return true
	}
	return false
}

// ErrDraftInvalid blocks saving a group that fails validation.
var ErrDraftInvalid = errors.New("schema draft has validation errors")

// Field is one extraction field of a draft group. The id is
// client-generated and exists only while the draft is editable; the
// server assigns its own on save.
type Field struct {
	ID          string
	Name        string
	Description string
	Type        FieldType
}

// Group is one editable schema group with its ordered fields.
type Group struct {
	ID          string
	Name        string
	Description string
	Fields      []Field
}

// FieldPatch is a partial update to a field; nil members are left
// unchanged.
type FieldPatch struct {
	Name        *string
	Description *string
	Type        *FieldType
}

// GroupPatch is a partial update to a group.
type GroupPatch struct {
	Name        *string
	Description *string
}

// Violation is one validation failure, addressed by group and,
// for field-level problems, field id.
type Violation struct {
	GroupID string
	FieldID string // empty for group-level violations
	Attr    string // which attribute failed, e.g. "name"
	Message string
}

// schemaSaver is the backend surface Draft needs.
type schemaSaver interface {
	CreateSearchSchema(ctx context.Context, req api.SchemaCreateRequest) error
}

// =============================================================================
// SCHEMA DRAFT
// =============================================================================

// Draft is the editable set of unsaved schema groups. Validation
// errors live in a side table keyed by group and field id, so an
// invalid draft can exist freely but can never be saved.
type Draft struct {
	mu sync.Mutex

	client schemaSaver
	groups []Group

	// errors[groupID][fieldID][attr]; fieldID "" holds group-level
	// entries.
	errors map[string]map[string]map[string]string
}

// NewDraft creates an empty draft backed by the given client.
func NewDraft(client schemaSaver) *Draft {
	return &Draft{
		client: client,
		errors: make(map[string]map[string]map[string]string),
	}
}

// Groups returns a snapshot of the draft groups.
func (d *Draft) Groups() []Group {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Group, len(d.groups))
	copy(out, d.groups)
	for i := range out {
		fields := make([]Field, len(d.groups[i].Fields))
		copy(fields, d.groups[i].Fields)
		out[i].Fields = fields
	}
	return out
}

// CreateGroup appends an empty group and returns it.
func (d *Draft) CreateGroup() Group {
	group := Group{ID: uuid.NewString()}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups = append(d.groups, group)
	return group
}

// DeleteGroup removes a group and its error entries.
func (d *Draft) DeleteGroup(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.groups {
		if d.groups[i].ID == groupID {
			d.groups = append(d.groups[:i], d.groups[i+1:]...)
			break
		}
	}
	delete(d.errors, groupID)
}

// UpdateGroup applies a partial patch to a group.
func (d *Draft) UpdateGroup(groupID string, patch GroupPatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.groups {
		if d.groups[i].ID != groupID {
			continue
		}
		if patch.Name != nil {
			d.groups[i].Name = *patch.Name
		}
		if patch.Description != nil {
			d.groups[i].Description = *patch.Description
		}
		return
	}
}

// CreateField appends an empty text field to a group and returns it.
func (d *Draft) CreateField(groupID string) (Field, bool) {
	field := Field{ID: uuid.NewString(), Type: FieldText}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.groups {
		if d.groups[i].ID == groupID {
			d.groups[i].Fields = append(d.groups[i].Fields, field)
			return field, true
		}
	}
	return Field{}, false
}

// DeleteField removes a field from its group along with its errors.
func (d *Draft) DeleteField(groupID, fieldID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.groups {
		if d.groups[i].ID != groupID {
			continue
		}
		fields := d.groups[i].Fields
		for j := range fields {
			if fields[j].ID == fieldID {
				d.groups[i].Fields = append(fields[:j], fields[j+1:]...)
				break
			}
		}
		break
	}
	if byField, ok := d.errors[groupID]; ok {
		delete(byField, fieldID)
	}
}

// UpdateField applies a partial patch to a field.
func (d *Draft) UpdateField(groupID, fieldID string, patch FieldPatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.groups {
		if d.groups[i].ID != groupID {
			continue
		}
		for j := range d.groups[i].Fields {
			field := &d.groups[i].Fields[j]
			if field.ID != fieldID {
				continue
			}
			if patch.Name != nil {
				field.Name = *patch.Name
			}
			if patch.Description != nil {
				field.Description = *patch.Description
			}
			if patch.Type != nil {
				field.Type = *patch.Type
			}
			return
		}
		return
	}
}

// Error returns the recorded validation message for one attribute of
// a group (fieldID "") or field.
func (d *Draft) Error(groupID, fieldID, attr string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errors[groupID][fieldID][attr]
}

// ClearErrors drops all validation entries for a group.
func (d *Draft) ClearErrors(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.errors, groupID)
}

// setErrorLocked records one violation. Caller holds mu.
func (d *Draft) setErrorLocked(v Violation) {
	byField, ok := d.errors[v.GroupID]
	if !ok {
		byField = make(map[string]map[string]string)
		d.errors[v.GroupID] = byField
	}
	byAttr, ok := byField[v.FieldID]
	if !ok {
		byAttr = make(map[string]string)
		byField[v.FieldID] = byAttr
	}
	byAttr[v.Attr] = v.Message
}

// ValidateAll validates every group and field, records every
// violation in the side table, and returns the full list. An empty
// result is the only state in which a save may be issued.
func (d *Draft) ValidateAll() []Violation {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.errors = make(map[string]map[string]map[string]string)
	var violations []Violation
	record := func(v Violation) {
		violations = append(violations, v)
		d.setErrorLocked(v)
	}

	for _, group := range d.groups {
		if group.Name == "" {
			record(Violation{GroupID: group.ID, Attr: "name", Message: "group name is required"})
		}
		if group.Description == "" {
			record(Violation{GroupID: group.ID, Attr: "description", Message: "group description is required"})
		}
		if len(group.Fields) == 0 {
			record(Violation{GroupID: group.ID, Attr: "fields", Message: "at least one field is required"})
		}
		for _, field := range group.Fields {
			if field.Name == "" {
				record(Violation{GroupID: group.ID, FieldID: field.ID, Attr: "name", Message: "field name is required"})
			}
			if field.Description == "" {
				record(Violation{GroupID: group.ID, FieldID: field.ID, Attr: "description", Message: "field description is required"})
			}
			if !field.Type.Valid() {
				record(Violation{GroupID: group.ID, FieldID: field.ID, Attr: "type", Message: fmt.Sprintf("unknown field type %q", field.Type)})
			}
		}
	}
	return violations
}

// SaveGroup validates the whole draft and, only when fully valid,
// transmits one group with its fields. Client-side ids are stripped;
// the server assigns its own. On success the group leaves the draft.
func (d *Draft) SaveGroup(ctx context.Context, groupID string) error {
	if violations := d.ValidateAll(); len(violations) > 0 {
		return fmt.Errorf("%w: %d problem(s)", ErrDraftInvalid, len(violations))
	}

	d.mu.Lock()
	var group *Group
	for i := range d.groups {
		if d.groups[i].ID == groupID {
			group = &d.groups[i]
			break
		}
	}
	if group == nil {
		d.mu.Unlock()
		return fmt.Errorf("no draft group with id %s", groupID)
	}

	req := api.SchemaCreateRequest{
		Name:        group.Name,
		Description: group.Description,
		Fields:      make([]api.SchemaFieldCreate, 0, len(group.Fields)),
	}
	for _, field := range group.Fields {
		req.Fields = append(req.Fields, api.SchemaFieldCreate{
			Name:        field.Name,
			Description: field.Description,
			Type:        string(field.Type),
		})
	}
	d.mu.Unlock()

	if err := d.client.CreateSearchSchema(ctx, req); err != nil {
		return fmt.Errorf("failed to save schema group: %w", err)
	}

	// Server-owned now; drop it from the editable set.
	d.DeleteGroup(groupID)
	return nil
}
