// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganforge/parley/internal/api"
)

// fakeSchemaBackend records schema creation calls.
type fakeSchemaBackend struct {
	created []api.SchemaCreateRequest
	err     error

	queries []string
	hits    []api.SearchHit
	schema  []api.SchemaGroup
}

func (f *fakeSchemaBackend) CreateSearchSchema(_ context.Context, req api.SchemaCreateRequest) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, req)
	return nil
}

func (f *fakeSchemaBackend) SmartSearch(_ context.Context, query string) (*api.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, query)
	return &api.SearchResponse{Hits: f.hits}, nil
}

func (f *fakeSchemaBackend) SearchSchema(_ context.Context) ([]api.SchemaGroup, error) {
	return f.schema, f.err
}

// =============================================================================
// DRAFT
// =============================================================================

func TestDraftValidationGateBlocksSave(t *testing.T) {
	backend := &fakeSchemaBackend{}
	d := NewDraft(backend)

	// Group with name="" and one field with description="".
	group := d.CreateGroup()
	desc := "Vendor invoices"
	d.UpdateGroup(group.ID, GroupPatch{Description: &desc})
	field, ok := d.CreateField(group.ID)
	require.True(t, ok)
	name := "vendor"
	d.UpdateField(group.ID, field.ID, FieldPatch{Name: &name})

	violations := d.ValidateAll()
	require.Len(t, violations, 2)

	// Error entries exist for both the group's name and the field's
	// description.
	assert.NotEmpty(t, d.Error(group.ID, "", "name"))
	assert.NotEmpty(t, d.Error(group.ID, field.ID, "description"))

	// Saving must not issue the create call.
	err := d.SaveGroup(context.Background(), group.ID)
	assert.ErrorIs(t, err, ErrDraftInvalid)
	assert.Empty(t, backend.created)
}

func TestDraftSaveStripsIDsAndClearsGroup(t *testing.T) {
	backend := &fakeSchemaBackend{}
	d := NewDraft(backend)

	group := d.CreateGroup()
	name, desc := "Invoices", "Vendor invoices"
	d.UpdateGroup(group.ID, GroupPatch{Name: &name, Description: &desc})

	field, _ := d.CreateField(group.ID)
	fName, fDesc := "total", "Invoice total"
	fType := FieldNumber
	d.UpdateField(group.ID, field.ID, FieldPatch{Name: &fName, Description: &fDesc, Type: &fType})

	require.NoError(t, d.SaveGroup(context.Background(), group.ID))

	require.Len(t, backend.created, 1)
	req := backend.created[0]
	assert.Equal(t, "Invoices", req.Name)
	require.Len(t, req.Fields, 1)
	assert.Equal(t, "number", req.Fields[0].Type)

	// Server-owned after save: gone from the editable draft.
	assert.Empty(t, d.Groups())
}

func TestDraftSaveFailureKeepsGroup(t *testing.T) {
	backend := &fakeSchemaBackend{err: errors.New("boom")}
	d := NewDraft(backend)

	group := d.CreateGroup()
	name, desc := "Invoices", "Vendor invoices"
	d.UpdateGroup(group.ID, GroupPatch{Name: &name, Description: &desc})
	field, _ := d.CreateField(group.ID)
	d.UpdateField(group.ID, field.ID, FieldPatch{Name: &name, Description: &desc})

	require.Error(t, d.SaveGroup(context.Background(), group.ID))
	assert.Len(t, d.Groups(), 1)
}

func TestDraftEmptyGroupBlocksSave(t *testing.T) {
	// A named and described group still needs at least one field
	// before it may be transmitted.
	backend := &fakeSchemaBackend{}
	d := NewDraft(backend)

	group := d.CreateGroup()
	name, desc := "Invoices", "Vendor invoices"
	d.UpdateGroup(group.ID, GroupPatch{Name: &name, Description: &desc})

	violations := d.ValidateAll()
	require.Len(t, violations, 1)
	assert.Equal(t, "fields", violations[0].Attr)
	assert.Equal(t, "at least one field is required", d.Error(group.ID, "", "fields"))

	require.ErrorIs(t, d.SaveGroup(context.Background(), group.ID), ErrDraftInvalid)
	assert.Empty(t, backend.created, "no create call for an invalid draft")
}

func TestDraftFieldLifecycle(t *testing.T) {
	d := NewDraft(&fakeSchemaBackend{})
	group := d.CreateGroup()

	field, ok := d.CreateField(group.ID)
	require.True(t, ok)
	assert.Equal(t, FieldText, field.Type, "new fields default to text")

	d.DeleteField(group.ID, field.ID)
	assert.Empty(t, d.Groups()[0].Fields)

	// Creating a field on a missing group reports failure.
	_, ok = d.CreateField("nope")
	assert.False(t, ok)
}

func TestDraftInvalidFieldType(t *testing.T) {
	d := NewDraft(&fakeSchemaBackend{})
	group := d.CreateGroup()
	name, desc := "G", "D"
	d.UpdateGroup(group.ID, GroupPatch{Name: &name, Description: &desc})

	field, _ := d.CreateField(group.ID)
	bad := FieldType("boolean")
	d.UpdateField(group.ID, field.ID, FieldPatch{Name: &name, Description: &desc, Type: &bad})

	violations := d.ValidateAll()
	require.Len(t, violations, 1)
	assert.Equal(t, "type", violations[0].Attr)
}

func TestDraftClearErrors(t *testing.T) {
	d := NewDraft(&fakeSchemaBackend{})
	group := d.CreateGroup()
	d.ValidateAll()
	require.NotEmpty(t, d.Error(group.ID, "", "name"))

	d.ClearErrors(group.ID)
	assert.Empty(t, d.Error(group.ID, "", "name"))
}

// =============================================================================
// SEARCH STORE
// =============================================================================

func TestQueryBlankClearsResults(t *testing.T) {
	backend := &fakeSchemaBackend{hits: []api.SearchHit{{Formatted: map[string]any{"a": "b"}}}}
	s := NewStore(backend)

	_, err := s.Query(context.Background(), "invoices")
	require.NoError(t, err)
	assert.Len(t, s.Hits(), 1)

	hits, err := s.Query(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, hits)
	assert.Empty(t, s.Hits())
	assert.Empty(t, s.LastQuery())
	// Blank queries never reach the backend.
	assert.Equal(t, []string{"invoices"}, backend.queries)
}

func TestQueryRecordsLastQuery(t *testing.T) {
	s := NewStore(&fakeSchemaBackend{})
	_, err := s.Query(context.Background(), "  deadlines  ")
	require.NoError(t, err)
	assert.Equal(t, "deadlines", s.LastQuery())
}

func TestLoadSchema(t *testing.T) {
	backend := &fakeSchemaBackend{schema: []api.SchemaGroup{{ID: "g-1", Name: "Invoices"}}}
	s := NewStore(backend)

	schema, err := s.LoadSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "Invoices", s.Schema()[0].Name)
}
