// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// SOURCE TYPE
// =============================================================================

// SourceType identifies which kind of source a reference cites. The
// set is closed: decoding an unknown source type fails instead of
// silently producing a reference the UI cannot act on.
type SourceType string

const (
	SourceKnowledgeBase SourceType = "knowledge_base"
	SourceUploadedFile  SourceType = "uploaded_file"
	SourceTabular       SourceType = "tabular"
)

// Valid reports whether the source type is one of the known variants.
func (t SourceType) Valid() bool {
	switch t {
	case SourceKnowledgeBase, SourceUploadedFile, SourceTabular:
		return true
	}
	return false
}

// =============================================================================
// LOCATION VARIANTS
// =============================================================================

// Location is the variant payload of a reference. Exactly one
// concrete location type exists per SourceType.
type Location interface {
	isLocation()
}

// KnowledgeBaseLocation points at a parent chunk in the knowledge base.
type KnowledgeBaseLocation struct {
	ParentID string `json:"parent_id"`
	FilePath string `json:"file_path"`
}

// UploadedFileLocation points at a chunk inside an uploaded file.
type UploadedFileLocation struct {
	PageNumber *int `json:"page_number"`
	ChunkIndex int  `json:"chunk_index"`
}

// TabularLocation carries the SQL provenance of a tabular answer.
type TabularLocation struct {
	SQLQuery string `json:"sql_query"`
	RowCount int    `json:"row_count"`
}

func (KnowledgeBaseLocation) isLocation() {}
func (UploadedFileLocation) isLocation()  {}
func (TabularLocation) isLocation()       {}

// =============================================================================
// REFERENCE TYPE
// =============================================================================

// MatchedChunk is a child-chunk preview attached to a reference.
type MatchedChunk struct {
	ID      string `json:"id"`
	Preview string `json:"preview"`
}

// Reference is a source citation attached to an assistant message.
// The Location payload is a tagged union keyed on SourceType.
type Reference struct {
	SourceType    SourceType     `json:"source_type"`
	SourceName    string         `json:"source_name"`
	SourceID      string         `json:"source_id"`
	Preview       string         `json:"preview"`
	MatchedChunks []MatchedChunk `json:"matched_chunks"`
	Location      Location       `json:"-"`
}

// referenceWire mirrors Reference with the location left raw so the
// variant can be decoded after the tag is known.
type referenceWire struct {
	SourceType    SourceType      `json:"source_type"`
	SourceName    string          `json:"source_name"`
	SourceID      string          `json:"source_id"`
	Preview       string          `json:"preview"`
	MatchedChunks []MatchedChunk  `json:"matched_chunks"`
	Location      json.RawMessage `json:"location"`
}

// UnmarshalJSON decodes a reference, selecting the location variant
// from the source_type tag.
func (r *Reference) UnmarshalJSON(data []byte) error {
	var wire referenceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.SourceType = wire.SourceType
	r.SourceName = wire.SourceName
	r.SourceID = wire.SourceID
	r.Preview = wire.Preview
	r.MatchedChunks = wire.MatchedChunks
	r.Location = nil

	if len(wire.Location) == 0 {
		return fmt.Errorf("reference %q: missing location", wire.SourceID)
	}

	switch wire.SourceType {
	case SourceKnowledgeBase:
		var loc KnowledgeBaseLocation
		if err := json.Unmarshal(wire.Location, &loc); err != nil {
			return fmt.Errorf("reference %q: decode knowledge_base location: %w", wire.SourceID, err)
		}
		r.Location = loc
	case SourceUploadedFile:
		var loc UploadedFileLocation
		if err := json.Unmarshal(wire.Location, &loc); err != nil {
			return fmt.Errorf("reference %q: decode uploaded_file location: %w", wire.SourceID, err)
		}
		r.Location = loc
	case SourceTabular:
		var loc TabularLocation
		if err := json.Unmarshal(wire.Location, &loc); err != nil {
			return fmt.Errorf("reference %q: decode tabular location: %w", wire.SourceID, err)
		}
		r.Location = loc
	default:
		return fmt.Errorf("reference %q: unknown source_type %q", wire.SourceID, wire.SourceType)
	}

	return nil
}

// MarshalJSON encodes the reference with its location under the
// "location" key, matching the wire format the backend emits.
func (r Reference) MarshalJSON() ([]byte, error) {
	loc, err := json.Marshal(r.Location)
	if err != nil {
		return nil, err
	}
	return json.Marshal(referenceWire{
		SourceType:    r.SourceType,
		SourceName:    r.SourceName,
		SourceID:      r.SourceID,
		Preview:       r.Preview,
		MatchedChunks: r.MatchedChunks,
		Location:      loc,
	})
}

// =============================================================================
// VARIANT DISPATCH
// =============================================================================

// LocationVisitor dispatches on the location variant. Every field is
// required; VisitLocation fails on a nil handler so a new variant
// cannot be forgotten silently at a call site.
type LocationVisitor struct {
	KnowledgeBase func(KnowledgeBaseLocation) error
	UploadedFile  func(UploadedFileLocation) error
	Tabular       func(TabularLocation) error
}

// VisitLocation calls the handler matching the reference's location
// variant. It is the single dispatch point for per-variant behavior
// such as choosing the retrieval endpoint.
func (r *Reference) VisitLocation(v LocationVisitor) error {
	switch loc := r.Location.(type) {
	case KnowledgeBaseLocation:
		if v.KnowledgeBase == nil {
			return fmt.Errorf("reference %q: no knowledge_base handler", r.SourceID)
		}
		return v.KnowledgeBase(loc)
	case UploadedFileLocation:
		if v.UploadedFile == nil {
			return fmt.Errorf("reference %q: no uploaded_file handler", r.SourceID)
		}
		return v.UploadedFile(loc)
	case TabularLocation:
		if v.Tabular == nil {
			return fmt.Errorf("reference %q: no tabular handler", r.SourceID)
		}
		return v.Tabular(loc)
	default:
		return fmt.Errorf("reference %q: no location payload", r.SourceID)
	}
}
