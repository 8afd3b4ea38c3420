// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/morganforge/parley/internal/api"
	"github.com/morganforge/parley/internal/model"
	"github.com/morganforge/parley/internal/ui/styles"
	"github.com/morganforge/parley/internal/util"
)

// referenceFetcher is the backend surface reference activation needs.
type referenceFetcher interface {
	ParentChunk(ctx context.Context, chunkID string) (*api.Chunk, error)
	DocumentFile(ctx context.Context, filename string) ([]byte, string, error)
}

// ReferenceContent is what opening a reference resolved to: either
// chunk text (knowledge base) or a raw document blob.
type ReferenceContent struct {
	Title       string
	Text        string
	Blob        []byte
	ContentType string
}

// =============================================================================
// REFERENCE LIST
// =============================================================================

// ReferenceList renders the source references attached to an
// assistant answer and resolves the right backend content when one is
// opened.
type ReferenceList struct {
	client referenceFetcher
}

// NewReferenceList creates a reference list over the given client.
func NewReferenceList(client referenceFetcher) *ReferenceList {
	return &ReferenceList{client: client}
}

// badge returns the short label shown before a reference title.
func badge(t model.SourceType) string {
	switch t {
	case model.SourceKnowledgeBase:
		return "[KB]"
	case model.SourceUploadedFile:
		return "[FILE]"
	case model.SourceTabular:
		return "[SQL]"
	}
	return "[?]"
}

// Render draws the reference list for one answer.
func (l *ReferenceList) Render(theme *styles.Theme, refs []model.Reference) string {
	if len(refs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(theme.RefBadge.Render(fmt.Sprintf("Sources (%d)", len(refs))))
	for i, ref := range refs {
		b.WriteString("\n")
		line := fmt.Sprintf("%d. %s %s", i+1, badge(ref.SourceType), ref.SourceName)
		b.WriteString(theme.RefTitle.Render(line))
		if ref.Preview != "" {
			b.WriteString("\n   ")
			b.WriteString(theme.RefPreview.Render(util.TruncateRunes(ref.Preview, 120)))
		}
		// Tabular provenance shows the generating query inline.
		if loc, ok := ref.Location.(model.TabularLocation); ok && loc.SQLQuery != "" {
			b.WriteString("\n   ")
			b.WriteString(HighlightSQL(loc.SQLQuery, theme.Palette.Name != styles.ThemeLight))
		}
	}
	return b.String()
}

// Open resolves the content behind a reference. Each source variant
// has its own retrieval path: knowledge-base references fetch their
// parent chunk, uploaded-file and tabular references fetch the stored
// document blob. The dispatch is exhaustive over the variant set.
func (l *ReferenceList) Open(ctx context.Context, ref model.Reference) (*ReferenceContent, error) {
	var content *ReferenceContent
	err := ref.VisitLocation(model.LocationVisitor{
		KnowledgeBase: func(loc model.KnowledgeBaseLocation) error {
			chunk, err := l.client.ParentChunk(ctx, loc.ParentID)
			if err != nil {
				return fmt.Errorf("failed to fetch source chunk: %w", err)
			}
			content = &ReferenceContent{
				Title: chunk.FileName,
				Text:  chunk.Content,
			}
			return nil
		},
		UploadedFile: func(loc model.UploadedFileLocation) error {
			blob, contentType, err := l.client.DocumentFile(ctx, ref.SourceName)
			if err != nil {
				return fmt.Errorf("failed to fetch document: %w", err)
			}
			content = &ReferenceContent{
				Title:       ref.SourceName,
				Blob:        blob,
				ContentType: contentType,
			}
			return nil
		},
		Tabular: func(loc model.TabularLocation) error {
			blob, contentType, err := l.client.DocumentFile(ctx, ref.SourceName)
			if err != nil {
				return fmt.Errorf("failed to fetch document: %w", err)
			}
			content = &ReferenceContent{
				Title:       ref.SourceName,
				Text:        loc.SQLQuery,
				Blob:        blob,
				ContentType: contentType,
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}
