// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("conv_1", "hello")

	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "conv_1", msg.ConversationID)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.ID)

	// Two messages must never share a temporary id.
	other := NewUserMessage("conv_1", "hello")
	assert.NotEqual(t, msg.ID, other.ID)
}

func TestNewUserMessagePlaceholder(t *testing.T) {
	msg := NewUserMessage("", "first message of a new thread")
	assert.Equal(t, PlaceholderConversationID, msg.ConversationID)
}

func TestMessagePreview(t *testing.T) {
	msg := NewUserMessage("c", "line one\nline two")
	assert.Equal(t, "line one line two", msg.Preview(50))

	long := NewUserMessage("c", "aaaaaaaaaaaaaaaaaaaa")
	assert.Equal(t, "aaaaaaa...", long.Preview(10))

	// Rune-based truncation must not split multi-byte characters.
	unicode := NewUserMessage("c", "héllo wörld, héllo wörld")
	preview := unicode.Preview(10)
	assert.Equal(t, "héllo w...", preview)
}

func TestNewConversationGeneratesID(t *testing.T) {
	conv := NewConversation("Hello", "")
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Hello", conv.Title)
	assert.False(t, conv.CreatedAt.IsZero())

	confirmed := NewConversation("Hello", "c1")
	assert.Equal(t, "c1", confirmed.ID)
}

func TestConversationDisplayTitle(t *testing.T) {
	conv := NewConversation("", "c1")
	assert.Equal(t, "New Conversation", conv.DisplayTitle())
}

func TestReferenceDecodeVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Location
	}{
		{
			name: "knowledge base",
			in: `{
				"source_type": "knowledge_base",
				"source_name": "handbook.pdf",
				"source_id": "kb_9",
				"preview": "…",
				"matched_chunks": [{"id": "ch_1", "preview": "p"}],
				"location": {"parent_id": "par_3", "file_path": "/docs/handbook.pdf"}
			}`,
			want: KnowledgeBaseLocation{ParentID: "par_3", FilePath: "/docs/handbook.pdf"},
		},
		{
			name: "uploaded file",
			in: `{
				"source_type": "uploaded_file",
				"source_name": "report.pdf",
				"source_id": "up_2",
				"preview": "…",
				"matched_chunks": [],
				"location": {"page_number": null, "chunk_index": 4}
			}`,
			want: UploadedFileLocation{ChunkIndex: 4},
		},
		{
			name: "tabular",
			in: `{
				"source_type": "tabular",
				"source_name": "sales.csv",
				"source_id": "tab_7",
				"preview": "…",
				"matched_chunks": [],
				"location": {"sql_query": "SELECT 1", "row_count": 12}
			}`,
			want: TabularLocation{SQLQuery: "SELECT 1", RowCount: 12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref Reference
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ref))
			assert.Equal(t, tt.want, ref.Location)
			assert.True(t, ref.SourceType.Valid())
		})
	}
}

func TestReferenceDecodeUnknownVariant(t *testing.T) {
	in := `{"source_type": "carrier_pigeon", "source_id": "x", "location": {}}`
	var ref Reference
	err := json.Unmarshal([]byte(in), &ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier_pigeon")
}

func TestReferenceRoundTrip(t *testing.T) {
	ref := Reference{
		SourceType: SourceTabular,
		SourceName: "sales.csv",
		SourceID:   "tab_7",
		Preview:    "12 rows",
		Location:   TabularLocation{SQLQuery: "SELECT region, SUM(total)", RowCount: 12},
	}

	data, err := json.Marshal(ref)
	require.NoError(t, err)

	var back Reference
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ref.Location, back.Location)
	assert.Equal(t, ref.SourceID, back.SourceID)
}

func TestVisitLocationDispatch(t *testing.T) {
	refs := []Reference{
		{SourceType: SourceUploadedFile, SourceID: "a", Location: UploadedFileLocation{ChunkIndex: 1}},
		{SourceType: SourceKnowledgeBase, SourceID: "b", Location: KnowledgeBaseLocation{ParentID: "p"}},
		{SourceType: SourceTabular, SourceID: "c", Location: TabularLocation{RowCount: 3}},
	}

	var visited []string
	visitor := LocationVisitor{
		KnowledgeBase: func(loc KnowledgeBaseLocation) error {
			visited = append(visited, "kb:"+loc.ParentID)
			return nil
		},
		UploadedFile: func(loc UploadedFileLocation) error {
			visited = append(visited, "file")
			return nil
		},
		Tabular: func(loc TabularLocation) error {
			visited = append(visited, "tabular")
			return nil
		},
	}

	for i := range refs {
		require.NoError(t, refs[i].VisitLocation(visitor))
	}
	assert.Equal(t, []string{"file", "kb:p", "tabular"}, visited)
}

func TestVisitLocationMissingHandler(t *testing.T) {
	ref := Reference{SourceType: SourceTabular, SourceID: "c", Location: TabularLocation{}}
	err := ref.VisitLocation(LocationVisitor{})
	require.Error(t, err)
}
