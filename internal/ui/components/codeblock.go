// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// HighlightCode renders source code with syntax highlighting for the
// terminal. Used for the SQL provenance shown on tabular references
// and for standalone code snippets outside markdown flow. Returns the
// input unchanged when the language is unknown or highlighting fails.
func HighlightCode(source, language string, dark bool) string {
	if strings.TrimSpace(source) == "" {
		return source
	}

	style := "github"
	if dark {
		style = "monokai"
	}

	var b strings.Builder
	if err := quick.Highlight(&b, source, language, "terminal256", style); err != nil {
		return source
	}
	return b.String()
}

// HighlightSQL highlights a SQL snippet, the common case for tabular
// reference provenance.
func HighlightSQL(query string, dark bool) string {
	return HighlightCode(query, "sql", dark)
}
