// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main chat view for the TUI.
//
// This file implements the secondary screens reachable from the chat
// view: the smart-search screen (queries plus schema editing) and the
// system prompt manager. Both reuse the chat input line and interpret
// slash commands typed into it.
package chat

import (
	"strings"

	"github.com/morganforge/parley/internal/model"
	"github.com/morganforge/parley/internal/search"
)

// Slash commands recognized outside plain chat.
const (
	schemaCommand     = "/schema"
	promptNewCommand  = "/new"
	promptEditCommand = "/edit"
)

// =============================================================================
// SCHEMA COMMANDS
// =============================================================================

// fieldSpec is one parsed field of a /schema command.
type fieldSpec struct {
	name string
	desc string
	typ  search.FieldType
}

// parseSchemaCommand parses the /schema input line:
//
//	/schema Name | Description | field:desc[:type]; field2:desc2
//
// The type segment is optional and defaults to text. Returns ok=false
// when the line is not a /schema command at all; a malformed body
// still returns ok=true so validation can surface the gaps.
func parseSchemaCommand(text string) (name, desc string, fields []fieldSpec, ok bool) {
	rest, found := strings.CutPrefix(text, schemaCommand)
	if !found || (rest != "" && !strings.HasPrefix(rest, " ")) {
		return "", "", nil, false
	}

	parts := strings.SplitN(rest, "|", 3)
	name = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		desc = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		for _, raw := range strings.Split(parts[2], ";") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			spec := fieldSpec{typ: search.FieldText}
			segs := strings.SplitN(raw, ":", 3)
			spec.name = strings.TrimSpace(segs[0])
			if len(segs) > 1 {
				spec.desc = strings.TrimSpace(segs[1])
			}
			if len(segs) > 2 {
				spec.typ = search.FieldType(strings.TrimSpace(segs[2]))
			}
			fields = append(fields, spec)
		}
	}
	return name, desc, fields, true
}

// buildSchemaGroup materializes a parsed /schema command as a draft
// group and returns its id. Invalid input still builds the group; the
// draft's validation decides whether it can be saved.
func buildSchemaGroup(draft *search.Draft, name, desc string, fields []fieldSpec) string {
	group := draft.CreateGroup()
	draft.UpdateGroup(group.ID, search.GroupPatch{Name: &name, Description: &desc})
	for _, spec := range fields {
		field, ok := draft.CreateField(group.ID)
		if !ok {
			break
		}
		draft.UpdateField(group.ID, field.ID, search.FieldPatch{
			Name:        &spec.name,
			Description: &spec.desc,
			Type:        &spec.typ,
		})
	}
	return group.ID
}

// =============================================================================
// PROMPT COMMANDS
// =============================================================================

// parsePromptCommand parses "/new Title | Content" style input.
// Returns ok=false when text does not start with the given command.
func parsePromptCommand(text, command string) (title, content string, ok bool) {
	rest, found := strings.CutPrefix(text, command+" ")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, "|", 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		content = strings.TrimSpace(parts[1])
	}
	return title, content, true
}

// =============================================================================
// REFERENCE CYCLING
// =============================================================================

// lastAnswerRefs returns the references of the most recent assistant
// message, or nil when no answer carries sources.
func (m *Model) lastAnswerRefs() []model.Reference {
	list := m.msgs.List()
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Role == model.RoleAssistant && len(list[i].References) > 0 {
			return list[i].References
		}
	}
	return nil
}

// clampPromptSel keeps the prompt selection inside the list.
func (m *Model) clampPromptSel() {
	n := len(m.prompts.List())
	if n == 0 {
		m.promptSel = -1
	} else if m.promptSel >= n {
		m.promptSel = n - 1
	} else if m.promptSel < 0 {
		m.promptSel = 0
	}
}
