package agent

import (
	"log/slog"
	"slices"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// DefaultMaxHistoryLength bounds the history handed to the model.
const DefaultMaxHistoryLength = 50

// Sanitizer applies Sanitize with a fixed length bound.
type Sanitizer struct {
	MaxHistoryLength int
}

func (s Sanitizer) Sanitize(h schema.Messages) schema.Messages {
	return Sanitize(h, s.MaxHistoryLength)
}

// Sanitize repairs a history so the provider accepts it:
//
//   - consecutive identical user messages collapse to the newest one;
//   - only the newest maxLen messages are kept, plus any system message
//     that fell outside that window (re-prepended in order);
//   - every tool message pairs with exactly one preceding assistant
//     tool call, and every assistant tool call has its tool message.
//
// Pairing and dedup repeat until neither removes anything, so
// Sanitize(Sanitize(h)) equals Sanitize(h). The input is never modified.
func Sanitize(h schema.Messages, maxLen int) schema.Messages {
	if maxLen <= 0 {
		maxLen = DefaultMaxHistoryLength
	}
	before := h.Len()

	msgs := dedupUsers(h.Messages)
	msgs = boundLength(msgs, maxLen)
	for {
		next := dedupUsers(enforcePairing(msgs))
		if len(next) == len(msgs) {
			break
		}
		msgs = next
	}

	if removed := before - len(msgs); removed > 0 {
		slog.Debug("sanitizer: removed messages", "before", before, "after", len(msgs))
	}
	return schema.NewMessages(msgs...)
}

// dedupUsers walks newest to oldest and drops a user message whose content
// equals the user message right after it.
func dedupUsers(msgs []schema.Message) []schema.Message {
	kept := make([]schema.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == schema.RoleUser && len(kept) > 0 {
			next := kept[len(kept)-1]
			if next.Role == schema.RoleUser && next.ContentKey() == m.ContentKey() {
				continue
			}
		}
		kept = append(kept, m)
	}
	slices.Reverse(kept)
	return kept
}

func boundLength(msgs []schema.Message, maxLen int) []schema.Message {
	if len(msgs) <= maxLen {
		return slices.Clone(msgs)
	}
	cut := len(msgs) - maxLen
	out := make([]schema.Message, 0, maxLen+1)
	for _, m := range msgs[:cut] {
		if m.Role == schema.RoleSystem {
			out = append(out, m)
		}
	}
	return append(out, msgs[cut:]...)
}

// enforcePairing runs two passes. The first decides, per assistant message
// with tool calls, whether every declared id has an unclaimed tool message
// after it; if so those tool messages are claimed. The second keeps claimed
// tool messages, complete assistants, and plain assistants with content.
func enforcePairing(msgs []schema.Message) []schema.Message {
	validAssistant := make(map[int]bool)
	claimed := make(map[int]bool)
	claimedIDs := make(map[string]bool)

	for i, m := range msgs {
		if m.Role != schema.RoleAssistant || !m.HasToolCalls() {
			continue
		}
		matches, ok := matchToolResults(msgs, i, claimed, claimedIDs)
		if !ok {
			continue
		}
		validAssistant[i] = true
		for _, j := range matches {
			claimed[j] = true
		}
		for _, tc := range m.ToolCalls {
			claimedIDs[tc.ID] = true
		}
	}

	out := make([]schema.Message, 0, len(msgs))
	for i, m := range msgs {
		switch m.Role {
		case schema.RoleAssistant:
			if m.HasToolCalls() {
				if !validAssistant[i] {
					continue
				}
			} else if !m.HasContent() {
				continue
			}
		case schema.RoleTool:
			if !claimed[i] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// matchToolResults finds, for each call id of msgs[i], the first unclaimed
// tool message after i answering it. It fails on empty or repeated ids and
// on ids an earlier assistant already owns.
func matchToolResults(msgs []schema.Message, i int, claimed map[int]bool, claimedIDs map[string]bool) ([]int, bool) {
	calls := msgs[i].ToolCalls
	seen := make(map[string]bool, len(calls))
	matches := make([]int, 0, len(calls))

	for _, tc := range calls {
		if tc.ID == "" || seen[tc.ID] || claimedIDs[tc.ID] {
			return nil, false
		}
		seen[tc.ID] = true

		found := -1
		for j := i + 1; j < len(msgs); j++ {
			if msgs[j].Role == schema.RoleTool && msgs[j].ToolCallID == tc.ID && !claimed[j] {
				found = j
				break
			}
		}
		if found < 0 {
			return nil, false
		}
		matches = append(matches, found)
	}
	return matches, true
}
