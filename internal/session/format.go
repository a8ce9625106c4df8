package session

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NoConversation is the conversation context of a session with no exchanges yet.
const NoConversation = "No previous conversation in this session."

// Response previews are cut to these lengths.
const (
	contextPreviewLen = 500
	displayPreviewLen = 200
)

// RecentContext renders exchanges for the RECENT CONVERSATION context section.
// Responses are cut to their first 500 characters.
func RecentContext(exchanges []*Exchange) string {
	if len(exchanges) == 0 {
		return NoConversation
	}

	var sb strings.Builder
	for i, ex := range exchanges {
		fmt.Fprintf(&sb, "Exchange %d:\n", i+1)
		fmt.Fprintf(&sb, "Q: %s\n", ex.Question)
		fmt.Fprintf(&sb, "A: %s...\n\n", preview(ex.Response, contextPreviewLen))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// FormatHistory renders a full session history for display.
func FormatHistory(exchanges []*Exchange) string {
	if len(exchanges) == 0 {
		return "No conversation history yet."
	}

	var sb strings.Builder
	for i, ex := range exchanges {
		fmt.Fprintf(&sb, "\n%s - Question %d:\n", ex.Timestamp.Local().Format("15:04:05"), i+1)
		fmt.Fprintf(&sb, "Q: %s\n", ex.Question)
		fmt.Fprintf(&sb, "A: %s...\n", preview(ex.Response, displayPreviewLen))
		sb.WriteString(strings.Repeat("-", 60))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatSessionList renders sessions for display.
func FormatSessionList(sessions []*Session) string {
	if len(sessions) == 0 {
		return "No previous sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Available Sessions:\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteByte('\n')
	for i, s := range sessions {
		hasConversation := "No"
		if s.Exchanges > 0 {
			hasConversation = "Yes"
		}
		fmt.Fprintf(&sb, "\n%d. Session ID: %s\n", i+1, s.ID)
		fmt.Fprintf(&sb, "   Created: %s\n", s.Created.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(&sb, "   Project: %s\n", filepath.Base(s.ProjectRoot))
		fmt.Fprintf(&sb, "   Has conversation: %s\n", hasConversation)
	}
	return sb.String()
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
