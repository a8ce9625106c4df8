package errpattern

import (
	"fmt"
	"strings"
)

var severityIcons = map[Severity]string{
	SeverityCritical: "🔴",
	SeverityError:    "🟡",
	SeverityWarning:  "🟠",
	SeverityInfo:     "ℹ️",
}

// FormatNotification renders a notification as a banner for the chat client.
func FormatNotification(n *Notification) string {
	if n == nil {
		return ""
	}
	rule := strings.Repeat("=", 50)

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n🚨 %s\n", rule)
	fmt.Fprintf(&sb, "⚠️  %s\n", n.Summary)
	if n.CriticalCount > 0 {
		fmt.Fprintf(&sb, "🔴 Critical: %d\n", n.CriticalCount)
	}
	if n.ErrorCount > 0 {
		fmt.Fprintf(&sb, "🟡 Errors: %d\n", n.ErrorCount)
	}
	if n.TopSuggestion != "" {
		fmt.Fprintf(&sb, "\n💡 Quick Fix: %s\n", n.TopSuggestion)
	}
	sb.WriteString(rule + "\n")
	return sb.String()
}

// FormatSuggestions renders detections as a numbered list. An empty list
// renders as an empty string.
func FormatSuggestions(dets []Detection) string {
	if len(dets) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("📋 Active Suggestions:\n")
	for i, d := range dets {
		icon, ok := severityIcons[d.Severity]
		if !ok {
			icon = "•"
		}
		fmt.Fprintf(&sb, "\n%s %d. %s\n", icon, i+1, d.Description)
		fmt.Fprintf(&sb, "   💡 %s\n", d.Suggestion)
		if d.Line > 0 {
			fmt.Fprintf(&sb, "   📍 Line %d\n", d.Line)
		}
	}
	return sb.String()
}
