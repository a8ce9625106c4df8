package relay

import (
	"fmt"
	"strings"
)

// Prompt section headers.
const (
	ProjectContextHeader = "### PROJECT CONTEXT ###"
	SessionLogHeader     = "### SESSION LOG ###"
	QuestionHeader       = "### MY QUESTION ###"
)

// MissingSessionLog stands in for a session log that does not exist yet.
const MissingSessionLog = "[Session log not yet created - the terminal session hasn't started]"

const promptPreamble = `You are a world-class senior software architect helping a developer who is coding in a terminal session.

You are given context about their project and, where available, a recording of their session.
Use it to understand the project, then answer the question at the end.`

const promptClosing = "Please provide a thoughtful, actionable response that considers both the project code and the ongoing session."

// PromptInput holds the parts of a model prompt.
type PromptInput struct {
	ProjectContext string

	// SessionLog is only rendered when IncludeSessionLog is set. An empty
	// log renders as MissingSessionLog.
	SessionLog        string
	IncludeSessionLog bool

	Question string

	// Instructions replace the closing request when the answer must follow
	// a fixed format
	Instructions string
}

// BuildPrompt assembles the model prompt.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(promptPreamble)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "%s\n%s\n\n", ProjectContextHeader, in.ProjectContext)

	if in.IncludeSessionLog {
		log := in.SessionLog
		if log == "" {
			log = MissingSessionLog
		}
		fmt.Fprintf(&sb, "%s\n%s\n\n", SessionLogHeader, log)
	}

	fmt.Fprintf(&sb, "%s\n%s\n\n", QuestionHeader, in.Question)
	if in.Instructions != "" {
		sb.WriteString(in.Instructions)
		return sb.String()
	}
	sb.WriteString(promptClosing)
	return sb.String()
}

// ErrorMessage is the response written back when a request fails.
func ErrorMessage(err error) string {
	return fmt.Sprintf("⚠️ Error processing request: %v\n\n"+
		"Please check:\n"+
		"1. Your API key is valid\n"+
		"2. You have internet connectivity\n"+
		"3. The Gemini API is accessible\n"+
		"4. Your request doesn't exceed token limits", err)
}
