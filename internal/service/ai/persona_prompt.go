package ai

import (
	"fmt"
	"strings"

	"github.com/aisetech/chat-relay/backend/internal/model/persona"
)

// BuildSystemPrompt renders the system instruction that fixes the
// assistant's identity for the whole conversation.
func BuildSystemPrompt(p persona.Persona) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, %s.\n\n", p.Name, p.Title)

	b.WriteString("Character profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Tone: %s\n", p.Tone)
	if p.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", p.Description)
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "- Expertise: %s\n", strings.Join(p.Expertise, ", "))
	}

	if p.PromptHint != "" {
		fmt.Fprintf(&b, "\nGuidance: %s\n", p.PromptHint)
	}

	b.WriteString("\nStay in character at all times and keep replies suitable for a website chat widget: helpful, friendly, and reasonably short.")

	if p.OpeningLine != "" {
		fmt.Fprintf(&b, "\n\nReference opening line: %s", p.OpeningLine)
	}

	return b.String()
}
