package chat

import (
	"fmt"
	"strings"

	"github.com/futig/docchat-backend/internal/entity"
)

const promptInstructions = "Use the pieces of information provided in the context to answer user's question.\n" +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer."

// passage is a retrieved chunk with the name of the file it came from.
type passage struct {
	filename string
	text     string
}

func buildPrompt(passages []passage, history []entity.Message, question string) string {
	var b strings.Builder

	b.WriteString(promptInstructions)
	b.WriteString("\n\nContext:\n")
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n", i+1, p.filename, strings.TrimSpace(p.text))
	}

	if len(history) > 0 {
		b.WriteString("\nChat history:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nHelpful answer:", question)
	return b.String()
}

// lastMessages returns at most n trailing messages.
func lastMessages(messages []entity.Message, n int) []entity.Message {
	if n <= 0 {
		return nil
	}
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// transcript renders a session as plain text with "## " headings per message.
func transcript(session *entity.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Created: %s\n", session.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Last updated: %s\n", session.LastUpdated.Format("2006-01-02 15:04"))

	for _, m := range session.Messages {
		role := "User"
		if m.Role == entity.MessageRoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "\n## %s (%s)\n\n%s\n", role, m.CreatedAt.Format("15:04:05"), m.Content)

		if len(m.Sources) > 0 {
			b.WriteString("\nSources:\n")
			for _, s := range m.Sources {
				fmt.Fprintf(&b, "- %s (score %.2f)\n", s.Filename, s.Score)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
