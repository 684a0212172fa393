package autoreply

import (
	"fmt"

	"github.com/packaginghippo/hippo/internal/assistant"
	"github.com/packaginghippo/hippo/internal/models"
)

// ClosingSentence is the fixed line the model ends the interview with.
const ClosingSentence = "Thank you! I have everything I need for your custom quote, and our sales team will reach out shortly."

const systemPromptTemplate = `You are %s, a friendly packaging specialist chatting with a visitor on the %s website.

Your goal is to collect what the sales team needs to prepare a custom packaging quote:
- product type (what goes inside the packaging)
- box type (mailer, folding carton, rigid box, shipping box, ...)
- size (length x width x height, with units)
- quantity
- material (kraft, white cardboard, corrugated, ...)
- finishing (printing, foil, embossing, lamination, ...)
- timeline (when they need the boxes)

Rules:
- Ask for ONE missing item at a time.
- Keep every reply to 2-3 short sentences.
- Never invent prices, discounts, lead times or delivery dates. If asked, say the sales team will confirm them in the quote.
- If the visitor already gave an item, do not ask for it again.
- When you have enough information, reply with exactly this sentence followed by %s and nothing else:
%s`

// SystemPrompt returns the instructions sent ahead of the conversation.
func SystemPrompt(agentName, siteName string) string {
	if agentName == "" {
		agentName = "a sales assistant"
	}
	if siteName == "" {
		siteName = "Packaging Hippo"
	}
	return fmt.Sprintf(systemPromptTemplate, agentName, siteName, QuoteReadyMarker, ClosingSentence)
}

// BuildMessages converts the message log into completion input: the system
// prompt first, then visitor messages as user turns and everything else as
// assistant turns.
func BuildMessages(systemPrompt string, history []models.Message) []assistant.Message {
	out := make([]assistant.Message, 0, len(history)+1)
	out = append(out, assistant.Message{Role: assistant.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		role := assistant.RoleAssistant
		if m.Sender == models.SenderVisitor {
			role = assistant.RoleUser
		}
		out = append(out, assistant.Message{Role: role, Content: m.Content})
	}
	return out
}
