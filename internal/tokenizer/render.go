package tokenizer

import (
	"fmt"
	"strings"

	"github.com/prefpack/prefpack/pkg/models"
)

// Recognized role tags. added_user/added_assistant carry pre-rendered text
// and pass through without any template wrapping.
const (
	RoleUser           = "user"
	RoleSystem         = "system"
	RoleAssistant      = "assistant"
	RoleAddedUser      = "added_user"
	RoleAddedAssistant = "added_assistant"
)

// renderMessages flattens a chat transcript using the instruction template.
// Unknown role tags fail fast: silently dropping a turn would corrupt the
// prompt/continuation boundary that label masking depends on.
func renderMessages(messages []models.Message, eos string) (string, error) {
	var b strings.Builder
	for i, msg := range messages {
		switch msg.Role {
		case RoleUser:
			b.WriteString("[INST]")
			b.WriteString(msg.Content)
			b.WriteString("[/INST]")
		case RoleSystem:
			b.WriteString("<<SYS>>\n")
			b.WriteString(msg.Content)
			b.WriteString("\n<</SYS>>\n\n")
		case RoleAssistant:
			b.WriteString(msg.Content)
			b.WriteString(eos)
		case RoleAddedUser, RoleAddedAssistant:
			b.WriteString(msg.Content)
		default:
			return "", fmt.Errorf("unknown role %q in message %d", msg.Role, i)
		}
	}
	return b.String(), nil
}
