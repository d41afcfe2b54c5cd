// ABOUTME: Session title derivation from the first user message
// ABOUTME: Truncates to the first eight words with an ellipsis

package chat

import "strings"

const titleWordLimit = 8

// DeriveTitle builds a session title from message content: the first
// eight words, with an ellipsis when the message was longer.
func DeriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) <= titleWordLimit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWordLimit], " ") + "…"
}
