package domain

import "strings"

// Turn is a single persisted (prompt, response) exchange. Turns are written
// once after a successful inference call and never mutated.
type Turn struct {
	SessionID string
	Timestamp int64 // epoch milliseconds, sort key
	Prompt    string
	Response  string
	ModelID   string
	Usage     Usage
}

// Messages decomposes a stored turn into at most two chat messages: the user
// prompt first, then the assistant response, each only if non-empty after
// trimming.
func (t Turn) Messages() []ChatMessage {
	msgs := make([]ChatMessage, 0, 2)
	if p := strings.TrimSpace(t.Prompt); p != "" {
		msgs = append(msgs, ChatMessage{Role: RoleUser, Content: p})
	}
	if r := strings.TrimSpace(t.Response); r != "" {
		msgs = append(msgs, ChatMessage{Role: RoleAssistant, Content: r})
	}
	return msgs
}
