package usecase

import (
	"context"
	"math"

	"genai-chat/internal/domain"
)

// historyOverFetch is the raw-record multiple queried per requested turn.
// Stored turns can contribute zero, one, or two messages, so the query
// over-fetches and the last turnLimit raw records are kept. The heuristic is
// not compensated: a window full of one-sided turns still yields fewer than
// 2*turnLimit messages, and no re-query happens.
const historyOverFetch = 50

// assembleHistory returns the prior turns of a session as an alternating
// user/assistant message sequence, oldest first. A session with no stored
// turns yields an empty sequence; store failures propagate to the caller.
func assembleHistory(ctx context.Context, store TurnStore, sessionID string, turnLimit int) ([]domain.ChatMessage, error) {
	if turnLimit < 1 {
		turnLimit = 1
	}
	fetch := turnLimit * historyOverFetch
	// A caller-supplied turn limit can push the over-fetch window past what
	// the store accepts; cap it instead of letting the multiply wrap.
	if fetch/historyOverFetch != turnLimit || fetch > math.MaxInt32 {
		fetch = math.MaxInt32
	}
	turns, err := store.QueryTurns(ctx, sessionID, fetch)
	if err != nil {
		return nil, err
	}
	if len(turns) > turnLimit {
		turns = turns[len(turns)-turnLimit:]
	}

	msgs := make([]domain.ChatMessage, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs, t.Messages()...)
	}
	return msgs, nil
}
