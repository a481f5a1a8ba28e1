package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"genai-chat/internal/domain"
)

const (
	defaultModelID      = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
	defaultHistoryTurns = 10
	defaultMaxTokens    = 1024
	defaultTemperature  = 0.2
	defaultTopP         = 1.0
)

// CompletionClient is the single-call, non-streaming inference contract.
type CompletionClient interface {
	Converse(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// TurnStore defines the store operations consumed by the chat flow.
type TurnStore interface {
	QueryTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	PutTurn(ctx context.Context, turn domain.Turn) error
}

// Defaults are the process-wide generation settings applied when a request
// leaves a field unset. Zero values fall back to package defaults.
type Defaults struct {
	ModelID      string
	SystemPrompt string
	HistoryTurns int
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

type ChatInput struct {
	SessionID    string
	Prompt       string
	SystemPrompt string
	ModelID      string
	HistoryTurns int
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

type ChatOutput struct {
	SessionID  string
	Timestamp  int64
	Response   string
	Usage      domain.Usage
	StopReason string
}

// ChatService runs the full chat flow: validate, assemble history, invoke
// the inference endpoint once, record the completed turn. Everything is
// sequential and nothing is retried.
type ChatService struct {
	llm      CompletionClient
	store    TurnStore
	defaults Defaults
}

// NewChatService creates a ChatService. store may be nil when no table is
// configured; the service then rejects every chat request with a
// configuration error instead of failing at startup.
func NewChatService(llm CompletionClient, store TurnStore, defaults Defaults) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if defaults.ModelID == "" {
		defaults.ModelID = defaultModelID
	}
	if defaults.HistoryTurns <= 0 {
		defaults.HistoryTurns = defaultHistoryTurns
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = defaultMaxTokens
	}
	if defaults.Temperature == 0 {
		defaults.Temperature = defaultTemperature
	}
	if defaults.TopP == 0 {
		defaults.TopP = defaultTopP
	}
	return &ChatService{llm: llm, store: store, defaults: defaults}, nil
}

// StoreConfigured reports whether a turn store was wired at startup.
func (s *ChatService) StoreConfigured() bool {
	return s.store != nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if s.store == nil {
		return ChatOutput{}, newError(ErrorNotConfigured, "chat_table_not_configured", nil)
	}

	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "missing_prompt", nil)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newSessionID()
	}

	systemPrompt := strings.TrimSpace(in.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = s.defaults.SystemPrompt
	}
	modelID := in.ModelID
	if modelID == "" {
		modelID = s.defaults.ModelID
	}
	// Zero means "use the default", matching the loose coercion of the
	// original request contract; temperature 0 is therefore not expressible
	// per request.
	historyTurns := in.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = s.defaults.HistoryTurns
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.defaults.MaxTokens
	}
	temperature := in.Temperature
	if temperature == 0 {
		temperature = s.defaults.Temperature
	}
	topP := in.TopP
	if topP == 0 {
		topP = s.defaults.TopP
	}

	history, err := assembleHistory(ctx, s.store, sessionID, historyTurns)
	if err != nil {
		return ChatOutput{}, newError(ErrorDownstream, "history_query_error", err)
	}

	messages := append(history, domain.ChatMessage{Role: domain.RoleUser, Content: prompt})

	completion, err := s.llm.Converse(ctx, domain.CompletionRequest{
		ModelID:      modelID,
		SystemPrompt: systemPrompt,
		Messages:     messages,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		TopP:         topP,
	})
	if err != nil {
		return ChatOutput{}, newError(ErrorDownstream, "inference_error", err)
	}

	now := nowMillis()
	if err := s.store.PutTurn(ctx, domain.Turn{
		SessionID: sessionID,
		Timestamp: now,
		Prompt:    prompt,
		Response:  completion.Text,
		ModelID:   modelID,
		Usage:     completion.Usage,
	}); err != nil {
		return ChatOutput{}, newError(ErrorDownstream, "turn_write_error", err)
	}

	return ChatOutput{
		SessionID:  sessionID,
		Timestamp:  now,
		Response:   completion.Text,
		Usage:      completion.Usage,
		StopReason: completion.StopReason,
	}, nil
}

var newSessionID = func() string {
	return uuid.NewString()
}

var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}
