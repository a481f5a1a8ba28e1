package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"genai-chat/internal/domain"
	"genai-chat/internal/usecase"
)

const serviceName = "genai-chat"

var corsHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,Authorization",
	"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
}

// ChatRunner is the chat flow consumed by the handler. StoreConfigured
// reports whether a turn store is wired so the configuration error can
// short-circuit before the request body is even parsed.
type ChatRunner interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	StoreConfigured() bool
}

// Handler routes API Gateway HTTP API events. It holds no mutable state and
// is safe to reuse across invocations.
type Handler struct {
	chat ChatRunner
}

func NewHandler(chat ChatRunner) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat runner must not be nil")
	}
	return &Handler{chat: chat}, nil
}

type chatRequest struct {
	SessionID    string  `json:"session_id"`
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt"`
	ModelID      string  `json:"model_id"`
	HistoryTurns int     `json:"history_turns"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

type chatResponse struct {
	SessionID  string       `json:"session_id"`
	Timestamp  int64        `json:"timestamp"`
	Response   string       `json:"response"`
	Usage      domain.Usage `json:"usage"`
	StopReason string       `json:"stopReason"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := event.RequestContext.HTTP.Method
	path := event.RawPath

	switch {
	case method == http.MethodGet && path == "/health":
		return respond(http.StatusOK, healthResponse{Status: "ok", Service: serviceName}), nil
	case method == http.MethodPost && path == "/chat":
		return h.handleChat(ctx, event), nil
	case method == http.MethodOptions:
		return respond(http.StatusOK, struct{}{}), nil
	default:
		return respond(http.StatusNotFound, errorResponse{Error: "Not Found"}), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	if !h.chat.StoreConfigured() {
		return respond(http.StatusInternalServerError, errorResponse{
			Error: string(usecase.ErrorNotConfigured),
		})
	}

	req, err := parseChatRequest(event)
	if err != nil {
		return respond(http.StatusBadRequest, errorResponse{
			Error:  string(usecase.ErrorInvalidInput),
			Detail: err.Error(),
		})
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{
		SessionID:    req.SessionID,
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		ModelID:      req.ModelID,
		HistoryTurns: req.HistoryTurns,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
	})
	if err != nil {
		status, body := mapError(err)
		slog.Error("chat request failed", "status", status, "error", err)
		return respond(status, body)
	}

	slog.Info("chat turn completed", "session_id", out.SessionID, "timestamp", out.Timestamp)
	return respond(http.StatusOK, chatResponse{
		SessionID:  out.SessionID,
		Timestamp:  out.Timestamp,
		Response:   out.Response,
		Usage:      out.Usage,
		StopReason: out.StopReason,
	})
}

func parseChatRequest(event events.APIGatewayV2HTTPRequest) (chatRequest, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return chatRequest{}, errors.New("invalid base64 body")
		}
		body = string(decoded)
	}
	if body == "" {
		// An empty body is a valid request shape; the blank prompt is
		// rejected downstream.
		return chatRequest{}, nil
	}
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return chatRequest{}, errors.New("invalid JSON body")
	}
	return req, nil
}

// mapError converts the tagged usecase taxonomy to a status code and error
// payload at the boundary; unclassified failures fall back to a generic 500.
func mapError(err error) (int, errorResponse) {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}

	body := errorResponse{Error: string(usecaseErr.Code)}
	if usecaseErr.Err != nil {
		body.Detail = usecaseErr.Err.Error()
	}

	switch usecaseErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorNotConfigured, usecase.ErrorDownstream:
		return http.StatusInternalServerError, body
	default:
		return http.StatusInternalServerError, body
	}
}

func respond(status int, body any) events.APIGatewayV2HTTPResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    corsHeaders,
		Body:       string(payload),
	}
}
