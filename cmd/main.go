package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsbedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"genai-chat/handler"
	"genai-chat/internal/integrations/bedrock"
	"genai-chat/internal/integrations/paramstore"
	"genai-chat/internal/repository"
	"genai-chat/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	chatTable := os.Getenv("CHAT_TABLE")
	region := os.Getenv("AWS_REGION")
	modelID := os.Getenv("MODEL_ID")
	historyTurns := envInt("HISTORY_TURNS", 10)
	maxTokens := envInt("MAX_TOKENS", 1024)
	temperature := envFloat("TEMPERATURE", 0.2)
	topP := envFloat("TOP_P", 1)
	systemPromptParam := os.Getenv("SYSTEM_PROMPT_PARAM")

	// ---- AWS SDK config ----
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	// A missing table name is not fatal: the chat flow answers each request
	// with a configuration error instead.
	var store usecase.TurnStore
	if chatTable != "" {
		turnClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), chatTable)
		if err != nil {
			slog.Error("failed to create turn store", "err", err)
			os.Exit(1)
		}
		store = turnClient
	} else {
		slog.Warn("CHAT_TABLE not configured, chat requests will be rejected")
	}

	llm, err := bedrock.New(awsbedrockruntime.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create bedrock client", "err", err)
		os.Exit(1)
	}

	systemPrompt := ""
	if systemPromptParam != "" {
		ps, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			slog.Error("failed to create paramstore client", "err", err)
			os.Exit(1)
		}
		systemPrompt, err = ps.GetParameter(ctx, systemPromptParam)
		if err != nil {
			slog.Error("failed to load default system prompt", "err", err)
			os.Exit(1)
		}
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(llm, store, usecase.Defaults{
		ModelID:      modelID,
		SystemPrompt: systemPrompt,
		HistoryTurns: historyTurns,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		TopP:         topP,
	})
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
