package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"genai-chat/internal/domain"
)

// converseAPI is the minimal Bedrock Runtime interface required by Client.
// *bedrockruntime.Client satisfies it.
type converseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client is a focused Bedrock client for single-shot, non-streaming Converse
// calls.
type Client struct {
	api converseAPI
}

// New creates a Client with the given Bedrock Runtime API implementation.
func New(api converseAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	return &Client{api: api}, nil
}

// Converse performs one blocking inference call. A response whose shape
// carries no extractable text yields an empty Completion.Text rather than an
// error; transport and API failures are returned as-is for the caller to
// classify.
func (c *Client) Converse(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if req.ModelID == "" {
		return domain.Completion{}, errors.New("bedrock: model id must not be empty")
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.ModelID),
		Messages: toConverseMessages(req.Messages),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
			TopP:        aws.Float32(float32(req.TopP)),
		},
	}
	if req.SystemPrompt != "" {
		in.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	out, err := c.api.Converse(ctx, in)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("bedrock: converse: %w", err)
	}

	// Best effort: an unexpected output shape degrades to empty text, it is
	// not a failed request.
	text, _ := extractText(out)

	return domain.Completion{
		Text:       text,
		StopReason: string(out.StopReason),
		Usage:      toUsage(out.Usage),
	}, nil
}

func toConverseMessages(msgs []domain.ChatMessage) []types.Message {
	converted := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		role := types.ConversationRoleUser
		if m.Role == domain.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		converted = append(converted, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return converted
}

// extractText pulls the first text segment of the first output message. The
// boolean reports whether the response actually carried one, so callers can
// tell "empty on purpose" from "shape changed upstream".
func extractText(out *bedrockruntime.ConverseOutput) (string, bool) {
	if out == nil {
		return "", false
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(msg.Value.Content) == 0 {
		return "", false
	}
	block, ok := msg.Value.Content[0].(*types.ContentBlockMemberText)
	if !ok {
		return "", false
	}
	return block.Value, true
}

func toUsage(u *types.TokenUsage) domain.Usage {
	var usage domain.Usage
	if u == nil {
		return usage
	}
	if u.InputTokens != nil {
		v := int(*u.InputTokens)
		usage.InputTokens = &v
	}
	if u.OutputTokens != nil {
		v := int(*u.OutputTokens)
		usage.OutputTokens = &v
	}
	return usage
}
