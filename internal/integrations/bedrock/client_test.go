package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"genai-chat/internal/domain"
)

type fakeConverse struct {
	out     *bedrockruntime.ConverseOutput
	err     error
	lastIn  *bedrockruntime.ConverseInput
	invoked int
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastIn = in
	f.invoked++
	return f.out, f.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
		StopReason: types.StopReasonEndTurn,
	}
}

func baseRequest() domain.CompletionRequest {
	return domain.CompletionRequest{
		ModelID: "model-1",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "Hi"},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
		TopP:        1,
	}
}

func mustNewClient(t *testing.T, api converseAPI) *Client {
	t.Helper()
	c, err := New(api)
	require.NoError(t, err)
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestConverse_HappyPath(t *testing.T) {
	api := &fakeConverse{out: textOutput("Hello")}
	c := mustNewClient(t, api)

	got, err := c.Converse(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, "Hello", got.Text)
	require.Equal(t, string(types.StopReasonEndTurn), got.StopReason)
	require.Equal(t, 1, api.invoked)
}

func TestConverse_EmptyModelID(t *testing.T) {
	api := &fakeConverse{out: textOutput("Hello")}
	c := mustNewClient(t, api)
	req := baseRequest()
	req.ModelID = ""

	_, err := c.Converse(context.Background(), req)
	require.Error(t, err)
	require.Zero(t, api.invoked)
}

func TestConverse_RequestShape(t *testing.T) {
	api := &fakeConverse{out: textOutput("Hello")}
	c := mustNewClient(t, api)
	req := baseRequest()
	req.Messages = []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "Hi"},
		{Role: domain.RoleAssistant, Content: "Hello"},
		{Role: domain.RoleUser, Content: "How are you?"},
	}

	_, err := c.Converse(context.Background(), req)
	require.NoError(t, err)

	in := api.lastIn
	require.Equal(t, "model-1", *in.ModelId)
	require.Len(t, in.Messages, 3)
	require.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	require.Equal(t, types.ConversationRoleAssistant, in.Messages[1].Role)
	require.Equal(t, "How are you?",
		in.Messages[2].Content[0].(*types.ContentBlockMemberText).Value)
	require.Equal(t, int32(1024), *in.InferenceConfig.MaxTokens)
	require.Equal(t, float32(0.2), *in.InferenceConfig.Temperature)
	require.Equal(t, float32(1), *in.InferenceConfig.TopP)
}

func TestConverse_SystemBlockOnlyWhenNonEmpty(t *testing.T) {
	api := &fakeConverse{out: textOutput("Hello")}
	c := mustNewClient(t, api)

	_, err := c.Converse(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Empty(t, api.lastIn.System)

	req := baseRequest()
	req.SystemPrompt = "Answer briefly."
	_, err = c.Converse(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, api.lastIn.System, 1)
	require.Equal(t, "Answer briefly.",
		api.lastIn.System[0].(*types.SystemContentBlockMemberText).Value)
}

func TestConverse_APIError(t *testing.T) {
	api := &fakeConverse{err: errors.New("ThrottlingException")}
	c := mustNewClient(t, api)

	_, err := c.Converse(context.Background(), baseRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "converse")
}

func TestConverse_UnexpectedShapeDegradesToEmptyText(t *testing.T) {
	cases := []struct {
		name string
		out  *bedrockruntime.ConverseOutput
	}{
		{name: "nil output", out: &bedrockruntime.ConverseOutput{}},
		{name: "no content blocks", out: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{Value: types.Message{}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := mustNewClient(t, &fakeConverse{out: tc.out})
			got, err := c.Converse(context.Background(), baseRequest())
			require.NoError(t, err)
			require.Empty(t, got.Text)
		})
	}
}

func TestConverse_UsagePassthrough(t *testing.T) {
	out := textOutput("Hello")
	out.Usage = &types.TokenUsage{
		InputTokens:  aws.Int32(12),
		OutputTokens: aws.Int32(34),
	}
	c := mustNewClient(t, &fakeConverse{out: out})

	got, err := c.Converse(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, 12, *got.Usage.InputTokens)
	require.Equal(t, 34, *got.Usage.OutputTokens)
}

func TestConverse_AbsentUsageStaysAbsent(t *testing.T) {
	c := mustNewClient(t, &fakeConverse{out: textOutput("Hello")})

	got, err := c.Converse(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Nil(t, got.Usage.InputTokens)
	require.Nil(t, got.Usage.OutputTokens)
}

func TestExtractText_ReportsPresence(t *testing.T) {
	text, ok := extractText(textOutput("Hello"))
	require.True(t, ok)
	require.Equal(t, "Hello", text)

	text, ok = extractText(&bedrockruntime.ConverseOutput{})
	require.False(t, ok)
	require.Empty(t, text)

	text, ok = extractText(nil)
	require.False(t, ok)
	require.Empty(t, text)
}
