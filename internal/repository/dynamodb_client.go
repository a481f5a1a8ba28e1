package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"genai-chat/internal/domain"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// TurnReadWriter defines the two store operations the chat flow depends on:
// an ascending range query per session and a single-record insert.
type TurnReadWriter interface {
	QueryTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	PutTurn(ctx context.Context, turn domain.Turn) error
}

// Client wraps a DynamoDB table keyed by (session_id S, timestamp N).
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// QueryTurns returns up to limit turns for a session, oldest first. A session
// with no stored turns yields an empty slice, not an error.
func (c *Client) QueryTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("session_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: QueryTurns query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: QueryTurns unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// PutTurn inserts one turn record. Existing records are never touched; a
// same-millisecond collision within a session overwrites, an accepted
// limitation of the millisecond sort key.
func (c *Client) PutTurn(ctx context.Context, turn domain.Turn) error {
	if turn.SessionID == "" || turn.Timestamp == 0 {
		return errors.New("repository: PutTurn: session id and timestamp are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      turnItem(turn),
	})
	if err != nil {
		return fmt.Errorf("repository: PutTurn: %w", err)
	}
	return nil
}

// turnItem converts a Turn to a DynamoDB attribute map. Token counters are
// written only when the usage report carried them.
func turnItem(turn domain.Turn) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"session_id": &types.AttributeValueMemberS{Value: turn.SessionID},
		"timestamp":  &types.AttributeValueMemberN{Value: strconv.FormatInt(turn.Timestamp, 10)},
		"prompt":     &types.AttributeValueMemberS{Value: turn.Prompt},
		"response":   &types.AttributeValueMemberS{Value: turn.Response},
		"model_id":   &types.AttributeValueMemberS{Value: turn.ModelID},
	}
	if turn.Usage.InputTokens != nil {
		item["input_tokens"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*turn.Usage.InputTokens)}
	}
	if turn.Usage.OutputTokens != nil {
		item["output_tokens"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*turn.Usage.OutputTokens)}
	}
	return item
}

// itemToTurn converts a DynamoDB attribute map to a Turn. Prompt and response
// may legitimately be empty or missing on old records.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	sid, err := strAttr(item, "session_id")
	if err != nil {
		return domain.Turn{}, err
	}
	ts, err := int64Attr(item, "timestamp")
	if err != nil {
		return domain.Turn{}, err
	}
	prompt, _ := strAttr(item, "prompt")     // allow empty
	response, _ := strAttr(item, "response") // allow empty
	modelID, _ := strAttr(item, "model_id")  // allow empty

	return domain.Turn{
		SessionID: sid,
		Timestamp: ts,
		Prompt:    prompt,
		Response:  response,
		ModelID:   modelID,
		Usage:     itemUsage(item),
	}, nil
}

func itemUsage(item map[string]types.AttributeValue) domain.Usage {
	var usage domain.Usage
	if n, err := int64Attr(item, "input_tokens"); err == nil {
		v := int(n)
		usage.InputTokens = &v
	}
	if n, err := int64Attr(item, "output_tokens"); err == nil {
		v := int(n)
		usage.OutputTokens = &v
	}
	return usage
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
