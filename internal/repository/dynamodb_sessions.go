package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"clinic-agent/internal/domain"
)

const (
	skState       = "STATE#"
	skPrefixTurn  = "TURN#"
	ttlDuration   = 30 * 24 * time.Hour // 30-day TTL
	conditionNew  = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
	sessionPrefix = "SESSION#"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoSessionStore.
// *dynamodb.Client from aws-sdk-go-v2 satisfies this interface.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoSessionStore keeps one state record per session plus an append-only
// log item per completed turn, both under the session partition.
type DynamoSessionStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func NewDynamoSessionStore(api dynamodbAPI, tableName string) (*DynamoSessionStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoSessionStore{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(id string) string {
	return sessionPrefix + id
}

func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

// Load reads the state record. An unknown session yields a fresh one.
func (c *DynamoSessionStore) Load(ctx context.Context, id string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skState},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.NewSession(id), nil
	}

	sess, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Load decode: %w", err)
	}
	sess.ID = id
	return sess, nil
}

// Save writes the turn log item and the updated state record in one transaction.
func (c *DynamoSessionStore) Save(ctx context.Context, sess domain.Session) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("repository: Save: session id is required")
	}
	now := c.now().UTC()
	sess.UpdatedAt = now

	state, err := stateItem(sess, now)
	if err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(c.tableName),
			Item:      state,
		},
	}}
	if sess.LastMessage != "" {
		items = append([]types.TransactWriteItem{{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                turnItem(sess, now),
				ConditionExpression: aws.String(conditionNew),
			},
		}}, items...)
	}

	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

func stateItem(sess domain.Session, now time.Time) (map[string]types.AttributeValue, error) {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	history, err := json.Marshal(sess.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: sessionPK(sess.ID)},
		"SK":           &types.AttributeValueMemberS{Value: skState},
		"sessionId":    &types.AttributeValueMemberS{Value: sess.ID},
		"state":        &types.AttributeValueMemberS{Value: string(state)},
		"history":      &types.AttributeValueMemberS{Value: string(history)},
		"lastMessage":  &types.AttributeValueMemberS{Value: sess.LastMessage},
		"lastReply":    &types.AttributeValueMemberS{Value: sess.LastReply},
		"lastActivity": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(sess.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(now), 10)},
	}, nil
}

func turnItem(sess domain.Session, now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sess.ID)},
		"SK":        &types.AttributeValueMemberS{Value: turnSK(now)},
		"sessionId": &types.AttributeValueMemberS{Value: sess.ID},
		"text":      &types.AttributeValueMemberS{Value: sess.LastMessage},
		"reply":     &types.AttributeValueMemberS{Value: sess.LastReply},
		"turn":      &types.AttributeValueMemberN{Value: strconv.Itoa(sess.Turns)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(now), 10)},
	}
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	var sess domain.Session

	rawState, err := strAttr(item, "state")
	if err != nil {
		return sess, err
	}
	if err := json.Unmarshal([]byte(rawState), &sess.State); err != nil {
		return sess, fmt.Errorf("repository: decode state: %w", err)
	}
	if rawHistory, err := strAttr(item, "history"); err == nil && rawHistory != "" {
		if err := json.Unmarshal([]byte(rawHistory), &sess.History); err != nil {
			return sess, fmt.Errorf("repository: decode history: %w", err)
		}
	}
	turns, err := intAttr(item, "turns")
	if err != nil {
		return sess, err
	}
	sess.Turns = turns
	sess.LastMessage, _ = strAttr(item, "lastMessage") // allow empty
	sess.LastReply, _ = strAttr(item, "lastReply")     // allow empty
	if ts, err := strAttr(item, "lastActivity"); err == nil {
		sess.UpdatedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return sess, nil
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
