package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goCred/session"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrTokenHash = "token_hash"

	conditionAbsent = "attribute_not_exists(token_hash)"
	conditionExists = "attribute_exists(token_hash)"
	conditionActive = "attribute_exists(token_hash) AND revoked = :false AND expires_at >= :now"
)

// API is the subset of the DynamoDB client used by [Store].
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type item struct {
	TokenHash string `dynamodbav:"token_hash"`
	SessionID string `dynamodbav:"session_id"`
	OwnerID   string `dynamodbav:"owner_id"`
	CreatedAt int64  `dynamodbav:"created_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	Revoked   bool   `dynamodbav:"revoked"`
	IPAddress string `dynamodbav:"ip_address,omitempty"`
	UserAgent string `dynamodbav:"user_agent,omitempty"`
	TTL       int64  `dynamodbav:"ttl"`
}

// Store is a DynamoDB-backed session repository.
type Store struct {
	client    API
	tableName string
	retention time.Duration
}

func New(client API, tableName string, retention time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		retention: retention,
	}
}

func hashKey(hash session.TokenHash) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrTokenHash: &types.AttributeValueMemberS{Value: hash.String()},
	}
}

func (s *Store) toItem(sess *session.Session) item {
	return item{
		TokenHash: sess.TokenHash.String(),
		SessionID: sess.ID,
		OwnerID:   sess.OwnerID,
		CreatedAt: sess.CreatedAt.UnixMilli(),
		ExpiresAt: sess.ExpiresAt.UnixMilli(),
		Revoked:   sess.Revoked,
		IPAddress: sess.IPAddress,
		UserAgent: sess.UserAgent,
		TTL:       sess.ExpiresAt.Add(s.retention).Unix(),
	}
}

func fromItem(hash session.TokenHash, it item) *session.Session {
	return &session.Session{
		ID:        it.SessionID,
		TokenHash: hash,
		OwnerID:   it.OwnerID,
		CreatedAt: time.UnixMilli(it.CreatedAt),
		ExpiresAt: time.UnixMilli(it.ExpiresAt),
		Revoked:   it.Revoked,
		IPAddress: it.IPAddress,
		UserAgent: it.UserAgent,
	}
}

func (s *Store) marshal(sess *session.Session) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(s.toItem(sess))
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return av, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	av, err := s.marshal(sess)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String(conditionAbsent),
	})
	if err != nil {
		if isConditionFailed(err) {
			return session.ErrConflict
		}
		return unavailable(err)
	}
	return nil
}

func (s *Store) FindByToken(ctx context.Context, hash session.TokenHash) (*session.Session, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            hashKey(hash),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable(err)
	}
	if out.Item == nil {
		return nil, session.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrCorrupt, err)
	}
	return fromItem(hash, it), nil
}

func (s *Store) Revoke(ctx context.Context, hash session.TokenHash) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 hashKey(hash),
		UpdateExpression:    aws.String("SET revoked = :true"),
		ConditionExpression: aws.String(conditionExists),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return session.ErrNotFound
		}
		return unavailable(err)
	}
	return nil
}

// Rotate revokes oldHash and puts next in one transaction.
func (s *Store) Rotate(ctx context.Context, oldHash session.TokenHash, next *session.Session, now time.Time) error {
	av, err := s.marshal(next)
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(s.tableName),
					Key:                 hashKey(oldHash),
					UpdateExpression:    aws.String("SET revoked = :true"),
					ConditionExpression: aws.String(conditionActive),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":true":  &types.AttributeValueMemberBOOL{Value: true},
						":false": &types.AttributeValueMemberBOOL{Value: false},
						":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                av,
					ConditionExpression: aws.String(conditionAbsent),
				},
			},
		},
	})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return unavailable(err)
	}
	reasons := canceled.CancellationReasons
	oldFailed := len(reasons) > 0 && aws.ToString(reasons[0].Code) == "ConditionalCheckFailed"
	nextFailed := len(reasons) > 1 && aws.ToString(reasons[1].Code) == "ConditionalCheckFailed"
	switch {
	case oldFailed:
		return s.inactiveReason(ctx, oldHash, now)
	case nextFailed:
		return session.ErrConflict
	}
	return unavailable(err)
}

func (s *Store) inactiveReason(ctx context.Context, hash session.TokenHash, now time.Time) error {
	sess, err := s.FindByToken(ctx, hash)
	if err != nil {
		return err
	}
	if sess.Revoked {
		return session.ErrRevoked
	}
	if sess.ExpiresAt.Before(now) {
		return session.ErrExpired
	}
	return session.ErrRevoked
}
