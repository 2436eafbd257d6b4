package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-recipes-api/internal/domain"
	"github.com/go-recipes-api/internal/pkg/id"
)

// ChallengeRepo stores one challenge per (email, purpose).
// PK: email, SK: purpose. Timestamps used in conditions are Unix seconds.
type ChallengeRepo struct {
	client     API
	tableName  string
	purgeGrace time.Duration
	now        func() time.Time
}

func NewChallengeRepo(client API, tableName string, purgeGrace time.Duration) *ChallengeRepo {
	return &ChallengeRepo{
		client:     client,
		tableName:  tableName,
		purgeGrace: purgeGrace,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *ChallengeRepo) key(email string, purpose domain.Purpose) map[string]types.AttributeValue {
	return compositeKey(fieldEmail, email, fieldPurpose, string(purpose))
}

// Upsert replaces whatever record the key holds with a fresh pending challenge.
// A write older than the stored record is rejected, so a delayed retry cannot
// resurrect a superseded code.
func (r *ChallengeRepo) Upsert(ctx context.Context, d domain.ChallengeDraft) (*domain.Challenge, error) {
	now := r.now().Truncate(time.Second)
	c := &domain.Challenge{
		Email:       d.Email,
		Purpose:     d.Purpose,
		ChallengeID: id.New(),
		CodeHash:    d.CodeHash,
		CodeSalt:    d.CodeSalt,
		DisplayName: d.DisplayName,
		State:       domain.StatePending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(d.TTL),
	}
	c.PurgeAt = c.ExpiresAt.Add(r.purgeGrace).Unix()

	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id) OR #ca <= :created"),
		ExpressionAttributeNames: map[string]string{"#id": fieldChallengeID, "#ca": fieldCreatedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":created": numVal(now.Unix()),
		},
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("newer issuance exists: %w", domain.ErrChallengeState)
	}
	if err != nil {
		return nil, fmt.Errorf("put challenge: %w", err)
	}
	return c, nil
}

func (r *ChallengeRepo) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(email, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrChallengeNotFound
	}
	var c domain.Challenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &c, nil
}

// RecordAttempt increments attempt_count. Below the last allowed attempt it is a
// plain conditional increment; the attempt that reaches limit sets the count and
// invalidates the challenge in one write. Either write fails if the challenge
// was superseded or is no longer active.
func (r *ChallengeRepo) RecordAttempt(ctx context.Context, ref domain.ChallengeRef, limit int) (int, error) {
	now := r.now()
	names := map[string]string{"#id": fieldChallengeID, "#st": fieldState, "#ac": fieldAttemptCount}
	values := map[string]types.AttributeValue{
		":id":       strVal(ref.ChallengeID),
		":pending":  strVal(string(domain.StatePending)),
		":verified": strVal(string(domain.StateVerified)),
		":last":     numVal(int64(limit - 1)),
	}
	active := "#id = :id AND #st IN (:pending, :verified)"

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(ref.Email, ref.Purpose),
		UpdateExpression:          aws.String("SET #ac = #ac + :one"),
		ConditionExpression:       aws.String(active + " AND #ac < :last"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: withValue(values, ":one", numVal(1)),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err == nil {
		return attemptCount(out.Attributes)
	}
	if !isConditionFailed(err) {
		return 0, fmt.Errorf("record attempt: %w", err)
	}

	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldAttemptCount:  limit,
		fieldState:         domain.StateInvalidated,
		fieldInvalidatedAt: now,
	})
	if err != nil {
		return 0, err
	}
	ue.merge(names, values)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(ref.Email, ref.Purpose),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(active + " AND #ac = :last"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return 0, domain.ErrChallengeState
	}
	if err != nil {
		return 0, fmt.Errorf("invalidate challenge: %w", err)
	}
	return limit, nil
}

// MarkVerified moves a live pending challenge to verified.
func (r *ChallengeRepo) MarkVerified(ctx context.Context, ref domain.ChallengeRef, limit int) (time.Time, error) {
	now := r.now()
	err := r.transition(ctx, ref, map[string]interface{}{
		fieldState:      domain.StateVerified,
		fieldVerifiedAt: now,
	}, "#st = :from AND #ea >= :now AND #ac < :limit", map[string]string{
		"#st": fieldState, "#ea": fieldExpiresAt, "#ac": fieldAttemptCount,
	}, map[string]types.AttributeValue{
		":from":  strVal(string(domain.StatePending)),
		":now":   numVal(now.Unix()),
		":limit": numVal(int64(limit)),
	})
	if err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// MarkConsumed moves a live verified challenge to consumed. Expiry is checked again here.
func (r *ChallengeRepo) MarkConsumed(ctx context.Context, ref domain.ChallengeRef) error {
	u, err := r.consumeUpdate(ref)
	if err != nil {
		return err
	}
	return r.apply(ctx, u)
}

// consumeUpdate is the conditional verified-to-consumed write. UserRepo joins it
// to the credential write in one transaction.
func (r *ChallengeRepo) consumeUpdate(ref domain.ChallengeRef) (*types.Update, error) {
	now := r.now()
	return r.conditionalUpdate(ref, map[string]interface{}{
		fieldState:      domain.StateConsumed,
		fieldConsumedAt: now,
	}, "#st = :from AND #ea >= :now", map[string]string{
		"#st": fieldState, "#ea": fieldExpiresAt,
	}, map[string]types.AttributeValue{
		":from": strVal(string(domain.StateVerified)),
		":now":  numVal(now.Unix()),
	})
}

// transition applies set if the record still carries ref's challenge ID and cond holds.
func (r *ChallengeRepo) transition(ctx context.Context, ref domain.ChallengeRef, set map[string]interface{}, cond string, names map[string]string, values map[string]types.AttributeValue) error {
	u, err := r.conditionalUpdate(ref, set, cond, names, values)
	if err != nil {
		return err
	}
	return r.apply(ctx, u)
}

func (r *ChallengeRepo) conditionalUpdate(ref domain.ChallengeRef, set map[string]interface{}, cond string, names map[string]string, values map[string]types.AttributeValue) (*types.Update, error) {
	ue, err := buildUpdateExpr(set)
	if err != nil {
		return nil, err
	}
	ue.merge(names, withValue(values, ":id", strVal(ref.ChallengeID)))
	ue.Names["#id"] = fieldChallengeID
	return &types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(ref.Email, ref.Purpose),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#id = :id AND " + cond),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	}, nil
}

func (r *ChallengeRepo) apply(ctx context.Context, u *types.Update) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 u.TableName,
		Key:                       u.Key,
		UpdateExpression:          u.UpdateExpression,
		ConditionExpression:       u.ConditionExpression,
		ExpressionAttributeNames:  u.ExpressionAttributeNames,
		ExpressionAttributeValues: u.ExpressionAttributeValues,
	})
	if isConditionFailed(err) {
		return domain.ErrChallengeState
	}
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	return nil
}

func withValue(m map[string]types.AttributeValue, k string, v types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

func attemptCount(attrs map[string]types.AttributeValue) (int, error) {
	n, ok := attrs[fieldAttemptCount].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attempt_count missing from update result")
	}
	return strconv.Atoi(n.Value)
}
