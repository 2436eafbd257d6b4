package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-recipes-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table. Email
// uniqueness is held by a guard row per address in the user_emails table.
type UserRepo struct {
	client      API
	tableName   string
	emailsTable string
	challenges  *ChallengeRepo
}

// NewUserRepo returns a repo whose credential writes consume challenges held by challenges.
func NewUserRepo(client API, tableName, emailsTable string, challenges *ChallengeRepo) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, emailsTable: emailsTable, challenges: challenges}
}

type emailGuard struct {
	Email  string `dynamodbav:"email"`
	UserID string `dynamodbav:"user_id"`
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrUserNotFound
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

// GetByEmail resolves the guard row with a consistent read, so a user created a
// moment ago is always visible.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get email guard: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrUserNotFound
	}
	var g emailGuard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, fmt.Errorf("unmarshal email guard: %w", err)
	}
	return r.Get(ctx, g.UserID)
}

// Create writes the user, its email guard and the consumption of the signup
// challenge in one transaction. Nothing is written unless all three conditions
// hold, so a failed call leaves the challenge verified for a retry.
func (r *UserRepo) Create(ctx context.Context, u *domain.User, consume domain.ChallengeRef) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	guard, err := attributevalue.MarshalMap(emailGuard{Email: u.Email, UserID: u.UserID})
	if err != nil {
		return fmt.Errorf("marshal email guard: %w", err)
	}
	consumed, err := r.challenges.consumeUpdate(consume)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: consumed},
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     guard,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#u)"),
				ExpressionAttributeNames: map[string]string{"#u": fieldUserID},
			}},
		},
	})
	if err == nil {
		return nil
	}
	if failed, ok := cancelledChecks(err); ok {
		switch {
		case failed[0]:
			return domain.ErrChallengeState
		case failed[1] || failed[2]:
			return domain.ErrUserExists
		}
	}
	return fmt.Errorf("create user: %w", err)
}

// UpdatePasswordHash replaces the hash and consumes the reset challenge in one transaction.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, userID, hash string, consume domain.ChallengeRef) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldPasswordHash: hash,
		fieldUpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.merge(map[string]string{"#uid": fieldUserID}, nil)
	consumed, err := r.challenges.consumeUpdate(consume)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: consumed},
			{Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey(fieldUserID, userID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String("attribute_exists(#uid)"),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
		},
	})
	if err == nil {
		return nil
	}
	if failed, ok := cancelledChecks(err); ok {
		switch {
		case failed[0]:
			return domain.ErrChallengeState
		case failed[1]:
			return domain.ErrUserNotFound
		}
	}
	return fmt.Errorf("update password hash: %w", err)
}

// cancelledChecks reports, per transaction item, whether its condition failed.
func cancelledChecks(err error) (map[int]bool, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	failed := make(map[int]bool, len(tce.CancellationReasons))
	for i, reason := range tce.CancellationReasons {
		failed[i] = aws.ToString(reason.Code) == "ConditionalCheckFailed"
	}
	return failed, true
}
