package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-recipes-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newUserRepo(api *mockAPI) *UserRepo {
	return NewUserRepo(api, "users", "user_emails", newChallengeRepo(api))
}

func tableIs(name string) func(*dynamodb.GetItemInput) bool {
	return func(in *dynamodb.GetItemInput) bool { return aws.ToString(in.TableName) == name }
}

func TestUserRepo_GetByEmail(t *testing.T) {
	api := &mockAPI{}
	guard, _ := attributevalue.MarshalMap(emailGuard{Email: "a@x.com", UserID: "u1"})
	user, _ := attributevalue.MarshalMap(domain.User{UserID: "u1", Email: "a@x.com", DisplayName: "Ann"})
	api.On("GetItem", mock.Anything, mock.MatchedBy(tableIs("user_emails"))).Return(&dynamodb.GetItemOutput{Item: guard}, nil)
	api.On("GetItem", mock.Anything, mock.MatchedBy(tableIs("users"))).Return(&dynamodb.GetItemOutput{Item: user}, nil)

	u, err := newUserRepo(api).GetByEmail(context.Background(), "a@x.com")

	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	assert.Equal(t, "Ann", u.DisplayName)
}

func TestUserRepo_GetByEmail_Unknown(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(tableIs("user_emails"))).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := newUserRepo(api).GetByEmail(context.Background(), "a@x.com")

	assert.True(t, errors.Is(err, domain.ErrUserNotFound))
}

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(c)}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestUserRepo_Create(t *testing.T) {
	api := &mockAPI{}
	var in *dynamodb.TransactWriteItemsInput
	api.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { in = args.Get(1).(*dynamodb.TransactWriteItemsInput) }).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := newUserRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "a@x.com"}, ref)

	require.NoError(t, err)
	require.Len(t, in.TransactItems, 3)
	consume := in.TransactItems[0].Update
	require.NotNil(t, consume)
	assert.Equal(t, "otp_challenges", aws.ToString(consume.TableName))
	assert.Equal(t, "#id = :id AND #st = :from AND #ea >= :now", aws.ToString(consume.ConditionExpression))
	assert.Equal(t, strVal("c1"), consume.ExpressionAttributeValues[":id"])
	assert.Equal(t, strVal(string(domain.StateVerified)), consume.ExpressionAttributeValues[":from"])
	assert.Equal(t, "user_emails", aws.ToString(in.TransactItems[1].Put.TableName))
	assert.Equal(t, "attribute_not_exists(#e)", aws.ToString(in.TransactItems[1].Put.ConditionExpression))
	assert.Equal(t, "users", aws.ToString(in.TransactItems[2].Put.TableName))
}

func TestUserRepo_Create_EmailTaken(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled("None", "ConditionalCheckFailed", "None"))

	err := newUserRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "a@x.com"}, ref)

	assert.True(t, errors.Is(err, domain.ErrUserExists))
}

func TestUserRepo_Create_ChallengeNoLongerVerified(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled("ConditionalCheckFailed", "None", "None"))

	err := newUserRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "a@x.com"}, ref)

	assert.True(t, errors.Is(err, domain.ErrChallengeState))
}

func TestUserRepo_Create_OtherCancellation(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled("ThrottlingError"))

	err := newUserRepo(api).Create(context.Background(), &domain.User{UserID: "u1", Email: "a@x.com"}, ref)

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUserExists))
	assert.False(t, errors.Is(err, domain.ErrChallengeState))
}

func TestUserRepo_UpdatePasswordHash(t *testing.T) {
	api := &mockAPI{}
	resetRef := domain.ChallengeRef{ChallengeID: "c9", Email: "a@x.com", Purpose: domain.PurposePasswordReset}
	var in *dynamodb.TransactWriteItemsInput
	api.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { in = args.Get(1).(*dynamodb.TransactWriteItemsInput) }).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	require.NoError(t, newUserRepo(api).UpdatePasswordHash(context.Background(), "u1", "h", resetRef))

	require.Len(t, in.TransactItems, 2)
	assert.Equal(t, strVal("c9"), in.TransactItems[0].Update.ExpressionAttributeValues[":id"])
	assert.Equal(t, compositeKey(fieldEmail, "a@x.com", fieldPurpose, string(domain.PurposePasswordReset)), in.TransactItems[0].Update.Key)
	update := in.TransactItems[1].Update
	assert.Equal(t, "users", aws.ToString(update.TableName))
	assert.Equal(t, "attribute_exists(#uid)", aws.ToString(update.ConditionExpression))
	assert.Equal(t, fieldPasswordHash, update.ExpressionAttributeNames["#f0"])
}

func TestUserRepo_UpdatePasswordHash_Cancellations(t *testing.T) {
	cases := map[string]struct {
		err  error
		want error
	}{
		"challenge consumed elsewhere": {cancelled("ConditionalCheckFailed", "None"), domain.ErrChallengeState},
		"user deleted":                 {cancelled("None", "ConditionalCheckFailed"), domain.ErrUserNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			api := &mockAPI{}
			api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, tc.err)

			err := newUserRepo(api).UpdatePasswordHash(context.Background(), "u1", "h", ref)

			assert.True(t, errors.Is(err, tc.want))
		})
	}
}
