package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-recipes-api/internal/infrastructure/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestTopicSender_Deliver(t *testing.T) {
	p := &mockPublisher{}
	var in *sns.PublishInput
	p.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { in = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{MessageId: aws.String("m1")}, nil)

	err := NewTopicSender(p, "arn:aws:sns:us-east-1:000000000000:mail").Deliver(context.Background(), notify.Message{
		To: "a@x.com", Subject: "Hi", Body: "code", IdempotencyKey: "k1",
	})

	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:mail", aws.ToString(in.TopicArn))
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.Message)), &env))
	assert.Equal(t, envelope{To: "a@x.com", Subject: "Hi", Body: "code"}, env)
	assert.Equal(t, "k1", aws.ToString(in.MessageAttributes["idempotency_key"].StringValue))
}

func TestTopicSender_PublishError(t *testing.T) {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("AuthorizationError"))

	err := NewTopicSender(p, "arn").Deliver(context.Background(), notify.Message{To: "a@x.com", IdempotencyKey: "k"})

	assert.ErrorContains(t, err, "sns publish")
}
