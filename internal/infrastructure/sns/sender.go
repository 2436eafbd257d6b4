package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-recipes-api/internal/config"
	"github.com/go-recipes-api/internal/infrastructure/awsconf"
	"github.com/go-recipes-api/internal/infrastructure/notify"
)

// Publisher is the subset of the SNS client used here.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// envelope is the message format consumed by the mail relay subscribed to the topic.
type envelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TopicSender hands rendered notifications to an SNS topic; a subscriber
// performs the actual mail delivery.
type TopicSender struct {
	client   Publisher
	topicARN string
}

func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	endpoint := awsconf.Endpoint(cfg)
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	}), nil
}

func NewTopicSender(client Publisher, topicARN string) *TopicSender {
	return &TopicSender{client: client, topicARN: topicARN}
}

func (s *TopicSender) Deliver(ctx context.Context, msg notify.Message) error {
	body, err := json.Marshal(envelope{To: msg.To, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	in := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(msg.Subject),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"idempotency_key": {DataType: aws.String("String"), StringValue: aws.String(msg.IdempotencyKey)},
		},
	}
	if _, err := s.client.Publish(ctx, in); err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
