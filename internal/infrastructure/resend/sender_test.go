package resend

import (
	"context"
	"errors"
	"testing"

	"github.com/go-recipes-api/internal/infrastructure/notify"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmails struct{ mock.Mock }

func (m *mockEmails) SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error) {
	args := m.Called(ctx, params, options)
	out, _ := args.Get(0).(*resend.SendEmailResponse)
	return out, args.Error(1)
}

func TestNew_RequiresKeyAndFrom(t *testing.T) {
	_, err := New("", "noreply@x.com")
	assert.Error(t, err)
	_, err = New("re_123", "")
	assert.Error(t, err)
	s, err := New("re_123", "noreply@x.com")
	require.NoError(t, err)
	assert.NotNil(t, s.emails)
}

func TestSender_Deliver(t *testing.T) {
	api := &mockEmails{}
	var params *resend.SendEmailRequest
	var opts *resend.SendEmailOptions
	api.On("SendWithOptions", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			params = args.Get(1).(*resend.SendEmailRequest)
			opts = args.Get(2).(*resend.SendEmailOptions)
		}).
		Return(&resend.SendEmailResponse{Id: "e1"}, nil)

	err := NewWithAPI(api, "noreply@x.com").Deliver(context.Background(), notify.Message{
		To: "a@x.com", Subject: "Code", Body: "Use <123456>\nthanks", IdempotencyKey: " k1 ",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, params.To)
	assert.Equal(t, "noreply@x.com", params.From)
	assert.Equal(t, "Use <123456>\nthanks", params.Text)
	assert.Equal(t, "<p>Use &lt;123456&gt;<br>thanks</p>", params.Html)
	assert.Equal(t, "k1", opts.IdempotencyKey)
}

func TestSender_DeliverError(t *testing.T) {
	api := &mockEmails{}
	api.On("SendWithOptions", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	err := NewWithAPI(api, "noreply@x.com").Deliver(context.Background(), notify.Message{To: "a@x.com"})

	assert.ErrorContains(t, err, "resend send failed")
}
