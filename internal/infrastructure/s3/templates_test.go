package s3infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-recipes-api/internal/infrastructure/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGetter struct{ mock.Mock }

func (m *mockGetter) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key))
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func object(src string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(src))}
}

func newStore(g *mockGetter) *TemplateStore {
	return NewTemplateStore(g, "mail", "tpl/", notify.NewFSSource(notify.Defaults()), time.Minute)
}

func render(t *testing.T, v *notify.View) string {
	t.Helper()
	s, err := v.Render(notify.ElementSubject, nil)
	require.NoError(t, err)
	return s
}

func TestTemplateStore_UsesOverride(t *testing.T) {
	g := &mockGetter{}
	g.On("GetObject", mock.Anything, "mail", "tpl/welcome.tmpl").
		Return(object(`{{define "subject"}}Custom{{end}}{{define "body"}}b{{end}}`), nil).Once()

	s := newStore(g)
	v, err := s.Load(context.Background(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Custom", render(t, v))

	_, err = s.Load(context.Background(), "welcome")
	require.NoError(t, err)
	g.AssertNumberOfCalls(t, "GetObject", 1)
}

func TestTemplateStore_CacheExpires(t *testing.T) {
	g := &mockGetter{}
	g.On("GetObject", mock.Anything, "mail", "tpl/welcome.tmpl").Return(nil, &types.NoSuchKey{})

	s := newStore(g)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return base }
	_, err := s.Load(context.Background(), "welcome")
	require.NoError(t, err)

	s.nowF = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = s.Load(context.Background(), "welcome")
	require.NoError(t, err)
	g.AssertNumberOfCalls(t, "GetObject", 2)
}

func TestTemplateStore_FallsBackOnMissingObject(t *testing.T) {
	g := &mockGetter{}
	g.On("GetObject", mock.Anything, "mail", "tpl/signup_code.tmpl").Return(nil, &types.NoSuchKey{})

	v, err := newStore(g).Load(context.Background(), "signup_code")

	require.NoError(t, err)
	assert.Equal(t, "Your sign-up code", render(t, v))
}

func TestTemplateStore_FallsBackOnBrokenOverride(t *testing.T) {
	g := &mockGetter{}
	g.On("GetObject", mock.Anything, "mail", "tpl/welcome.tmpl").Return(object(`{{define "subject"}}no body{{end}}`), nil)

	v, err := newStore(g).Load(context.Background(), "welcome")

	require.NoError(t, err)
	assert.Equal(t, "Welcome to the kitchen", render(t, v))
}

func TestTemplateStore_UnknownEverywhere(t *testing.T) {
	g := &mockGetter{}
	g.On("GetObject", mock.Anything, "mail", "tpl/nope.tmpl").Return(nil, errors.New("access denied"))

	_, err := newStore(g).Load(context.Background(), "nope")

	assert.Error(t, err)
}

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(fmt.Errorf("s3 get object: %w", &types.NoSuchKey{})))
	assert.True(t, isMissing(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isMissing(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isMissing(errors.New("dial tcp: timeout")))
}
