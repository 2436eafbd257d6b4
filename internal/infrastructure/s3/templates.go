package s3infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-recipes-api/internal/infrastructure/notify"
)

const maxTemplateBytes = 64 << 10

// ObjectGetter is the subset of the S3 client used to read templates.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type cachedView struct {
	view    *notify.View
	expires time.Time
}

// TemplateStore serves mail templates from <bucket>/<prefix><name>.tmpl so
// operators can change copy without a deploy. Missing or broken objects fall
// back to the templates compiled into the binary.
type TemplateStore struct {
	client   ObjectGetter
	bucket   string
	prefix   string
	fallback notify.TemplateSource
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cachedView
	nowF  func() time.Time
}

func NewTemplateStore(client ObjectGetter, bucket, prefix string, fallback notify.TemplateSource, ttl time.Duration) *TemplateStore {
	return &TemplateStore{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		fallback: fallback,
		ttl:      ttl,
		cache:    make(map[string]cachedView),
		nowF:     time.Now,
	}
}

func (s *TemplateStore) Load(ctx context.Context, name string) (*notify.View, error) {
	now := s.nowF()
	s.mu.Lock()
	c, ok := s.cache[name]
	s.mu.Unlock()
	if ok && now.Before(c.expires) {
		return c.view, nil
	}

	view, err := s.fetch(ctx, name)
	if err != nil {
		if !isMissing(err) {
			slog.Warn("template override unavailable, using default", "template", name, "err", err)
		}
		view, err = s.fallback.Load(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.cache[name] = cachedView{view: view, expires: now.Add(s.ttl)}
	s.mu.Unlock()
	return view, nil
}

func (s *TemplateStore) fetch(ctx context.Context, name string) (*notify.View, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name + ".tmpl"),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	src, err := io.ReadAll(io.LimitReader(out.Body, maxTemplateBytes))
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return notify.Parse(name, string(src))
}

// isMissing reports whether err means the override object does not exist.
// Without s3:ListBucket, S3 answers a missing key with a generic NotFound.
func isMissing(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound"
	}
	return false
}
