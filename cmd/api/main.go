package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-recipes-api/internal/application/auth"
	"github.com/go-recipes-api/internal/application/challenge"
	"github.com/go-recipes-api/internal/application/credential"
	"github.com/go-recipes-api/internal/config"
	"github.com/go-recipes-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-recipes-api/internal/infrastructure/jwt"
	"github.com/go-recipes-api/internal/infrastructure/memstore"
	"github.com/go-recipes-api/internal/infrastructure/notify"
	"github.com/go-recipes-api/internal/infrastructure/resend"
	s3infra "github.com/go-recipes-api/internal/infrastructure/s3"
	"github.com/go-recipes-api/internal/infrastructure/smtp"
	"github.com/go-recipes-api/internal/infrastructure/sns"
	"github.com/go-recipes-api/internal/pkg/password"
	transporthttp "github.com/go-recipes-api/internal/transport/http"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	janitorInterval  = time.Minute
	templateCacheTTL = 5 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg, w)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}

	stores, err := newStores(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up storage", "err", err)
		return 1
	}

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up notifications", "err", err)
		return 1
	}

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		logger.Error("failed to set up session tokens", "err", err)
		return 1
	}

	issuer := challenge.NewIssuer(challenge.IssuerDeps{
		Store:    stores.challenges,
		Users:    stores.users,
		Notifier: notifier,
		Config: challenge.IssuerConfig{
			TTL:            cfg.OTP.TTL,
			ResendCooldown: cfg.OTP.ResendCooldown,
			Digits:         cfg.OTP.Digits,
			Pepper:         cfg.OTP.CodePepper,
			TestMode:       cfg.OTP.TestMode,
		},
	})
	verifier := challenge.NewVerifier(challenge.VerifierDeps{
		Store: stores.challenges,
		Config: challenge.VerifierConfig{
			MaxAttempts: cfg.OTP.MaxAttempts,
			Digits:      cfg.OTP.Digits,
			Pepper:      cfg.OTP.CodePepper,
		},
	})
	manager := credential.NewManager(credential.Deps{
		Challenges:    stores.challenges,
		Users:         stores.users,
		Hasher:        password.NewHasher(cfg.BcryptCost, cfg.HashWorkers),
		Tokens:        tokens,
		Notifier:      notifier,
		WorkerTimeout: cfg.WorkerTimeout,
	})
	svc := auth.NewService(auth.ServiceDeps{
		Issuer:           issuer,
		Verifier:         verifier,
		Credentials:      manager,
		OperationTimeout: cfg.OperationTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, svc),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.AppPort, "env", cfg.AppEnv,
			"store", cfg.StoreBackend, "notify", cfg.NotifyDriver, "test_mode", cfg.OTP.TestMode)
		return srv.ListenAndServe()
	})

	if stores.janitor != nil {
		g.Go(func() error {
			return stores.janitor(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	// Welcome mails still in flight are bounded by WorkerTimeout.
	manager.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "err", err)
		return 1
	}

	logger.Info("http server stopped successfully")
	return 0
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// userStore is satisfied by both the DynamoDB and the in-memory user directory.
type userStore interface {
	challenge.UserLookup
	credential.UserDirectory
}

type stores struct {
	challenges challenge.Store
	users      userStore
	janitor    func(ctx context.Context) error
}

func newStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == "memory" {
		slog.Warn("using in-memory store, data is lost on restart")
		challenges := memstore.NewChallengeStore(cfg.OTP.PurgeGrace)
		return &stores{
			challenges: challenges,
			users:      memstore.NewUserDirectory(challenges),
			janitor: func(ctx context.Context) error {
				return challenges.RunJanitor(ctx, janitorInterval)
			},
		}, nil
	}

	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Creates tables that do not exist yet.
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
	challenges := dynamo.NewChallengeRepo(client, cfg.DynamoTables.Challenges, cfg.OTP.PurgeGrace)
	return &stores{
		challenges: challenges,
		users:      dynamo.NewUserRepo(client, cfg.DynamoTables.Users, cfg.DynamoTables.UserEmails, challenges),
	}, nil
}

func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*notify.Gateway, error) {
	var sender notify.Sender
	switch cfg.NotifyDriver {
	case "smtp":
		sender = smtp.NewMailer(cfg)
	case "sns":
		client, err := sns.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sender = sns.NewTopicSender(client, cfg.SNSTopicARN)
	case "resend":
		s, err := resend.New(cfg.ResendAPIKey, cfg.NotifyFrom)
		if err != nil {
			return nil, err
		}
		sender = s
	default:
		sender = notify.NewLogSender(logger, cfg.OTP.TestMode && !cfg.IsProduction())
	}

	var templates notify.TemplateSource = notify.NewFSSource(notify.Defaults())
	if cfg.TemplateBucket != "" {
		client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		templates = s3infra.NewTemplateStore(client, cfg.TemplateBucket, cfg.TemplatePrefix, templates, templateCacheTTL)
	}

	return notify.NewGateway(sender, templates, cfg.NotifyRate, cfg.NotifyBurst), nil
}
