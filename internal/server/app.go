// Package server assembles the auth server: it opens the database, runs
// migrations, builds the services and their clients, and runs the HTTP API,
// the gRPC health endpoint and the expired-token sweeper until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/oauth"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/storage"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	tokens *services.TokenService
	http   *httpapi.HTTPServer
	grpc   *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	tx := dbx.NewTransactor(db)
	hasher := auth.NewHasher(c.BcryptCost)
	codec := auth.NewCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)

	tokens := services.NewTokenService(tx, repos, hasher, newMailer(c, logger), services.TokenConfig{
		VerificationTTL: c.VerificationTokenValidity,
		ResetTTL:        c.ResetTokenValidity,
		PublicBaseURL:   c.PublicBaseURL,
	}, logger)

	handler := httpapi.NewHandler(httpapi.Deps{
		Identity:  services.NewIdentityService(tx, repos, hasher, tokens, logger),
		Tokens:    tokens,
		Sessions:  services.NewSessionService(tx, repos, codec),
		Accounts:  services.NewAccountService(tx, repos, hasher, logger),
		Avatars:   services.NewAvatarService(tx, repos, store, logger),
		Providers: newProviders(c),
		DB:        db,
		Metrics:   metrics.New(),
		Logger:    logger,

		SecureCookies: strings.HasPrefix(c.PublicBaseURL, "https://"),
	})

	return &App{
		config: c,
		logger: logger,
		db:     db,
		tokens: tokens,
		http:   httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, handler.Routes()),
		grpc:   gs.NewGRPCServer(c.EndpointAddrGRPC, logger, db),
	}, nil
}

// newMailer picks Postmark when a server token is configured and otherwise
// logs the links.
func newMailer(c *config.Config, logger logging.Logger) services.Mailer {
	pm := mail.NewClient(c.PostmarkServerToken, c.MailFrom)
	if pm.Configured() {
		return pm
	}
	logger.Warn(context.Background(), "POSTMARK_SERVER_TOKEN not set, emails will only be logged")
	return mail.NewLogMailer(logger)
}

func newProviders(c *config.Config) []httpapi.OAuthProvider {
	return []httpapi.OAuthProvider{
		oauth.NewGoogle(oauth.Credentials{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  c.GoogleRedirectURL,
		}),
		oauth.NewGitHub(oauth.Credentials{
			ClientID:     c.GitHubClientID,
			ClientSecret: c.GitHubClientSecret,
			RedirectURL:  c.GitHubRedirectURL,
		}),
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

type runner interface {
	Run(ctx context.Context) error
}

func (app *App) start(ctx context.Context, cancelFunc context.CancelFunc, name string, r runner) {
	if err := r.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "server", name, "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "http", app.http)
	}()
	go func() {
		defer wg.Done()
		app.start(ctx, cancelFunc, "grpc", app.grpc)
	}()
	go func() {
		defer wg.Done()
		app.tokens.RunSweeper(ctx, app.config.SweepInterval)
	}()

	wg.Wait()

	// welcome emails still in flight
	app.tokens.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close db", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
