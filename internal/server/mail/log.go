package mail

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LogMailer writes emails to the log instead of sending them. It is used
// when no Postmark token is configured.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mail")}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, _, link string) error {
	m.logger.Info(ctx, "verification email", "to", to, "link", link)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, _, link string) error {
	m.logger.Info(ctx, "password reset email", "to", to, "link", link)
	return nil
}

func (m *LogMailer) SendWelcome(ctx context.Context, to, _ string) error {
	m.logger.Info(ctx, "welcome email", "to", to)
	return nil
}
