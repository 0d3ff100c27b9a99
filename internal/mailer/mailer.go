package mailer

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Mailer attempts delivery of a single message and reports success or
// failure. Implementations must bound how long a send can take.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes mail to the log instead of delivering it. Used in
// development when no SMTP transport is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("Mail delivery skipped (no SMTP configured)")
	return nil
}
