// Package mail implements the mailer port. The default adapter records the
// intent in the log; actual delivery is handled by the ops mail relay.
package mail

import (
	"log/slog"

	"github.com/goldstream/goldstream/internal/domain"
)

// LogMailer logs outgoing mail instead of delivering it.
type LogMailer struct {
	log *slog.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log.With(slog.String("component", "mailer"))}
}

// Send logs the message envelope and parameters.
func (m *LogMailer) Send(ctx domain.Context, to, template, language string, params map[string]string) error {
	attrs := []any{
		slog.String("to", to),
		slog.String("template", template),
		slog.String("language", language),
	}
	for k, v := range params {
		attrs = append(attrs, slog.String("param_"+k, v))
	}
	m.log.InfoContext(ctx, "mail queued", attrs...)
	return nil
}
