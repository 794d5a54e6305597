// Package dispatch contains DispatchGateway adapters. Real WhatsApp/SMS/
// Email transports live outside this repository; the core only sees the
// three-way delivered / failed(code) / error outcome.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/secondary"
)

// LogGateway is a gateway that records sends to the structured log and
// reports them delivered. Used for local runs and as the default wiring when
// no transport is configured.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a new log-only gateway.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// Send logs the outbound message and reports success.
func (g *LogGateway) Send(ctx context.Context, channel models.Channel, template, recipient string, payload map[string]string) error {
	g.logger.InfoContext(ctx, "dispatching message",
		"channel", string(channel),
		"template", template,
		"recipient", recipient,
	)
	return nil
}

// Ensure LogGateway implements the interface
var _ secondary.DispatchGateway = (*LogGateway)(nil)
