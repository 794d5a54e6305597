package secondary

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/loanflow/internal/models"
)

// DispatchGateway hands an outbound message to a transport provider. The core
// never inspects provider responses beyond delivered / failed(code); callers
// bound every Send with a timeout so a stalled provider cannot stall a tick.
type DispatchGateway interface {
	Send(ctx context.Context, channel models.Channel, template, recipient string, payload map[string]string) error
}

// DispatchError is a failed delivery outcome. Transient failures are eligible
// for retry with backoff; permanent ones are not.
type DispatchError struct {
	Code      string
	Transient bool
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %s", e.Code)
}

// Retryable classifies a Send error. Errors that are not DispatchErrors
// (timeouts, connection resets) are treated as transient.
func Retryable(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Transient
	}
	return true
}
