package settlement

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// ErrReverted is returned when the resolve transaction was mined but failed.
var ErrReverted = errors.New("transaction reverted")

// ErrNoFallback is returned when a fallback client is needed but none is
// configured.
var ErrNoFallback = errors.New("no fallback rpc configured")

// Error is the structured failure of one Resolve call. Op names the step that
// failed; Attempts counts the RPC endpoints the receipt wait used.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("settlement: %s (attempts=%d): %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// isTimeout reports whether err should trigger the one fallback retry.
func isTimeout(err error) bool {
	if errors.Is(err, domain.ErrReceiptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
