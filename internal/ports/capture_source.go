package ports

import (
	"context"

	"github.com/terminalpulse/pulsesync/internal/domain"
)

// CaptureSource fetches a frame from the capture server on demand.
// Implementations must be idempotent and side-effect-free for reads.
type CaptureSource interface {
	// Fetch captures the pane selected by target. An empty target means the
	// server's current default pane. Errors follow the domain taxonomy:
	// ErrNotFound, ErrUnauthorized, ErrUnreachable, or *ServerError.
	Fetch(ctx context.Context, target string) (domain.Frame, error)
}
