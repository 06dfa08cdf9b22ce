package ports

import (
	"context"

	"github.com/terminalpulse/pulsesync/internal/domain"
)

// NavigationSource executes navigation operations against the capture server.
type NavigationSource interface {
	// SwitchActive issues the authoritative switch request. Direction is +1
	// or -1; scope selects the session ("" means the active one). A server
	// without the switch operation returns domain.ErrNotFound, which tells
	// the controller to fall back to probing.
	SwitchActive(ctx context.Context, direction int, scope string) (domain.Pane, error)

	// Sessions lists all sessions with their window counts. Probing uses the
	// window count to enumerate candidate indices.
	Sessions(ctx context.Context) ([]domain.Session, error)
}
