package mqtt

import (
	"context"
	"log/slog"
	"time"
)

// Epoch identifies one continuous period of broker connectivity, bounded by a connect and the next disconnect. Each
// successful (re)connection starts a new Epoch with a larger Sequence. It implements slog.LogValuer.
type Epoch struct {
	// ID is unique per Epoch, across process restarts.
	ID string
	// Sequence counts connections made by this process, starting at 1.
	Sequence uint64
	// Started is when the connection was acknowledged by the broker.
	Started time.Time
}

func (e Epoch) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", e.ID),
		slog.Uint64("seq", e.Sequence),
		slog.Time("started", e.Started),
	)
}

// EpochHandler is notified every time a new Epoch begins. Notifiers call each handler on its own goroutine, so a handler
// may publish and block on the broker without stalling the connection.
type EpochHandler func(ctx context.Context, epoch Epoch)

// EpochNotifier delivers connection epoch changes to registered handlers.
type EpochNotifier interface {
	// OnEpoch registers a handler for future epochs. If a connection is already established, the handler is invoked
	// for the current Epoch as well.
	OnEpoch(handler EpochHandler)
}
