package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roomlink-io/roomlink/internal/infrastructure/firebase"
)

// Bootstrap ensures the remote document tree exists.
//
// If the devices subtree is absent, it is seeded with the mirror's current
// records so later partial updates have a document to merge into. An
// existing subtree is left untouched: device reports, not startup, are
// what bring the replica up to date.
//
// Bootstrap is best-effort at the call site: a failure means the remote
// store is unreachable, which the broker already tolerates during normal
// operation. Callers typically log the error and continue.
func (e *Engine) Bootstrap(ctx context.Context) error {
	_, err := e.remote.Read(ctx, pathDevices)
	if err == nil {
		e.logger.Debug("remote device tree present, skipping bootstrap")
		return nil
	}
	if !errors.Is(err, firebase.ErrAbsent) {
		return fmt.Errorf("checking remote device tree: %w", err)
	}

	snap := e.Snapshot()
	skeleton := map[string]any{
		"door_lock":    snap.DoorLock,
		"room_control": snap.RoomControl,
	}

	if err := e.remote.Overwrite(ctx, pathDevices, skeleton); err != nil {
		return fmt.Errorf("seeding remote device tree: %w", err)
	}

	e.logger.Info("remote device tree seeded",
		"door_status", string(snap.DoorLock.Status),
		"light_mode", string(snap.RoomControl.LightMode),
	)
	return nil
}
