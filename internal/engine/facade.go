package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roomlink-io/roomlink/internal/policy"
	"github.com/roomlink-io/roomlink/internal/state"
)

// Snapshot returns a point-in-time deep copy of the device mirror.
// Safe to call concurrently with message handling.
func (e *Engine) Snapshot() state.Snapshot {
	return e.mirror.Snapshot(e.now().Unix())
}

// SubmitLightCommand publishes a light mode-change command on behalf of
// the given tag.
//
// Only the current occupant may change the lights: the tag is normalised
// and compared against the room's last granted user. The command is
// fire-and-forget; the mirror is only updated when the light reports its
// new mode back on its status topic.
//
// Returns:
//   - ErrEmptyTag: If the tag is empty after normalisation.
//   - ErrInvalidMode: If mode is not one of the supported light modes.
//   - ErrNotOccupant: If the tag is not the current occupant, or nobody
//     has been granted access yet.
func (e *Engine) SubmitLightCommand(tag, mode string) error {
	tag = policy.Normalize(tag)
	if tag == "" {
		return ErrEmptyTag
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if !state.ValidLightMode(mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	occupant := e.mirror.Occupant()
	if occupant == "" || occupant != tag {
		return ErrNotOccupant
	}

	cmd := LightCommand{
		DeviceID:    "light",
		Mode:        mode,
		RequestedBy: tag,
		RequestID:   uuid.NewString(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding light command: %w", err)
	}

	if err := e.bus.Publish(e.topics.LightCommand(), payload, e.qos, false); err != nil {
		return fmt.Errorf("publishing light command: %w", err)
	}

	e.logger.Info("light command published",
		"mode", mode,
		"requested_by", tag,
		"request_id", cmd.RequestID,
	)
	return nil
}
