package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
)

// payloadKey names the field a relayed payload travels under, per kind.
// The relay never looks inside the payload itself.
var payloadKey = map[string]string{
	"offer":         "offer",
	"answer":        "answer",
	"ice-candidate": "candidate",
	"video-offer":   "offer",
	"video-answer":  "answer",
}

// Relay forwards opaque negotiation payloads between two named
// connections. Best effort: a dead target drops the payload silently,
// negotiation above this layer tolerates loss.
type Relay struct {
	Registry *Registry
}

func NewRelay(reg *Registry) *Relay {
	return &Relay{Registry: reg}
}

// Send delivers {kind, payload, sender} to target if it is live.
// Returns whether delivery was handed to the target's transport.
func (r *Relay) Send(kind string, payload json.RawMessage, from, target core.SessionID) bool {
	key, ok := payloadKey[kind]
	if !ok {
		log.Warn().Str("module", "app.relay").Str("kind", kind).Msg("unknown signal kind")
		return false
	}
	conn, ok := r.Registry.Conn(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Msg("target not live, dropped")
		return false
	}
	frame, err := json.Marshal(map[string]any{
		"type":   kind,
		key:      payload,
		"sender": from,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal relay frame")
		return false
	}
	if err := conn.TrySend(core.Frame(frame)); err != nil {
		log.Warn().Str("module", "app.relay").Str("target", string(target)).Msg("target backpressured, dropped")
		return false
	}
	return true
}
