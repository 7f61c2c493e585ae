package signaling

import (
	"encoding/json"

	"github.com/mossy-p/castiq/internal/models"
	"github.com/rs/zerolog/log"
)

// Relay forwards envelopes between registered peers. Payloads are opaque;
// only the routing fields are read, and "from" is always stamped by the server.
type Relay struct {
	registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Forward routes one raw message sent by fromID over sender.
// It never fails the sender's channel: undeliverable messages produce an
// error notice back to the sender, and malformed ones are dropped.
func (r *Relay) Forward(fromID string, sender Channel, message []byte) {
	l := log.With().Str("peer_id", fromID).Logger()

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(message, &envelope); err != nil {
		l.Warn().Err(err).Msg("Discarding unparseable signaling message")
		return
	}

	var to string
	if raw, ok := envelope["to"]; ok {
		if err := json.Unmarshal(raw, &to); err != nil {
			to = ""
		}
	}
	if to == "" {
		l.Debug().Msg("Discarding signaling message without a target")
		return
	}

	target, ok := r.registry.Lookup(to)
	if !ok {
		l.Info().Str("target_id", to).Msg("Target peer not found")
		r.notify(sender, models.ErrTargetNotFound, to)
		return
	}
	if !target.IsOpen() {
		l.Info().Str("target_id", to).Msg("Target peer not ready")
		r.notify(sender, models.ErrTargetNotReady, to)
		return
	}

	from, _ := json.Marshal(fromID)
	envelope["from"] = from

	data, err := json.Marshal(envelope)
	if err != nil {
		l.Error().Err(err).Msg("Failed to marshal envelope")
		return
	}

	if err := target.Send(data); err != nil {
		l.Warn().Err(err).Str("target_id", to).Msg("Failed to deliver envelope")
		r.notify(sender, models.ErrTargetNotReady, to)
	}
}

// notify is best effort: a sender that went away does not get its notice.
func (r *Relay) notify(sender Channel, message, targetID string) {
	data, err := json.Marshal(models.RelayError{Error: message, TargetID: targetID})
	if err != nil {
		return
	}
	if err := sender.Send(data); err != nil {
		log.Debug().Err(err).Msg("Failed to send relay error notice")
	}
}
