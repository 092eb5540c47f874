// Package relay sequences an inbound send: validate, persist, then
// fan out to every live session of both parties.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"pairchat/internal/hub"
	"pairchat/internal/model"
	"pairchat/internal/store"
)

// ErrInvalidMessage marks a malformed or self-addressed send. Reported
// to the sender, never retried.
var ErrInvalidMessage = errors.New("invalid message")

type Dispatcher struct {
	store *store.Store
	hub   *hub.Hub
	log   *slog.Logger
}

func NewDispatcher(st *store.Store, h *hub.Hub, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{store: st, hub: h, log: log}
}

type seenEvent struct {
	By   string `json:"by"`
	With string `json:"with"`
}

// Send persists the message and pushes it to all receiver sessions,
// then echoes it to the sender's other devices. The returned message
// is the persisted one; callers must not acknowledge success unless
// err is nil. Fan-out failures are swallowed: an unreachable session
// just leaves delivered=false until the receiver comes back.
func (d *Dispatcher) Send(sender string, origin *hub.Connection, receiver, content string, kind model.MessageKind) (model.Message, error) {
	if kind == "" {
		kind = model.KindText
	}
	switch {
	case receiver == "":
		return model.Message{}, fmt.Errorf("%w: missing receiver", ErrInvalidMessage)
	case receiver == sender:
		return model.Message{}, fmt.Errorf("%w: self-addressed", ErrInvalidMessage)
	case content == "":
		return model.Message{}, fmt.Errorf("%w: empty content", ErrInvalidMessage)
	case !kind.Valid():
		return model.Message{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, kind)
	}
	if _, err := d.store.UserByID(receiver); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Message{}, fmt.Errorf("%w: unknown receiver", ErrInvalidMessage)
		}
		return model.Message{}, err
	}

	msg, err := d.store.AppendMessage(sender, receiver, content, kind)
	if err != nil {
		return model.Message{}, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return model.Message{}, err
	}
	if n := d.hub.Broadcast(receiver, "message", payload); n > 0 {
		if err := d.store.MarkDelivered(msg.ID); err != nil {
			d.log.Warn("mark delivered failed", "message", msg.ID, "error", err)
		} else {
			msg.Delivered = true
		}
	}

	// Multi-device echo so all of the sender's devices converge.
	echo, err := json.Marshal(msg)
	if err == nil {
		d.hub.BroadcastExcept(sender, origin, "message", echo)
	}
	return msg, nil
}

// Seen records that the viewer has now viewed the conversation with
// partner and notifies both parties' live sessions.
func (d *Dispatcher) Seen(viewer, partner string) error {
	changed, err := d.store.MarkSeen(viewer, partner)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}

	payload, err := json.Marshal(seenEvent{By: viewer, With: partner})
	if err != nil {
		return err
	}
	d.hub.Broadcast(partner, "seen", payload)
	d.hub.Broadcast(viewer, "seen", payload)
	return nil
}
