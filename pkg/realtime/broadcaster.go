package realtime

import (
	"log/slog"
)

// Broadcaster fans events out to registry rooms. Every call is fire-and-forget:
// the only error is a payload that cannot be encoded. Rooms without members
// and peers that are gone or backed up silently drop the message.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// EmitToUser reaches every live connection of userID.
func (b *Broadcaster) EmitToUser(userID, event string, payload any) error {
	return b.emit(b.registry.peersIn(userID), "user:"+userID, event, payload)
}

// EmitToRole reaches every connection in a shared role room such as RoomManagers.
func (b *Broadcaster) EmitToRole(room, event string, payload any) error {
	return b.emit(b.registry.peersIn(room), "room:"+room, event, payload)
}

func (b *Broadcaster) Broadcast(event string, payload any) error {
	return b.emit(b.registry.allPeers(), "all", event, payload)
}

func (b *Broadcaster) emit(peers []Peer, target, event string, payload any) error {
	msg, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	delivered := 0
	for _, p := range peers {
		if p.Send(msg) {
			delivered++
		}
	}

	b.logger.Debug("realtime event dispatched",
		"event", event,
		"target", target,
		"delivered", delivered,
		"dropped", len(peers)-delivered,
	)
	return nil
}
