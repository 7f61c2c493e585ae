package signaling

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mossy-p/castiq/internal/models"
)

// Channel is the live, bidirectional endpoint a peer is reachable on.
// Send must not block: it queues the message or fails.
type Channel interface {
	Send(data []byte) error
	IsOpen() bool
}

// Registry maps ephemeral peer ids to their channels.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]Channel
	newID func() string
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]Channel),
		newID: func() string { return uuid.New().String() },
	}
}

// Register assigns a fresh id to ch, pushes the id-assigned message onto it
// and then makes it reachable. No other sender can reach ch before the
// id-assigned message is queued.
func (r *Registry) Register(ch Channel) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for {
		if _, taken := r.peers[id]; !taken {
			break
		}
		id = r.newID()
	}

	data, err := json.Marshal(models.IDAssignedMessage{
		Type:   models.SignalTypeIDAssigned,
		UserID: id,
	})
	if err != nil {
		return "", fmt.Errorf("marshal id-assigned: %w", err)
	}
	if err := ch.Send(data); err != nil {
		return "", fmt.Errorf("send id-assigned: %w", err)
	}

	r.peers[id] = ch
	return id, nil
}

func (r *Registry) Lookup(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.peers[id]
	return ch, ok
}

// Remove drops id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
