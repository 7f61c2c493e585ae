package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/castiq/internal/models"
	"github.com/mossy-p/castiq/internal/signaling"
	"github.com/mossy-p/castiq/internal/store"
	"github.com/rs/zerolog/log"
)

const presenceTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// HandleSignaling upgrades the request, registers the peer and relays its
// messages until the connection closes.
func HandleSignaling(registry *signaling.Registry, relay *signaling.Relay, presence store.PresenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to upgrade connection")
			return
		}

		client := signaling.NewClient(conn)
		peerID, err := registry.Register(client)
		if err != nil {
			log.Error().Err(err).Msg("Failed to register peer")
			client.Close()
			conn.Close()
			return
		}
		client.ID = peerID

		setPresence(presence.MarkOnline, peerID)
		log.Info().Str("peer_id", peerID).Int("peers", registry.Len()).Msg("Peer connected")

		go client.WritePump()
		go client.ReadPump(
			func(message []byte) {
				relay.Forward(peerID, client, message)
			},
			func() {
				registry.Remove(peerID)
				setPresence(presence.MarkOffline, peerID)
				log.Info().Str("peer_id", peerID).Int("peers", registry.Len()).Msg("Peer disconnected")
			},
		)
	}
}

func setPresence(update func(ctx context.Context, peerID string) error, peerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := update(ctx, peerID); err != nil {
		log.Warn().Err(err).Str("peer_id", peerID).Msg("Failed to update presence")
	}
}

// PeerStatus reports whether a peer id currently holds a signaling connection.
func PeerStatus(registry *signaling.Registry, presence store.PresenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		peerID := c.Param("peerId")

		if _, ok := registry.Lookup(peerID); ok {
			c.JSON(http.StatusOK, models.PeerStatus{PeerID: peerID, Online: true})
			return
		}

		online, err := presence.IsOnline(c.Request.Context(), peerID)
		if err != nil {
			log.Error().Err(err).Str("peer_id", peerID).Msg("Presence lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Presence lookup failed"})
			return
		}
		c.JSON(http.StatusOK, models.PeerStatus{PeerID: peerID, Online: online})
	}
}
