// Package relay propagates votes, requests, and lock events to connected
// operator dashboards and implements the txlock.Relayer contract.
package relay

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rawblock/txlock-engine/internal/txlock"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard runs same-origin or behind a reverse proxy
	},
}

// Event is the JSON frame broadcast to subscribers.
type Event struct {
	Kind      string `json:"kind"`
	TxHash    string `json:"txHash,omitempty"`
	OtherHash string `json:"otherHash,omitempty"`
	Outpoint  string `json:"outpoint,omitempty"`
	VoteHash  string `json:"voteHash,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of active websocket clients and broadcasts lock
// events. Adapted from the teacher's dashboard push-feed Hub: same client
// map / broadcast channel / write-deadline shape, retargeted to carry
// Event frames instead of CoinJoin alerts.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[relay] websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an inbound HTTP request to a websocket connection and
// registers it as a broadcast recipient.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[relay] failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("[relay] new subscriber connected, total %d", len(h.clients))

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("[relay] subscriber disconnected, total %d", len(h.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[relay] websocket error: %v", err)
				}
				break
			}
		}
	}()
}

func (h *Hub) broadcastEvent(e Event) {
	e.Timestamp = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[relay] failed to marshal event: %v", err)
		return
	}
	h.broadcast <- data
}

// RelayInv satisfies txlock.Relayer: announces a vote's identity hash.
func (h *Hub) RelayInv(voteHash txlock.VoteHash) {
	h.broadcastEvent(Event{Kind: "vote.relayed", VoteHash: hex(voteHash[:])})
}

// RelayTransaction satisfies txlock.Relayer: announces a lock request's
// transaction to subscribers.
func (h *Hub) RelayTransaction(tx *wire.MsgTx) {
	h.broadcastEvent(Event{Kind: "request.relayed", TxHash: tx.TxHash().String()})
}

// RelayLockCompleted satisfies txlock.Relayer: a candidate finished
// collecting quorum and committed.
func (h *Hub) RelayLockCompleted(txHash txlock.TxHash) {
	h.broadcastEvent(Event{Kind: "lock.completed", TxHash: txHash.String()})
}

// RelayDoubleLock satisfies txlock.Relayer: two already-locked candidates
// conflicted and were both dropped.
func (h *Hub) RelayDoubleLock(a, b txlock.TxHash, outpoint txlock.Outpoint) {
	h.broadcastEvent(Event{Kind: "lock.conflict", TxHash: a.String(), OtherHash: b.String(), Outpoint: outpoint.String()})
}

func hex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}
