package chat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants"
	"github.com/rs/zerolog"
)

// DefaultBroadcastWorkers sizes the hub's send pool when none is configured.
const DefaultBroadcastWorkers = 16

type member struct {
	n    protocol.Networker
	name string
}

// Hub is the server-side chat room. It tracks every open connection, answers
// pings, relays chat messages to all members and announces joins.
type Hub struct {
	protocol.ListenerBase

	pool *ants.Pool
	log  zerolog.Logger

	mu      sync.RWMutex
	members map[string]*member
}

func NewHub(workers int) (*Hub, error) {
	if workers <= 0 {
		workers = DefaultBroadcastWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("chat: broadcast pool: %w", err)
	}
	return &Hub{
		pool:    pool,
		log:     logging.New("chat"),
		members: make(map[string]*member),
	}, nil
}

// Close releases the broadcast pool.
func (h *Hub) Close() {
	h.pool.Release()
}

func (h *Hub) Connected(n protocol.Networker) {
	h.mu.Lock()
	h.members[n.ID()] = &member{n: n}
	h.mu.Unlock()
	h.log.Debug().Str("conn", n.ID()).Msg("chat.Hub.Connected")
}

func (h *Hub) Disconnected(n protocol.Networker) {
	h.mu.Lock()
	delete(h.members, n.ID())
	h.mu.Unlock()
	h.log.Debug().Str("conn", n.ID()).Msg("chat.Hub.Disconnected")
}

func (h *Hub) OnPing(n protocol.Networker, p *Ping) error {
	return n.Send(&Pong{Nonce: p.Nonce})
}

func (h *Hub) OnPong(n protocol.Networker, p *Pong) error {
	h.log.Trace().Str("conn", n.ID()).Int64("nonce", p.Nonce).Msg("chat.Hub.OnPong")
	return nil
}

// OnChat relays m to every member, the sender included. A message without a
// sender takes the name the connection joined with. Delivery failures to
// other members never fail the sender's connection.
func (h *Hub) OnChat(n protocol.Networker, m *ChatMessage) error {
	if m.From == "" {
		m.From = h.Name(n.ID())
	}
	_ = h.Broadcast(m, "")
	return nil
}

// OnJoined records the member's name and announces it to everyone else.
func (h *Hub) OnJoined(n protocol.Networker, j *Joined) error {
	h.mu.Lock()
	if m, ok := h.members[n.ID()]; ok {
		m.name = j.Name
	}
	h.mu.Unlock()
	h.log.Info().Str("conn", n.ID()).Str("name", j.Name).Msg("chat.Hub.OnJoined")
	_ = h.Broadcast(j, n.ID())
	return nil
}

// Name returns the joined name for a connection id.
func (h *Hub) Name(id string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if m, ok := h.members[id]; ok {
		return m.name
	}
	return ""
}

// Members returns the connection ids currently in the room, sorted.
func (h *Hub) Members() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.members))
	for id := range h.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Broadcast sends p to every member except the connection id skip, using the
// worker pool, and waits for all sends to finish.
func (h *Hub) Broadcast(p protocol.Packet, skip string) error {
	h.mu.RLock()
	targets := make([]protocol.Networker, 0, len(h.members))
	for id, m := range h.members {
		if id != skip {
			targets = append(targets, m.n)
		}
	}
	h.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		result *multierror.Error
	)
	record := func(err error) {
		errMu.Lock()
		result = multierror.Append(result, err)
		errMu.Unlock()
	}
	for _, target := range targets {
		target := target
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := target.Send(p); err != nil {
				record(fmt.Errorf("send to %s: %w", target.ID(), err))
			}
		}
		if err := h.pool.Submit(task); err != nil {
			wg.Done()
			record(fmt.Errorf("submit to %s: %w", target.ID(), err))
		}
	}
	wg.Wait()
	if err := result.ErrorOrNil(); err != nil {
		h.log.Warn().Err(err).Int("targets", len(targets)).Msg("chat.Hub.Broadcast partial failure")
		return err
	}
	return nil
}
