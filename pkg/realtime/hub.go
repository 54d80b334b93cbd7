// Package realtime pushes JSON events to connected WebSocket clients.
//
// Each connection joins a fixed set of groups at connect time: its user
// target, its role group and, for sellers, the seller group. Events are
// addressed to one group. With a Broker configured, every Emit goes through a
// redis channel so all API instances deliver to their own connections.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/metrics"
)

const (
	EventNotification        = "notification"
	EventKYCApproved         = "kycApproved"
	EventKYCRejected         = "kycRejected"
	EventSettlementProcessed = "settlementProcessed"
	EventOrderRefunded       = "orderRefunded"
	EventDisputeResolved     = "disputeResolved"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingPeriod   = 30 * time.Second
	defaultSendBuffer   = 32
	maxInboundBytes     = 4096
)

// ErrHubClosed is returned when connecting to a hub after Close.
var ErrHubClosed = errors.New("realtime hub closed")

// UserTarget addresses every connection of one user.
func UserTarget(id uuid.UUID) string { return "user:" + id.String() }

// SellerTarget addresses the seller group of one seller.
func SellerTarget(id uuid.UUID) string { return "seller:" + id.String() }

// RoleTarget addresses every connection with the given role.
func RoleTarget(role enums.UserRole) string { return "role:" + string(role) }

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (i Identity) groups() []string {
	groups := []string{UserTarget(i.UserID), RoleTarget(i.Role)}
	if i.Role == enums.UserRoleSeller {
		groups = append(groups, SellerTarget(i.UserID))
	}
	return groups
}

// Message is the frame written to clients.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type fanoutEnvelope struct {
	Target  string          `json:"target"`
	Event   string          `json:"event"`
	Message json.RawMessage `json:"message"`
}

// Emitter is the narrow surface domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, target, event string, data any) error
}

// Broker carries events between API instances.
type Broker interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
	ChannelName(name string) string
}

type Options struct {
	Config  config.RealtimeConfig
	Logger  *logger.Logger
	Metrics *metrics.RealtimeMetrics
	// Broker enables cross-instance fan-out when non-nil.
	Broker Broker
}

type Hub struct {
	logg     *logger.Logger
	metrics  *metrics.RealtimeMetrics
	broker   Broker
	channel  string
	upgrader websocket.Upgrader

	writeTimeout time.Duration
	pingPeriod   time.Duration
	sendBuffer   int

	mu     sync.RWMutex
	groups map[string]map[*client]struct{}
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(opts Options) *Hub {
	cfg := opts.Config
	h := &Hub{
		logg:         opts.Logger,
		metrics:      opts.Metrics,
		broker:       opts.Broker,
		writeTimeout: cfg.WriteTimeout,
		pingPeriod:   cfg.PingPeriod,
		sendBuffer:   cfg.SendBuffer,
		groups:       make(map[string]map[*client]struct{}),
		done:         make(chan struct{}),
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.pingPeriod <= 0 {
		h.pingPeriod = defaultPingPeriod
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.broker != nil {
		name := cfg.Channel
		if name == "" {
			name = "realtime"
		}
		h.channel = h.broker.ChannelName(name)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Run consumes the fan-out channel until ctx is done or the hub is closed.
// Without a broker it only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		return nil
	}

	sub, err := h.broker.Subscribe(ctx, h.channel)
	if err != nil {
		return fmt.Errorf("realtime subscribe: %w", err)
	}
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.warn(ctx, "realtime fan-out message dropped", err)
				continue
			}
			h.deliver(env.Target, env.Event, env.Message)
		}
	}
}

// Close disconnects every client. Safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		h.closed = true
		seen := make(map[*client]struct{})
		for _, members := range h.groups {
			for c := range members {
				seen[c] = struct{}{}
			}
		}
		h.groups = make(map[string]map[*client]struct{})
		h.mu.Unlock()
		for c := range seen {
			c.shutdown()
		}
	})
}

// Emit addresses data to target. Delivery is at-most-once; a missing
// recipient is not an error.
func (h *Hub) Emit(ctx context.Context, target, event string, data any) error {
	frame, err := encodeMessage(event, data)
	if err != nil {
		return err
	}
	if h.broker == nil {
		h.deliver(target, event, frame)
		return nil
	}

	payload, err := json.Marshal(fanoutEnvelope{Target: target, Event: event, Message: frame})
	if err != nil {
		return err
	}
	if err := h.broker.Publish(ctx, h.channel, payload); err != nil {
		h.deliver(target, event, frame)
		return fmt.Errorf("realtime publish: %w", err)
	}
	return nil
}

// IsOnline reports whether this instance holds a connection for the user.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[UserTarget(userID)]) > 0
}

// ServeWS upgrades the request and attaches the connection under id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id Identity) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		groups: id.groups(),
		done:   make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.Close()
		return ErrHubClosed
	}
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, g := range c.groups {
		members, ok := h.groups[g]
		if !ok {
			members = make(map[*client]struct{})
			h.groups[g] = members
		}
		members[c] = struct{}{}
	}
	h.metrics.Connected()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	removed := false
	for _, g := range c.groups {
		members, ok := h.groups[g]
		if !ok {
			continue
		}
		if _, ok := members[c]; ok {
			delete(members, c)
			removed = true
		}
		if len(members) == 0 {
			delete(h.groups, g)
		}
	}
	h.mu.Unlock()
	if removed {
		h.metrics.Disconnected()
	}
}

func (h *Hub) deliver(target, event string, frame []byte) {
	h.mu.RLock()
	members := make([]*client, 0, len(h.groups[target]))
	for c := range h.groups[target] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		select {
		case c.send <- frame:
			h.metrics.Delivered(event)
		default:
			h.metrics.Dropped()
		}
	}
}

func (h *Hub) warn(ctx context.Context, msg string, err error) {
	if h.logg == nil {
		return
	}
	h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), msg)
}

func encodeMessage(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
