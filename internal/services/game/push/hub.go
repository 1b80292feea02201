// Package push fans game results out to websocket subscribers and accepts
// player actions from connected clients.
//
// Clients subscribe to room channels for group encounter updates and to
// player channels for solo combat updates. Every frame is a JSON Frame.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/platform/i18n/catalog"
	platformotel "github.com/louisbranch/delving.space/internal/platform/otel"
	"github.com/louisbranch/delving.space/internal/platform/timeouts"
	"github.com/louisbranch/delving.space/internal/services/game/domain/action"
	"github.com/louisbranch/delving.space/internal/services/game/domain/combat"
	"github.com/louisbranch/delving.space/internal/services/game/domain/group"
)

var tracer = platformotel.Tracer("game/push")

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	sendQueueSize = 64
)

// Outcome is what one dispatched action produced.
type Outcome struct {
	Group  *group.MessageResult
	Combat *combat.ActionResult
}

// Dispatcher resolves actions and commands received over the socket.
type Dispatcher interface {
	Dispatch(ctx context.Context, a action.Action) (Outcome, error)
	Execute(ctx context.Context, c Command) (CommandResult, error)
}

// Options configures a Hub.
type Options struct {
	// OriginPatterns lists extra hosts allowed to open cross-origin sockets.
	OriginPatterns []string
	// Dispatcher handles action and command frames. Nil rejects them.
	Dispatcher Dispatcher
	// AdminCommands accepts "admin." commands from any peer.
	AdminCommands bool
	Clock         func() time.Time
}

// Hub tracks websocket peers and the channels they subscribe to.
type Hub struct {
	origins    []string
	dispatcher Dispatcher
	admin      bool
	clock      func() time.Time

	mu       sync.Mutex
	peers    map[*peer]struct{}
	channels map[string]map[*peer]struct{}
	closed   bool
}

// New returns an empty hub.
func New(opts Options) *Hub {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Hub{
		origins:    opts.OriginPatterns,
		dispatcher: opts.Dispatcher,
		admin:      opts.AdminCommands,
		clock:      clock,
		peers:      make(map[*peer]struct{}),
		channels:   make(map[string]map[*peer]struct{}),
	}
}

type peer struct {
	conn   *websocket.Conn
	locale string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	// subs is guarded by Hub.mu.
	subs map[string]struct{}

	closeCode   websocket.StatusCode
	closeReason string
}

func (p *peer) enqueue(b []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- b:
		return true
	default:
		return false
	}
}

// close stops the peer. The write loop flushes queued frames and then
// closes the socket with code.
func (p *peer) close(code websocket.StatusCode, reason string) {
	p.once.Do(func() {
		p.closeCode = code
		p.closeReason = reason
		close(p.done)
	})
}

func (p *peer) writeLoop() {
	defer func() {
		_ = p.conn.Close(p.closeCode, p.closeReason)
	}()
	for {
		select {
		case b := <-p.send:
			if !p.write(b) {
				p.close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-p.done:
			for {
				select {
				case b := <-p.send:
					if !p.write(b) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (p *peer) write(b []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.PushWrite)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, b) == nil
}

// reply queues a frame for the peer alone.
func (p *peer) reply(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		log.Printf("push: marshal %s frame: %v", f.Type, err)
		return
	}
	if !p.enqueue(b) {
		p.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func (p *peer) replyError(requestID string, err error) {
	code := apperrors.CodeOf(err)
	message, ok := catalog.Default().Message(p.locale, "errors."+string(code))
	if !ok {
		message = string(code)
	}
	payload := wireError{Code: string(code), Message: message, Retryable: code.Retryable()}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		payload.Details = domainErr.Metadata
	}
	p.reply(Frame{Type: FrameError, RequestID: requestID, Payload: mustJSON(errorEnvelope{Error: payload})})
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p] = struct{}{}
	return true
}

// drop forgets the peer and closes its socket.
func (h *Hub) drop(p *peer, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	for channel := range p.subs {
		h.leaveLocked(p, channel)
	}
	delete(h.peers, p)
	h.mu.Unlock()
	p.close(code, reason)
}

func (h *Hub) subscribe(p *peer, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*peer]struct{})
		h.channels[channel] = subs
	}
	subs[p] = struct{}{}
	p.subs[channel] = struct{}{}
}

func (h *Hub) unsubscribe(p *peer, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(p, channel)
}

func (h *Hub) leaveLocked(p *peer, channel string) {
	delete(p.subs, channel)
	subs := h.channels[channel]
	delete(subs, p)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// Subscribers returns how many peers listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

// Publish sends one frame to every subscriber of channel and returns how
// many peers accepted it. Peers whose send queue is full are disconnected.
func (h *Hub) Publish(ctx context.Context, channel, frameType string, payload any) (int, error) {
	_, span := tracer.Start(ctx, "push.Publish", trace.WithAttributes(
		attribute.String("push.channel", channel),
		attribute.String("push.frame", frameType),
	))
	defer span.End()

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "marshal push payload", err)
	}
	b, err := json.Marshal(Frame{Type: frameType, Channel: channel, Payload: raw})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "marshal push frame", err)
	}

	var slow []*peer
	delivered := 0
	h.mu.Lock()
	for p := range h.channels[channel] {
		if p.enqueue(b) {
			delivered++
			continue
		}
		slow = append(slow, p)
	}
	h.mu.Unlock()

	for _, p := range slow {
		log.Printf("push: dropping slow peer on %s", channel)
		h.drop(p, websocket.StatusPolicyViolation, "slow consumer")
	}
	span.SetAttributes(attribute.Int("push.delivered", delivered))
	return delivered, nil
}

// PublishGroup sends a group result to its room channel.
func (h *Hub) PublishGroup(ctx context.Context, r group.MessageResult) error {
	if r.RoomID == "" {
		return nil
	}
	_, err := h.Publish(ctx, RoomChannel(r.RoomID), FrameGroupUpdate, newGroupPayload(r))
	return err
}

// PublishCombat sends a solo combat result to its player channel.
func (h *Hub) PublishCombat(ctx context.Context, r combat.ActionResult) error {
	if r.CharacterID == "" {
		return nil
	}
	_, err := h.Publish(ctx, PlayerChannel(r.CharacterID), FrameCombatUpdate, newCombatPayload(r))
	return err
}

// Close disconnects every peer. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		h.drop(p, websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) handleFrame(ctx context.Context, p *peer, f Frame) {
	switch f.Type {
	case FrameSubscribe, FrameUnsubscribe:
		var body channelPayload
		if len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, &body); err != nil {
				p.replyError(f.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "invalid channel payload"))
				return
			}
		}
		channel := strings.TrimSpace(f.Channel)
		if channel == "" {
			channel = strings.TrimSpace(body.Channel)
		}
		if !validChannel(channel) {
			p.replyError(f.RequestID, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "invalid channel", map[string]string{"channel": channel}))
			return
		}
		if f.Type == FrameSubscribe {
			h.subscribe(p, channel)
			p.reply(Frame{Type: FrameSubscribed, Channel: channel, RequestID: f.RequestID})
			return
		}
		h.unsubscribe(p, channel)
	case FrameAction:
		h.handleAction(ctx, p, f)
	case FrameCommand:
		h.handleCommand(ctx, p, f)
	default:
		p.replyError(f.RequestID, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown frame type", map[string]string{"type": f.Type}))
	}
}

func (h *Hub) handleAction(ctx context.Context, p *peer, f Frame) {
	if h.dispatcher == nil {
		p.replyError(f.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "actions are not accepted here"))
		return
	}
	var body actionPayload
	if err := json.Unmarshal(f.Payload, &body); err != nil {
		p.replyError(f.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "invalid action payload"))
		return
	}
	a, ok := body.action(h.clock())
	if !ok {
		p.replyError(f.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "action needs an actor and a known kind"))
		return
	}
	out, err := h.dispatcher.Dispatch(ctx, a)
	if err != nil {
		p.replyError(f.RequestID, err)
		return
	}
	var result actionResultPayload
	if out.Group != nil {
		result.Group = newGroupPayload(*out.Group)
	}
	if out.Combat != nil {
		result.Combat = newCombatPayload(*out.Combat)
	}
	p.reply(Frame{Type: FrameActionResult, RequestID: f.RequestID, Payload: mustJSON(result)})
}

func (h *Hub) handleCommand(ctx context.Context, p *peer, f Frame) {
	if h.dispatcher == nil {
		p.replyError(f.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "commands are not accepted here"))
		return
	}
	var body commandPayload
	if err := json.Unmarshal(f.Payload, &body); err != nil {
		p.replyError(f.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "invalid command payload"))
		return
	}
	c, problem := body.command()
	if problem != "" {
		p.replyError(f.RequestID, apperrors.WithMetadata(apperrors.CodeInvalidArgument, problem, map[string]string{"name": body.Name}))
		return
	}
	if adminCommand(c.Name) && !h.admin {
		p.replyError(f.RequestID, apperrors.WithMetadata(apperrors.CodePermissionDenied, "admin commands are disabled", map[string]string{"name": c.Name}))
		return
	}

	ctx, span := tracer.Start(ctx, "push.Command", trace.WithAttributes(
		attribute.String("push.command", c.Name),
		attribute.String("actor.id", c.ActorID),
	))
	defer span.End()
	res, err := h.dispatcher.Execute(ctx, c)
	if err != nil {
		span.RecordError(err)
		p.replyError(f.RequestID, err)
		return
	}
	p.reply(Frame{Type: FrameCommandReply, RequestID: f.RequestID, Payload: mustJSON(newCommandResultPayload(c.Name, p.locale, res))})
}
