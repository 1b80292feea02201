package push

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	apperrors "github.com/louisbranch/delving.space/internal/platform/errors"
	"github.com/louisbranch/delving.space/internal/platform/i18n/catalog"
)

// ServeHTTP upgrades the request to a websocket and serves frames until
// the client leaves. The optional locale query parameter picks the
// language of error messages.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		log.Printf("push: accept websocket: %v", err)
		return
	}
	// Room for the frame envelope around a full payload.
	conn.SetReadLimit(2 * maxFramePayloadBytes)

	locale := strings.TrimSpace(r.URL.Query().Get("locale"))
	if !catalog.Default().HasLocale(locale) {
		locale = catalog.BaseLocale
	}
	p := &peer{
		conn:   conn,
		locale: locale,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		subs:   make(map[string]struct{}),
	}
	if !h.register(p) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	go p.writeLoop()
	defer h.drop(p, websocket.StatusNormalClosure, "")

	h.readLoop(r.Context(), p)
}

func (h *Hub) readLoop(ctx context.Context, p *peer) {
	windowStart := h.clock()
	framesInWindow := 0
	decodeErrors := 0

	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Printf("push: read frame: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			p.replyError("", apperrors.New(apperrors.CodeInvalidArgument, "invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			p.replyError(frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "payload too large"))
			continue
		}

		now := h.clock()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			p.replyError(frame.RequestID, apperrors.New(apperrors.CodeSpamDetected, "rate limit exceeded"))
			return
		}

		h.handleFrame(ctx, p, frame)
	}
}
