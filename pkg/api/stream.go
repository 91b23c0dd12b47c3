package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"mercator-hq/warden/pkg/events"
)

const streamWriteTimeout = 5 * time.Second

type streamHello struct {
	Type string `json:"type"`
}

// stream relays bus events over a websocket until either side goes away.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.logger.WarnContext(r.Context(), "event stream upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, unsubscribe := a.events.Subscribe(a.eventBuffer)
	defer unsubscribe()

	if err := wsjson.Write(ctx, conn, streamHello{Type: "ready"}); err != nil {
		return
	}

	// Clients only listen; reading drives pings and notices the close.
	ctx = conn.CloseRead(ctx)

	a.logger.DebugContext(ctx, "event stream opened", "remote_addr", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "agent shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				a.logger.DebugContext(ctx, "event stream closed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
