package routes

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"fall/core/types"
	"fall/observability/metrics"
)

const (
	eventBuffer  = 256
	writeTimeout = 5 * time.Second
)

// eventRoutes streams committed events over a websocket. Clients may narrow
// the stream with ?type=a,b and ?pool=<id>.
type eventRoutes struct {
	events  Subscriber
	origins []string
	logger  *slog.Logger
	metrics *metrics.GatewayMetrics
}

type eventFilter struct {
	types map[string]struct{}
	pool  string
}

func newEventFilter(r *http.Request) eventFilter {
	filter := eventFilter{pool: strings.TrimSpace(r.URL.Query().Get("pool"))}
	for _, t := range strings.Split(r.URL.Query().Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			if filter.types == nil {
				filter.types = make(map[string]struct{})
			}
			filter.types[t] = struct{}{}
		}
	}
	return filter
}

func (f eventFilter) match(evt *types.Event) bool {
	if f.types != nil {
		if _, ok := f.types[evt.Type]; !ok {
			return false
		}
	}
	return f.pool == "" || evt.Attributes["pool"] == f.pool
}

func (er *eventRoutes) stream(w http.ResponseWriter, r *http.Request) {
	filter := newEventFilter(r)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: er.origins})
	if err != nil {
		er.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	ch, cancel := er.events.Subscribe(eventBuffer)
	defer cancel()
	er.metrics.AddSubscribers(1)
	defer er.metrics.AddSubscribers(-1)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case evt, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if !filter.match(evt) {
				continue
			}
			writeCtx, done := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, evt)
			done()
			if err != nil {
				er.logger.Debug("event subscriber dropped", "error", err)
				return
			}
		}
	}
}
