package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/ledger"
	"github.com/quantumalpha/replicator/trade"
)

const snapshotLimit = 50

// getStream serves the live trade feed over SSE. The connection opens with
// a snapshot of the most recently ingested trades, oldest first, then
// relays live events until the client disconnects. A dropped subscription
// ends the stream; the client reconnects and gets a fresh snapshot.
func (s *Server) getStream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.internalError(c, "Stream", fmt.Errorf("response writer does not support flushing"))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Subscribe before reading the snapshot so no trade ingested in between
	// is missed; the worst case is seeing a trade in both.
	sub := s.Notifier.Subscribe(0)
	defer sub.Close()

	trades, _, err := s.Ledger.ListTrades(c.Request.Context(),
		ledger.TradeFilter{Limit: snapshotLimit, Newest: true})
	if err != nil {
		s.Logger.Error("stream snapshot failed", zap.Error(err))
		trades = nil
	}
	if trades == nil {
		trades = []trade.Trade{}
	}
	// The query returns newest first; present the snapshot chronologically.
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	writeSSE(c, flusher, "snapshot", gin.H{"trades": trades})

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.C:
			if !open {
				return
			}
			writeSSE(c, flusher, "trade", ev)
		}
	}
}

func writeSSE(c *gin.Context, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
