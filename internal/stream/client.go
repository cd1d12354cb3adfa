package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jkmerchant/spot/internal/metrics"
)

// writeDeadlineSlack bounds how long a single sky frame or keepalive
// write may block before the connection is considered dead.
const writeDeadlineSlack = 30 * time.Second

// client is the write side of one sky frame subscription. It owns the
// SSE framing and the per-connection counters; the read side is the
// request context watched by HandleSky.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	framesSent int64
	bytesSent  int64
}

// extendDeadline pushes the write deadline out ahead of a write.
// Failure is logged and ignored: test recorders and some wrappers do
// not support deadlines, and the write itself still surfaces real
// errors.
func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeDeadlineSlack)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

// sendJSON writes v as one SSE data message ("data: {json}\n\n") and
// flushes it to the subscriber.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	c.extendDeadline()
	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	c.framesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive writes an SSE comment (":\n\n") so idle sky streams
// survive proxies that reap quiet connections.
func (c *client) sendKeepalive() error {
	c.extendDeadline()
	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}
