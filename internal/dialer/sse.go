package dialer

import (
	"io"
	"time"

	"levlyfy/internal/events"

	"github.com/gin-gonic/gin"
)

// Stream pushes dialer views as server-sent events: one dialer.view on
// connect, then call.state and call.tick as the coordinator moves.
func (s *Server) Stream(c *gin.Context) {
	feed, cancel := s.feed.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(events.TypeView, Present(s.ctl.Snapshot()))
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case t, ok := <-feed:
			if !ok {
				return false
			}
			c.SSEvent(messageType(t), Present(t.Snapshot))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
