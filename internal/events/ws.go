package events

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"callboard/pkg/logger"
)

const wsWriteTimeout = 5 * time.Second

// WSHandler upgrades a dashboard connection and streams hub events to it
// until the client goes away.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			// The dashboard is served from the same origin; the reverse
			// proxy enforces cross-origin policy.
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Debug("websocket accept failed", "err", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := c.Request.Context()
		ch, cancel := hub.Subscribe()
		defer cancel()

		// Drain client frames so pings/close are processed.
		readCtx := conn.CloseRead(ctx)

		for {
			select {
			case <-readCtx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				writeCtx, cancelWrite := context.WithTimeout(readCtx, wsWriteTimeout)
				err := wsjson.Write(writeCtx, conn, e)
				cancelWrite()
				if err != nil {
					log.Debug("websocket write failed", "err", err)
					return
				}
			}
		}
	}
}
