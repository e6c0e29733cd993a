package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/realtime"
	"github.com/cvcraft/cvcraft/internal/services"
	"github.com/cvcraft/cvcraft/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// WSHandler streams change notifications for one aggregate to the browser.
// The subscription lives exactly as long as the socket: closing the page
// unsubscribes, it never cancels an in-flight worker job.
type WSHandler struct {
	cvs      services.CVService
	redis    *redis.Client
	upgrader websocket.Upgrader
}

func NewWSHandler(cvs services.CVService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		cvs:   cvs,
		redis: rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

const (
	wsPongWait  = 60 * time.Second
	wsPingEvery = 30 * time.Second

	waitTimeout = 2 * time.Minute
)

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writePing() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (h *WSHandler) CVEvents(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	cvID := c.Param("cv_id")
	if cvID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.CVEvents", "missing cv_id", nil))
		return
	}

	// one aggregate per owner, so ownership is just an id comparison
	cv, err := h.cvs.FetchOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if cv.ID != cvID {
		writeError(c, utils.E(utils.CodeForbidden, "WSHandler.CVEvents", "forbidden", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote a response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, realtime.Channel(cvID))
	defer pubsub.Close()

	// reader: the client sends nothing meaningful; the loop only keeps the
	// pong handler alive and detects the close. The deadline slides on every
	// pong, and the writer side pings, so an idle generation keeps the
	// subscription open.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	stream(ctx, wc, readDone, pubsub.Channel(), wsPingEvery)
}

// stream forwards Redis payloads to the socket (as-is, JSON CVEvent) and
// pings on an interval so the peer's read deadline keeps sliding while the
// worker runs.
func stream(ctx context.Context, wc *wsConn, readDone <-chan struct{}, msgs <-chan *redis.Message, pingEvery time.Duration) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := wc.writePing(); err != nil {
				return
			}
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}

// WaitForCompletion long-polls the current generation attempt: it subscribes
// to the aggregate's channel, folds events into a session, and answers with
// the merged aggregate once a terminal status lands. Clients that cannot hold
// a WebSocket use this instead of polling GET /cv/me.
func (h *WSHandler) WaitForCompletion(c *gin.Context) {
	const op = "WSHandler.WaitForCompletion"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	cvID := c.Param("cv_id")

	cv, err := h.cvs.FetchOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if cv.ID != cvID {
		writeError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
		return
	}
	if cv.Status != models.StatusProcessing {
		c.JSON(http.StatusOK, cv)
		return
	}

	ctx := c.Request.Context()
	pubsub := h.redis.Subscribe(ctx, realtime.Channel(cvID))
	defer pubsub.Close()

	// the attempt may have finished between the fetch and the subscribe
	cv, err = h.cvs.FetchOrCreate(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if cv.Status.Terminal() {
		c.JSON(http.StatusOK, cv)
		return
	}

	sess := realtime.NewSession(cv)
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()

	if _, ok := awaitTerminal(ctx, sess, pubsub.Channel(), timer.C); !ok {
		writeError(c, utils.E(utils.CodeTimeout, op, "generation did not finish in time", nil))
		return
	}
	c.JSON(http.StatusOK, sess.CV())
}

// awaitTerminal feeds channel payloads into the session until the waiter
// releases. A payload that does not unmarshal is skipped; the reducer ignores
// events for other aggregates.
func awaitTerminal(ctx context.Context, sess *realtime.Session, msgs <-chan *redis.Message, timeout <-chan time.Time) (models.CVStatus, bool) {
	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-timeout:
			return "", false
		case st := <-sess.Waiter().Done():
			return st, true
		case m, ok := <-msgs:
			if !ok {
				return "", false
			}
			var ev realtime.CVEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			sess.Feed(ev)
		}
	}
}
