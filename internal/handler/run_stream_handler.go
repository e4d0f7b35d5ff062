package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/pkg/response"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = time.Minute
	streamPingEvery = 30 * time.Second
)

// Stream event names.
const (
	StreamEventProgress = "progress"
	StreamEventFinished = "finished"
)

// StreamMessage is one websocket frame sent to a run subscriber.
type StreamMessage struct {
	Event string       `json:"event"`
	Run   dto.RunEvent `json:"run"`
}

type runSubscriber interface {
	Subscribe(id string) (<-chan dto.RunEvent, func(), error)
	Get(ctx context.Context, id string) (*dto.RunResponse, error)
}

// RunStreamHandler pushes run progress over a websocket.
type RunStreamHandler struct {
	runs     runSubscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRunStreamHandler builds the handler. An empty allowedOrigins accepts
// any origin.
func NewRunStreamHandler(runs runSubscriber, allowedOrigins []string, logger *zap.Logger) *RunStreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunStreamHandler{
		runs:     runs,
		upgrader: buildUpgrader(allowedOrigins),
		logger:   logger,
	}
}

func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Stream godoc
// @Summary Stream run progress over a websocket
// @Tags Runs
// @Param id path string true "Run ID"
// @Success 101
// @Failure 404 {object} response.Envelope
// @Router /timetable-runs/{id}/stream [get]
func (h *RunStreamHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	events, unsubscribe, err := h.runs.Subscribe(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("run_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go h.drain(conn, closed)

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				h.finish(c.Request.Context(), conn, id)
				return
			}
			if err := writeMessage(conn, StreamMessage{Event: StreamEventProgress, Run: event}); err != nil {
				h.logger.Debug("stream write failed", zap.String("run_id", id), zap.Error(err))
				return
			}
		}
	}
}

// finish sends the final run state, which may have been dropped from the
// event channel, and closes the connection normally.
func (h *RunStreamHandler) finish(ctx context.Context, conn *websocket.Conn, id string) {
	run, err := h.runs.Get(ctx, id)
	if err == nil {
		_ = writeMessage(conn, StreamMessage{Event: StreamEventFinished, Run: dto.RunEvent{
			RunID:    run.ID,
			Status:   run.Status,
			Progress: run.Progress,
			Error:    run.Error,
		}})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
		time.Now().Add(streamWriteWait))
}

// drain reads until the client goes away. Clients never send data frames.
func (h *RunStreamHandler) drain(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(msg)
}
