package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/contentdeck/aigen/internal/generator"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 30 * time.Second
	streamMaxMessage   = 64 * 1024
)

// StreamContent streams long-form content over a WebSocket. The client sends
// one content request as JSON; the server answers with chunk frames, then a
// single done or error frame, then closes.
// GET /api/v1/ai/content/stream
func (h *Handlers) StreamContent(c echo.Context) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx)

	conn.SetReadLimit(streamMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

	var req generator.ContentOptions
	_, raw, err := conn.ReadMessage()
	if err != nil {
		logger.Debug().Err(err).Msg("Stream client went away before sending a request")
		return nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		writeFrame(conn, StreamFrame{Type: FrameError, Error: "Invalid request body", Status: http.StatusBadRequest})
		closeStream(conn, websocket.CloseUnsupportedData)
		return nil
	}
	if err := h.validator.Content(req); err != nil {
		writeFrame(conn, StreamFrame{Type: FrameError, Error: err.Error(), Status: http.StatusBadRequest})
		closeStream(conn, websocket.ClosePolicyViolation)
		return nil
	}

	tenantID, userID := tenantFrom(c)
	forward := chunkForwarder(func(chunk string) error {
		return writeFrame(conn, StreamFrame{Type: FrameChunk, Text: chunk})
	}, logger)
	result, err := h.service.StreamContent(ctx, tenantID, userID, req, forward)
	if err != nil {
		status, resp := classifyError(err)
		if status == http.StatusInternalServerError {
			logger.Error().Err(err).Msg("Content stream failed")
		}
		writeFrame(conn, StreamFrame{Type: FrameError, Error: resp.Error, Status: status})
		closeStream(conn, websocket.CloseInternalServerErr)
		return nil
	}

	writeFrame(conn, StreamFrame{Type: FrameDone, Content: result.Content, RequestID: &result.RequestID})
	closeStream(conn, websocket.CloseNormalClosure)
	return nil
}

// chunkForwarder wraps write so that a failed write stops forwarding without
// failing the generation. A client that disconnects mid-stream still gets its
// attempt completed and billed.
func chunkForwarder(write func(chunk string) error, logger *zerolog.Logger) func(string) error {
	gone := false
	return func(chunk string) error {
		if gone {
			return nil
		}
		if err := write(chunk); err != nil {
			gone = true
			logger.Debug().Err(err).Msg("Stream client went away, finishing generation without forwarding")
		}
		return nil
	}
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func writeFrame(conn *websocket.Conn, frame StreamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(frame)
}

func closeStream(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
