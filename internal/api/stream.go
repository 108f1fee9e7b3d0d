package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"proxy-checker/internal/domain"
)

const (
	streamWriteTimeout   = 10 * time.Second
	streamRequestTimeout = 30 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type streamResult struct {
	Index  int                   `json:"index"`
	Result domain.EnrichedResult `json:"result"`
}

type streamDone struct {
	Done    bool                `json:"done"`
	Summary domain.BatchSummary `json:"summary"`
}

// handleStream checks one batch per connection. The client sends a batch
// request; every result is pushed as soon as it completes, followed by a
// final summary frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(streamRequestTimeout))
	var body batchRequest
	if err := conn.ReadJSON(&body); err != nil {
		s.closeStream(conn, websocket.CloseUnsupportedData, "invalid JSON body")
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	req, err := body.toDomain(s.cfg.Checker)
	if err != nil {
		_ = writeStreamFrame(conn, err)
		s.closeStream(conn, websocket.ClosePolicyViolation, "invalid request")
		return
	}

	// a client hangup aborts the remaining probes
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	broken := false
	report := s.svc.Stream(ctx, req, func(i int, result domain.EnrichedResult) {
		if broken {
			return
		}
		if err := writeStreamFrame(conn, streamResult{Index: i, Result: result}); err != nil {
			broken = true
			cancel()
		}
	})
	if broken {
		s.logger.Debug("stream client went away", zap.String("batch_id", report.Summary.BatchID))
		return
	}

	if err := writeStreamFrame(conn, streamDone{Done: true, Summary: report.Summary}); err != nil {
		return
	}
	s.closeStream(conn, websocket.CloseNormalClosure, "done")
}

func (s *Server) closeStream(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
}

func writeStreamFrame(conn *websocket.Conn, payload any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(payload)
}
