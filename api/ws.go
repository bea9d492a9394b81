package api

import (
	"RegionOcrServer/imgproc"
	"RegionOcrServer/logger"
	"RegionOcrServer/monitor"
	"RegionOcrServer/pipeline"
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// instance is one websocket connection. Frames on a connection are analyzed one at a time.
type instance struct {
	id          string
	conn        *websocket.Conn
	writeMu     sync.Mutex
	lastActive  atomic.Int64
	closeOnce   sync.Once
	cancelTimer chan struct{}
}

func (inst *instance) touch() {
	inst.lastActive.Store(time.Now().UnixNano())
}

func (inst *instance) idleFor() time.Duration {
	return time.Since(time.Unix(0, inst.lastActive.Load()))
}

func (inst *instance) writeJSON(v any) error {
	inst.writeMu.Lock()
	defer inst.writeMu.Unlock()
	return inst.conn.WriteJSON(v)
}

func (s *Server) sessionCount() int {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) releaseInstance(sessionID, reason string) bool {
	s.sessionMu.Lock()
	inst, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.sessionMu.Unlock()
	if !ok {
		return false
	}

	inst.closeOnce.Do(func() {
		close(inst.cancelTimer)
		inst.writeMu.Lock()
		_ = inst.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
		inst.writeMu.Unlock()
		_ = inst.conn.Close()
	})
	return true
}

func (s *Server) startIdleMonitor(inst *instance) {
	go func() {
		ticker := time.NewTicker(s.opts.IdleTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-inst.cancelTimer:
				return
			case <-ticker.C:
				if inst.idleFor() > s.opts.IdleTimeout {
					logger.Log().Info("websocket session idle, releasing", zap.String("session", inst.id))
					s.releaseInstance(inst.id, "idle timeout")
					return
				}
			}
		}
	}()
}

// serveWS analyzes every text frame as a base64 image (a data URL prefix is allowed) and
// answers with the JSON response or {"detail": ...}.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(s.opts.MaxUpload)

	inst := &instance{
		id:          uuid.NewString(),
		conn:        conn,
		cancelTimer: make(chan struct{}),
	}
	inst.touch()
	s.sessionMu.Lock()
	s.sessions[inst.id] = inst
	s.sessionMu.Unlock()
	s.startIdleMonitor(inst)
	defer s.releaseInstance(inst.id, "closed")

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Log().Debug("websocket closed", zap.String("session", inst.id), zap.Error(err))
			return
		}
		inst.touch()
		if mt != websocket.TextMessage {
			_ = inst.writeJSON(gin.H{"detail": "unsupported message type"})
			continue
		}
		if err := inst.writeJSON(s.analyzeFrame(c.Request.Context(), inst.id, string(msg))); err != nil {
			return
		}
	}
}

func (s *Server) analyzeFrame(parent context.Context, sessionID, frame string) any {
	data, err := imgproc.DecodeBase64(frame)
	if err != nil {
		monitor.ObserveRequest("ws", err)
		return gin.H{"detail": "invalid image: " + err.Error()}
	}
	ctx, cancel := context.WithTimeout(parent, s.opts.RequestTimeout)
	defer cancel()
	ctx = pipeline.WithRequestID(ctx, "")

	resp, err := s.analyzer.Analyze(ctx, data)
	monitor.ObserveRequest("ws", err)
	if err != nil {
		logger.Request(pipeline.RequestID(ctx)).Error("analyze failed",
			zap.String("session", sessionID), zap.Error(err))
		return gin.H{"detail": err.Error()}
	}
	return resp
}
