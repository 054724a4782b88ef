package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go-door-simulator/pkg/door"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Message types
// 메시지 타입 정의
type ClientMessage struct {
	Action string      `json:"action"`
	Config *DoorConfig `json:"config,omitempty"`
}

// DoorConfig carries per-session overrides. Zero values keep the defaults.
type DoorConfig struct {
	ID              string  `json:"id"`
	MotionInterval  float64 `json:"motionInterval"`  // seconds
	ErrorInterval   float64 `json:"errorInterval"`   // seconds
	CloseDelay      float64 `json:"closeDelay"`      // seconds
	MotionThreshold float64 `json:"motionThreshold"` // 0 ~ 1
	ErrorThreshold  float64 `json:"errorThreshold"`  // 0 ~ 1
}

type ServerMessage struct {
	Type       string        `json:"type"`
	SessionID  string        `json:"sessionId,omitempty"`
	EventType  string        `json:"eventType,omitempty"`
	Payload    interface{}   `json:"payload,omitempty"`
	Timestamp  string        `json:"timestamp,omitempty"`
	Error      string        `json:"error,omitempty"`
	Signals    *door.Signals `json:"signals,omitempty"`
	View       *door.View    `json:"view,omitempty"`
	Mode       string        `json:"mode,omitempty"`
	CloseArmed bool          `json:"closeArmed"`
}

// DoorSession manages a WebSocket connection with a door instance
// DoorSession은 자동문 인스턴스와의 WebSocket 연결을 관리합니다.
type DoorSession struct {
	id     string
	conn   *websocket.Conn
	door   *door.Door
	mu     sync.Mutex
	writeM sync.Mutex
	done   chan struct{}
	cancel context.CancelFunc
	logger *slog.Logger
}

func NewDoorSession(conn *websocket.Conn) *DoorSession {
	id := uuid.New().String()
	return &DoorSession{
		id:     id,
		conn:   conn,
		done:   make(chan struct{}),
		logger: slog.Default().With("session", id),
	}
}

func (s *DoorSession) HandleMessages() {
	s.logger.Info("Session started", "remote_addr", s.conn.RemoteAddr())
	defer func() {
		close(s.done)
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		_ = s.conn.Close()
		s.logger.Info("Session ended", "remote_addr", s.conn.RemoteAddr())
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("Failed to parse message", "error", err)
			continue
		}

		s.handleAction(msg)
	}
}

func (s *DoorSession) handleAction(msg ClientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Action received", "action", msg.Action)

	switch msg.Action {
	case "init":
		s.initDoor(msg.Config)
	case "toggleOverride":
		if s.door != nil {
			s.door.ToggleOverride()
		}
	case "toggleDoor":
		if s.door != nil {
			if err := s.door.ToggleDoor(); err != nil {
				s.logger.Warn("Failed to toggle door via WS", "error", err)
				s.sendError(err)
			}
		}
	case "getState":
		if s.door != nil {
			s.sendState()
		}
	case "stop":
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.door = nil
	default:
		s.logger.Warn("Unknown action", "action", msg.Action)
	}
}

func (s *DoorSession) initDoor(cfg *DoorConfig) {
	// Stop existing door if any
	if s.cancel != nil {
		s.cancel()
	}

	config := door.DefaultConfig(s.id)
	if cfg != nil {
		if cfg.ID != "" {
			config.ID = cfg.ID
		}
		if cfg.MotionInterval > 0 {
			config.MotionInterval = seconds(cfg.MotionInterval)
		}
		if cfg.ErrorInterval > 0 {
			config.ErrorInterval = seconds(cfg.ErrorInterval)
		}
		if cfg.CloseDelay > 0 {
			config.CloseDelay = seconds(cfg.CloseDelay)
		}
		if cfg.MotionThreshold > 0 {
			config.MotionThreshold = cfg.MotionThreshold
		}
		if cfg.ErrorThreshold > 0 {
			config.ErrorThreshold = cfg.ErrorThreshold
		}
	}

	d, err := door.New(config)
	if err != nil {
		s.logger.Error("Failed to initialize door", "error", err)
		s.sendError(err)
		return
	}
	s.door = d

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Subscribe to events
	// 이벤트 구독
	go s.eventListener(ctx, d)

	go func() {
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Door run error", "error", err)
		}
	}()

	s.logger.Info("Door initialized", "id", config.ID)

	// Send initial state
	s.sendState()
}

func (s *DoorSession) eventListener(ctx context.Context, d *door.Door) {
	eventCh := d.Events()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case event := <-eventCh:
			s.sendEvent(event)
			s.sendSnapshot(d.Snapshot())
		}
	}
}

func (s *DoorSession) sendState() {
	if s.door == nil {
		return
	}
	s.sendSnapshot(s.door.Snapshot())
}

func (s *DoorSession) sendSnapshot(snap door.Snapshot) {
	view := door.NewView(snap.Signals)
	s.writeJSON(ServerMessage{
		Type:       "state",
		SessionID:  s.id,
		Signals:    &snap.Signals,
		View:       &view,
		Mode:       snap.Mode.String(),
		CloseArmed: snap.CloseArmed,
	})
}

func (s *DoorSession) sendEvent(event door.Event) {
	s.writeJSON(ServerMessage{
		Type:      "event",
		EventType: string(event.Type),
		Payload:   event.Payload,
		Timestamp: event.Timestamp.Format("15:04:05"),
	})
}

func (s *DoorSession) sendError(err error) {
	s.writeJSON(ServerMessage{Type: "error", Error: err.Error()})
}

func (s *DoorSession) writeJSON(msg ServerMessage) {
	// gorilla/websocket supports one concurrent writer
	s.writeM.Lock()
	defer s.writeM.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Error("Failed to write JSON message", "error", err)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	session := NewDoorSession(conn)
	session.HandleMessages()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
