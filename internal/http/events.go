package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	dto "timer-tracker.com/timer-tracker/internal/data_models"
	model "timer-tracker.com/timer-tracker/internal/models"
)

const (
	EventTimerCompleted = "timer.completed"
	EventTimersChanged  = "timers.changed"

	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

type Event struct {
	Type  string             `json:"type"`
	Timer *dto.TimerResponse `json:"timer,omitempty"`
	At    time.Time          `json:"at"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventHub fans completion and data-change notifications out to websocket
// subscribers. A subscriber that falls behind loses events rather than
// blocking the countdown engine.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	logger      *slog.Logger
	closed      bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		subscribers: make(map[*subscriber]struct{}),
		logger:      logger.With("component", "events"),
	}
}

func (h *EventHub) PublishCompletion(timer model.Timer) {
	resp := dto.NewTimerResponse(timer)
	h.broadcast(Event{Type: EventTimerCompleted, Timer: &resp, At: time.Now().UTC()})
}

func (h *EventHub) PublishChange() {
	h.broadcast(Event{Type: EventTimersChanged, At: time.Now().UTC()})
}

func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *EventHub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.send <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", "type", ev.Type)
		}
	}
}

// Serve upgrades the request and streams events until the client goes away
// or the hub is closed.
func (h *EventHub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade the websocket", "error", err)
		return nil
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}
	if !h.subscribe(sub) {
		_ = conn.Close()
		return nil
	}
	defer h.unsubscribe(sub)

	go h.readLoop(sub)

	for {
		select {
		case ev := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warn("failed to write websocket event", "error", err)
				return nil
			}
		case <-sub.done:
			return nil
		}
	}
}

// readLoop drains client frames so close and ping frames are handled.
func (h *EventHub) readLoop(sub *subscriber) {
	defer sub.stop()
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) subscribe(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	h.logger.Debug("websocket subscriber connected", "subscribers", len(h.subscribers))
	return true
}

func (h *EventHub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()

	sub.stop()
	_ = sub.conn.Close()
}

// Close disconnects every subscriber and refuses new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subscribers {
		_ = sub.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		sub.stop()
	}
}
