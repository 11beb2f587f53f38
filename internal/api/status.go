// Package api exposes a read-only status feed for local observers such as
// tray widgets or editor statuslines. It carries no synchronization
// semantics; the state file remains the only channel between processes.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"prism/internal/event"
	"prism/internal/logging"
	"prism/internal/syncer"
)

const statusWriteTimeout = 10 * time.Second

// StatusHandler streams applied-state events to websocket clients.
type StatusHandler struct {
	Updates *event.Bus[syncer.StateEvent]
	Logger  *logging.Logger
}

type statusPayload struct {
	Type      string    `json:"type"`
	Theme     string    `json:"theme"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func (handler *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if handler == nil || handler.Updates == nil {
		http.Error(w, "status feed unavailable", http.StatusInternalServerError)
		return
	}
	output, cancel := handler.Updates.Subscribe()
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(*http.Request) bool {
			// The feed binds to loopback; origin checks add nothing here.
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case update, ok := <-output:
				if !ok {
					_ = conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
						time.Now().Add(time.Second),
					)
					return
				}
				payload := statusPayload{
					Type:      "theme_applied",
					Theme:     update.Theme,
					Source:    string(update.Source),
					Timestamp: update.At,
				}
				if payload.Timestamp.IsZero() {
					payload.Timestamp = time.Now().UTC()
				}
				if err := conn.SetWriteDeadline(time.Now().Add(statusWriteTimeout)); err != nil {
					return
				}
				if err := conn.WriteJSON(payload); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// RegisterRoutes mounts the status feed on mux.
func RegisterRoutes(mux *http.ServeMux, updates *event.Bus[syncer.StateEvent], logger *logging.Logger) {
	mux.Handle("/v1/status", &StatusHandler{Updates: updates, Logger: logger})
}
