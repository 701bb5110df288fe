// Package http receives chat-transport callbacks and turns them into flow
// events. The transport delivers at least once; every event runs on its own
// goroutine so one user's five-minute render never blocks another's tap.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/flow"
	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/infra"
)

type App struct {
	Engine *flow.Engine
	Logger infra.Logger
}

func NewApp(engine *flow.Engine, logger infra.Logger) *App {
	return &App{Engine: engine, Logger: logger}
}

type transportEvent struct {
	UserID   string `json:"user_id"`
	Type     string `json:"type"` // photo, button, text, stop
	ImageRef string `json:"image_ref,omitempty"`
	Action   string `json:"action,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Event accepts one transport callback. The response only acknowledges
// receipt; the flow answer goes back through the responder.
func (a *App) Event(w http.ResponseWriter, r *http.Request) {
	var ev transportEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if ev.UserID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}

	go a.dispatch(ev)
	a.json(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *App) dispatch(ev transportEvent) {
	// Detached from the request: the render outlives the webhook call.
	ctx := context.Background()

	var err error
	switch ev.Type {
	case "photo":
		err = a.Engine.HandlePhoto(ctx, ev.UserID, ev.ImageRef)
	case "button":
		err = a.Engine.HandleButton(ctx, ev.UserID, ev.Action, ev.Payload)
	case "text":
		err = a.Engine.HandleText(ctx, ev.UserID, ev.Text)
	case "stop":
		err = a.Engine.HandleButton(ctx, ev.UserID, flow.ActionStop, "")
	default:
		a.Logger.Debug().Str("type", ev.Type).Str("user_id", ev.UserID).Msg("transport: unknown event type")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", ev.UserID).Str("type", ev.Type).Msg("transport: event handling failed")
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}
