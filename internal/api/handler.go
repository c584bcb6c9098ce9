package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"schedule-bridge-backend/internal/bridge"
	"schedule-bridge-backend/internal/mw"
	"schedule-bridge-backend/internal/schedule"
	"schedule-bridge-backend/internal/store"
)

// PendingCounter reports how many solver calls are outstanding.
type PendingCounter interface {
	Pending() int64
}

// Deps are the collaborators the handlers are built from. Webpush may be nil
// when push notifications are disabled.
type Deps struct {
	Bridge      *bridge.Service
	Schedule    *schedule.Service
	Store       store.Store
	Solver      PendingCounter
	Cache       mw.ResponseCache
	Webpush     *webpush.Options
	PushTimeout time.Duration
	Logger      zerolog.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	bridge      *bridge.Service
	schedule    *schedule.Service
	store       store.Store
	solver      PendingCounter
	cache       mw.ResponseCache
	webpush     *webpush.Options
	pushTimeout time.Duration
	logger      zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.PushTimeout <= 0 {
		d.PushTimeout = 10 * time.Second
	}
	return &Handler{
		bridge:      d.Bridge,
		schedule:    d.Schedule,
		store:       d.Store,
		solver:      d.Solver,
		cache:       d.Cache,
		webpush:     d.Webpush,
		pushTimeout: d.PushTimeout,
		logger:      d.Logger.With().Str("component", "api").Logger(),
	}
}
