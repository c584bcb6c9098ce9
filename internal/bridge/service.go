package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"schedule-bridge-backend/config"
	"schedule-bridge-backend/internal/notification"
	"schedule-bridge-backend/internal/solver"
	"schedule-bridge-backend/internal/store"
	"schedule-bridge-backend/internal/timetable"
)

const cameraFreeStatus = "свободен (камера)"

// Solver forwards one request to the room solver.
type Solver interface {
	Submit(ctx context.Context, req solver.Request) (solver.Reply, error)
}

// Notifier is told about successful cancellations.
type Notifier interface {
	Dispatch(ev notification.Cancellation)
}

// Options configures a Service.
type Options struct {
	Timetable        *timetable.Timetable
	Clock            timetable.Clock
	Locations        map[string]string
	DefaultCorpus    string
	CancelScope      string
	CancelTimeStatus int // slot cancels only; zero matches any row
	Notifier         Notifier
}

// Service composes the timetable, the solver queue and the store into the
// bot-facing operations.
type Service struct {
	solver        Solver
	store         store.Store
	timetable     *timetable.Timetable
	clock         timetable.Clock
	locations     map[string]string
	defaultCorpus string
	cancelScope   string
	cancelStatus  int
	notifier      Notifier
	requestID     atomic.Int64
	logger        zerolog.Logger
}

// NewService creates a new bridge service.
func NewService(sv Solver, st store.Store, opts Options, logger zerolog.Logger) *Service {
	locations := make(map[string]string, len(opts.Locations))
	for id, corpus := range opts.Locations {
		locations[strings.ToLower(id)] = corpus
	}
	scope := opts.CancelScope
	if scope == "" {
		scope = config.CancelScopeSlot
	}
	return &Service{
		solver:        sv,
		store:         st,
		timetable:     opts.Timetable,
		clock:         opts.Clock,
		locations:     locations,
		defaultCorpus: opts.DefaultCorpus,
		cancelScope:   scope,
		cancelStatus:  opts.CancelTimeStatus,
		notifier:      opts.Notifier,
		logger:        logger.With().Str("component", "bridge").Logger(),
	}
}

// ResolveCorpus maps a bot location id to the solver's corpus label. Unknown
// ids pass through unchanged; a missing id yields the default corpus.
func (s *Service) ResolveCorpus(locationID string) string {
	if locationID == "" {
		return s.defaultCorpus
	}
	if corpus, ok := s.locations[strings.ToLower(locationID)]; ok {
		return corpus
	}
	return locationID
}

// FindRooms asks the solver for a room starting at the nearest reachable class
// slot. Solver failures are reported through Reason, never as an error; the
// only error is ErrValidation for a negative duration.
func (s *Service) FindRooms(ctx context.Context, req FindRoomRequest) (FindRoomResponse, error) {
	if req.DurationMinutes < 0 {
		return FindRoomResponse{}, fmt.Errorf("%w: duration_minutes must not be negative, got %d", ErrValidation, req.DurationMinutes)
	}

	corpus := s.ResolveCorpus(req.LocationID)
	s.logger.Info().
		Str("location_id", req.LocationID).
		Str("corpus", corpus).
		Int("duration", req.DurationMinutes).
		Interface("floor", req.Floor).
		Int64("user", req.RequestedBy.TelegramUserID).
		Msg("find rooms")

	now := timetable.Of(s.clock.Now())
	slot, ok := s.timetable.FindNearestClassStart(now)
	if !ok {
		s.logger.Info().Stringer("now", now).Msg("no more classes today")
		return emptyResponse(s.noMoreClassesReason()), nil
	}
	s.logger.Info().Stringer("slot", slot).Stringer("now", now).Msg("nearest valid class start")

	request := solver.Request{
		ID:        s.requestID.Add(1),
		StartTime: slot.String(),
		Duration:  req.DurationMinutes,
		Corpus:    corpus,
	}
	reply, err := s.solver.Submit(ctx, request)
	if err != nil {
		s.logger.Error().Err(err).Int64("id", request.ID).Msg("solver request failed")
		return emptyResponse("Ошибка при запросе к C++ серверу: " + err.Error()), nil
	}
	s.logger.Info().Int64("id", request.ID).Int("cabinet", reply.Cabinet).Str("status", reply.Status).Msg("solver replied")

	if !reply.Found() {
		return emptyResponse("C++ сервер не нашёл свободный кабинет на " + slot.String()), nil
	}

	room := RoomInfo{
		Name:           strconv.Itoa(reply.Cabinet),
		LocationName:   corpus,
		LocationID:     req.LocationID,
		Floor:          reply.Cabinet / 100,
		ScheduleFree:   true,
		CameraFree:     true,
		CameraStatus:   cameraFreeStatus,
		AvailableFrom:  slot.String(),
		AvailableUntil: slot.Start.Add(time.Duration(req.DurationMinutes) * time.Minute).String(),
	}
	return FindRoomResponse{
		FreeRooms:    []RoomInfo{room},
		Alternatives: []RoomInfo{},
	}, nil
}

func (s *Service) noMoreClassesReason() string {
	if last, ok := s.timetable.Last(); ok {
		return "На сегодня пар больше нет. Последняя пара начинается в " + last.String() + "."
	}
	return "На сегодня пар больше нет."
}

func emptyResponse(reason string) FindRoomResponse {
	return FindRoomResponse{
		FreeRooms:    []RoomInfo{},
		Alternatives: []RoomInfo{},
		Reason:       &reason,
	}
}
