package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schedule-bridge-backend/config"
	"schedule-bridge-backend/internal/db"
	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/notification"
	"schedule-bridge-backend/internal/solver"
	"schedule-bridge-backend/internal/store"
	"schedule-bridge-backend/internal/timetable"
)

type fakeSolver struct {
	mu       sync.Mutex
	requests []solver.Request
	reply    solver.Reply
	err      error
}

func (f *fakeSolver) Submit(_ context.Context, req solver.Request) (solver.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type recordingNotifier struct {
	events []notification.Cancellation
}

func (r *recordingNotifier) Dispatch(ev notification.Cancellation) {
	r.events = append(r.events, ev)
}

// monday returns 2026-03-02 (a Monday) at hh:mm UTC.
func monday(hh, mm int) timetable.Clock {
	return timetable.FixedClock{At: time.Date(2026, 3, 2, hh, mm, 0, 0, time.UTC)}
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

func newTestService(t *testing.T, sv Solver, st store.Store, clock timetable.Clock, scope string, n Notifier) *Service {
	t.Helper()
	tt, err := timetable.Parse([]string{"08:00", "09:30", "11:00", "12:40", "14:10", "15:30"}, 30*time.Minute)
	require.NoError(t, err)
	return NewService(sv, st, Options{
		Timetable:     tt,
		Clock:         clock,
		Locations:     map[string]string{"corp_a": "А", "corp_b": "Б", "corp_d": "Д"},
		DefaultCorpus: "Главный",
		CancelScope:   scope,
		Notifier:      n,
	}, zerolog.Nop())
}

func TestResolveCorpus(t *testing.T) {
	svc := newTestService(t, &fakeSolver{}, nil, monday(9, 0), "", nil)

	testCases := []struct {
		locationID string
		expected   string
	}{
		{locationID: "corp_a", expected: "А"},
		{locationID: "CORP_B", expected: "Б"},
		{locationID: "corp_d", expected: "Д"},
		{locationID: "", expected: "Главный"},
		{locationID: "Main", expected: "Main"},
	}

	for _, tc := range testCases {
		t.Run(tc.locationID, func(t *testing.T) {
			assert.Equal(t, tc.expected, svc.ResolveCorpus(tc.locationID))
		})
	}
}

func TestFindRooms_RoomFound(t *testing.T) {
	sv := &fakeSolver{reply: solver.Reply{Cabinet: 204, Status: solver.StatusAnswer}}
	svc := newTestService(t, sv, nil, monday(9, 45), "", nil)

	resp, err := svc.FindRooms(context.Background(), FindRoomRequest{LocationID: "corp_a", DurationMinutes: 90})
	require.NoError(t, err)

	require.Len(t, resp.FreeRooms, 1)
	assert.Empty(t, resp.Alternatives)
	assert.Nil(t, resp.Reason)
	assert.Equal(t, RoomInfo{
		Name:           "204",
		LocationName:   "А",
		LocationID:     "corp_a",
		Floor:          2,
		ScheduleFree:   true,
		CameraFree:     true,
		CameraStatus:   "свободен (камера)",
		AvailableFrom:  "09:30",
		AvailableUntil: "11:00",
	}, resp.FreeRooms[0])

	require.Len(t, sv.requests, 1)
	assert.Equal(t, solver.Request{ID: 1, StartTime: "09:30", Duration: 90, Corpus: "А"}, sv.requests[0])
}

func TestFindRooms_ResponseShape(t *testing.T) {
	sv := &fakeSolver{reply: solver.Reply{Cabinet: 1012, Status: solver.StatusAnswer}}
	svc := newTestService(t, sv, nil, monday(6, 15), "", nil)

	resp, err := svc.FindRooms(context.Background(), FindRoomRequest{LocationID: "corp_b", DurationMinutes: 45})
	require.NoError(t, err)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"free_rooms": [{
			"name": "1012", "location_name": "Б", "location_id": "corp_b", "floor": 10,
			"capacity": null, "schedule_free": true, "camera_free": true,
			"camera_status": "свободен (камера)", "auditory_id": null,
			"available_from": "08:00", "available_until": "08:45"
		}],
		"alternatives": [],
		"reason": null
	}`, string(body))
}

func TestFindRooms_NoMoreClasses(t *testing.T) {
	sv := &fakeSolver{}
	svc := newTestService(t, sv, nil, monday(16, 1), "", nil)

	resp, err := svc.FindRooms(context.Background(), FindRoomRequest{LocationID: "corp_a", DurationMinutes: 90})
	require.NoError(t, err)

	assert.NotNil(t, resp.FreeRooms)
	assert.Empty(t, resp.FreeRooms)
	assert.NotNil(t, resp.Alternatives)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, "На сегодня пар больше нет. Последняя пара начинается в 15:30.", *resp.Reason)
	assert.Empty(t, sv.requests, "solver must not be called")
}

func TestFindRooms_SolverDeclines(t *testing.T) {
	testCases := []struct {
		name  string
		reply solver.Reply
	}{
		{name: "Zero cabinet", reply: solver.Reply{Cabinet: 0, Status: solver.StatusAnswer}},
		{name: "Wrong status", reply: solver.Reply{Cabinet: 204, Status: "busy"}},
		{name: "Empty reply", reply: solver.Reply{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(t, &fakeSolver{reply: tc.reply}, nil, monday(11, 51), "", nil)

			resp, err := svc.FindRooms(context.Background(), FindRoomRequest{LocationID: "corp_a", DurationMinutes: 90})
			require.NoError(t, err)
			assert.Empty(t, resp.FreeRooms)
			require.NotNil(t, resp.Reason)
			assert.Equal(t, "C++ сервер не нашёл свободный кабинет на 12:40", *resp.Reason)
		})
	}
}

func TestFindRooms_SolverFailureBecomesReason(t *testing.T) {
	sv := &fakeSolver{err: errors.Join(solver.ErrConnection, errors.New("dial tcp 127.0.0.1:5555: connection refused"))}
	svc := newTestService(t, sv, nil, monday(9, 45), "", nil)

	resp, err := svc.FindRooms(context.Background(), FindRoomRequest{LocationID: "corp_a", DurationMinutes: 90})
	require.NoError(t, err)
	assert.Empty(t, resp.FreeRooms)
	assert.Empty(t, resp.Alternatives)
	require.NotNil(t, resp.Reason)
	assert.Contains(t, *resp.Reason, "connection refused")
}

func TestFindRooms_NegativeDuration(t *testing.T) {
	sv := &fakeSolver{}
	svc := newTestService(t, sv, nil, monday(9, 45), "", nil)

	_, err := svc.FindRooms(context.Background(), FindRoomRequest{LocationID: "corp_a", DurationMinutes: -5})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, sv.requests)
}

func TestFindRooms_RequestIDsAreUnique(t *testing.T) {
	sv := &fakeSolver{reply: solver.Reply{Cabinet: 101, Status: solver.StatusAnswer}}
	svc := newTestService(t, sv, nil, monday(9, 0), "", nil)

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.FindRooms(context.Background(), FindRoomRequest{DurationMinutes: 30})
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, calls)
	for _, req := range sv.requests {
		assert.False(t, seen[req.ID], "id %d reused", req.ID)
		seen[req.ID] = true
		assert.Equal(t, "Главный", req.Corpus)
	}
	assert.Len(t, seen, calls)
	for id := int64(1); id <= calls; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}
}

func seedRoom(t *testing.T, st store.Store, name, corpus string, rows ...model.AuditoryJournal) model.Auditory {
	t.Helper()
	ctx := context.Background()
	aud, err := st.InsertAuditory(ctx, model.Auditory{Name: name, Corpus: corpus})
	require.NoError(t, err)
	for _, r := range rows {
		r.AudID = aud.ID
		_, err := st.InsertJournal(ctx, r)
		require.NoError(t, err)
	}
	return aud
}

func slotRow(day int, start, end string) model.AuditoryJournal {
	return model.AuditoryJournal{DayOfWeek: day, StartTime: start, EndTime: end, Duration: 90, TimeStatus: 1}
}

func TestCancelBooking_Validation(t *testing.T) {
	st := newSQLiteStore(t)
	svc := newTestService(t, &fakeSolver{}, st, monday(10, 0), "", nil)

	testCases := []struct {
		name string
		req  CancelRequest
	}{
		{name: "Missing name", req: CancelRequest{StartTime: "09:30", EndTime: "11:00"}},
		{name: "Blank name", req: CancelRequest{AuditoryName: "  ", StartTime: "09:30", EndTime: "11:00"}},
		{name: "Bad start", req: CancelRequest{AuditoryName: "204", StartTime: "half past nine", EndTime: "11:00"}},
		{name: "Bad end", req: CancelRequest{AuditoryName: "204", StartTime: "09:30", EndTime: "25:00"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.CancelBooking(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, StatusError, res.Status)
			assert.NotEmpty(t, res.Message)
			assert.Zero(t, res.DeletedCount)
		})
	}
}

func TestCancelBooking_UnknownAuditory(t *testing.T) {
	st := newSQLiteStore(t)
	svc := newTestService(t, &fakeSolver{}, st, monday(10, 0), "", nil)

	res, err := svc.CancelBooking(context.Background(), CancelRequest{
		AuditoryName: "999", Corpus: "А", StartTime: "09:30", EndTime: "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, CancelResult{Status: StatusNotFound, Message: "Аудитория 999 не найдена в базе данных."}, res)
}

func TestCancelBooking_SlotScope(t *testing.T) {
	st := newSQLiteStore(t)
	notifier := &recordingNotifier{}
	svc := newTestService(t, &fakeSolver{}, st, monday(10, 0), config.CancelScopeSlot, notifier)
	ctx := context.Background()

	aud := seedRoom(t, st, "Б-101", "Б",
		slotRow(1, "09:30", "11:00"),
		slotRow(1, "11:00", "12:30"),
		slotRow(2, "09:30", "11:00"),
	)

	// Plain name misses, corpus-prefixed name matches.
	res, err := svc.CancelBooking(ctx, CancelRequest{
		TelegramUserID: 42, AuditoryName: "101", Corpus: "Б", StartTime: "9:30", EndTime: "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, CancelResult{Status: StatusOK, Message: "Бронь аудитории Б-101 успешно отменена.", DeletedCount: 1}, res)

	remaining, err := st.ListJournalByAuditory(ctx, aud.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, notification.Cancellation{
		Auditory: "Б-101", Corpus: "Б", StartTime: "09:30", EndTime: "11:00", Deleted: 1, TelegramUserID: 42,
	}, notifier.events[0])

	// The same slot again has nothing left to delete.
	res, err = svc.CancelBooking(ctx, CancelRequest{AuditoryName: "Б-101", StartTime: "09:30", EndTime: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, CancelResult{Status: StatusNotFound, Message: "Запись о бронировании не найдена в журнале."}, res)
	assert.Len(t, notifier.events, 1, "not_found must not notify")
}

func TestCancelBooking_SlotScopeKeepsOtherTimeStatus(t *testing.T) {
	st := newSQLiteStore(t)
	tt, err := timetable.Parse([]string{"08:00", "09:30", "11:00", "12:40", "14:10", "15:30"}, 30*time.Minute)
	require.NoError(t, err)
	svc := NewService(&fakeSolver{}, st, Options{
		Timetable:        tt,
		Clock:            monday(10, 0),
		CancelScope:      config.CancelScopeSlot,
		CancelTimeStatus: model.TimeStatusBooked,
	}, zerolog.Nop())
	ctx := context.Background()

	booked := slotRow(1, "09:30", "11:00")
	booked.TimeStatus = model.TimeStatusBooked
	aud := seedRoom(t, st, "204", "А", slotRow(1, "09:30", "11:00"), booked)

	res, err := svc.CancelBooking(ctx, CancelRequest{AuditoryName: "204", StartTime: "09:30", EndTime: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, int64(1), res.DeletedCount)

	remaining, err := st.ListJournalByAuditory(ctx, aud.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, model.TimeStatusScheduled, remaining[0].TimeStatus, "the imported lesson stays")

	res, err = svc.CancelBooking(ctx, CancelRequest{AuditoryName: "204", StartTime: "09:30", EndTime: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestCancelBooking_RoomScope(t *testing.T) {
	st := newSQLiteStore(t)
	svc := newTestService(t, &fakeSolver{}, st, monday(10, 0), config.CancelScopeRoom, nil)
	ctx := context.Background()

	aud := seedRoom(t, st, "204", "А",
		slotRow(1, "09:30", "11:00"),
		slotRow(3, "14:10", "15:40"),
	)
	seedRoom(t, st, "305", "А", slotRow(1, "09:30", "11:00"))

	res, err := svc.CancelBooking(ctx, CancelRequest{AuditoryName: "204", StartTime: "08:00", EndTime: "09:30"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, int64(2), res.DeletedCount)

	remaining, err := st.ListJournalByAuditory(ctx, aud.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	all, err := st.ListJournal(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "other rooms are untouched")
}

func TestCancelBooking_RoomWithoutJournal(t *testing.T) {
	st := newSQLiteStore(t)
	svc := newTestService(t, &fakeSolver{}, st, monday(10, 0), config.CancelScopeRoom, nil)
	seedRoom(t, st, "204", "А")

	res, err := svc.CancelBooking(context.Background(), CancelRequest{AuditoryName: "204", StartTime: "09:30", EndTime: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Zero(t, res.DeletedCount)
}

// brokenStore fails every journal deletion.
type brokenStore struct {
	store.Store
}

func (b brokenStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return b.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(brokenStore{Store: tx})
	})
}

func (brokenStore) DeleteJournal(context.Context, store.JournalFilter) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestCancelBooking_StorageError(t *testing.T) {
	st := newSQLiteStore(t)
	seedRoom(t, st, "204", "А", slotRow(1, "09:30", "11:00"))
	notifier := &recordingNotifier{}
	svc := newTestService(t, &fakeSolver{}, brokenStore{Store: st}, monday(10, 0), "", notifier)

	res, err := svc.CancelBooking(context.Background(), CancelRequest{AuditoryName: "204", StartTime: "09:30", EndTime: "11:00"})
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Message, "database is locked")
	assert.Empty(t, notifier.events)
}
