package schedule

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schedule-bridge-backend/internal/db"
	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
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

	s := store.NewGormStore(gormDB)
	return NewService(s, zerolog.Nop()), s
}

var sheetHeader = []string{"День", "Время", "Предмет", "Преподаватель", "Кабинет"}

func TestImport(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	res, err := svc.Import(ctx, File{
		FileName: "week.xlsx",
		Sheet:    "Лист1",
		Rows: [][]string{
			sheetHeader,
			{"Понедельник", "9:30-11:00", "Математика", "Иванов", "А-204"},
			{"Понедельник", "11.00 – 12.30", "Физика", "Петров, Сидоров", "А-204"},
			{"Вторник", "8:00-9:30", "Математика", "иванов, Смирнов", "Лаб Д корпус"},
			{"", "8:00-9:30", "Химия", "", "Б-101"},
			{"Funday", "8:00-9:30", "Химия", "", "Б-101"},
			{"Среда", "8:00-9:30", "Химия", "", ""},
			{"Среда", "когда-нибудь", "", "", "Б-102"},
			{"Четверг", "14:10-15:40"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, Result{
		FileName:            "week.xlsx",
		Sheet:               "Лист1",
		TotalRows:           8,
		AuditoriesAdded:     3,
		JournalEntriesAdded: 3,
		RowsSkipped:         4,
	}, res)

	aud, err := s.FindAuditoryByName(ctx, "А-204")
	require.NoError(t, err)
	assert.Equal(t, "А", aud.Corpus)
	require.NotNil(t, aud.Number)
	assert.Equal(t, 204, *aud.Number)

	lab, err := s.FindAuditoryByName(ctx, "Лаб Д корпус")
	require.NoError(t, err)
	assert.Equal(t, "Д", lab.Corpus)
	assert.Nil(t, lab.Number)

	journal, err := svc.JournalFor(ctx, aud.ID)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, model.AuditoryJournal{
		ID: journal[0].ID, AudID: aud.ID, DayOfWeek: 1, StartTime: "09:30", EndTime: "11:00", Duration: 90, TimeStatus: 1,
	}, journal[0])

	subjects, err := svc.Subjects(ctx)
	require.NoError(t, err)
	byName := map[string]string{}
	for _, sub := range subjects {
		byName[sub.SubName] = sub.TeacherName
	}
	assert.Equal(t, map[string]string{
		"Математика": "Иванов, Смирнов",
		"Физика":     "Петров, Сидоров",
	}, byName)
}

func TestImport_ReusesExistingAuditories(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	file := File{FileName: "a", Rows: [][]string{sheetHeader, {"Пятница", "8:00-9:30", "", "", "Д-310"}}}

	first, err := svc.Import(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AuditoriesAdded)

	second, err := svc.Import(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 0, second.AuditoriesAdded)
	assert.Equal(t, 1, second.JournalEntriesAdded)

	auditories, err := svc.Auditories(ctx)
	require.NoError(t, err)
	assert.Len(t, auditories, 1)

	journal, err := svc.Journal(ctx)
	require.NoError(t, err)
	assert.Len(t, journal, 2)
}

func TestImport_MissingRequiredColumns(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Import(context.Background(), File{
		FileName: "bad",
		Rows: [][]string{
			{"День", "Предмет", "Кабинет"},
			{"Понедельник", "Математика", "А-101"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{FileName: "bad", TotalRows: 1}, res)

	auditories, err := svc.Auditories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auditories)
}

func TestImport_NoDataRows(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Import(context.Background(), File{FileName: "empty", Rows: [][]string{sheetHeader}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalRows)

	res, err = svc.Import(context.Background(), File{FileName: "nil"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalRows)
}

// failingStore fails journal inserts after delegating everything else.
type failingStore struct {
	store.Store
}

func (f failingStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(failingStore{Store: tx})
	})
}

func (failingStore) InsertJournal(context.Context, model.AuditoryJournal) (model.AuditoryJournal, error) {
	return model.AuditoryJournal{}, errors.New("disk full")
}

func TestImport_RollsBackOnStorageError(t *testing.T) {
	_, s := newTestService(t)
	svc := NewService(failingStore{Store: s}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Import(ctx, File{FileName: "x", Rows: [][]string{sheetHeader, {"Понедельник", "9:30-11:00", "Математика", "Иванов", "А-204"}}})
	require.Error(t, err)

	_, err = s.FindAuditoryByName(ctx, "А-204")
	assert.ErrorIs(t, err, store.ErrNotFound, "auditory insert must be rolled back")
	subjects, err := s.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestPushSubjects(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	_, err := s.UpsertSubject(ctx, "Математика", "Иванов")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		body, _ := io.ReadAll(conn)
		received <- body
	}()

	require.NoError(t, svc.PushSubjects(ctx, ln.Addr().String(), time.Second))

	select {
	case body := <-received:
		assert.JSONEq(t, `[{"id":1,"subName":"Математика","teacherName":"Иванов"}]`, string(body))
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received subjects")
	}
}

func TestPushSubjects_DialFailure(t *testing.T) {
	svc, _ := newTestService(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = svc.PushSubjects(context.Background(), addr, time.Second)
	assert.Error(t, err)
}
