package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/parse"
	"schedule-bridge-backend/internal/store"
)

// Header keywords, matched as case-insensitive substrings.
const (
	columnDay     = "день"
	columnTime    = "время"
	columnSubject = "предмет"
	columnTeacher = "преподаватель"
	columnRoom    = "кабинет"
)

// Service imports timetable sheets and serves the imported data.
type Service struct {
	store  store.Store
	logger zerolog.Logger
}

// NewService creates a new schedule service.
func NewService(s store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger.With().Str("component", "schedule").Logger(),
	}
}

type columns struct {
	day, time, subject, teacher, room int
}

// Import writes the rows of f into the auditory, journal and subject tables
// inside one transaction. A sheet without day, time or room columns imports
// nothing and is not an error.
func (s *Service) Import(ctx context.Context, f File) (Result, error) {
	res := Result{FileName: f.FileName, Sheet: f.Sheet}
	if len(f.Rows) > 0 {
		res.TotalRows = len(f.Rows) - 1
	}
	s.logger.Info().Str("file", f.FileName).Str("sheet", f.Sheet).Int("rows", res.TotalRows).Msg("importing schedule")

	if len(f.Rows) < 2 {
		s.logger.Warn().Str("file", f.FileName).Msg("no data rows in schedule file")
		return res, nil
	}

	header := f.Rows[0]
	cols := columns{
		day:     parse.Column(header, columnDay),
		time:    parse.Column(header, columnTime),
		subject: parse.Column(header, columnSubject),
		teacher: parse.Column(header, columnTeacher),
		room:    parse.Column(header, columnRoom),
	}
	s.logger.Debug().
		Int("day", cols.day).Int("time", cols.time).Int("subject", cols.subject).
		Int("teacher", cols.teacher).Int("room", cols.room).
		Msg("header columns detected")

	if cols.day < 0 || cols.time < 0 || cols.room < 0 {
		s.logger.Error().Strs("header", header).Msg("missing required columns (день/время/кабинет)")
		return res, nil
	}

	counts := Result{}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		counts = Result{}
		return s.importRows(ctx, tx, cols, f.Rows[1:], &counts)
	})
	if err != nil {
		return res, fmt.Errorf("import %q: %w", f.FileName, err)
	}

	res.AuditoriesAdded = counts.AuditoriesAdded
	res.JournalEntriesAdded = counts.JournalEntriesAdded
	res.RowsSkipped = counts.RowsSkipped
	s.logger.Info().
		Int("auditories_added", res.AuditoriesAdded).
		Int("journal_entries_added", res.JournalEntriesAdded).
		Int("rows_skipped", res.RowsSkipped).
		Msg("schedule saved")
	return res, nil
}

func (s *Service) importRows(ctx context.Context, tx store.Store, cols columns, rows [][]string, counts *Result) error {
	existing, err := tx.ListAuditories(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]model.Auditory, len(existing))
	for _, a := range existing {
		byName[a.Name] = a
	}

	for i, row := range rows {
		line := i + 1
		dayRaw := strings.TrimSpace(parse.Cell(row, cols.day))
		room := strings.TrimSpace(parse.Cell(row, cols.room))

		if dayRaw == "" || room == "" {
			s.logger.Debug().Int("row", line).Msg("row skipped: empty day or room")
			counts.RowsSkipped++
			continue
		}
		day := parse.DayOfWeek(dayRaw)
		if day == 0 {
			s.logger.Debug().Int("row", line).Str("day", dayRaw).Msg("row skipped: unknown day")
			counts.RowsSkipped++
			continue
		}

		aud, ok := byName[room]
		if !ok {
			candidate := model.Auditory{Name: room, Corpus: parse.Corpus(room)}
			if n, found := parse.RoomNumber(room); found {
				candidate.Number = &n
			}
			aud, err = tx.InsertAuditory(ctx, candidate)
			if err != nil {
				return err
			}
			byName[room] = aud
			counts.AuditoriesAdded++
			s.logger.Debug().Int64("id", aud.ID).Str("name", room).Str("corpus", aud.Corpus).Msg("created auditory")
		}

		if subject := strings.TrimSpace(parse.Cell(row, cols.subject)); subject != "" {
			teachers := strings.TrimSpace(parse.Cell(row, cols.teacher))
			if _, err := tx.UpsertSubject(ctx, subject, teachers); err != nil {
				return err
			}
		}

		timeRaw := parse.Cell(row, cols.time)
		lesson, ok := parse.LessonTime(timeRaw)
		if !ok {
			s.logger.Warn().Int("row", line).Str("time", timeRaw).Msg("row time could not be parsed, journal entry skipped")
			continue
		}
		if _, err := tx.InsertJournal(ctx, model.AuditoryJournal{
			AudID:      aud.ID,
			DayOfWeek:  day,
			StartTime:  lesson.Start.String(),
			EndTime:    lesson.End.String(),
			Duration:   lesson.Minutes(),
			TimeStatus: model.TimeStatusScheduled,
		}); err != nil {
			return err
		}
		counts.JournalEntriesAdded++
	}
	return nil
}

// Auditories lists every room.
func (s *Service) Auditories(ctx context.Context) ([]model.Auditory, error) {
	return s.store.ListAuditories(ctx)
}

// Journal lists every journal row.
func (s *Service) Journal(ctx context.Context) ([]model.AuditoryJournal, error) {
	return s.store.ListJournal(ctx)
}

// JournalFor lists the journal rows of one room.
func (s *Service) JournalFor(ctx context.Context, audID int64) ([]model.AuditoryJournal, error) {
	return s.store.ListJournalByAuditory(ctx, audID)
}

// Subjects lists every subject.
func (s *Service) Subjects(ctx context.Context) ([]SubjectView, error) {
	list, err := s.store.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SubjectView, len(list))
	for i, sub := range list {
		views[i] = SubjectView{ID: sub.ID, SubName: sub.SubName, TeacherName: sub.TeacherName}
	}
	return views, nil
}
