package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/parse"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	FindAuditoryByName(ctx context.Context, name string) (model.Auditory, error)
	ListAuditories(ctx context.Context) ([]model.Auditory, error)
	InsertAuditory(ctx context.Context, a model.Auditory) (model.Auditory, error)

	InsertJournal(ctx context.Context, j model.AuditoryJournal) (model.AuditoryJournal, error)
	ListJournal(ctx context.Context) ([]model.AuditoryJournal, error)
	ListJournalByAuditory(ctx context.Context, audID int64) ([]model.AuditoryJournal, error)
	DeleteJournal(ctx context.Context, f JournalFilter) (int64, error)

	UpsertSubject(ctx context.Context, name, teachers string) (model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)

	SaveSubscription(ctx context.Context, sub model.PushSubscription) error
	FindSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForCorpus(ctx context.Context, corpus string) ([]model.PushSubscription, error)

	// WithTx runs fn against a Store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) FindAuditoryByName(ctx context.Context, name string) (model.Auditory, error) {
	var a model.Auditory
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Auditory{}, ErrNotFound
		}
		return model.Auditory{}, fmt.Errorf("find auditory %q: %w", name, err)
	}
	return a, nil
}

func (s *gormStore) ListAuditories(ctx context.Context) ([]model.Auditory, error) {
	var list []model.Auditory
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list auditories: %w", err)
	}
	return list, nil
}

// InsertAuditory stores a and returns the stored row with its generated id.
func (s *gormStore) InsertAuditory(ctx context.Context, a model.Auditory) (model.Auditory, error) {
	row := a
	row.ID = 0
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return model.Auditory{}, fmt.Errorf("insert auditory %q: %w", a.Name, err)
	}
	return row, nil
}

// InsertJournal stores j and returns the stored row with its generated id.
func (s *gormStore) InsertJournal(ctx context.Context, j model.AuditoryJournal) (model.AuditoryJournal, error) {
	row := j
	row.ID = 0
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return model.AuditoryJournal{}, fmt.Errorf("insert journal row for auditory %d: %w", j.AudID, err)
	}
	return row, nil
}

func (s *gormStore) ListJournal(ctx context.Context) ([]model.AuditoryJournal, error) {
	var list []model.AuditoryJournal
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	return list, nil
}

func (s *gormStore) ListJournalByAuditory(ctx context.Context, audID int64) ([]model.AuditoryJournal, error) {
	var list []model.AuditoryJournal
	if err := s.db.WithContext(ctx).Where("aud_id = ?", audID).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list journal for auditory %d: %w", audID, err)
	}
	return list, nil
}

// DeleteJournal removes the rows matching f and reports how many were deleted.
func (s *gormStore) DeleteJournal(ctx context.Context, f JournalFilter) (int64, error) {
	q := s.db.WithContext(ctx).Where("aud_id = ?", f.AudID)
	if f.DayOfWeek > 0 {
		q = q.Where("day_of_week = ?", f.DayOfWeek)
	}
	if f.StartTime != "" {
		q = q.Where("start_time = ?", f.StartTime)
	}
	if f.EndTime != "" {
		q = q.Where("end_time = ?", f.EndTime)
	}
	if f.TimeStatus > 0 {
		q = q.Where("time_status = ?", f.TimeStatus)
	}
	res := q.Delete(&model.AuditoryJournal{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete journal rows for auditory %d: %w", f.AudID, res.Error)
	}
	return res.RowsAffected, nil
}

// UpsertSubject creates the subject or merges teachers into the stored list.
func (s *gormStore) UpsertSubject(ctx context.Context, name, teachers string) (model.Subject, error) {
	var existing model.Subject
	err := s.db.WithContext(ctx).Where("sub_name = ?", name).First(&existing).Error
	switch {
	case err == nil:
		merged := parse.MergeTeachers(existing.TeacherName, teachers)
		if merged == existing.TeacherName {
			return existing, nil
		}
		if err := s.db.WithContext(ctx).Model(&existing).Update("teacher_name", merged).Error; err != nil {
			return model.Subject{}, fmt.Errorf("update subject %q: %w", name, err)
		}
		existing.TeacherName = merged
		return existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := model.Subject{SubName: name, TeacherName: parse.MergeTeachers("", teachers)}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sub_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"teacher_name"}),
		}).Create(&row).Error; err != nil {
			return model.Subject{}, fmt.Errorf("insert subject %q: %w", name, err)
		}
		return row, nil
	default:
		return model.Subject{}, fmt.Errorf("find subject %q: %w", name, err)
	}
}

func (s *gormStore) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var list []model.Subject
	if err := s.db.WithContext(ctx).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return list, nil
}

func (s *gormStore) SaveSubscription(ctx context.Context, sub model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "corpus"}),
	}).Create(&sub).Error
}

func (s *gormStore) FindSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.PushSubscription{}, ErrNotFound
		}
		return model.PushSubscription{}, err
	}
	return sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

// SubscriptionsForCorpus returns subscriptions filtered to corpus plus the
// unfiltered ones.
func (s *gormStore) SubscriptionsForCorpus(ctx context.Context, corpus string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("corpus = ? OR corpus = ?", "", corpus).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions for corpus %q: %w", corpus, err)
	}
	return subs, nil
}
