package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schedule-bridge-backend/config"
	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/notification"
	"schedule-bridge-backend/internal/store"
	"schedule-bridge-backend/internal/timetable"
)

// CancelBooking releases a booked room. The room is looked up by name and then
// by "corpus-name". With the slot scope only today's rows matching the start
// and end times (and the configured time_status, if any) are deleted; the room
// scope deletes every row of the room.
//
// The returned result is always filled in. The error is ErrValidation for bad
// input and ErrStorage for database failures; not_found is not an error.
func (s *Service) CancelBooking(ctx context.Context, req CancelRequest) (CancelResult, error) {
	name := strings.TrimSpace(req.AuditoryName)
	corpus := strings.TrimSpace(req.Corpus)
	s.logger.Info().
		Int64("user", req.TelegramUserID).
		Str("auditory", name).
		Str("corpus", corpus).
		Str("start", req.StartTime).
		Str("end", req.EndTime).
		Msg("cancel booking")

	if name == "" {
		return CancelResult{Status: StatusError, Message: "Не указано имя аудитории."},
			fmt.Errorf("%w: auditory_name is required", ErrValidation)
	}
	start, err := timetable.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return CancelResult{Status: StatusError, Message: "Некорректное время начала: " + req.StartTime},
			fmt.Errorf("%w: start_time: %v", ErrValidation, err)
	}
	end, err := timetable.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return CancelResult{Status: StatusError, Message: "Некорректное время окончания: " + req.EndTime},
			fmt.Errorf("%w: end_time: %v", ErrValidation, err)
	}

	var (
		result CancelResult
		found  model.Auditory
	)
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		aud, err := findAuditory(ctx, tx, name, corpus)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Str("auditory", name).Msg("auditory not found")
			result = CancelResult{
				Status:  StatusNotFound,
				Message: "Аудитория " + name + " не найдена в базе данных.",
			}
			return nil
		}
		if err != nil {
			return err
		}
		found = aud

		filter := store.JournalFilter{AudID: aud.ID}
		if s.cancelScope == config.CancelScopeSlot {
			filter.DayOfWeek = timetable.ISOWeekday(s.clock.Now())
			filter.StartTime = start.String()
			filter.EndTime = end.String()
			filter.TimeStatus = s.cancelStatus
		}
		deleted, err := tx.DeleteJournal(ctx, filter)
		if err != nil {
			return err
		}
		s.logger.Info().
			Int64("aud_id", aud.ID).
			Int("day", filter.DayOfWeek).
			Str("start", filter.StartTime).
			Str("end", filter.EndTime).
			Int("time_status", filter.TimeStatus).
			Int64("deleted", deleted).
			Msg("journal rows deleted")

		if deleted == 0 {
			result = CancelResult{Status: StatusNotFound, Message: "Запись о бронировании не найдена в журнале."}
			return nil
		}
		result = CancelResult{
			Status:       StatusOK,
			Message:      "Бронь аудитории " + aud.Name + " успешно отменена.",
			DeletedCount: deleted,
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("auditory", name).Msg("cancel booking failed")
		return CancelResult{Status: StatusError, Message: "Ошибка при отмене: " + err.Error()},
			fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if result.Status == StatusOK && s.notifier != nil {
		s.notifier.Dispatch(notification.Cancellation{
			Auditory:       found.Name,
			Corpus:         found.Corpus,
			StartTime:      start.String(),
			EndTime:        end.String(),
			Deleted:        result.DeletedCount,
			TelegramUserID: req.TelegramUserID,
		})
	}
	return result, nil
}

func findAuditory(ctx context.Context, tx store.Store, name, corpus string) (model.Auditory, error) {
	aud, err := tx.FindAuditoryByName(ctx, name)
	if !errors.Is(err, store.ErrNotFound) || corpus == "" {
		return aud, err
	}
	return tx.FindAuditoryByName(ctx, corpus+"-"+name)
}
