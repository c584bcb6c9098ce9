package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// PushSubjects dials addr and writes the JSON array of all subjects, unframed,
// then closes the connection.
func (s *Service) PushSubjects(ctx context.Context, addr string, timeout time.Duration) error {
	subjects, err := s.Subjects(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(subjects)
	if err != nil {
		return fmt.Errorf("encode subjects: %w", err)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write subjects to %s: %w", addr, err)
	}

	s.logger.Info().Str("addr", addr).Int("subjects", len(subjects)).Int("bytes", len(payload)).Msg("subjects pushed")
	return nil
}
