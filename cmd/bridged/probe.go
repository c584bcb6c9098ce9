package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"schedule-bridge-backend/internal/logging"
	"schedule-bridge-backend/internal/solver"
	"schedule-bridge-backend/internal/timetable"
)

var (
	probeCorpus   string
	probeStart    string
	probeDuration int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one request to the room solver and print the reply",
	Example: `  bridged probe --corpus А --start 09:30 --duration 90`,
	RunE:    runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeCorpus, "corpus", "", "Corpus label sent to the solver (default timetable.default_corpus)")
	probeCmd.Flags().StringVar(&probeStart, "start", "", "Start time HH:mm (default the nearest class start)")
	probeCmd.Flags().IntVar(&probeDuration, "duration", 90, "Duration in minutes")
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Server.Environment)

	corpus := probeCorpus
	if corpus == "" {
		corpus = cfg.Timetable.DefaultCorpus
	}
	start, err := probeStartTime(cfg.Timetable.ClassStarts, cfg.Timetable.GraceMinutes, cfg.Timetable.Timezone)
	if err != nil {
		return err
	}

	queue := solver.NewQueue(solver.Options{
		Addr:          cfg.Solver.Addr(),
		TotalTimeout:  cfg.Solver.TotalTimeout,
		SocketTimeout: cfg.Solver.SocketTimeout,
		Capacity:      1,
	}, logger)
	defer queue.Shutdown(cmd.Context())

	reply, err := queue.Submit(cmd.Context(), solver.Request{
		ID:        1,
		StartTime: start,
		Duration:  probeDuration,
		Corpus:    corpus,
	})
	if err != nil {
		return fmt.Errorf("solver at %s: %w", queue.Addr(), err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reply)
}

func probeStartTime(classStarts []string, graceMinutes int, zone string) (string, error) {
	if probeStart != "" {
		t, err := timetable.ParseTimeOfDay(probeStart)
		if err != nil {
			return "", err
		}
		return t.String(), nil
	}
	tt, err := timetable.Parse(classStarts, time.Duration(graceMinutes)*time.Minute)
	if err != nil {
		return "", err
	}
	clock, err := timetable.NewZoneClock(zone)
	if err != nil {
		return "", err
	}
	slot, ok := tt.FindNearestClassStart(timetable.Of(clock.Now()))
	if !ok {
		return "", fmt.Errorf("no class starts left today; pass --start")
	}
	return slot.String(), nil
}
