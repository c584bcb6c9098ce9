package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schedule-bridge-backend/internal/db"
	"schedule-bridge-backend/internal/logging"
	"schedule-bridge-backend/internal/schedule"
	"schedule-bridge-backend/internal/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a timetable sheet from a JSON file",
	Long: `Import reads {"fileName", "sheet", "rows"} from a JSON file, the same body
POST /api/schedule/upload accepts, and writes it to the configured database.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to the JSON sheet")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Server.Environment)

	raw, err := os.ReadFile(importFile)
	if err != nil {
		return err
	}
	var f schedule.File
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse %s: %w", importFile, err)
	}
	if f.FileName == "" {
		f.FileName = importFile
	}

	gormDB, err := db.Init(&cfg.Database, cfg.Server.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	svc := schedule.NewService(store.NewGormStore(gormDB), logger)

	res, err := svc.Import(cmd.Context(), f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
