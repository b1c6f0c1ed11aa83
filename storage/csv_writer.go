package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"activity-sync/models"
	"activity-sync/utils"
)

// CSVWriter dumps the raw listings of a run to a CSV file for debugging scrapes
type CSVWriter struct {
	filePath string
	logger   *utils.Logger
}

// NewCSVWriter creates a new CSVWriter
func NewCSVWriter(filePath string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{filePath: filePath, logger: logger}
}

var csvHeader = []string{
	"source_id", "category", "external_id", "name", "unparented",
	"schedule", "cost", "age", "location", "registration",
	"detail_url", "enriched", "detail_sessions", "raw_text",
}

// SaveRaw writes the listings to the CSV file, replacing any previous dump
func (w *CSVWriter) SaveRaw(listings []*models.Listing) error {
	// Ensure output directory exists
	dir := filepath.Dir(w.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(w.filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, l := range listings {
		row := []string{
			l.SourceID,
			l.Category(),
			l.ExternalID,
			l.Name,
			strconv.FormatBool(l.Unparented),
			l.ScheduleText,
			l.CostText,
			l.AgeText,
			l.LocationText,
			l.RegistrationText,
			l.DetailURL,
			strconv.FormatBool(l.Enriched),
			strconv.Itoa(len(l.DetailSessions)),
			l.RawText,
		}
		if err := writer.Write(row); err != nil {
			w.logger.Error("Failed to write CSV row for '%s': %v", l.Name, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV file: %w", err)
	}

	w.logger.Info("Raw listings written to: %s (%d rows)", w.filePath, len(listings))
	return nil
}
