// Package export flattens assessment batches to and from CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/paperlens/internal/model"
	"github.com/verte-zerg/paperlens/internal/stats"
)

// Fixed leading columns.
const (
	ColumnTitle     = "title"
	ColumnPublished = "published"
	ColumnURL       = "url"
	ColumnFallback  = "fallback"
)

// Header returns the CSV header for an ordered category set.
func Header(categories []string) []string {
	header := []string{ColumnTitle, ColumnPublished, ColumnURL, ColumnFallback}
	for _, c := range categories {
		header = append(header, stats.ConfidenceColumn(c), stats.IssuesColumn(c))
	}
	return header
}

// WriteCSV writes one row per assessment with the columns from Header.
func WriteCSV(w io.Writer, batch model.Batch, categories []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(categories)); err != nil {
		return err
	}
	for i, row := range batch {
		record := []string{
			row.Title,
			row.Published.UTC().Format(time.RFC3339Nano),
			row.URL,
			strconv.FormatBool(row.Fallback),
		}
		for _, c := range categories {
			score, ok := row.Scores[c]
			if !ok {
				return fmt.Errorf("row %d: no score for category %q", i, c)
			}
			record = append(record, strconv.Itoa(score.Confidence), strconv.Itoa(score.Issues))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a flattened batch. Columns are matched by name, so extra
// columns and any column order are accepted. A missing column or a bad cell
// is reported as *stats.MalformedBatchError.
func ReadCSV(r io.Reader, categories []string) (model.Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &stats.MalformedBatchError{Row: -1, Reason: "missing header"}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range Header(categories) {
		if _, ok := index[name]; !ok {
			return nil, &stats.MalformedBatchError{Row: -1, Column: name, Reason: "missing column"}
		}
	}

	batch := model.Batch{}
	for row := 0; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		cell := func(name string) string {
			i := index[name]
			if i >= len(record) {
				return ""
			}
			return record[i]
		}
		assessment, err := parseRecord(row, cell, categories)
		if err != nil {
			return nil, err
		}
		batch = append(batch, assessment)
	}
	return batch, nil
}

func parseRecord(row int, cell func(string) string, categories []string) (model.PaperAssessment, error) {
	published, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(cell(ColumnPublished)))
	if err != nil {
		return model.PaperAssessment{}, &stats.MalformedBatchError{Row: row, Column: ColumnPublished, Reason: "missing or unparseable timestamp"}
	}
	fallback := false
	if raw := strings.TrimSpace(cell(ColumnFallback)); raw != "" {
		fallback, err = strconv.ParseBool(raw)
		if err != nil {
			return model.PaperAssessment{}, &stats.MalformedBatchError{Row: row, Column: ColumnFallback, Reason: "not a boolean"}
		}
	}
	out := model.PaperAssessment{
		Title:     cell(ColumnTitle),
		URL:       cell(ColumnURL),
		Published: published,
		Fallback:  fallback,
		Scores:    make(map[string]model.Score, len(categories)),
	}
	for _, c := range categories {
		conf, err := parseInt(row, cell, stats.ConfidenceColumn(c))
		if err != nil {
			return model.PaperAssessment{}, err
		}
		issues, err := parseInt(row, cell, stats.IssuesColumn(c))
		if err != nil {
			return model.PaperAssessment{}, err
		}
		out.Scores[c] = model.Score{Confidence: conf, Issues: issues}
	}
	return out, nil
}

func parseInt(row int, cell func(string) string, column string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(cell(column)))
	if err != nil {
		return 0, &stats.MalformedBatchError{Row: row, Column: column, Reason: "not an integer"}
	}
	return v, nil
}
