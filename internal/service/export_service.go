package service

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
)

const (
	exportPageSize   = 200
	exportMaxResults = 5000
	resultsSheet     = "Results"
	topicsSheet      = "Topics"
)

// ExportService renders a user's result history as an XLSX workbook.
type ExportService struct {
	resultRepo repository.ResultRepository
}

func NewExportService(resultRepo repository.ResultRepository) *ExportService {
	return &ExportService{resultRepo: resultRepo}
}

// WriteResultsXLSX writes one row per result and one row per (result, topic) pair.
func (s *ExportService) WriteResultsXLSX(ctx context.Context, userID uint, w io.Writer) error {
	results, err := s.loadResults(ctx, userID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if err := writeResultsSheet(f, results); err != nil {
		return err
	}
	if _, err := f.NewSheet(topicsSheet); err != nil {
		return err
	}
	if err := writeTopicsSheet(f, results); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	log.Info().Msgf("[ExportService] exported %d results for user #%d", len(results), userID)
	return nil
}

func (s *ExportService) loadResults(ctx context.Context, userID uint) ([]entity.TestResult, error) {
	var all []entity.TestResult
	for offset := 0; offset < exportMaxResults; offset += exportPageSize {
		page, total, err := s.resultRepo.ListByUser(ctx, userID, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to load results for export: %w", err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize || int64(len(all)) >= total {
			break
		}
	}
	return all, nil
}

func writeResultsSheet(f *excelize.File, results []entity.TestResult) error {
	sw, err := f.NewStreamWriter(resultsSheet)
	if err != nil {
		return err
	}
	headers := []interface{}{"Date", "Test", "Diagnostic", "Score", "Correct", "Questions", "XP", "Graded by"}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}
	for i, r := range results {
		row := []interface{}{
			r.TakenAt.Format("2006-01-02 15:04"),
			sanitizeForExcel(string(r.TestKind)),
			yesNo(r.IsDiagnostic),
			r.OverallScore,
			r.QuestionAnalysis.CorrectCount(),
			len(r.Questions),
			r.XPGained,
			r.GradedBy,
		}
		if err := sw.SetRow(fmt.Sprintf("A%d", i+2), row); err != nil {
			log.Warn().Err(err).Msgf("[ExportService] failed to write row %d", i+2)
		}
	}
	return sw.Flush()
}

func writeTopicsSheet(f *excelize.File, results []entity.TestResult) error {
	sw, err := f.NewStreamWriter(topicsSheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", []interface{}{"Date", "Test", "Topic", "Correct", "Total"}); err != nil {
		return err
	}
	rowNum := 2
	for _, r := range results {
		for _, tp := range r.TopicPerformance {
			row := []interface{}{
				r.TakenAt.Format("2006-01-02 15:04"),
				sanitizeForExcel(string(r.TestKind)),
				sanitizeForExcel(tp.Topic),
				tp.Correct,
				tp.Total,
			}
			if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
				log.Warn().Err(err).Msgf("[ExportService] failed to write topic row %d", rowNum)
			}
			rowNum++
		}
	}
	return sw.Flush()
}

// sanitizeForExcel escapes values that a spreadsheet would treat as a formula.
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
