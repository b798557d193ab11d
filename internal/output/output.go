package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// CSVHeader is the header row of the tabular projection
var CSVHeader = []string{"Repository", "Status", "Final Score", "Run URL"}

// CSVPath derives the CSV file name from the JSON output path. The result
// never equals jsonPath.
func CSVPath(jsonPath string) string {
	if strings.HasSuffix(jsonPath, ".csv") {
		return jsonPath + ".csv"
	}
	p := strings.ReplaceAll(jsonPath, ".json", ".csv")
	if !strings.HasSuffix(p, ".csv") {
		p += ".csv"
	}
	return p
}

// FormatScore renders a score without trailing zeros
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Rows projects outcomes onto the CSV columns
func Rows(outcomes []*domain.Outcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{o.Repo, string(o.Status), FormatScore(o.Score), o.RunURL})
	}
	return rows
}

// EncodeJSON writes outcomes as an indented JSON array
func EncodeJSON(w io.Writer, outcomes []*domain.Outcome) error {
	if outcomes == nil {
		outcomes = []*domain.Outcome{}
	}
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// EncodeCSV writes the tabular projection of outcomes
func EncodeCSV(w io.Writer, outcomes []*domain.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(outcomes)); err != nil {
		return err
	}
	return cw.Error()
}

// WriteAggregate writes the JSON aggregate to jsonPath and the CSV next to it.
// Each file is replaced atomically. It returns the CSV path.
func WriteAggregate(jsonPath string, outcomes []*domain.Outcome) (string, error) {
	var jsonBuf bytes.Buffer
	if err := EncodeJSON(&jsonBuf, outcomes); err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	if err := writeFileAtomic(jsonPath, jsonBuf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", jsonPath, err)
	}

	csvPath := CSVPath(jsonPath)
	var csvBuf bytes.Buffer
	if err := EncodeCSV(&csvBuf, outcomes); err != nil {
		return "", fmt.Errorf("failed to encode CSV: %w", err)
	}
	if err := writeFileAtomic(csvPath, csvBuf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", csvPath, err)
	}
	return csvPath, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RenderTable prints outcomes as a console table
func RenderTable(w io.Writer, outcomes []*domain.Outcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(CSVHeader)
	table.AppendBulk(Rows(outcomes))
	table.Render()
}

// RenderSummary prints a batch summary as a console table
func RenderSummary(w io.Writer, s *domain.BatchSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Repositories", fmt.Sprintf("%d", s.Total)})
	for _, status := range domain.AllStatuses {
		table.Append([]string{string(status), fmt.Sprintf("%d", s.ByStatus[status])})
	}
	if s.ScoredCount > 0 {
		table.Append([]string{"Mean Score", fmt.Sprintf("%.2f", s.MeanScore)})
		table.Append([]string{"Max Score", FormatScore(s.MaxScore)})
		table.Append([]string{"Min Score", FormatScore(s.MinScore)})
	}
	table.Render()
}
