package domain

import (
	"bytes"
	"encoding/json"
)

// Report is the grading harness output. The raw bytes are kept verbatim so the
// aggregate and the audit copy reproduce it exactly.
type Report struct {
	Raw json.RawMessage
}

// FinalScore returns scores.final_score, or 0 when the field is absent or not a number
func (r *Report) FinalScore() float64 {
	if r == nil || len(r.Raw) == 0 {
		return 0
	}

	var doc struct {
		Scores map[string]json.RawMessage `json:"scores"`
	}
	if err := json.Unmarshal(r.Raw, &doc); err != nil {
		return 0
	}

	raw, ok := doc.Scores["final_score"]
	if !ok {
		return 0
	}

	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		return 0
	}
	return score
}

// Indented returns the report re-serialized with two-space indentation
func (r *Report) Indented() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
