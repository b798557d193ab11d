package harvest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

// maxReportSize bounds how much of report.json is read into memory
const maxReportSize = 32 << 20

// Extractor opens artifact archives and reads the report member
type Extractor struct {
	member string
}

// NewExtractor creates an extractor that reads the archive member named member
func NewExtractor(member string) *Extractor {
	return &Extractor{member: member}
}

// Extract parses the report out of a zip archive held in memory. A corrupt
// archive, a missing member and malformed JSON all yield ErrCodeParse.
func (e *Extractor) Extract(archive []byte) (*domain.Report, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, apperrors.NewParseError("artifact is not a readable zip archive", err)
	}

	var member *zip.File
	for _, f := range zr.File {
		if f.Name == e.member {
			member = f
			break
		}
	}
	if member == nil {
		return nil, apperrors.NewParseError(fmt.Sprintf("archive does not contain %q", e.member), nil)
	}

	rc, err := member.Open()
	if err != nil {
		return nil, apperrors.NewParseError("failed to open "+e.member, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxReportSize))
	if err != nil {
		return nil, apperrors.NewParseError("failed to read "+e.member, err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apperrors.NewParseError(e.member+" is not a JSON object", err)
	}
	if obj == nil {
		return nil, apperrors.NewParseError(e.member+" is null", nil)
	}

	return &domain.Report{Raw: bytes.TrimSpace(raw)}, nil
}
