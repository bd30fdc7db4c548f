// Package export produces downloadable files from chat messages.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdb-fas/fasdesk/internal/model"
)

// ErrPDFUnsupported is returned for the pdf format, which has no generator yet.
var ErrPDFUnsupported = errors.New("pdf export is not supported")

// Format is a download format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
)

// File is a generated download.
type File struct {
	Name     string
	MIMEType string
	Body     []byte
}

// Message renders msg in the requested format. Unknown formats fall back to plain text.
// The file name carries the UTC date of now.
func Message(msg model.Message, format Format, now time.Time) (*File, error) {
	base := "message-" + now.UTC().Format("2006-01-02")

	switch Format(strings.ToLower(string(format))) {
	case FormatPDF:
		return nil, ErrPDFUnsupported
	case FormatMarkdown:
		return &File{Name: base + ".md", MIMEType: "text/markdown", Body: []byte(msg.Content)}, nil
	case FormatJSON:
		data, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message: %w", err)
		}
		return &File{Name: base + ".json", MIMEType: "application/json", Body: data}, nil
	default:
		return &File{Name: base + ".txt", MIMEType: "text/plain", Body: []byte(msg.Content)}, nil
	}
}
