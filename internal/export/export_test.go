package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdb-fas/fasdesk/internal/model"
)

var (
	now = time.Date(2025, 5, 14, 23, 30, 0, 0, time.FixedZone("GST", 4*3600))
	msg = model.Message{
		ID:        "m1",
		Content:   "## Answer\n\nFAS 4 applies.",
		Sender:    model.SenderSystem,
		Timestamp: time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC),
	}
)

func TestMessageFormats(t *testing.T) {
	tests := []struct {
		format   Format
		name     string
		mimeType string
	}{
		{FormatText, "message-2025-05-14.txt", "text/plain"},
		{FormatMarkdown, "message-2025-05-14.md", "text/markdown"},
		{"MARKDOWN", "message-2025-05-14.md", "text/markdown"},
		{"docx", "message-2025-05-14.txt", "text/plain"},
		{"", "message-2025-05-14.txt", "text/plain"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := Message(msg, tt.format, now)
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.Name)
			assert.Equal(t, tt.mimeType, f.MIMEType)
			assert.Equal(t, msg.Content, string(f.Body))
		})
	}
}

func TestMessageJSON(t *testing.T) {
	f, err := Message(msg, FormatJSON, now)
	require.NoError(t, err)

	assert.Equal(t, "message-2025-05-14.json", f.Name)
	assert.Equal(t, "application/json", f.MIMEType)
	assert.Contains(t, string(f.Body), "\n  \"id\": \"m1\"")

	var decoded model.Message
	require.NoError(t, json.Unmarshal(f.Body, &decoded))
	assert.Equal(t, msg.Content, decoded.Content)
}

func TestMessagePDF(t *testing.T) {
	_, err := Message(msg, FormatPDF, now)
	assert.ErrorIs(t, err, ErrPDFUnsupported)
}
