package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/isdb-fas/fasdesk/internal/model"
)

const (
	maxContentLength = 100000
	maxTitleLength   = 256
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateOptionalContent validates content that may be empty.
func ValidateOptionalContent(content string) error {
	if content == "" {
		return nil
	}
	return ValidateMessageContent(content)
}

// ValidateTitle validates a conversation title. Titles are free text.
func ValidateTitle(title string) error {
	if title == "" {
		return errors.New("title cannot be empty")
	}
	if len(title) > maxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ValidateConversationRequest validates a (category, title) request body.
func ValidateConversationRequest(req *model.ConversationRequest) error {
	if _, err := model.ParseCategory(string(req.Category)); err != nil {
		return err
	}
	return ValidateTitle(req.Title)
}

// ValidateRenameRequest validates a rename request body.
func ValidateRenameRequest(req *model.RenameConversationRequest) error {
	if _, err := model.ParseCategory(string(req.Category)); err != nil {
		return err
	}
	if err := ValidateTitle(req.OldTitle); err != nil {
		return err
	}
	return ValidateTitle(req.NewTitle)
}
