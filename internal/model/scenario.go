// Package model defines data structures for the FAS chat dashboard.
package model

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when a scenario category is not one of the fixed set.
var ErrUnknownCategory = errors.New("unknown scenario category")

// ErrUnknownStandard is returned when a standard tag is not one of the fixed set.
var ErrUnknownStandard = errors.New("unknown standard")

// ScenarioCategory partitions conversations by interaction mode.
type ScenarioCategory string

const (
	CategoryUseCase     ScenarioCategory = "Use case scenarios"
	CategoryReverse     ScenarioCategory = "Reverse transactions"
	CategoryEnhancement ScenarioCategory = "Standard enhancement"
	CategoryTeamsOwn    ScenarioCategory = "Teams own"
)

// DefaultCategory is the category a new session starts in.
const DefaultCategory = CategoryUseCase

// Categories lists every scenario category in display order.
func Categories() []ScenarioCategory {
	return []ScenarioCategory{CategoryUseCase, CategoryReverse, CategoryEnhancement, CategoryTeamsOwn}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (ScenarioCategory, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Slug returns a subject-safe short name for the category.
func (c ScenarioCategory) Slug() string {
	switch c {
	case CategoryUseCase:
		return "usecase"
	case CategoryReverse:
		return "reverse"
	case CategoryEnhancement:
		return "enhancement"
	case CategoryTeamsOwn:
		return "teams"
	default:
		return "unknown"
	}
}

// StandardTag is an AAOIFI Financial Accounting Standard code attached to a query.
type StandardTag string

const (
	FAS4  StandardTag = "FAS 4"
	FAS7  StandardTag = "FAS 7"
	FAS10 StandardTag = "FAS 10"
	FAS28 StandardTag = "FAS 28"
	FAS32 StandardTag = "FAS 32"
)

// Standards returns the standards a category lets the user tag a question with.
// Reverse transactions work from journal entries and take no tag.
func (c ScenarioCategory) Standards() []StandardTag {
	if c == CategoryReverse {
		return nil
	}
	return []StandardTag{FAS4, FAS7, FAS10, FAS28, FAS32}
}

// ParseStandard validates a standard tag. The empty string means no tag.
func ParseStandard(s string) (StandardTag, error) {
	if s == "" {
		return "", nil
	}
	for _, t := range CategoryUseCase.Standards() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStandard, s)
}

// StandardFor drops a tag the category does not accept.
func StandardFor(c ScenarioCategory, tag StandardTag) StandardTag {
	for _, t := range c.Standards() {
		if t == tag {
			return tag
		}
	}
	return ""
}
