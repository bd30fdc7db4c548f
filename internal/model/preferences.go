package model

import "errors"

// Language is a UI language preference.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageArabic  Language = "arabic"
)

// Theme is a UI appearance preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Preferences holds per-session display settings.
type Preferences struct {
	Language Language `json:"language"`
	Theme    Theme    `json:"theme"`
}

// DefaultPreferences returns the settings a new session starts with.
func DefaultPreferences() Preferences {
	return Preferences{Language: LanguageEnglish, Theme: ThemeLight}
}

// Dir returns the text direction for the language.
func (p Preferences) Dir() string {
	if p.Language == LanguageArabic {
		return "rtl"
	}
	return "ltr"
}

// Validate checks both settings.
func (p Preferences) Validate() error {
	if p.Language != LanguageEnglish && p.Language != LanguageArabic {
		return errors.New("language must be english or arabic")
	}
	if p.Theme != ThemeLight && p.Theme != ThemeDark {
		return errors.New("theme must be light or dark")
	}
	return nil
}

// PreferencesResponse adds the derived text direction.
type PreferencesResponse struct {
	Preferences
	Dir string `json:"dir"`
}
