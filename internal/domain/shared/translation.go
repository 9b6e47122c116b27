package shared

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Locale is a supported language tag
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleAR Locale = "ar"
)

// DefaultLocale is used when a request does not name a supported locale
const DefaultLocale = LocaleEN

// SupportedLocales lists the locales translations may be stored under
var SupportedLocales = []Locale{LocaleEN, LocaleAR}

// IsSupported reports whether the locale is one of SupportedLocales
func (l Locale) IsSupported() bool {
	for _, s := range SupportedLocales {
		if l == s {
			return true
		}
	}
	return false
}

// ParseLocale normalizes a tag, falling back to DefaultLocale
func ParseLocale(tag string) Locale {
	l := Locale(strings.ToLower(strings.TrimSpace(tag)))
	if l.IsSupported() {
		return l
	}
	return DefaultLocale
}

// Translations maps a locale to its text
type Translations map[Locale]string

// NewTranslations validates the mapping: every key must be a supported locale
// and the default locale must be present and non-empty.
func NewTranslations(values map[string]string) (Translations, error) {
	t := make(Translations, len(values))
	for k, v := range values {
		l := Locale(strings.ToLower(k))
		if !l.IsSupported() {
			return nil, NewValidationError("locale", fmt.Sprintf("unsupported locale %q", k))
		}
		t[l] = strings.TrimSpace(v)
	}
	if t[DefaultLocale] == "" {
		return nil, NewValidationError(string(DefaultLocale), "default translation is required")
	}
	return t, nil
}

// Get returns the text for the requested locale, then the default locale,
// then the empty string.
func (t Translations) Get(locale Locale) string {
	if v, ok := t[locale]; ok && v != "" {
		return v
	}
	return t[DefaultLocale]
}

// Value implements driver.Valuer (stored as a JSON object)
func (t Translations) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (t *Translations) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*t = Translations{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into Translations", value)
	}
	out := Translations{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("invalid translations: %w", err)
	}
	*t = out
	return nil
}
