// Package i18n resolves the active locale and translates dot-path keys into
// interpolated strings.
package i18n

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
)

// Locale is a supported locale code.
type Locale string

// Supported locales.
const (
	English   Locale = "en"
	Arabic    Locale = "ar"
	Norwegian Locale = "no"
)

// DefaultLocale is served when nothing else matches.
const DefaultLocale = English

// Writing directions.
const (
	LTR = "ltr"
	RTL = "rtl"
)

// Supported lists the locales in display order.
var Supported = []Locale{English, Arabic, Norwegian}

// IsSupported reports membership in Supported.
func (l Locale) IsSupported() bool {
	return slices.Contains(Supported, l)
}

// Direction returns rtl for Arabic and ltr otherwise.
func (l Locale) Direction() string {
	if l == Arabic {
		return RTL
	}
	return LTR
}

// ParseLocale accepts an exact supported code, ignoring case and surrounding space.
func ParseLocale(code string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(code)))
	if !l.IsSupported() {
		return "", fmt.Errorf("%w: %q", domerrors.ErrUnsupportedLocale, code)
	}
	return l, nil
}

// ValidateLocale is a preference validator for the stored locale.
func ValidateLocale(value string) error {
	if !Locale(value).IsSupported() {
		return domerrors.NewValidationError("locale", fmt.Sprintf("must be one of %v", Supported))
	}
	return nil
}

// Negotiate maps browser language tags to a locale by prefix: ar* is Arabic,
// no*, nb* and nn* are Norwegian. The first tag that matches wins; with no
// match the result is DefaultLocale.
func Negotiate(tags ...string) Locale {
	for _, tag := range tags {
		if l, ok := matchPrefix(tag); ok {
			return l
		}
	}
	return DefaultLocale
}

func matchPrefix(tag string) (Locale, bool) {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(t, "ar"):
		return Arabic, true
	case strings.HasPrefix(t, "no"), strings.HasPrefix(t, "nb"), strings.HasPrefix(t, "nn"):
		return Norwegian, true
	case strings.HasPrefix(t, "en"):
		return English, true
	}
	return "", false
}

// AcceptLanguageTags returns the tags of an Accept-Language header ordered by
// quality. Headers x/text rejects are split verbatim so that tags such as
// "no-NB" still reach Negotiate.
func AcceptLanguageTags(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	if tags, _, err := language.ParseAcceptLanguage(header); err == nil {
		out := make([]string, 0, len(tags))
		for _, tag := range tags {
			out = append(out, tag.String())
		}
		return out
	}

	var out []string
	for part := range strings.SplitSeq(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if tag = strings.TrimSpace(tag); tag != "" && tag != "*" {
			out = append(out, tag)
		}
	}
	return out
}
