package i18n

import (
	"fmt"
	"strings"

	"github.com/garyellow/erp-gateway-go/internal/logger"
	"github.com/garyellow/erp-gateway-go/internal/metrics"
)

// Translator resolves dot-path keys against a Bundle.
type Translator struct {
	bundle     *Bundle
	metrics    *metrics.Metrics
	logger     *logger.Logger
	production bool
}

// NewTranslator creates a translator. Misses are always counted and logged
// only outside production.
func NewTranslator(bundle *Bundle, m *metrics.Metrics, log *logger.Logger, production bool) *Translator {
	return &Translator{
		bundle:     bundle,
		metrics:    m,
		logger:     log.WithModule("i18n"),
		production: production,
	}
}

// Bundle returns the underlying bundle.
func (t *Translator) Bundle() *Bundle {
	return t.bundle
}

// T translates key for l. An unresolved key is returned unchanged.
func (t *Translator) T(l Locale, key string, vars map[string]any) string {
	s, ok := t.Lookup(l, key, vars)
	if !ok {
		t.miss(l, key)
	}
	return s
}

// Lookup is T without the miss diagnostic.
func (t *Translator) Lookup(l Locale, key string, vars map[string]any) (string, bool) {
	template, ok := Resolve(t.bundle.Tree(l), key)
	if !ok {
		return key, false
	}
	return Interpolate(template, vars), true
}

func (t *Translator) miss(l Locale, key string) {
	t.metrics.RecordTranslationMiss(string(l))
	if t.production {
		return
	}
	t.logger.WithField("locale", string(l)).
		WithField("key", key).
		Warn("Missing translation")
}

// Resolve walks tree along the dot-separated segments of key and returns the
// string leaf it ends on.
func Resolve(tree Tree, key string) (string, bool) {
	var node any = tree
	for segment := range strings.SplitSeq(key, ".") {
		branch, ok := node.(Tree)
		if !ok {
			return "", false
		}
		if node, ok = branch[segment]; !ok {
			return "", false
		}
	}
	s, ok := node.(string)
	return s, ok
}

// Interpolate replaces every {name} whose name is in vars with fmt.Sprint of
// the value. Other placeholders are left as written.
func Interpolate(template string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(template, "{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			break
		}
		name := rest[open+1 : open+1+end]
		if strings.ContainsRune(name, '{') {
			// Restart at the inner brace so "{{name}" still resolves.
			inner := strings.LastIndexByte(name, '{')
			b.WriteString(rest[:open+1+inner])
			rest = rest[open+1+inner:]
			continue
		}

		b.WriteString(rest[:open])
		if v, ok := vars[name]; ok {
			b.WriteString(fmt.Sprint(v))
		} else {
			b.WriteString(rest[open : open+2+end])
		}
		rest = rest[open+2+end:]
	}
	b.WriteString(rest)
	return b.String()
}
