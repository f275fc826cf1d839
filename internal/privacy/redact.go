package privacy

import (
	"fmt"
	"regexp"
	"sync"
)

// Placeholder replaces every redacted value in log output.
const Placeholder = "[REDACTED]"

// Compile compiles a list of regex pattern strings into compiled regexps.
// Returns an error if any pattern is invalid.
func Compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Apply replaces all matches of the compiled patterns in text with [REDACTED].
func Apply(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		text = re.ReplaceAllString(text, Placeholder)
	}
	return text
}

// Mask returns the indicator logged in place of a secret value.
func Mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return Placeholder
}

// Redactor scrubs known secrets and configured patterns from log text.
// Secrets can be added while a batch runs (e.g. a freshly acquired token).
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	secrets  []*regexp.Regexp
}

// NewRedactor builds a redactor from configured pattern strings.
func NewRedactor(patterns []string) (*Redactor, error) {
	compiled, err := Compile(patterns)
	if err != nil {
		return nil, err
	}
	return &Redactor{patterns: compiled}, nil
}

// AddSecret registers a literal value that must never appear in output.
// Empty values are ignored.
func (r *Redactor) AddSecret(secret string) {
	if r == nil || secret == "" {
		return
	}
	re := regexp.MustCompile(regexp.QuoteMeta(secret))
	r.mu.Lock()
	r.secrets = append(r.secrets, re)
	r.mu.Unlock()
}

// Redact returns text with all secrets and pattern matches replaced.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	text = Apply(text, r.secrets)
	return Apply(text, r.patterns)
}
