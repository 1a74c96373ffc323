package privacy

import (
	"errors"
	"regexp"
)

// Strategy describes the transform applied to a detected PII value.
type Strategy string

const (
	// StrategyHash replaces the match with a deterministic truncated digest.
	StrategyHash Strategy = "hash"
	// StrategyRedact replaces the match with a fixed placeholder.
	StrategyRedact Strategy = "redact"
	// StrategyTruncate applies a format-preserving partial mask.
	StrategyTruncate Strategy = "truncate"
)

// RedactionMarker is the placeholder substituted for redacted values.
const RedactionMarker = "[REDACTED]"

const (
	defaultMaxStringLength = 500
	defaultMaxDepth        = 8
)

// ErrDepthExceeded reports that a nested structure was deeper than the
// configured recursion ceiling and part of it was left unsanitized.
var ErrDepthExceeded = errors.New("privacy: recursion depth ceiling reached")

// Pattern declares a single content-detection rule. Patterns are evaluated
// in declaration order and the first match wins, so callers must order
// their list from most specific to least specific.
type Pattern struct {
	Name string
	Expr string
}

// Config bundles the sanitizer settings.
type Config struct {
	// SensitiveKeys are case-insensitive substring fragments matched
	// against attribute keys. A key match redacts the value outright,
	// regardless of its shape.
	SensitiveKeys []string

	// Patterns is the ordered content-detection precedence list.
	Patterns []Pattern

	// Strategy selects the transform for pattern matches.
	Strategy Strategy

	// MaxStringLength caps sanitized string values. Zero means the
	// default of 500 characters.
	MaxStringLength int

	// MaxDepth bounds recursion into nested maps and sequences. Zero
	// means the default of 8 levels.
	MaxDepth int
}

// Report summarises a sanitization pass.
type Report struct {
	// KeyRedactions counts values replaced because their key matched a
	// sensitive fragment.
	KeyRedactions int
	// PatternMatches counts string values transformed by a content pattern.
	PatternMatches int
	// DroppedKeys lists attributes removed because sanitizing them failed.
	// Privacy dominates delivery: a value that cannot be sanitized is
	// never forwarded.
	DroppedKeys []string
	// DepthExceeded is set when the recursion ceiling was reached and a
	// nested remainder was passed through unsanitized.
	DepthExceeded bool
}

// Sanitizer applies key redaction and content-pattern scanning to attribute
// maps. It is stateless and safe for concurrent use; inputs are never mutated.
type Sanitizer struct {
	keys      []string
	patterns  []compiledPattern
	strategy  Strategy
	maxString int
	maxDepth  int
}

type compiledPattern struct {
	name string
	expr *regexp.Regexp
}
