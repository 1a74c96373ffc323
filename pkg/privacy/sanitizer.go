// Package privacy guarantees that no PII or secret leaves the process
// boundary. It scans outbound attribute maps with a key-based redaction
// pass followed by an ordered content-pattern pass, transforming matches
// per a configured strategy before anything is queued for transport.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// NewSanitizer constructs a Sanitizer for the provided configuration.
func NewSanitizer(cfg Config) (*Sanitizer, error) {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyHash
	}
	switch strategy {
	case StrategyHash, StrategyRedact, StrategyTruncate:
	default:
		return nil, fmt.Errorf("privacy: unsupported strategy %q", strategy)
	}

	compiled := make([]compiledPattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("privacy: pattern name is required")
		}
		expr, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("privacy: invalid pattern for %s: %w", name, err)
		}
		compiled = append(compiled, compiledPattern{name: name, expr: expr})
	}

	keys := make([]string, 0, len(cfg.SensitiveKeys))
	for _, k := range cfg.SensitiveKeys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keys = append(keys, k)
		}
	}

	maxString := cfg.MaxStringLength
	if maxString <= 0 {
		maxString = defaultMaxStringLength
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	return &Sanitizer{
		keys:      keys,
		patterns:  compiled,
		strategy:  strategy,
		maxString: maxString,
		maxDepth:  maxDepth,
	}, nil
}

// Sanitize returns a sanitized copy of attrs along with a report of what
// was transformed. The input is never mutated. An attribute whose
// sanitization fails for any reason is dropped rather than forwarded.
func (s *Sanitizer) Sanitize(attrs map[string]any) (map[string]any, Report) {
	report := Report{}
	if len(attrs) == 0 {
		return map[string]any{}, report
	}

	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		sanitized, ok := s.sanitizeAttribute(key, value, &report)
		if !ok {
			report.DroppedKeys = append(report.DroppedKeys, key)
			continue
		}
		out[key] = sanitized
	}
	return out, report
}

// sanitizeAttribute applies both passes to a single attribute. The recover
// turns any panic during scanning into a dropped attribute, keeping the
// fail-closed guarantee even against bugs in pattern code.
func (s *Sanitizer) sanitizeAttribute(key string, value any, report *Report) (result any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = nil, false
		}
	}()

	if s.isSensitiveKey(key) {
		report.KeyRedactions++
		return RedactionMarker, true
	}
	return s.sanitizeValue(value, 0, report), true
}

func (s *Sanitizer) isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range s.keys {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// sanitizeValue walks a value, recursing into maps and sequences. Past the
// depth ceiling the remainder is returned untouched and the report flagged,
// so the caller can decide whether to forward or drop it.
func (s *Sanitizer) sanitizeValue(value any, depth int, report *Report) any {
	switch v := value.(type) {
	case string:
		return s.sanitizeString(v, report)
	case map[string]any:
		if depth >= s.maxDepth {
			report.DepthExceeded = true
			return v
		}
		nested := make(map[string]any, len(v))
		for key, inner := range v {
			if s.isSensitiveKey(key) {
				report.KeyRedactions++
				nested[key] = RedactionMarker
				continue
			}
			nested[key] = s.sanitizeValue(inner, depth+1, report)
		}
		return nested
	case []any:
		if depth >= s.maxDepth {
			report.DepthExceeded = true
			return v
		}
		nested := make([]any, len(v))
		for i, inner := range v {
			nested[i] = s.sanitizeValue(inner, depth+1, report)
		}
		return nested
	default:
		return value
	}
}

// sanitizeString applies the content-pattern pass. The first pattern in
// precedence order that matches anywhere in the string claims it: all of
// that pattern's matches are transformed and later patterns never run.
func (s *Sanitizer) sanitizeString(value string, report *Report) string {
	for _, pattern := range s.patterns {
		if !pattern.expr.MatchString(value) {
			continue
		}
		report.PatternMatches++
		transformed := pattern.expr.ReplaceAllStringFunc(value, func(match string) string {
			return s.transform(pattern.name, match)
		})
		return s.capString(transformed)
	}
	return s.capString(value)
}

func (s *Sanitizer) transform(patternName, match string) string {
	switch s.strategy {
	case StrategyRedact:
		return RedactionMarker
	case StrategyTruncate:
		return maskMatch(patternName, match)
	default:
		return hashValue(match)
	}
}

func (s *Sanitizer) capString(value string) string {
	if len(value) <= s.maxString {
		return value
	}
	return value[:s.maxString]
}

// hashValue produces a deterministic one-way digest with constant output
// length: "sha256:" plus the first 16 hex characters of the digest.
func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "sha256:" + hex.EncodeToString(sum[:])[:16]
}

// maskMatch applies the format-preserving truncate strategy. Emails keep
// the first two characters and the domain; phone-like matches keep their
// separators but mask every digit; everything else keeps a two-character
// prefix.
func maskMatch(patternName, match string) string {
	switch patternName {
	case "email":
		at := strings.LastIndex(match, "@")
		if at > 0 {
			local := match[:at]
			domain := match[at:]
			if len(local) > 2 {
				local = local[:2]
			}
			return local + "***" + domain
		}
	case "phone", "credit_card", "ssn":
		var b strings.Builder
		b.Grow(len(match))
		for _, r := range match {
			if r >= '0' && r <= '9' {
				b.WriteRune('*')
			} else {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	if len(match) > 2 {
		return match[:2] + "***"
	}
	return "***"
}
