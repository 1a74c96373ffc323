package privacy

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// Sanitizing any attribute map containing a recognizable email address
// must remove every occurrence of the original address, and sanitizing
// the same input twice must yield identical output.
func TestSanitizer_EmailNeverSurvives(t *testing.T) {
	s := mustSanitizer(t, DefaultConfig())

	rapid.Check(t, func(t *rapid.T) {
		local := rapid.StringMatching(`[a-z][a-z0-9._]{0,15}`).Draw(t, "local")
		domain := rapid.StringMatching(`[a-z][a-z0-9-]{0,10}\.[a-z]{2,4}`).Draw(t, "domain")
		email := local + "@" + domain

		prefix := rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(t, "prefix")
		key := rapid.StringMatching(`[a-z][a-z_]{0,12}`).Draw(t, "key")

		input := map[string]any{key: prefix + email}

		first, _ := s.Sanitize(input)
		second, _ := s.Sanitize(input)

		if !reflect.DeepEqual(first, second) {
			t.Fatalf("sanitization not deterministic: %v vs %v", first, second)
		}
		for _, v := range first {
			if str, ok := v.(string); ok && strings.Contains(str, email) {
				t.Fatalf("email %q survived sanitization: %q", email, str)
			}
		}
	})
}

// Every strategy must strip the raw match, not only the default one.
func TestSanitizer_AllStrategiesRemoveMatch(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		strategy := rapid.SampledFrom([]Strategy{StrategyHash, StrategyRedact, StrategyTruncate}).Draw(t, "strategy")
		cfg := DefaultConfig()
		cfg.Strategy = strategy
		s := mustSanitizer(t, cfg)

		out, _ := s.Sanitize(map[string]any{"contact": "mail me: secret.person@corp.example"})
		got := out["contact"].(string)
		if strings.Contains(got, "secret.person@corp.example") {
			t.Fatalf("strategy %s left the raw email in place: %q", strategy, got)
		}
	})
}
