package privacy

// DefaultSensitiveKeys returns the baseline key fragments treated as
// secrets. Matching is case-insensitive substring, so "user_password"
// and "API_KEY" both hit.
func DefaultSensitiveKeys() []string {
	return []string{
		"password",
		"passwd",
		"secret",
		"token",
		"api_key",
		"apikey",
		"authorization",
		"credential",
		"credit_card",
		"card_number",
		"private_key",
		"access_key",
		"ssn",
	}
}

// DefaultPatterns returns the baseline content-detection precedence list,
// ordered most specific to least specific. The broad phone pattern comes
// last so that card-shaped digit runs are classified as credit_card and
// dotted quads as ipv4 before the phone pattern ever runs.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name: "email",
			Expr: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		},
		{
			Name: "api_token",
			Expr: `(?i)(?:bearer\s+|sk[-_]|api[-_]?key[=:\s]+)[A-Za-z0-9\-._~+/]{8,}=*`,
		},
		{
			Name: "credit_card",
			Expr: `\b(?:\d{4}[ -]?){3}\d{4}\b`,
		},
		{
			Name: "ssn",
			Expr: `\b\d{3}-\d{2}-\d{4}\b`,
		},
		{
			Name: "ipv4",
			Expr: `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
		},
		{
			Name: "home_path",
			Expr: `(?:/home|/Users)/[A-Za-z0-9._-]+`,
		},
		{
			Name: "phone",
			Expr: `\+?\d[\d\s().-]{6,14}\d`,
		},
	}
}

// DefaultConfig returns a baseline configuration covering common PII
// classes with the hash strategy.
func DefaultConfig() Config {
	return Config{
		SensitiveKeys: DefaultSensitiveKeys(),
		Patterns:      DefaultPatterns(),
		Strategy:      StrategyHash,
	}
}
