package ciutil

import (
	"log/slog"
)

// TestDatabaseURL returns the integration-test database URL, checking
// DRILL_TEST_DB_URL, DATABASE_URL and DRILL_DATABASE_URL in that order.
// It returns "" when none is set.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks(
		[]string{EnvDrillTestDBURL, EnvDatabaseURL, EnvDrillDatabaseURL},
		"",
		logger,
	)
}

// MissingDatabaseIsFatal reports whether a missing test database should fail
// the run instead of skipping database tests. It does in CI.
func MissingDatabaseIsFatal() bool {
	return IsCI()
}
