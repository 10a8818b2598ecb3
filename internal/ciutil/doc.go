// Package ciutil detects the CI environment and resolves the environment
// variables used to reach the integration-test database.
package ciutil
