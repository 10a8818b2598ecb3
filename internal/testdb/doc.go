//go:build integration

// Package testdb provides helpers for database integration tests.
//
// Each test gets a migrated database and runs its work inside a transaction
// that is rolled back when the test finishes, so tests can run in parallel
// without seeing each other's rows:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        // use tx
//	    })
//	}
//
// Tests are skipped when neither DRILL_TEST_DB_URL nor DATABASE_URL is set,
// except in CI, where a missing database fails the run.
package testdb
