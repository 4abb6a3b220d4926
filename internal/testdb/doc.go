//go:build integration

// Package testdb provides helpers for tests that run against a real
// PostgreSQL database.
//
// Tests are skipped unless DATABASE_URL (or WA_TEST_DB_URL) is set. The
// schema is created from the embedded goose migrations once per process and
// each test then runs inside a transaction that is rolled back afterwards:
//
//	func TestUserStore(t *testing.T) {
//		db := testdb.GetTestDBWithT(t)
//		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//			users := postgres.NewPostgresUserStore(tx, logger)
//			// ...
//		})
//	}
package testdb
