// Package identity owns closet user accounts.
//
// It validates sign-up input, hashes and verifies passwords, and persists
// users through a Store. Two stores ship with the package: PostgresStore
// (pgx) for deployed environments and SQLiteStore for local runs and tests.
package identity
