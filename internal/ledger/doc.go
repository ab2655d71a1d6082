// Package ledger provides the SQLite-backed execution environment the
// credential engine runs against.
//
// The ledger stores:
//   - Accounts: records keyed by derived address, with the identity that
//     funded them and the storage deposit they hold
//   - Balances: spendable lamports per identity
//   - Audit log: one row per committed transition
//
// # Atomicity
//
// Update runs a function inside a single SQL transaction. If the function
// returns an error nothing it did is visible afterwards, including balance
// movements. The connection pool is limited to one connection, so
// transactions are serialised: two transitions racing on the same address
// see each other's committed state, and the loser fails on the occupied
// address instead of overwriting it.
//
// # Deposits
//
// Create debits the funder by the deposit for the allocated space and
// records the funder on the row. Close deletes the row and credits exactly
// that funder with exactly that deposit. A record can only be closed once
// because the second close finds no row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
