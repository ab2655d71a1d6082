// Package harness runs lifecycle scenarios against a real engine.
//
// A scenario names its parties, funds them, initializes a project, then runs
// setup and flow steps through lifecycle.Engine on a fresh in-memory ledger.
// Every step lands in the trace with its outcome, the records it created and
// closed, and where each refunded deposit went.
//
// # Scenario Format
//
//	name: revoke_then_cleanup
//	description: "Revoke keeps the holder's deposit until cleanup"
//	project:
//	  authority: authority
//	  operators: [operator]
//	funding:
//	  authority: 1000000000
//	  operator: 1000000000
//	  alice: 1000000000
//	setup:
//	  - {action: authorize, caller: operator, wallet: alice, identifier: order-1}
//	  - {action: issue, caller: operator, wallet: alice, identifier: order-1}
//	flow:
//	  - {action: revoke, caller: operator, wallet: alice, identifier: order-1}
//	  - {action: burn, caller: alice, wallet: alice, identifier: order-1, expect: ALREADY_PROCESSED}
//	assertions:
//	  - {type: status, wallet: alice, identifier: order-1, status: revoked}
//	  - {type: refcount, identifier: order-1, count: 1}
//
// Parties are names; each maps to a deterministic key (testutil.PublicKey).
// Setup steps must succeed. Flow steps default to expect: ok and may name an
// error code instead.
//
// # Assertion Types
//
//   - status: lifecycle state of (identifier, wallet)
//   - refcount: live credential count for identifier
//   - balance: spendable lamports of a party
//   - account: whether a record exists (status, token, holding, refcount, config)
//   - conserved: balances plus locked deposits equal the total funded
//   - trace_order: committed actions appear in this order
//   - trace_count: a committed action appears exactly N times
//
// # Deterministic Testing
//
// Keys, transaction ids and record addresses are all derived from names, so
// the same scenario always produces the same trace. RunWithGolden compares
// that trace to testdata/golden/<name>.golden.
package harness
