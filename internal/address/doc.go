// Package address derives the deterministic storage addresses of every
// credential record.
//
// An address is a program-derived address: SHA-256 over a versioned
// namespace seed, the record's component seeds, a bump byte and the program
// id, chosen so the result lies off the ed25519 curve and therefore has no
// private key. The same inputs always produce the same address; changing any
// input, including the namespace version suffix, produces an unrelated one.
//
// Components longer than 32 bytes (the per-seed limit) are replaced by their
// SHA-256 digest. Every caller goes through Seed, so clients and the engine
// always agree on the address of a given identifier.
package address
