// Package record defines the on-ledger layouts of the credential records.
//
// Every record is stored as an 8-byte discriminator followed by its borsh
// encoding. The discriminator is the first 8 bytes of SHA-256("account:" +
// kind), so a record of one kind can never be decoded as another.
//
// Layout rules:
//   - Scalar enums are stored as plain uint8 fields with typed accessors.
//   - Identifiers are stored as their 32-byte digest except on the token,
//     which keeps the raw identifier for display.
//   - Variable-size records are sized at creation; only ProjectConfig is
//     rewritten in place, so it reserves ConfigSpace up front.
package record
