// Package lifecycle implements the credential state machine.
//
// Per (identifier, wallet) pair:
//
//	Unauthorized --authorize--> Authorized --issue--> Minted
//	Minted --burn (wallet)--> closed
//	Minted --revoke (authority/operator)--> Revoked --cleanup (wallet)--> closed
//
// Every transition runs inside one ledger.Update: access is checked, the
// expected prior state is verified, records are created, written or closed,
// and an audit row is appended. Any error rolls the whole call back, so a
// rejected call leaves the ledger exactly as it found it.
//
// Storage deposits follow the funder: whoever paid for a record's creation
// is credited when it closes. The wallet funds its own holding record, which
// is why revoke zeroes the holding but leaves it for the wallet to close.
package lifecycle
