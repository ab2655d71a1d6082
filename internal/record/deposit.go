package record

// Storage deposit parameters. A record must hold the rent-exempt minimum for
// its allocated space; the full amount is returned when it is closed.
const (
	AccountOverhead     = 128
	LamportsPerByteYear = 3480
	ExemptionYears      = 2
)

// Deposit returns the storage deposit for a record of space bytes.
func Deposit(space int) uint64 {
	return uint64(AccountOverhead+space) * LamportsPerByteYear * ExemptionYears
}
