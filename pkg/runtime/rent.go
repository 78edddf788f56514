package runtime

// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/rent.rs
const (
	accountStorageOverhead     = 128
	defaultLamportsPerByteYear = 3480
	defaultExemptionThreshold  = 2
)

// MinimumBalanceForRentExemption returns the lamports an account of the given
// data size must hold to be rent exempt.
func MinimumBalanceForRentExemption(space uint64) uint64 {
	return (accountStorageOverhead + space) * defaultLamportsPerByteYear * defaultExemptionThreshold
}
