package solana

import "strings"

type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

// EndpointFromString resolves a cluster name (devnet, testnet, mainnet) to its
// public RPC endpoint. Any other value is returned as a URL.
func EndpointFromString(value string) string {
	switch strings.ToLower(value) {
	case "devnet":
		return string(EnvironmentDev)
	case "testnet":
		return string(EnvironmentTest)
	case "mainnet", "mainnet-beta":
		return string(EnvironmentProd)
	default:
		return value
	}
}
