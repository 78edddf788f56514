package server

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	pg "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	"github.com/spacenexus/spacetoken-server/pkg/grpc/app"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	LedgerLocal  = "local"
	LedgerSolana = "solana"
)

type Config struct {
	// Storage selects the backing store for the runtime, event history and
	// vault. Either memory or postgres.
	Storage string `mapstructure:"storage"`

	// Ledger selects the token ledger. The local ledger keeps mints and token
	// accounts in the runtime; the solana ledger drives the SPL token program.
	Ledger string `mapstructure:"ledger"`

	// VaultSecret is the base58 AES key custodial keys are sealed with. It is
	// required with postgres storage.
	VaultSecret string `mapstructure:"vault_secret"`

	Postgres pg.Config    `mapstructure:"postgres"`
	Solana   SolanaConfig `mapstructure:"solana"`
}

type SolanaConfig struct {
	// Endpoint is an RPC URL, or one of devnet, testnet and mainnet.
	Endpoint   string `mapstructure:"endpoint"`
	Commitment string `mapstructure:"commitment"`

	// FeePayerPrivateKey is the base58 keypair that pays for every ledger
	// transaction. It is imported into the vault on startup.
	FeePayerPrivateKey string `mapstructure:"fee_payer_private_key"`

	// CustodialPrivateKeys are base58 keypairs, comma separated in the
	// environment, imported into the vault as custodial keys on startup. Token
	// authorities and payers must be held here for the ledger to sign for them.
	CustodialPrivateKeys []string `mapstructure:"custodial_private_keys"`
}

var defaultConfig = Config{
	Storage: StorageMemory,
	Ledger:  LedgerLocal,
	Postgres: pg.Config{
		Port: 5432,
	},
	Solana: SolanaConfig{
		Commitment: "confirmed",
	},
}

func init() {
	_ = viper.BindEnv("app.storage", "SPACETOKEN_STORAGE")
	_ = viper.BindEnv("app.ledger", "SPACETOKEN_LEDGER")
	_ = viper.BindEnv("app.vault_secret", "SPACETOKEN_VAULT_SECRET_KEY")

	_ = viper.BindEnv("app.postgres.user", "SPACETOKEN_POSTGRES_USER")
	_ = viper.BindEnv("app.postgres.password", "SPACETOKEN_POSTGRES_PASSWORD")
	_ = viper.BindEnv("app.postgres.host", "SPACETOKEN_POSTGRES_HOST")
	_ = viper.BindEnv("app.postgres.port", "SPACETOKEN_POSTGRES_PORT")
	_ = viper.BindEnv("app.postgres.dbname", "SPACETOKEN_POSTGRES_DBNAME")
	_ = viper.BindEnv("app.postgres.max_open_connections", "SPACETOKEN_POSTGRES_MAX_OPEN_CONNECTIONS")
	_ = viper.BindEnv("app.postgres.max_idle_connections", "SPACETOKEN_POSTGRES_MAX_IDLE_CONNECTIONS")
	_ = viper.BindEnv("app.postgres.use_aws_iam", "SPACETOKEN_POSTGRES_USE_AWS_IAM")

	_ = viper.BindEnv("app.solana.endpoint", "SPACETOKEN_SOLANA_ENDPOINT")
	_ = viper.BindEnv("app.solana.commitment", "SPACETOKEN_SOLANA_COMMITMENT")
	_ = viper.BindEnv("app.solana.fee_payer_private_key", "SPACETOKEN_SOLANA_FEE_PAYER_PRIVATE_KEY")
	_ = viper.BindEnv("app.solana.custodial_private_keys", "SPACETOKEN_SOLANA_CUSTODIAL_PRIVATE_KEYS")
}

func decodeConfig(raw app.Config) (*Config, error) {
	config := defaultConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "failed to decode app config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if err := c.Postgres.Validate(); err != nil {
			return errors.Wrap(err, "invalid postgres config")
		}
		if len(c.VaultSecret) == 0 {
			return errors.New("vault secret is required with postgres storage")
		}
	default:
		return errors.Errorf("unsupported storage: %s", c.Storage)
	}

	switch c.Ledger {
	case LedgerLocal:
	case LedgerSolana:
		if len(c.Solana.Endpoint) == 0 {
			return errors.New("solana endpoint is required")
		}
		if len(c.Solana.FeePayerPrivateKey) == 0 {
			return errors.New("solana fee payer is required")
		}
	default:
		return errors.Errorf("unsupported ledger: %s", c.Ledger)
	}

	return nil
}
