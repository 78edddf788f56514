package server

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	event_memory "github.com/spacenexus/spacetoken-server/pkg/data/event/memory"
	event_postgres "github.com/spacenexus/spacetoken-server/pkg/data/event/postgres"
	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	vault_memory "github.com/spacenexus/spacetoken-server/pkg/data/vault/memory"
	vault_postgres "github.com/spacenexus/spacetoken-server/pkg/data/vault/postgres"
	pg "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	"github.com/spacenexus/spacetoken-server/pkg/grpc/app"
	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/ledger/chain"
	"github.com/spacenexus/spacetoken-server/pkg/ledger/local"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	runtime_memory "github.com/spacenexus/spacetoken-server/pkg/runtime/memory"
	runtime_postgres "github.com/spacenexus/spacetoken-server/pkg/runtime/postgres"
	web_token "github.com/spacenexus/spacetoken-server/pkg/server/web/token"
	"github.com/spacenexus/spacetoken-server/pkg/solana"
	"github.com/spacenexus/spacetoken-server/pkg/tokenadmin"
)

type spaceTokenApp struct {
	log *logrus.Entry

	db          *sql.DB
	tokenServer *web_token.Server

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewApp returns the app.App that serves the token API.
func NewApp() app.App {
	return &spaceTokenApp{
		log:        logrus.StandardLogger().WithField("type", "server/app"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *spaceTokenApp) Init(appConfig app.Config, metricsProvider *newrelic.Application) error {
	config, err := decodeConfig(appConfig)
	if err != nil {
		return err
	}

	log := a.log.WithFields(logrus.Fields{
		"method":  "Init",
		"storage": config.Storage,
		"ledger":  config.Ledger,
	})

	cipher, err := newVaultCipher(config)
	if err != nil {
		return err
	}

	var rt runtime.Runtime
	var events event.Store
	var keys vault.Store
	switch config.Storage {
	case StoragePostgres:
		a.db, err = pg.Open(&config.Postgres)
		if err != nil {
			return errors.Wrap(err, "failed to connect to postgres")
		}
		rt = runtime_postgres.New(a.db)
		events = event_postgres.New(a.db)
		keys = vault_postgres.New(a.db, cipher)
	default:
		rt = runtime_memory.New()
		events = event_memory.New()
		keys = vault_memory.New(cipher)
	}

	var tokenLedger ledger.Ledger
	switch config.Ledger {
	case LedgerSolana:
		commitment := solana.CommitmentFromString(config.Solana.Commitment)
		sc := solana.New(solana.EndpointFromString(config.Solana.Endpoint))
		slot, err := sc.GetSlot(commitment)
		if err != nil {
			return errors.Wrap(err, "failed to reach solana rpc")
		}

		chainLedger, err := newChainLedger(context.Background(), &config.Solana, sc, keys)
		if err != nil {
			return err
		}
		tokenLedger = chainLedger
		log = log.WithField("slot", slot)
	default:
		tokenLedger = local.New(rt)
	}

	admin := tokenadmin.New(rt, tokenLedger, events, tokenadmin.WithEnvConfigs())
	a.tokenServer = web_token.NewTokenServer(admin, tokenLedger, web_token.WithEnvConfigs())

	log.Info("token admin initialized")
	return nil
}

// RegisterWithGRPC implements app.App.RegisterWithGRPC. The token API is
// served over HTTP only; the gRPC server carries health checks.
func (a *spaceTokenApp) RegisterWithGRPC(server *grpc.Server) {
}

// RegisterWithHTTP implements app.App.RegisterWithHTTP
func (a *spaceTokenApp) RegisterWithHTTP(router chi.Router) {
	a.tokenServer.RegisterRoutes(router)
}

// ShutdownChan implements app.App.ShutdownChan
func (a *spaceTokenApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *spaceTokenApp) Stop() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)

		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failed to close database")
			}
		}
	})
}

// newVaultCipher uses the configured secret, falling back to a throwaway key
// when nothing outlives the process.
func newVaultCipher(config *Config) (*vault.Cipher, error) {
	if len(config.VaultSecret) == 0 {
		return vault.NewEphemeralCipher()
	}
	cipher, err := vault.NewCipher(config.VaultSecret)
	return cipher, errors.Wrap(err, "invalid vault secret")
}

// newChainLedger imports the configured fee payer and custodial keys into the
// vault, then returns a ledger that signs with them.
func newChainLedger(ctx context.Context, config *SolanaConfig, sc solana.Client, keys vault.Store) (*chain.Ledger, error) {
	feePayer, err := importFeePayer(ctx, keys, config.FeePayerPrivateKey)
	if err != nil {
		return nil, err
	}

	custodial, err := importCustodialKeys(ctx, keys, config.CustodialPrivateKeys)
	if err != nil {
		return nil, err
	}

	logrus.StandardLogger().WithFields(logrus.Fields{
		"type":      "server/app",
		"fee_payer": base58.Encode(feePayer),
		"custodial": len(custodial),
	}).Info("vault keys imported")

	return chain.New(sc, keys, feePayer, solana.CommitmentFromString(config.Commitment)), nil
}

func importCustodialKeys(ctx context.Context, keys vault.Store, encoded []string) ([]ed25519.PublicKey, error) {
	var res []ed25519.PublicKey
	for i, value := range encoded {
		value = strings.TrimSpace(value)
		if len(value) == 0 {
			continue
		}

		decoded, err := base58.Decode(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid custodial private key at index %d", i)
		}

		record, err := vault.Import(ctx, keys, ed25519.PrivateKey(decoded), vault.RoleCustodial)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to import custodial key at index %d", i)
		}

		address, err := record.Address()
		if err != nil {
			return nil, err
		}
		res = append(res, address)
	}
	return res, nil
}

func importFeePayer(ctx context.Context, keys vault.Store, encoded string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid fee payer private key")
	}

	record, err := vault.Import(ctx, keys, ed25519.PrivateKey(decoded), vault.RoleFeePayer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to import fee payer")
	}
	return record.Address()
}
