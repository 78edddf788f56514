package vault

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

type Store interface {
	// Count returns the total count of keys.
	Count(ctx context.Context) (uint64, error)

	// Save creates the record. Saving an existing public key only updates its
	// state; the private key, role and creation time are immutable.
	Save(ctx context.Context, record *Record) error

	// Get finds the record for a given public key.
	//
	// Returns ErrKeyNotFound if no record is found.
	Get(ctx context.Context, pubkey string) (*Record, error)

	// GetAllByRole returns records held under a role, paged by id.
	//
	// Returns ErrKeyNotFound if no records are found.
	GetAllByRole(ctx context.Context, role Role, opts ...query.Option) ([]*Record, error)
}

// GetSigningKey loads the private key for pubkey, failing if it is unknown or
// has been revoked.
func GetSigningKey(ctx context.Context, store Store, pubkey ed25519.PublicKey) (ed25519.PrivateKey, error) {
	record, err := store.Get(ctx, base58.Encode(pubkey))
	if err != nil {
		return nil, err
	}
	if record.IsRevoked() {
		return nil, ErrKeyRevoked
	}
	return record.SigningKey()
}

// Import saves priv under role unless it is already held. Importing the same
// key again is a no-op, so it is safe to run on every startup.
func Import(ctx context.Context, store Store, priv ed25519.PrivateKey, role Role) (*Record, error) {
	record, err := FromPrivateKey(priv, role)
	if err != nil {
		return nil, err
	}

	existing, err := store.Get(ctx, record.PublicKey)
	switch {
	case err == ErrKeyNotFound:
		if err := store.Save(ctx, record); err != nil {
			return nil, errors.Wrap(err, "error saving key")
		}
		return record, nil
	case err != nil:
		return nil, errors.Wrap(err, "error checking for existing key")
	case existing.IsRevoked():
		return nil, ErrKeyRevoked
	case existing.Role != role:
		return nil, ErrRoleChanged
	default:
		return existing, nil
	}
}
