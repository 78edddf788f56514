package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	"github.com/spacenexus/spacetoken-server/pkg/data/vault/tests"
)

func TestVaultMemoryStore(t *testing.T) {
	cipher, err := vault.NewEphemeralCipher()
	require.NoError(t, err)

	testStore := New(cipher)
	tests.RunTests(t, testStore, testStore.(*store).reset)
}

func TestVaultMemoryStore_SealsAtRest(t *testing.T) {
	cipher, err := vault.NewEphemeralCipher()
	require.NoError(t, err)

	s := New(cipher).(*store)
	record, err := vault.NewKey(vault.RoleCustodial)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), record))

	sealed := s.records[record.PublicKey]
	require.NotEqual(t, record.PrivateKey, sealed.PrivateKey)

	opened, err := cipher.Open(sealed.PrivateKey, record.PublicKey)
	require.NoError(t, err)
	require.Equal(t, record.PrivateKey, opened)
}
