package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

func RunTests(t *testing.T, s vault.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s vault.Store){
		testRoundTrip,
		testStateUpdateOnly,
		testGetAllByRole,
		testImport,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s vault.Store) {
	ctx := context.Background()

	expected, err := vault.NewKey(vault.RoleFeePayer)
	require.NoError(t, err)

	_, err = s.Get(ctx, expected.PublicKey)
	assert.Equal(t, vault.ErrKeyNotFound, err)

	require.Error(t, s.Save(ctx, &vault.Record{PublicKey: expected.PublicKey}))

	require.NoError(t, s.Save(ctx, expected))
	assert.EqualValues(t, 1, expected.Id)

	actual, err := s.Get(ctx, expected.PublicKey)
	require.NoError(t, err)
	assert.EqualValues(t, 1, actual.Id)
	assert.Equal(t, expected.PublicKey, actual.PublicKey)
	assert.Equal(t, expected.PrivateKey, actual.PrivateKey)
	assert.Equal(t, vault.RoleFeePayer, actual.Role)
	assert.Equal(t, vault.StateAvailable, actual.State)
	assert.Equal(t, expected.CreatedAt.Unix(), actual.CreatedAt.Unix())

	_, err = actual.SigningKey()
	require.NoError(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func testStateUpdateOnly(t *testing.T, s vault.Store) {
	ctx := context.Background()

	expected, err := vault.NewKey(vault.RoleCustodial)
	require.NoError(t, err)
	expected.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Save(ctx, expected))

	update := expected.Clone()
	update.State = vault.StateRevoked
	update.Role = vault.RoleFeePayer
	update.PrivateKey = "ignored"
	update.CreatedAt = time.Now()
	require.NoError(t, s.Save(ctx, update))
	assert.Equal(t, expected.Id, update.Id)
	assert.Equal(t, vault.RoleCustodial, update.Role)

	actual, err := s.Get(ctx, expected.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, vault.StateRevoked, actual.State)
	assert.Equal(t, vault.RoleCustodial, actual.Role)
	assert.Equal(t, expected.PrivateKey, actual.PrivateKey)
	assert.Equal(t, expected.CreatedAt.Unix(), actual.CreatedAt.Unix())

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func testGetAllByRole(t *testing.T, s vault.Store) {
	ctx := context.Background()

	_, err := s.GetAllByRole(ctx, vault.RoleCustodial)
	assert.Equal(t, vault.ErrKeyNotFound, err)

	var custodial []*vault.Record
	for i := 0; i < 10; i++ {
		role := vault.RoleCustodial
		if i%3 == 0 {
			role = vault.RoleFeePayer
		}

		record, err := vault.NewKey(role)
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, record))

		if role == vault.RoleCustodial {
			custodial = append(custodial, record)
		}
	}

	actual, err := s.GetAllByRole(ctx, vault.RoleCustodial)
	require.NoError(t, err)
	require.Len(t, actual, len(custodial))
	for i, record := range actual {
		assert.Equal(t, custodial[i].PublicKey, record.PublicKey)
		assert.Equal(t, custodial[i].PrivateKey, record.PrivateKey)
	}

	actual, err = s.GetAllByRole(ctx, vault.RoleCustodial, query.WithLimit(2), query.WithDirection(query.Descending))
	require.NoError(t, err)
	require.Len(t, actual, 2)
	assert.Equal(t, custodial[len(custodial)-1].PublicKey, actual[0].PublicKey)
	assert.Equal(t, custodial[len(custodial)-2].PublicKey, actual[1].PublicKey)

	actual, err = s.GetAllByRole(ctx, vault.RoleCustodial, query.WithCursor(query.ToCursor(custodial[1].Id)))
	require.NoError(t, err)
	require.Len(t, actual, len(custodial)-2)
	assert.Equal(t, custodial[2].PublicKey, actual[0].PublicKey)

	actual, err = s.GetAllByRole(ctx, vault.RoleFeePayer)
	require.NoError(t, err)
	assert.Len(t, actual, 4)
}

func testImport(t *testing.T, s vault.Store) {
	ctx := context.Background()

	generated, err := vault.NewKey(vault.RoleFeePayer)
	require.NoError(t, err)
	priv, err := generated.SigningKey()
	require.NoError(t, err)

	first, err := vault.Import(ctx, s, priv, vault.RoleFeePayer)
	require.NoError(t, err)
	second, err := vault.Import(ctx, s, priv, vault.RoleFeePayer)
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	_, err = vault.Import(ctx, s, priv, vault.RoleCustodial)
	assert.Equal(t, vault.ErrRoleChanged, err)

	second.State = vault.StateRevoked
	require.NoError(t, s.Save(ctx, second))
	_, err = vault.Import(ctx, s, priv, vault.RoleFeePayer)
	assert.Equal(t, vault.ErrKeyRevoked, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
