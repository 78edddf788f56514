package tests

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/runtime"
)

func RunTests(t *testing.T, rt runtime.Runtime, teardown func()) {
	for _, tf := range []func(t *testing.T, rt runtime.Runtime){
		testCreateAccount,
		testPutAccountData,
		testRollback,
		testNestedExecute,
		testGetProgramAccounts,
		testSerialInvocations,
	} {
		tf(t, rt)
		teardown()
	}
}

func testCreateAccount(t *testing.T, rt runtime.Runtime) {
	ctx := context.Background()
	payer := generateKey(t)
	address := generateKey(t)
	program := generateKey(t)

	_, err := rt.GetAccount(ctx, address)
	assert.Equal(t, runtime.ErrAccountNotFound, err)

	args := &runtime.CreateAccountArgs{
		Payer:   payer,
		Address: address,
		Owner:   program,
		Space:   244,
	}

	_, err = rt.CreateAccount(ctx, args)
	assert.Equal(t, runtime.ErrMissingRequiredSignature, err)

	signed := runtime.WithSigners(ctx, payer)

	created, err := rt.CreateAccount(signed, args)
	require.NoError(t, err)
	assert.Equal(t, address, created.Address)
	assert.EqualValues(t, 244, created.Space)
	assert.Equal(t, runtime.MinimumBalanceForRentExemption(244), created.Lamports)

	actual, err := rt.GetAccount(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, address, actual.Address)
	assert.Equal(t, program, actual.Owner)
	assert.Equal(t, payer, actual.Payer)
	assert.EqualValues(t, 244, actual.Space)
	assert.Equal(t, make([]byte, 244), actual.Data)
	assert.False(t, actual.CreatedAt.IsZero())

	_, err = rt.CreateAccount(signed, args)
	assert.Equal(t, runtime.ErrAccountAlreadyInUse, err)

	args.Address = generateKey(t)
	args.Space = 0
	_, err = rt.CreateAccount(signed, args)
	assert.Equal(t, runtime.ErrInvalidAccountSpace, err)
}

func testPutAccountData(t *testing.T, rt runtime.Runtime) {
	ctx := context.Background()
	payer := generateKey(t)
	address := generateKey(t)
	program := generateKey(t)

	assert.Equal(t, runtime.ErrAccountNotFound, rt.PutAccountData(ctx, program, address, []byte{1}))

	_, err := rt.CreateAccount(runtime.WithSigners(ctx, payer), &runtime.CreateAccountArgs{
		Payer:   payer,
		Address: address,
		Owner:   program,
		Space:   4,
	})
	require.NoError(t, err)

	require.NoError(t, rt.PutAccountData(ctx, program, address, []byte{1, 2}))

	actual, err := rt.GetAccount(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0}, actual.Data)

	require.NoError(t, rt.PutAccountData(ctx, program, address, []byte{4, 3, 2, 1}))
	assert.Equal(t, runtime.ErrAccountDataTooLarge, rt.PutAccountData(ctx, program, address, []byte{1, 2, 3, 4, 5}))
	assert.Equal(t, runtime.ErrExternalAccountDataModified, rt.PutAccountData(ctx, generateKey(t), address, []byte{9}))

	actual, err = rt.GetAccount(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 3, 2, 1}, actual.Data)
}

func testRollback(t *testing.T, rt runtime.Runtime) {
	ctx := context.Background()
	payer := generateKey(t)
	program := generateKey(t)
	existing := generateKey(t)
	fresh := generateKey(t)

	signed := runtime.WithSigners(ctx, payer)

	_, err := rt.CreateAccount(signed, &runtime.CreateAccountArgs{Payer: payer, Address: existing, Owner: program, Space: 2})
	require.NoError(t, err)
	require.NoError(t, rt.PutAccountData(ctx, program, existing, []byte{1, 1}))

	errAbort := errors.New("abort")
	err = rt.Execute(signed, func(ctx context.Context) error {
		if err := rt.PutAccountData(ctx, program, existing, []byte{2, 2}); err != nil {
			return err
		}

		if _, err := rt.CreateAccount(ctx, &runtime.CreateAccountArgs{Payer: payer, Address: fresh, Owner: program, Space: 2}); err != nil {
			return err
		}

		// Writes are visible within the invocation
		account, err := rt.GetAccount(ctx, existing)
		if err != nil {
			return err
		}
		if account.Data[0] != 2 {
			return errors.New("write not visible")
		}

		return errAbort
	})
	assert.Equal(t, errAbort, err)

	actual, err := rt.GetAccount(ctx, existing)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1}, actual.Data)

	_, err = rt.GetAccount(ctx, fresh)
	assert.Equal(t, runtime.ErrAccountNotFound, err)

	// A successful invocation commits every write
	err = rt.Execute(signed, func(ctx context.Context) error {
		if err := rt.PutAccountData(ctx, program, existing, []byte{3, 3}); err != nil {
			return err
		}
		_, err := rt.CreateAccount(ctx, &runtime.CreateAccountArgs{Payer: payer, Address: fresh, Owner: program, Space: 2})
		return err
	})
	require.NoError(t, err)

	actual, err = rt.GetAccount(ctx, existing)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 3}, actual.Data)

	_, err = rt.GetAccount(ctx, fresh)
	assert.NoError(t, err)
}

func testNestedExecute(t *testing.T, rt runtime.Runtime) {
	ctx := context.Background()
	payer := generateKey(t)
	program := generateKey(t)
	address := generateKey(t)

	signed := runtime.WithSigners(ctx, payer)

	errAbort := errors.New("abort")
	err := rt.Execute(signed, func(ctx context.Context) error {
		err := rt.Execute(ctx, func(ctx context.Context) error {
			_, err := rt.CreateAccount(ctx, &runtime.CreateAccountArgs{Payer: payer, Address: address, Owner: program, Space: 1})
			return err
		})
		if err != nil {
			return err
		}
		return errAbort
	})
	assert.Equal(t, errAbort, err)

	// The nested invocation joined the outer one and was rolled back with it
	_, err = rt.GetAccount(ctx, address)
	assert.Equal(t, runtime.ErrAccountNotFound, err)
}

func testGetProgramAccounts(t *testing.T, rt runtime.Runtime) {
	ctx := context.Background()
	payer := generateKey(t)
	program := generateKey(t)
	other := generateKey(t)

	signed := runtime.WithSigners(ctx, payer)

	accounts, err := rt.GetProgramAccounts(ctx, program)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	var expected []ed25519.PublicKey
	for i := 0; i < 3; i++ {
		address := generateKey(t)
		expected = append(expected, address)
		_, err := rt.CreateAccount(signed, &runtime.CreateAccountArgs{Payer: payer, Address: address, Owner: program, Space: 8})
		require.NoError(t, err)
	}
	_, err = rt.CreateAccount(signed, &runtime.CreateAccountArgs{Payer: payer, Address: generateKey(t), Owner: other, Space: 8})
	require.NoError(t, err)

	accounts, err = rt.GetProgramAccounts(ctx, program)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	for _, account := range accounts {
		assert.Equal(t, program, account.Owner)
		assert.Contains(t, expected, account.Address)
	}
}

func testSerialInvocations(t *testing.T, rt runtime.Runtime) {
	ctx := context.Background()
	payer := generateKey(t)
	program := generateKey(t)
	address := generateKey(t)

	_, err := rt.CreateAccount(runtime.WithSigners(ctx, payer), &runtime.CreateAccountArgs{Payer: payer, Address: address, Owner: program, Space: 1})
	require.NoError(t, err)

	// Each invocation performs a read-modify-write. Without serial ordering,
	// increments would be lost.
	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := rt.Execute(ctx, func(ctx context.Context) error {
				account, err := rt.GetAccount(ctx, address)
				if err != nil {
					return err
				}
				return rt.PutAccountData(ctx, program, address, []byte{account.Data[0] + 1})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	actual, err := rt.GetAccount(ctx, address)
	require.NoError(t, err)
	assert.EqualValues(t, workers, actual.Data[0])
}

func generateKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
