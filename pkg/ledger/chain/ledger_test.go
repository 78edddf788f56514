package chain

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	vault_memory "github.com/spacenexus/spacetoken-server/pkg/data/vault/memory"
	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/solana"
	"github.com/spacenexus/spacetoken-server/pkg/solana/memo"
	"github.com/spacenexus/spacetoken-server/pkg/solana/system"
	"github.com/spacenexus/spacetoken-server/pkg/solana/token"
)

type fakeClient struct {
	mu sync.Mutex

	accounts  map[string]solana.AccountInfo
	submitted []solana.Transaction

	submitErr error
	statusErr *solana.TransactionError
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts: make(map[string]solana.AccountInfo),
	}
}

func (c *fakeClient) GetAccountInfo(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.accounts[base58.Encode(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return info, nil
}

func (c *fakeClient) GetLatestBlockhash() (solana.Blockhash, error) {
	return solana.Blockhash{1, 2, 3}, nil
}

func (c *fakeClient) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return runtime.MinimumBalanceForRentExemption(size), nil
}

func (c *fakeClient) GetSignatureStatus(solana.Signature, solana.Commitment) (*solana.SignatureStatus, error) {
	return &solana.SignatureStatus{
		Slot:               10,
		ErrorResult:        c.statusErr,
		ConfirmationStatus: "confirmed",
	}, nil
}

func (c *fakeClient) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	res := make([]*solana.SignatureStatus, len(sigs))
	for i := range sigs {
		res[i], _ = c.GetSignatureStatus(sigs[i], solana.CommitmentConfirmed)
	}
	return res, nil
}

func (c *fakeClient) GetSlot(solana.Commitment) (uint64, error) {
	return 10, nil
}

func (c *fakeClient) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitted = append(c.submitted, txn)
	return txn.Signatures[0], c.submitErr
}

type testEnv struct {
	ctx    context.Context
	client *fakeClient
	keys   vault.Store
	ledger *Ledger

	feePayer  ed25519.PublicKey
	authority ed25519.PublicKey
	mint      ed25519.PublicKey
}

func setup(t *testing.T) *testEnv {
	cipher, err := vault.NewEphemeralCipher()
	require.NoError(t, err)

	env := &testEnv{
		client: newFakeClient(),
		keys:   vault_memory.New(cipher),
	}

	env.feePayer = env.createKey(t)
	env.authority = env.createKey(t)
	env.mint = env.createKey(t)

	env.ledger = New(env.client, env.keys, env.feePayer, solana.CommitmentConfirmed)
	env.ctx = runtime.WithSigners(context.Background(), env.authority, env.mint)
	return env
}

func (e *testEnv) createKey(t *testing.T) ed25519.PublicKey {
	record, err := vault.NewKey(vault.RoleCustodial)
	require.NoError(t, err)
	require.NoError(t, e.keys.Save(context.Background(), record))

	pub, err := record.Address()
	require.NoError(t, err)
	return pub
}

func TestInitializeMint(t *testing.T) {
	env := setup(t)

	require.NoError(t, env.ledger.InitializeMint(env.ctx, &ledger.InitializeMintArgs{
		Payer:           env.authority,
		Mint:            env.mint,
		Decimals:        9,
		MintAuthority:   env.authority,
		FreezeAuthority: env.authority,
	}))

	require.Len(t, env.client.submitted, 1)
	txn := env.client.submitted[0]
	assert.True(t, txn.IsFullySigned())
	assert.EqualValues(t, 3, txn.Message.Header.NumSignatures)
	assert.EqualValues(t, env.feePayer, txn.Message.Accounts[0])
	assert.Equal(t, solana.Blockhash{1, 2, 3}, txn.Message.RecentBlockhash)
	require.Len(t, txn.Message.Instructions, 3)

	create, err := system.DecompileCreateAccount(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.authority, create.Funder)
	assert.EqualValues(t, env.mint, create.Address)
	assert.EqualValues(t, token.ProgramKey, create.Owner)
	assert.EqualValues(t, token.MintSize, create.Size)
	assert.EqualValues(t, runtime.MinimumBalanceForRentExemption(token.MintSize), create.Lamports)

	initialize, err := token.DecompileInitializeMint(txn.Message, 1)
	require.NoError(t, err)
	assert.EqualValues(t, env.mint, initialize.Mint)
	assert.EqualValues(t, 9, initialize.Decimals)
	assert.EqualValues(t, env.authority, initialize.MintAuthority)
	assert.EqualValues(t, env.authority, initialize.FreezeAuthority)

	decompiledMemo, err := memo.DecompileMemo(txn.Message, 2)
	require.NoError(t, err)
	action, ok := decompiledMemo.Tag(MemoPrefix)
	require.True(t, ok)
	assert.Equal(t, "initialize_mint", action)
}

func TestInitializeMint_AlreadyInitialized(t *testing.T) {
	env := setup(t)

	mint := &token.Mint{
		MintAuthority: env.authority,
		Decimals:      9,
		IsInitialized: true,
	}
	env.client.accounts[base58.Encode(env.mint)] = solana.AccountInfo{
		Owner: token.ProgramKey,
		Data:  mint.Marshal(),
	}

	err := env.ledger.InitializeMint(env.ctx, &ledger.InitializeMintArgs{
		Payer:         env.authority,
		Mint:          env.mint,
		Decimals:      9,
		MintAuthority: env.authority,
	})
	assert.Equal(t, ledger.ErrMintAlreadyInitialized, err)
	assert.Empty(t, env.client.submitted)
}

func TestInitializeMint_RequiresSigner(t *testing.T) {
	env := setup(t)

	err := env.ledger.InitializeMint(context.Background(), &ledger.InitializeMintArgs{
		Payer:         env.authority,
		Mint:          env.mint,
		Decimals:      9,
		MintAuthority: env.authority,
	})
	assert.Equal(t, runtime.ErrMissingRequiredSignature, err)
	assert.Empty(t, env.client.submitted)
}

func TestInitializeMint_MintMustSign(t *testing.T) {
	env := setup(t)

	// The vault holds the mint key, but only the authority signed.
	ctx := runtime.WithSigners(context.Background(), env.authority)
	err := env.ledger.InitializeMint(ctx, &ledger.InitializeMintArgs{
		Payer:         env.authority,
		Mint:          env.mint,
		Decimals:      9,
		MintAuthority: env.authority,
	})
	assert.Equal(t, runtime.ErrMissingRequiredSignature, err)
	assert.Empty(t, env.client.submitted)

	// Same for the fee payer standing in as payer.
	err = env.ledger.InitializeMint(ctx, &ledger.InitializeMintArgs{
		Payer:         env.feePayer,
		Mint:          env.mint,
		Decimals:      9,
		MintAuthority: env.authority,
	})
	assert.Equal(t, runtime.ErrMissingRequiredSignature, err)
	assert.Empty(t, env.client.submitted)

	ctx = runtime.WithSigners(ctx, env.mint)
	require.NoError(t, env.ledger.InitializeMint(ctx, &ledger.InitializeMintArgs{
		Payer:         env.feePayer,
		Mint:          env.mint,
		Decimals:      9,
		MintAuthority: env.authority,
	}))
	require.Len(t, env.client.submitted, 1)
	assert.True(t, env.client.submitted[0].IsFullySigned())
	assert.EqualValues(t, 2, env.client.submitted[0].Message.Header.NumSignatures)
}

func TestAllocateMint(t *testing.T) {
	env := setup(t)

	mint, err := env.ledger.AllocateMint(context.Background())
	require.NoError(t, err)
	require.Len(t, mint, ed25519.PublicKeySize)

	record, err := env.keys.Get(context.Background(), base58.Encode(mint))
	require.NoError(t, err)
	assert.Equal(t, vault.RoleCustodial, record.Role)

	other, err := env.ledger.AllocateMint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, mint, other)

	require.NoError(t, env.ledger.InitializeMint(runtime.WithSigners(env.ctx, mint), &ledger.InitializeMintArgs{
		Payer:         env.authority,
		Mint:          mint,
		Decimals:      6,
		MintAuthority: env.authority,
	}))
	require.Len(t, env.client.submitted, 1)
	assert.True(t, env.client.submitted[0].IsFullySigned())
}

func TestMintTo(t *testing.T) {
	env := setup(t)
	destination := make(ed25519.PublicKey, ed25519.PublicKeySize)
	destination[0] = 1

	require.NoError(t, env.ledger.MintTo(env.ctx, &ledger.MintToArgs{
		Mint:        env.mint,
		Destination: destination,
		Authority:   env.authority,
		Amount:      1234,
	}))

	require.Len(t, env.client.submitted, 1)
	txn := env.client.submitted[0]
	assert.True(t, txn.IsFullySigned())

	mintTo, err := token.DecompileMintTo(txn.Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, env.mint, mintTo.Mint)
	assert.EqualValues(t, destination, mintTo.Destination)
	assert.EqualValues(t, env.authority, mintTo.Authority)
	assert.EqualValues(t, 1234, mintTo.Amount)

	decompiledMemo, err := memo.DecompileMemo(txn.Message, 1)
	require.NoError(t, err)
	action, ok := decompiledMemo.Tag(MemoPrefix)
	require.True(t, ok)
	assert.Equal(t, "mint_to", action)
}

func TestMintTo_UnknownKey(t *testing.T) {
	env := setup(t)

	unknown, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	err = env.ledger.MintTo(runtime.WithSigners(env.ctx, unknown), &ledger.MintToArgs{
		Mint:        env.mint,
		Destination: env.mint,
		Authority:   unknown,
		Amount:      1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, vault.ErrKeyNotFound)
	assert.Empty(t, env.client.submitted)
}

func TestMintTo_ProgramErrors(t *testing.T) {
	for _, tc := range []struct {
		custom   solana.CustomError
		expected error
	}{
		{custom: token.ErrorOwnerMismatch, expected: ledger.ErrOwnerMismatch},
		{custom: token.ErrorMintMismatch, expected: ledger.ErrMintMismatch},
		{custom: token.ErrorOverflow, expected: ledger.ErrOverflow},
		{custom: token.ErrorFixedSupply, expected: ledger.ErrFixedSupply},
	} {
		env := setup(t)
		env.client.submitErr = solana.InstructionError{Index: 0, Err: tc.custom}

		err := env.ledger.MintTo(env.ctx, &ledger.MintToArgs{
			Mint:        env.mint,
			Destination: env.mint,
			Authority:   env.authority,
			Amount:      1,
		})
		assert.Equal(t, tc.expected, err)
	}
}

func TestMintTo_FailedOnChain(t *testing.T) {
	env := setup(t)

	txErr, err := solana.ParseTransactionError(map[string]interface{}{
		"InstructionError": []interface{}{
			json.Number("0"),
			map[string]interface{}{"Custom": json.Number("4")},
		},
	})
	require.NoError(t, err)
	env.client.statusErr = txErr

	err = env.ledger.MintTo(env.ctx, &ledger.MintToArgs{
		Mint:        env.mint,
		Destination: env.mint,
		Authority:   env.authority,
		Amount:      1,
	})
	assert.Equal(t, ledger.ErrOwnerMismatch, err)
}

func TestCreateTokenAccount(t *testing.T) {
	env := setup(t)
	owner := make(ed25519.PublicKey, ed25519.PublicKeySize)
	owner[0] = 7

	address, err := env.ledger.CreateTokenAccount(env.ctx, &ledger.CreateTokenAccountArgs{
		Payer: env.authority,
		Owner: owner,
		Mint:  env.mint,
	})
	require.NoError(t, err)

	expected, err := token.GetAssociatedAccount(owner, env.mint)
	require.NoError(t, err)
	assert.EqualValues(t, expected, address)

	require.Len(t, env.client.submitted, 1)
	decompiled, err := token.DecompileCreateAssociatedAccount(env.client.submitted[0].Message, 0)
	require.NoError(t, err)
	assert.EqualValues(t, expected, decompiled.Address)

	env.client.accounts[base58.Encode(address)] = solana.AccountInfo{Owner: token.ProgramKey}
	_, err = env.ledger.CreateTokenAccount(env.ctx, &ledger.CreateTokenAccountArgs{
		Payer: env.authority,
		Owner: owner,
		Mint:  env.mint,
	})
	assert.Equal(t, runtime.ErrAccountAlreadyInUse, err)
}
