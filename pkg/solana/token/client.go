package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
)

var (
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidTokenAccount is returned for an account that exists but is not
	// an initialized token account of the expected mint.
	ErrInvalidTokenAccount = errors.New("invalid token account")

	// ErrInvalidMint is returned for an account that exists but is not an
	// initialized mint.
	ErrInvalidMint = errors.New("invalid mint")
)

// Client reads token program state through a solana.Client.
type Client struct {
	sc solana.Client
}

func NewClient(sc solana.Client) *Client {
	return &Client{sc: sc}
}

// ownedData returns the data of address, or invalid if the account is not
// owned by the token program.
func (c *Client) ownedData(address ed25519.PublicKey, commitment solana.Commitment, invalid error) ([]byte, error) {
	info, err := c.sc.GetAccountInfo(address, commitment)
	switch {
	case err == solana.ErrNoAccountInfo:
		return nil, ErrAccountNotFound
	case err != nil:
		return nil, errors.Wrap(err, "failed to get account info")
	case !bytes.Equal(info.Owner, ProgramKey):
		return nil, invalid
	default:
		return info.Data, nil
	}
}

// GetMint returns the initialized mint at address.
func (c *Client) GetMint(address ed25519.PublicKey, commitment solana.Commitment) (*Mint, error) {
	data, err := c.ownedData(address, commitment, ErrInvalidMint)
	if err != nil {
		return nil, err
	}

	var mint Mint
	if !mint.Unmarshal(data) || !mint.IsInitialized {
		return nil, ErrInvalidMint
	}
	return &mint, nil
}

// GetAccount returns the token account at address, which must be initialized
// and hold tokens of mint.
func (c *Client) GetAccount(address, mint ed25519.PublicKey, commitment solana.Commitment) (*Account, error) {
	data, err := c.ownedData(address, commitment, ErrInvalidTokenAccount)
	if err != nil {
		return nil, err
	}

	var account Account
	switch {
	case !account.Unmarshal(data),
		account.State == AccountStateUninitialized,
		!bytes.Equal(mint, account.Mint):
		return nil, ErrInvalidTokenAccount
	}
	return &account, nil
}
