package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/spacenexus/spacetoken-server/pkg/retry"
	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
)

// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
const rpcNodeUnhealthyCode = -32005

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")

	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

// Commitment is the level of finality requested from an RPC node.
type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	commitmentProcessed = "processed"
	commitmentConfirmed = "confirmed"
	commitmentFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: commitmentProcessed}
	CommitmentConfirmed = Commitment{Commitment: commitmentConfirmed}
	CommitmentFinalized = Commitment{Commitment: commitmentFinalized}
)

// CommitmentFromString parses a commitment level name, defaulting to confirmed.
func CommitmentFromString(value string) Commitment {
	switch value {
	case commitmentProcessed:
		return CommitmentProcessed
	case commitmentFinalized:
		return CommitmentFinalized
	default:
		return CommitmentConfirmed
	}
}

// AccountInfo is the raw on-chain state of an account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// Client is the subset of the Solana JSON RPC API used to manage the token.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetLatestBlockhash() (Blockhash, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	GetSlot(Commitment) (uint64, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

type client struct {
	log       *logrus.Entry
	rpc       jsonrpc.RPCClient
	retrier   retry.Retrier
	blockhash *blockhashCache
	poll      pollConfig
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

// NewWithRPCOptions returns a client configured with the specified RPC options.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return newClient(jsonrpc.NewClientWithOpts(endpoint, opts), defaultPollConfig)
}

func newClient(rpc jsonrpc.RPCClient, poll pollConfig) *client {
	return &client{
		log: logrus.StandardLogger().WithField("type", "solana/client"),
		rpc: rpc,
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		blockhash: newBlockhashCache(2 * time.Second),
		poll:      poll,
	}
}

// call invokes method, retrying when the node is throttling or unhealthy.
// The last error is returned as-is so callers can inspect *jsonrpc.RPCError.
func (c *client) call(out interface{}, method string, params ...interface{}) error {
	var lastErr error
	_, err := c.retrier.Retry(func() error {
		lastErr = c.rpc.CallFor(out, method, params...)
		return c.classify(method, lastErr)
	})
	if errors.Is(err, errRateLimited) || errors.Is(err, errServiceError) {
		return errors.Wrapf(lastErr, "%s: %v", method, err)
	}
	if err != nil {
		return lastErr
	}
	return nil
}

func (c *client) classify(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	switch {
	case !ok:
		return err
	case rpcErr.Code == 429:
		c.log.WithField("method", method).Warn("rate limited")
		return errRateLimited
	case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
		return errServiceError
	default:
		return err
	}
}

func (c *client) GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error) {
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed")
	}
	return lamports, nil
}

func (c *client) GetSlot(commitment Commitment) (slot uint64, err error) {
	// The node rejects a bare commitment object; it must be positional.
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed")
	}
	return slot, nil
}

func (c *client) GetLatestBlockhash() (Blockhash, error) {
	return c.blockhash.get(func() (hash Blockhash, err error) {
		var resp struct {
			Value struct {
				Blockhash string `json:"blockhash"`
			} `json:"value"`
		}
		if err := c.call(&resp, "getLatestBlockhash"); err != nil {
			return hash, errors.Wrap(err, "getLatestBlockhash() failed")
		}

		raw, err := base58.Decode(resp.Value.Blockhash)
		if err != nil || len(raw) != len(hash) {
			return hash, errors.Errorf("invalid blockhash in response: %q", resp.Value.Blockhash)
		}
		copy(hash[:], raw)
		return hash, nil
	})
}

// SubmitTransaction sends txn with preflight checks at the given commitment.
// Preflight failures are returned as *TransactionError or InstructionError.
func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]
	encoded := txn.Marshal()
	if len(encoded) > MaxTransactionSize {
		return sig, ErrTransactionTooLarge
	}

	config := map[string]interface{}{
		"skipPreflight":       false,
		"preflightCommitment": commitment.Commitment,
	}

	var ignored string
	err := c.call(&ignored, "sendTransaction", base58.Encode(encoded), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed")
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": base58.Encode(sig[:]),
	}).WithError(txErr).Debug("transaction rejected during preflight")

	if ie := txErr.InstructionError(); ie != nil {
		return sig, *ie
	}
	return sig, txErr
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	var resp struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"`
			Executable bool     `json:"executable"`
		} `json:"value"`
	}

	config := map[string]interface{}{
		"commitment": commitment.Commitment,
		"encoding":   "base64",
	}
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed")
	}
	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	owner, err := base58.Decode(resp.Value.Owner)
	if err != nil || len(owner) != ed25519.PublicKeySize {
		return AccountInfo{}, errors.Errorf("invalid account owner: %q", resp.Value.Owner)
	}

	info := AccountInfo{
		Owner:      owner,
		Lamports:   resp.Value.Lamports,
		Executable: resp.Value.Executable,
	}
	if len(resp.Value.Data) > 0 {
		if info.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0]); err != nil {
			return AccountInfo{}, errors.Wrap(err, "invalid account data")
		}
	}
	return info, nil
}
