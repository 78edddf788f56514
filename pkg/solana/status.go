package solana

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/retry"
	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
)

const (
	ticksPerSec  = 160
	ticksPerSlot = 64
	slotsPerSec  = ticksPerSec / ticksPerSlot

	// PollRate is roughly twice the slot rate.
	PollRate = (time.Second / slotsPerSec) / 2
)

var errCommitmentNotReached = errors.New("commitment not reached")

// pollConfig bounds how long GetSignatureStatus waits for a commitment.
type pollConfig struct {
	interval time.Duration
	attempts uint
}

// ~32 slots at PollRate.
var defaultPollConfig = pollConfig{interval: PollRate, attempts: 64}

// SignatureStatus is the processing state of a submitted transaction.
type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction has been rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == commitmentFinalized
}

func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized(), s.ConfirmationStatus == commitmentConfirmed:
		return true
	default:
		return *s.Confirmations >= 1
	}
}

// Reached reports whether the status satisfies the commitment. A failed
// transaction never progresses, so it counts as reached.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	if s.ErrorResult != nil {
		return true
	}
	switch commitment {
	case CommitmentFinalized:
		return s.Finalized()
	case CommitmentConfirmed:
		return s.Confirmed()
	default:
		return true
	}
}

// GetSignatureStatus polls until sig reaches commitment, fails, or the poll
// budget runs out. The last observed status is returned with any error.
func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return ErrSignatureNotFound
			case !status.Reached(commitment):
				return errCommitmentNotReached
			default:
				return nil
			}
		},
		retry.RetriableErrors(ErrSignatureNotFound, errCommitmentNotReached),
		retry.Limit(c.poll.attempts),
		retry.Backoff(backoff.Constant(c.poll.interval), c.poll.interval),
	)
	return status, err
}

type rpcSignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *int            `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

func (r *rpcSignatureStatus) toStatus() (*SignatureStatus, error) {
	status := &SignatureStatus{
		Slot:               r.Slot,
		Confirmations:      r.Confirmations,
		ConfirmationStatus: r.ConfirmationStatus,
	}
	if len(r.Err) == 0 || bytes.Equal(r.Err, []byte("null")) {
		return status, nil
	}

	var raw interface{}
	decoder := json.NewDecoder(bytes.NewReader(r.Err))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "malformed transaction error")
	}

	txErr, err := ParseTransactionError(raw)
	if err != nil {
		return nil, err
	}
	status.ErrorResult = txErr
	return status, nil
}

// GetSignatureStatuses returns one entry per signature; unknown signatures
// are nil.
func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i := range sigs {
		encoded[i] = base58.Encode(sigs[i][:])
	}

	var resp struct {
		Value []*rpcSignatureStatus `json:"value"`
	}
	config := map[string]interface{}{"searchTransactionHistory": true}
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if i >= len(statuses) || v == nil {
			continue
		}

		status, err := v.toStatus()
		if err != nil {
			return nil, err
		}
		statuses[i] = status
	}
	return statuses, nil
}
