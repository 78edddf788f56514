package tokenadmin

import (
	"github.com/pkg/errors"

	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/solana/spacetoken"
)

var (
	// ErrUnauthorized is returned when the caller is not the record's stored
	// authority.
	ErrUnauthorized = errors.New("you are not authorized to perform this action")

	ErrSupplyOverflow         = errors.New("supply overflow")
	ErrRecordCapacityExceeded = spacetoken.ErrAccountDataTooLarge
	ErrInvalidStringEncoding  = spacetoken.ErrInvalidStringEncoding
	ErrInvalidRecord          = errors.New("invalid token record")
	ErrInvalidArgs            = errors.New("invalid arguments")
	ErrHolderIndexUnsupported = errors.New("ledger does not support holder enumeration")
)

// expectedErrors are caller mistakes rather than service faults. Traces
// record them without flagging the transaction as errored.
var expectedErrors = []error{
	ErrUnauthorized,
	ErrSupplyOverflow,
	ErrRecordCapacityExceeded,
	ErrInvalidStringEncoding,
	ErrInvalidRecord,
	ErrInvalidArgs,
	runtime.ErrMissingRequiredSignature,
	runtime.ErrAccountAlreadyInUse,
	runtime.ErrAccountNotFound,
	ledger.ErrMintAlreadyInitialized,
	ledger.ErrTokenAccountNotFound,
	ledger.ErrMintMismatch,
	ledger.ErrOwnerMismatch,
	ledger.ErrOverflow,
}
