package token

import (
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	pg "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/tokenadmin"
)

const (
	successJsonKey = "success"
	dataJsonKey    = "data"
	messageJsonKey = "message"
	errorJsonKey   = "error"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody(data any) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
		dataJsonKey:    data,
	}
}

func NewGenericApiFailureResponseBody(message string, err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		messageJsonKey: message,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// toStatusError classifies domain errors into gRPC status errors. Errors that
// already carry a status are returned as is.
func toStatusError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, tokenadmin.ErrUnauthorized),
		errors.Is(err, ledger.ErrOwnerMismatch),
		errors.Is(err, runtime.ErrMissingRequiredSignature):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, runtime.ErrAccountNotFound),
		errors.Is(err, ledger.ErrMintNotFound),
		errors.Is(err, ledger.ErrTokenAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, runtime.ErrAccountAlreadyInUse),
		errors.Is(err, ledger.ErrMintAlreadyInitialized):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, tokenadmin.ErrSupplyOverflow),
		errors.Is(err, ledger.ErrOverflow):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, tokenadmin.ErrRecordCapacityExceeded),
		errors.Is(err, tokenadmin.ErrInvalidStringEncoding),
		errors.Is(err, tokenadmin.ErrInvalidArgs),
		errors.Is(err, ledger.ErrInvalidArgs),
		errors.Is(err, runtime.ErrInvalidAccountSpace),
		errors.Is(err, query.ErrQueryNotSupported):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, tokenadmin.ErrInvalidRecord),
		errors.Is(err, ledger.ErrMintMismatch),
		errors.Is(err, ledger.ErrFixedSupply),
		errors.Is(err, vault.ErrKeyNotFound),
		errors.Is(err, vault.ErrKeyRevoked):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, tokenadmin.ErrHolderIndexUnsupported):
		return status.Error(codes.Unimplemented, err.Error())
	case pg.IsRetryable(err):
		return status.Error(codes.Aborted, "conflicting concurrent request, retry")
	}
	return status.Error(codes.Internal, err.Error())
}

// HandleGrpcErrorInWebContext maps a gRPC status error to an HTTP status code
// and the error message that is safe to return to the client.
func HandleGrpcErrorInWebContext(err error) (int, error) {
	if err == nil {
		return http.StatusOK, nil
	}

	statusErr, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, errors.New("internal server error")
	}

	switch statusErr.Code() {
	case codes.OK:
		return http.StatusOK, nil
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest, errors.New(statusErr.Message())
	case codes.Unauthenticated:
		return http.StatusUnauthorized, errors.New("authentication failed")
	case codes.PermissionDenied:
		return http.StatusForbidden, errors.New(statusErr.Message())
	case codes.NotFound:
		return http.StatusNotFound, errors.New(statusErr.Message())
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict, errors.New(statusErr.Message())
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, errors.New("rate limited")
	case codes.Unimplemented:
		return http.StatusNotImplemented, errors.New(statusErr.Message())
	case codes.Canceled, codes.DeadlineExceeded:
		return http.StatusRequestTimeout, errors.New("request timed out")
	default:
		return http.StatusInternalServerError, errors.New("internal server error")
	}
}
