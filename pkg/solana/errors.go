package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey names a transaction-level failure reported by the runtime.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
)

// InstructionErrorKey names a builtin instruction failure.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorMissingRequiredSignature InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorCustom                   InstructionErrorKey = "Custom"
)

// CustomError is a program-defined error code.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %x", int(c))
}

// InstructionError is the failure of a single instruction within a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch i.Err.(type) {
	case nil:
		return ""
	case CustomError:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if ce, ok := i.Err.(CustomError); ok {
		return &ce
	}
	return nil
}

// TransactionError is a failed transaction result, optionally caused by an
// instruction.
type TransactionError struct {
	key         TransactionErrorKey
	instruction *InstructionError
	raw         interface{}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{key: key, raw: string(key)}
}

func (t TransactionError) Error() string {
	if t.instruction != nil {
		return t.instruction.Error()
	}
	return string(t.key)
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instruction
}

// JSONString returns the error as reported by the node.
func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

// ParseRPCError extracts the transaction error carried in the data of a
// failed sendTransaction call. It returns nil if there is none.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}
	if raw := data["err"]; raw != nil {
		return ParseTransactionError(raw)
	}
	return nil, nil
}

// ParseTransactionError decodes the "err" value of a transaction result. The
// value is either a bare key or a single-entry object keyed by the error name.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{key: TransactionErrorKey(t), raw: raw}, nil
	case map[string]interface{}:
		key, value, err := singleEntry(t)
		if err != nil {
			return nil, errors.Wrap(err, "invalid transaction error")
		}

		txErr := &TransactionError{key: TransactionErrorKey(key), raw: raw}
		if txErr.key != TransactionErrorInstructionError {
			return txErr, nil
		}

		ie, err := parseInstructionError(value)
		if err != nil {
			return nil, errors.Wrap(err, "invalid instruction error")
		}
		txErr.instruction = &ie
		return txErr, nil
	default:
		return nil, errors.Errorf("unhandled transaction error type %T", raw)
	}
}

// parseInstructionError decodes an [index, error] tuple where error is a key
// or {"Custom": code}.
func parseInstructionError(v interface{}) (InstructionError, error) {
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) != 2 {
		return InstructionError{}, errors.Errorf("expected [index, error] tuple, got %v", v)
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return InstructionError{}, err
	}

	switch t := tuple[1].(type) {
	case string:
		return InstructionError{Index: index, Err: errors.New(t)}, nil
	case map[string]interface{}:
		key, value, err := singleEntry(t)
		if err != nil {
			return InstructionError{}, err
		}
		if key != string(InstructionErrorCustom) {
			return InstructionError{Index: index, Err: errors.New(key)}, nil
		}

		code, err := parseJSONNumber(value)
		if err != nil {
			return InstructionError{}, err
		}
		return InstructionError{Index: index, Err: CustomError(code)}, nil
	default:
		return InstructionError{}, errors.Errorf("unhandled instruction error type %T", t)
	}
}

func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("expected a single entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	panic("unreachable")
}

func parseJSONNumber(v interface{}) (int, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return int(n), errors.Wrapf(err, "non-integer value %v", v)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return int(n), errors.Wrapf(err, "non-integer value %v", v)
	case float64:
		return int(t), nil
	default:
		return 0, errors.Errorf("non-numeric value %v", v)
	}
}
