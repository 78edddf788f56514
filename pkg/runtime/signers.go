package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
)

type signersContextKey struct{}

// WithSigners returns a context whose invocation is signed by the provided
// keys, in addition to any signers already present.
func WithSigners(ctx context.Context, signers ...ed25519.PublicKey) context.Context {
	existing := GetSigners(ctx)

	combined := make([]ed25519.PublicKey, 0, len(existing)+len(signers))
	combined = append(combined, existing...)
	for _, signer := range signers {
		if len(signer) != ed25519.PublicKeySize || containsKey(combined, signer) {
			continue
		}
		combined = append(combined, signer)
	}

	return context.WithValue(ctx, signersContextKey{}, combined)
}

// GetSigners returns the signer set of the invocation.
func GetSigners(ctx context.Context) []ed25519.PublicKey {
	signers, _ := ctx.Value(signersContextKey{}).([]ed25519.PublicKey)
	return signers
}

func IsSigner(ctx context.Context, key ed25519.PublicKey) bool {
	if len(key) == 0 {
		return false
	}
	return containsKey(GetSigners(ctx), key)
}

// RequireSigner returns ErrMissingRequiredSignature unless key signed the
// invocation.
func RequireSigner(ctx context.Context, key ed25519.PublicKey) error {
	if !IsSigner(ctx, key) {
		return ErrMissingRequiredSignature
	}
	return nil
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
