package auth

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spacenexus/spacetoken-server/pkg/metrics"
)

const (
	metricsStructName = "auth.signed_message_verifier"
)

// SignedMessage is a JSON payload signed by one or more ed25519 keys. Message
// is the standard base64 encoding of the exact bytes that were signed, and
// Signatures maps each base58 public key to its base58 signature.
type SignedMessage struct {
	Message    string            `json:"message"`
	Signatures map[string]string `json:"signatures"`
}

// Header is embedded in every signed payload.
type Header struct {
	// Timestamp is the unix time, in seconds, at which the payload was signed.
	Timestamp int64 `json:"timestamp"`
}

// SignedMessageVerifier verifies signed messages and yields their signers.
type SignedMessageVerifier struct {
	log    *logrus.Entry
	maxAge time.Duration
	now    func() time.Time
}

// NewSignedMessageVerifier returns a verifier that rejects messages whose
// timestamp is further than maxAge from the current time. A zero maxAge
// disables the check.
func NewSignedMessageVerifier(maxAge time.Duration) *SignedMessageVerifier {
	return &SignedMessageVerifier{
		log:    logrus.StandardLogger().WithField("type", "auth/signed_message_verifier"),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Authenticate verifies every signature on msg and decodes the signed payload
// into dst. The returned signers are sorted by key.
//
// All failures are returned as gRPC status errors: InvalidArgument for
// malformed envelopes and payloads, Unauthenticated for bad or stale
// signatures.
func (v *SignedMessageVerifier) Authenticate(ctx context.Context, msg *SignedMessage, dst interface{}) ([]ed25519.PublicKey, error) {
	defer metrics.TraceMethodCall(ctx, metricsStructName, "Authenticate").End()

	if msg == nil || len(msg.Message) == 0 {
		return nil, status.Error(codes.InvalidArgument, "message is required")
	}

	messageBytes, err := base64.StdEncoding.DecodeString(msg.Message)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "message not valid base64")
	}

	if len(msg.Signatures) == 0 {
		return nil, status.Error(codes.Unauthenticated, "at least one signature is required")
	}

	signers := make([]ed25519.PublicKey, 0, len(msg.Signatures))
	for encodedKey, encodedSignature := range msg.Signatures {
		key, err := base58.Decode(encodedKey)
		if err != nil || len(key) != ed25519.PublicKeySize {
			return nil, status.Errorf(codes.InvalidArgument, "%s is not a public key", encodedKey)
		}

		signature, err := base58.Decode(encodedSignature)
		if err != nil || len(signature) != ed25519.SignatureSize {
			return nil, status.Errorf(codes.InvalidArgument, "signature for %s is invalid", encodedKey)
		}

		if !ed25519.Verify(key, messageBytes, signature) {
			v.log.WithFields(logrus.Fields{
				"method":    "Authenticate",
				"signer":    encodedKey,
				"signature": encodedSignature,
			}).Info("message is not signature verified")
			return nil, status.Error(codes.Unauthenticated, "")
		}

		signers = append(signers, key)
	}
	sort.Slice(signers, func(i, j int) bool {
		return bytes.Compare(signers[i], signers[j]) < 0
	})

	var header Header
	if err := json.Unmarshal(messageBytes, &header); err != nil {
		return nil, status.Error(codes.InvalidArgument, "message is not a json object")
	}
	if err := v.checkTimestamp(header.Timestamp); err != nil {
		return nil, err
	}

	if dst != nil {
		if err := json.Unmarshal(messageBytes, dst); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid message: %v", err)
		}
	}

	return signers, nil
}

func (v *SignedMessageVerifier) checkTimestamp(timestamp int64) error {
	if v.maxAge <= 0 {
		return nil
	}

	signedAt := time.Unix(timestamp, 0)
	delta := v.now().Sub(signedAt)
	if delta < 0 {
		delta = -delta
	}
	if delta > v.maxAge {
		return status.Error(codes.Unauthenticated, "message timestamp is outside the accepted window")
	}
	return nil
}

// Sign marshals payload to JSON and signs it with every provided key.
func Sign(payload interface{}, keys ...ed25519.PrivateKey) (*SignedMessage, error) {
	messageBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := &SignedMessage{
		Message:    base64.StdEncoding.EncodeToString(messageBytes),
		Signatures: make(map[string]string),
	}
	for _, key := range keys {
		pub := key.Public().(ed25519.PublicKey)
		msg.Signatures[base58.Encode(pub)] = base58.Encode(ed25519.Sign(key, messageBytes))
	}
	return msg, nil
}
