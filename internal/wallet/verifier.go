package wallet

import (
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

// Identity is a caller's base58-encoded ed25519 public key. It is the only
// notion of "who" in the system; there are no server-issued sessions.
type Identity string

const messagePrefix = "chessbet"

// Purpose tags embedded in signed messages. The tag binds a signature to
// one action so it cannot be replayed against another endpoint.
const (
	PurposeCreate   = "create"
	PurposeJoin     = "join"
	PurposeCancel   = "cancel"
	PurposeConcede  = "concede"
	PurposeTimeout  = "timeout"
	PurposeRegister = "register"
	PurposeProfile  = "profile"
)

// NoEntity is the placeholder entity id for messages that do not target a
// session (create, register).
const NoEntity = "-"

var (
	ErrBadSignature = errf("signature verification failed")
	ErrStaleMessage = errf("signed message outside freshness window")
	ErrBadMessage   = errf("malformed signed message")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Message is the parsed form of the signed plaintext
// "chessbet:<purpose>:<entity>:<unix_ms>".
type Message struct {
	Purpose  string
	EntityID string
	IssuedAt time.Time
}

// FormatMessage builds the canonical plaintext a wallet must sign.
func FormatMessage(purpose, entityID string, issuedAt time.Time) string {
	if strings.TrimSpace(entityID) == "" {
		entityID = NoEntity
	}
	return fmt.Sprintf("%s:%s:%s:%d", messagePrefix, purpose, entityID, issuedAt.UnixMilli())
}

// ParseMessage splits and validates the canonical plaintext shape without
// checking any signature or freshness.
func ParseMessage(raw string) (*Message, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 || parts[0] != messagePrefix {
		return nil, ErrBadMessage
	}
	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, ErrBadMessage
	}
	purpose := strings.TrimSpace(parts[1])
	entity := strings.TrimSpace(parts[2])
	if purpose == "" || entity == "" {
		return nil, ErrBadMessage
	}
	return &Message{
		Purpose:  purpose,
		EntityID: entity,
		IssuedAt: time.UnixMilli(ts),
	}, nil
}

// Verifier checks detached ed25519 signatures and enforces the freshness
// window on the embedded timestamp.
type Verifier struct {
	maxAge  time.Duration
	maxSkew time.Duration
	now     func() time.Time
}

func NewVerifier(maxAge, maxSkew time.Duration) *Verifier {
	return &Verifier{maxAge: maxAge, maxSkew: maxSkew, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify authenticates one signed request. address and signature are
// base58; message is the exact plaintext that was signed. On success the
// parsed message and the caller identity are returned. Signature failure
// and staleness are distinct errors.
func (v *Verifier) Verify(address, message, signature string) (Identity, *Message, error) {
	pub, err := base58.Decode(strings.TrimSpace(address))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return "", nil, ErrBadSignature
	}
	sig, err := base58.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return "", nil, ErrBadSignature
	}
	msg, err := ParseMessage(message)
	if err != nil {
		return "", nil, err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return "", nil, ErrBadSignature
	}

	now := v.now()
	if msg.IssuedAt.Before(now.Add(-v.maxAge)) || msg.IssuedAt.After(now.Add(v.maxSkew)) {
		return "", nil, ErrStaleMessage
	}
	return Identity(base58.Encode(pub)), msg, nil
}

// VerifyPurpose is Verify plus a check that the message carries the
// expected purpose tag and entity id. A mismatch means the caller tried to
// replay a signature against a different action or session.
func (v *Verifier) VerifyPurpose(address, message, signature, purpose, entityID string) (Identity, error) {
	id, msg, err := v.Verify(address, message, signature)
	if err != nil {
		return "", err
	}
	if msg.Purpose != purpose {
		return "", ErrBadMessage
	}
	if strings.TrimSpace(entityID) == "" {
		entityID = NoEntity
	}
	if msg.EntityID != entityID {
		return "", ErrBadMessage
	}
	return id, nil
}
