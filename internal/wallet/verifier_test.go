package wallet

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return &signer{pub: pub, priv: priv}
}

func (s *signer) address() string { return base58.Encode(s.pub) }

func (s *signer) sign(msg string) string {
	return base58.Encode(ed25519.Sign(s.priv, []byte(msg)))
}

func fixedVerifier(now time.Time) *Verifier {
	return NewVerifier(120*time.Second, 60*time.Second).WithClock(func() time.Time { return now })
}

func TestVerify_Good(t *testing.T) {
	now := time.Now()
	s := newSigner(t)
	v := fixedVerifier(now)

	msg := FormatMessage(PurposeJoin, "abc-123", now)
	id, parsed, err := v.Verify(s.address(), msg, s.sign(msg))
	require.NoError(t, err)
	assert.Equal(t, Identity(s.address()), id)
	assert.Equal(t, PurposeJoin, parsed.Purpose)
	assert.Equal(t, "abc-123", parsed.EntityID)
}

func TestVerify_BadSignature(t *testing.T) {
	now := time.Now()
	s := newSigner(t)
	other := newSigner(t)
	v := fixedVerifier(now)

	msg := FormatMessage(PurposeCreate, NoEntity, now)

	// Signed by a different key than the claimed address.
	_, _, err := v.Verify(s.address(), msg, other.sign(msg))
	assert.ErrorIs(t, err, ErrBadSignature)

	// Signature over different bytes.
	_, _, err = v.Verify(s.address(), msg, s.sign(msg+"x"))
	assert.ErrorIs(t, err, ErrBadSignature)

	// Garbage encodings.
	_, _, err = v.Verify("not-base58-0OIl", msg, s.sign(msg))
	assert.ErrorIs(t, err, ErrBadSignature)
	_, _, err = v.Verify(s.address(), msg, "short")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_Freshness(t *testing.T) {
	now := time.Now()
	s := newSigner(t)
	v := fixedVerifier(now)

	cases := []struct {
		name     string
		issuedAt time.Time
		wantErr  error
	}{
		{"just inside max age", now.Add(-119 * time.Second), nil},
		{"too old", now.Add(-121 * time.Second), ErrStaleMessage},
		{"just inside skew", now.Add(59 * time.Second), nil},
		{"too far in future", now.Add(61 * time.Second), ErrStaleMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := FormatMessage(PurposeConcede, "sid", tc.issuedAt)
			_, _, err := v.Verify(s.address(), msg, s.sign(msg))
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestVerify_StalenessIsDistinctFromBadSignature(t *testing.T) {
	now := time.Now()
	s := newSigner(t)
	v := fixedVerifier(now)

	// A correctly signed but expired message must report staleness, not a
	// signature failure.
	msg := FormatMessage(PurposeTimeout, "sid", now.Add(-10*time.Minute))
	_, _, err := v.Verify(s.address(), msg, s.sign(msg))
	assert.ErrorIs(t, err, ErrStaleMessage)
	assert.NotErrorIs(t, err, ErrBadSignature)
}

func TestParseMessage(t *testing.T) {
	m, err := ParseMessage("chessbet:join:abc:1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "join", m.Purpose)
	assert.Equal(t, "abc", m.EntityID)
	assert.Equal(t, int64(1700000000000), m.IssuedAt.UnixMilli())

	for _, raw := range []string{
		"",
		"chessbet:join:abc",
		"other:join:abc:1700000000000",
		"chessbet:join:abc:notanumber",
		"chessbet::abc:1700000000000",
	} {
		_, err := ParseMessage(raw)
		assert.ErrorIs(t, err, ErrBadMessage, "raw=%q", raw)
	}
}

func TestVerifyPurpose_RejectsMismatch(t *testing.T) {
	now := time.Now()
	s := newSigner(t)
	v := fixedVerifier(now)

	msg := FormatMessage(PurposeJoin, "session-a", now)
	sig := s.sign(msg)

	// Right purpose and entity.
	_, err := v.VerifyPurpose(s.address(), msg, sig, PurposeJoin, "session-a")
	require.NoError(t, err)

	// A join signature replayed against cancel.
	_, err = v.VerifyPurpose(s.address(), msg, sig, PurposeCancel, "session-a")
	assert.ErrorIs(t, err, ErrBadMessage)

	// A join signature replayed against another session.
	_, err = v.VerifyPurpose(s.address(), msg, sig, PurposeJoin, "session-b")
	assert.ErrorIs(t, err, ErrBadMessage)
}
