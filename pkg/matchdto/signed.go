package matchdto

// SignedRequest is the envelope carried by every mutating call. Message is
// the exact plaintext the wallet signed; Signature is base58 of the
// detached ed25519 signature; Address is the caller's base58 public key.
// The server never trusts Address alone: it re-verifies the signature and
// cross-checks the entity id embedded in Message against the claimed one.
type SignedRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// CreateSessionRequest opens a new waiting session.
type CreateSessionRequest struct {
	SignedRequest
	Wager     uint64 `json:"wager"`
	EscrowRef string `json:"escrow_ref,omitempty"`
}

// SetProfileRequest registers or updates the caller's display name.
type SetProfileRequest struct {
	SignedRequest
	DisplayName string `json:"display_name"`
}
