package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ComputeIntegrityTag binds a vote payload to the token that produced it
// and the poll it was cast in. The token itself is the HMAC key, so anyone
// with read access to the ledger can recompute the tag without any
// identity data, and any payload alteration is detectable.
func ComputeIntegrityTag(token string, pollID uuid.UUID, payload VotePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload for tagging: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write([]byte(pollID.String()))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyIntegrityTag recomputes and compares in constant time.
func VerifyIntegrityTag(tag string, token string, pollID uuid.UUID, payload VotePayload) bool {
	expected, err := ComputeIntegrityTag(token, pollID, payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(tag), []byte(expected))
}

// DeriveIssuanceKey maps (poll, identity) to the one-way key stored by the
// issuance record. The secret is unique to the poll and discarded at close,
// after which the record is unlinkable even by whoever knows the identity.
func DeriveIssuanceKey(secret []byte, pollID uuid.UUID, identity string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(pollID.String()))
	mac.Write([]byte(identity))
	return hex.EncodeToString(mac.Sum(nil))
}

// IntegrityReport is the post-hoc tamper-evidence check over a poll's
// ledger and issuance tables.
type IntegrityReport struct {
	PollID              uuid.UUID `json:"poll_id"`
	CredentialsIssued   int       `json:"credentials_issued"`
	CredentialsConsumed int       `json:"credentials_consumed"`
	VotesRecorded       int       `json:"votes_recorded"`
	CrossPollVotes      int       `json:"cross_poll_votes"`
	TagMismatches       int       `json:"tag_mismatches"`
	AuditIssuedCount    int       `json:"audit_issued_count"`
	AuditAcceptedCount  int       `json:"audit_accepted_count"`
	Consistent          bool      `json:"consistent"`
	CheckedAt           time.Time `json:"checked_at"`
}
