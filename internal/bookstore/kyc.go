package bookstore

import (
	"strings"
	"time"
)

type KycState string

const (
	KycUnknown                KycState = "unknown"
	KycAwaitingProof          KycState = "awaitingProof"
	KycValidatedProof         KycState = "validatedProof"
	KycBound                  KycState = "bound"
	KycRejected               KycState = "rejected"
	KycPermanentlyBlacklisted KycState = "permanentlyBlacklisted"
)

// Stored proof states. Bound and AwaitingProof are derived on read, see Effective.
var validNext = map[KycState]map[KycState]bool{
	KycUnknown:                {KycValidatedProof: true, KycRejected: true, KycPermanentlyBlacklisted: true},
	KycValidatedProof:         {KycValidatedProof: true, KycRejected: true, KycPermanentlyBlacklisted: true},
	KycRejected:               {KycValidatedProof: true, KycRejected: true, KycPermanentlyBlacklisted: true},
	KycAwaitingProof:          {KycValidatedProof: true, KycRejected: true, KycPermanentlyBlacklisted: true},
	KycPermanentlyBlacklisted: {KycPermanentlyBlacklisted: true},
}

func CanTransition(from, to KycState) bool {
	return validNext[from][to]
}

// MinDocumentNumberLen is the shortest accepted identity document number.
const MinDocumentNumberLen = 5

type KycRecord struct {
	Identifier   string    `json:"identifier" yaml:"identifier"`
	State        KycState  `json:"state" yaml:"state"`
	ValidUntil   time.Time `json:"valid_until" yaml:"valid_until"`
	ClaimedBy    Identity  `json:"claimed_by" yaml:"claimed_by"`
	BoundTo      Identity  `json:"bound_to,omitempty" yaml:"bound_to,omitempty"`
	BoundOrderID string    `json:"bound_order_id,omitempty" yaml:"bound_order_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

func (k KycRecord) Blacklisted() bool { return k.State == KycPermanentlyBlacklisted }

func (k KycRecord) Bound() bool { return k.BoundOrderID != "" }

// ProofUsable reports whether the record holds an unexpired validated proof.
func (k KycRecord) ProofUsable(now time.Time) bool {
	return k.State == KycValidatedProof && now.Before(k.ValidUntil)
}

// Effective is the state reported to callers.
func (k KycRecord) Effective(now time.Time) KycState {
	switch {
	case k.State == "":
		return KycUnknown
	case k.Blacklisted():
		return KycPermanentlyBlacklisted
	case k.Bound():
		return KycBound
	case k.State == KycValidatedProof && !now.Before(k.ValidUntil):
		return KycAwaitingProof
	}
	return k.State
}

// DocumentType selects the identifier prefix used by DeriveKycIdentifier.
type DocumentType string

const (
	DocumentID               DocumentType = "id"
	DocumentBirthCertificate DocumentType = "birth-certificate"
)

// DeriveKycIdentifier builds a stable identifier from a document type and number.
func DeriveKycIdentifier(docType DocumentType, number string) (string, error) {
	n := strings.Join(strings.Fields(number), " ")
	if len(n) < MinDocumentNumberLen {
		return "", Newf(CodeInvalidInput, "document number must contain at least %d characters", MinDocumentNumberLen)
	}
	switch docType {
	case DocumentID:
		return "ID-" + n, nil
	case DocumentBirthCertificate:
		return "BC-" + n, nil
	}
	return "", Newf(CodeInvalidInput, "unknown document type %q", docType)
}

// ValidateKycIdentifier rejects empty identifiers and short document numbers.
func ValidateKycIdentifier(identifier string) error {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return New(CodeInvalidInput, "kyc identifier is required")
	}
	num := id
	for _, p := range []string{"ID-", "BC-"} {
		if strings.HasPrefix(id, p) {
			num = strings.TrimPrefix(id, p)
			break
		}
	}
	if len(strings.TrimSpace(num)) < MinDocumentNumberLen {
		return Newf(CodeInvalidInput, "document number must contain at least %d characters", MinDocumentNumberLen)
	}
	return nil
}
