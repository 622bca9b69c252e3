package models

import (
	"time"

	id "attesto/pkg/domain"
)

// CheckName identifies one step of credential verification.
type CheckName string

const (
	CheckProof      CheckName = "proof"
	CheckExpiration CheckName = "expiration"
	CheckIssuer     CheckName = "issuer"
	CheckStatus     CheckName = "status"
	CheckSchema     CheckName = "schema"
	CheckHolder     CheckName = "holder"
)

// Check is the outcome of one verification step.
type Check struct {
	Name    CheckName `json:"check"`
	Passed  bool      `json:"passed"`
	Message string    `json:"message,omitempty"`
}

// Metadata is extracted from the credential for audit and display.
type Metadata struct {
	CredentialID   string     `json:"credentialId"`
	Issuer         string     `json:"issuer"`
	IssuerName     string     `json:"issuerName,omitempty"`
	IssuanceDate   time.Time  `json:"issuanceDate"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	Types          []string   `json:"types"`
	SubjectID      string     `json:"subjectId"`
}

// VerificationResult aggregates the checks run against one credential.
type VerificationResult struct {
	Valid    bool      `json:"valid"`
	Checks   []Check   `json:"checks"`
	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Check returns the named check, if it ran.
func (r *VerificationResult) Check(name CheckName) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// VerifyOptions tunes VerifyCredential.
type VerifyOptions struct {
	// TrustedIssuers, when non-empty, is the allow-list for the issuer check.
	TrustedIssuers  []string
	SkipStatusCheck bool
	SkipSchemaCheck bool
}

// PresentationVerifyOptions adds the replay binding values.
type PresentationVerifyOptions struct {
	VerifyOptions
	Challenge string
	Domain    string
}

// PresentationResult aggregates the presentation proof and every embedded
// credential's verification.
type PresentationResult struct {
	Valid       bool                 `json:"valid"`
	Holder      string               `json:"holder"`
	Checks      []Check              `json:"checks"`
	Errors      []string             `json:"errors"`
	Warnings    []string             `json:"warnings"`
	Credentials []VerificationResult `json:"credentials"`
}

// IssueRequest is the input to IssueCredential.
type IssueRequest struct {
	IssuerOwnerID    id.UserID
	IssuerDID        string
	IssuerName       string
	IssuerPassphrase string
	SubjectDID       string
	Types            []string
	Claims           map[string]any
	SchemaID         string
	Evidence         []map[string]any
	// ValidFor overrides the configured validity window when positive.
	ValidFor time.Duration
}

// PresentationRequest is the input to CreatePresentation.
type PresentationRequest struct {
	HolderOwnerID id.UserID
	HolderDID     string
	Passphrase    string
	Credentials   []VerifiableCredential
	Challenge     string
	Domain        string
}
