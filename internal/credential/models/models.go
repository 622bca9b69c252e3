// Package models defines verifiable credentials, presentations, schemas and
// the verification result types.
package models

import (
	"time"
)

const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextCredentialsV2 = "https://www.w3.org/ns/credentials/v2"

	TypeVerifiableCredential   = "VerifiableCredential"
	TypeVerifiablePresentation = "VerifiablePresentation"

	ProofTypeEd25519   = "Ed25519Signature2020"
	ProofTypeSecp256k1 = "EcdsaSecp256k1Signature2019"

	ProofPurposeAssertion      = "assertionMethod"
	ProofPurposeAuthentication = "authentication"

	StatusEntryType     = "StatusList2021Entry"
	StatusPurposeRevoke = "revocation"

	SchemaTypeJSON = "JsonSchemaValidator2018"
)

// Issuer identifies the signing party.
type Issuer struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// StatusEntry points at one bit of a status list.
type StatusEntry struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose"`
	StatusListIndex      uint   `json:"statusListIndex"`
	StatusListCredential string `json:"statusListCredential"`
}

// SchemaRef references a registered credential schema.
type SchemaRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Proof is the embedded signature block.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	ProofValue         string    `json:"proofValue"`
	Challenge          string    `json:"challenge,omitempty"`
	Domain             string    `json:"domain,omitempty"`
}

// Subject is the claim payload; "id" holds the subject DID.
type Subject map[string]any

// ID returns the subject DID or "".
func (s Subject) ID() string {
	v, _ := s["id"].(string)
	return v
}

// VerifiableCredential carries both the legacy issuanceDate/expirationDate
// window and the newer validFrom/validUntil pair.
type VerifiableCredential struct {
	Context           []string         `json:"@context"`
	ID                string           `json:"id"`
	Type              []string         `json:"type"`
	Issuer            Issuer           `json:"issuer"`
	IssuanceDate      time.Time        `json:"issuanceDate"`
	ExpirationDate    *time.Time       `json:"expirationDate,omitempty"`
	ValidFrom         *time.Time       `json:"validFrom,omitempty"`
	ValidUntil        *time.Time       `json:"validUntil,omitempty"`
	CredentialSubject Subject          `json:"credentialSubject"`
	CredentialStatus  *StatusEntry     `json:"credentialStatus,omitempty"`
	CredentialSchema  *SchemaRef       `json:"credentialSchema,omitempty"`
	Evidence          []map[string]any `json:"evidence,omitempty"`
	Proof             *Proof           `json:"proof,omitempty"`
}

// SubjectID returns the credential subject DID.
func (vc *VerifiableCredential) SubjectID() string {
	return vc.CredentialSubject.ID()
}

// HasType reports whether t is among the credential's types.
func (vc *VerifiableCredential) HasType(t string) bool {
	for _, v := range vc.Type {
		if v == t {
			return true
		}
	}
	return false
}

// PrimaryType is the most specific type, skipping the generic base type.
func (vc *VerifiableCredential) PrimaryType() string {
	for i := len(vc.Type) - 1; i >= 0; i-- {
		if vc.Type[i] != TypeVerifiableCredential {
			return vc.Type[i]
		}
	}
	return TypeVerifiableCredential
}

// Expiry returns validUntil, falling back to expirationDate.
func (vc *VerifiableCredential) Expiry() *time.Time {
	if vc.ValidUntil != nil {
		return vc.ValidUntil
	}
	return vc.ExpirationDate
}

// VerifiablePresentation is a holder-signed bundle of credentials.
type VerifiablePresentation struct {
	Context              []string               `json:"@context"`
	ID                   string                 `json:"id"`
	Type                 []string               `json:"type"`
	Holder               string                 `json:"holder"`
	VerifiableCredential []VerifiableCredential `json:"verifiableCredential"`
	Proof                *Proof                 `json:"proof,omitempty"`
	CreatedAt            time.Time              `json:"-"`
}

// Schema is a registered credential schema. Only the subset of JSON Schema
// listed on PropertySpec is honored.
type Schema struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Version        string                  `json:"version"`
	CredentialType string                  `json:"credentialType"`
	Jurisdiction   string                  `json:"jurisdiction,omitempty"`
	IsDefault      bool                    `json:"isDefault"`
	Properties     map[string]PropertySpec `json:"properties"`
	Required       []string                `json:"required,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
}

// PropertySpec constrains one credentialSubject field.
type PropertySpec struct {
	Type        string `json:"type,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Format      string `json:"format,omitempty"`
	Description string `json:"description,omitempty"`
}

// RevocationEntry records that a credential was revoked.
type RevocationEntry struct {
	CredentialID string    `json:"credentialId"`
	Reason       string    `json:"reason"`
	RevokedBy    string    `json:"revokedBy"`
	RevokedAt    time.Time `json:"revokedAt"`
	StatusListID string    `json:"statusListId,omitempty"`
	StatusIndex  *uint     `json:"statusIndex,omitempty"`
}

// StatusList is the published bitstring for one list.
type StatusList struct {
	ID          string    `json:"id"`
	Purpose     string    `json:"statusPurpose"`
	EncodedList string    `json:"encodedList"`
	Length      uint      `json:"length"`
	Allocated   uint      `json:"allocated"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
