package models

import (
	"strings"
	"time"

	"attesto/internal/crypto"
	id "attesto/pkg/domain"
)

// Method is the DID method tag.
type Method string

const (
	MethodKey Method = "key"
	MethodWeb Method = "web"
)

// Status is the lifecycle state of a DID or key pair.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
	StatusRevoked     Status = "revoked"
)

// Purpose is a verification relationship in a DID document.
type Purpose string

const (
	PurposeAuthentication       Purpose = "authentication"
	PurposeAssertionMethod      Purpose = "assertionMethod"
	PurposeKeyAgreement         Purpose = "keyAgreement"
	PurposeCapabilityInvocation Purpose = "capabilityInvocation"
	PurposeCapabilityDelegation Purpose = "capabilityDelegation"
)

// DefaultPurposes applies when CreateOptions.Purposes is empty.
var DefaultPurposes = []Purpose{PurposeAuthentication, PurposeAssertionMethod}

// DID is the persisted decentralized identifier record.
type DID struct {
	DID           string     `json:"did"`
	Method        Method     `json:"method"`
	OwnerID       id.UserID  `json:"ownerId"`
	Controller    string     `json:"controller"`
	Status        Status     `json:"status"`
	IsPrimary     bool       `json:"isPrimary"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// IsActive reports whether the DID may sign.
func (d *DID) IsActive() bool {
	return d.Status == StatusActive
}

// VerificationMethod binds a public key to a method id.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Document is the DID's published representation.
type Document struct {
	Context              []string             `json:"@context"`
	ID                   string               `json:"id"`
	Controller           string               `json:"controller,omitempty"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication,omitempty"`
	AssertionMethod      []string             `json:"assertionMethod,omitempty"`
	KeyAgreement         []string             `json:"keyAgreement,omitempty"`
	CapabilityInvocation []string             `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []string             `json:"capabilityDelegation,omitempty"`
	Created              time.Time            `json:"created"`
	Updated              time.Time            `json:"updated"`
	Deactivated          bool                 `json:"deactivated,omitempty"`
}

// FindMethod returns the verification method with the given id. A fragment-only
// reference ("#key-1") matches against the document id.
func (d *Document) FindMethod(methodID string) (*VerificationMethod, bool) {
	if strings.HasPrefix(methodID, "#") {
		methodID = d.ID + methodID
	}
	for i := range d.VerificationMethod {
		if d.VerificationMethod[i].ID == methodID {
			return &d.VerificationMethod[i], true
		}
	}
	return nil, false
}

// HasPurpose reports whether methodID is listed under purpose.
func (d *Document) HasPurpose(purpose Purpose, methodID string) bool {
	for _, ref := range d.refs(purpose) {
		if ref == methodID {
			return true
		}
	}
	return false
}

// SetPurposes replaces every purpose list with methodIDs for the given purposes.
func (d *Document) SetPurposes(purposes []Purpose, methodIDs ...string) {
	d.Authentication, d.AssertionMethod, d.KeyAgreement = nil, nil, nil
	d.CapabilityInvocation, d.CapabilityDelegation = nil, nil
	for _, p := range purposes {
		refs := append([]string(nil), methodIDs...)
		switch p {
		case PurposeAuthentication:
			d.Authentication = refs
		case PurposeAssertionMethod:
			d.AssertionMethod = refs
		case PurposeKeyAgreement:
			d.KeyAgreement = refs
		case PurposeCapabilityInvocation:
			d.CapabilityInvocation = refs
		case PurposeCapabilityDelegation:
			d.CapabilityDelegation = refs
		}
	}
}

func (d *Document) refs(purpose Purpose) []string {
	switch purpose {
	case PurposeAuthentication:
		return d.Authentication
	case PurposeAssertionMethod:
		return d.AssertionMethod
	case PurposeKeyAgreement:
		return d.KeyAgreement
	case PurposeCapabilityInvocation:
		return d.CapabilityInvocation
	case PurposeCapabilityDelegation:
		return d.CapabilityDelegation
	}
	return nil
}

// KeyPair is the persisted key record. The private key only exists inside
// EncryptedPrivateKey.
type KeyPair struct {
	ID                   string               `json:"id"`
	DID                  string               `json:"did"`
	OwnerID              id.UserID            `json:"ownerId"`
	Scheme               crypto.Scheme        `json:"scheme"`
	PublicKeyMultibase   string               `json:"publicKeyMultibase"`
	EncryptedPrivateKey  crypto.EncryptedBlob `json:"encryptedPrivateKey"`
	VerificationMethodID string               `json:"verificationMethodId"`
	Purposes             []Purpose            `json:"purposes"`
	IsPrimary            bool                 `json:"isPrimary"`
	Status               Status               `json:"status"`
	CreatedAt            time.Time            `json:"createdAt"`
	RevokedAt            *time.Time           `json:"revokedAt,omitempty"`
	RevocationReason     string               `json:"revocationReason,omitempty"`
}

// IsActive reports whether the key can sign.
func (k *KeyPair) IsActive() bool {
	return k.Status == StatusActive
}

// CreateOptions tunes DID creation.
type CreateOptions struct {
	// Purposes assigned to the new key; DefaultPurposes when empty.
	Purposes []Purpose
	// SetAsPrimary marks the new DID and key primary for the owner.
	SetAsPrimary bool
	// Scheme overrides the method's default signature scheme.
	Scheme crypto.Scheme
	// WebPath adds path segments to did:web identifiers.
	WebPath []string
}

// CreateResult is returned by CreateDID.
type CreateResult struct {
	DID      *DID
	Document *Document
	KeyPair  *KeyPair
}

// Signature is returned by SignWithDID.
type Signature struct {
	Value                string        `json:"value"`
	VerificationMethodID string        `json:"verificationMethod"`
	Scheme               crypto.Scheme `json:"scheme"`
}

// RotationResult is returned by RotateKeys.
type RotationResult struct {
	PreviousKeyID string
	NewKey        *KeyPair
	Document      *Document
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Context = append([]string(nil), d.Context...)
	c.VerificationMethod = append([]VerificationMethod(nil), d.VerificationMethod...)
	c.Authentication = append([]string(nil), d.Authentication...)
	c.AssertionMethod = append([]string(nil), d.AssertionMethod...)
	c.KeyAgreement = append([]string(nil), d.KeyAgreement...)
	c.CapabilityInvocation = append([]string(nil), d.CapabilityInvocation...)
	c.CapabilityDelegation = append([]string(nil), d.CapabilityDelegation...)
	return &c
}

// Clone returns a copy safe to mutate independently.
func (k *KeyPair) Clone() *KeyPair {
	if k == nil {
		return nil
	}
	c := *k
	c.Purposes = append([]Purpose(nil), k.Purposes...)
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}

// Clone returns a copy safe to mutate independently.
func (d *DID) Clone() *DID {
	if d == nil {
		return nil
	}
	c := *d
	if d.DeactivatedAt != nil {
		t := *d.DeactivatedAt
		c.DeactivatedAt = &t
	}
	return &c
}
