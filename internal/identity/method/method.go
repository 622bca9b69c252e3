// Package method holds the per-method DID strategies. Each supported method is
// one entry in a Table; adding a method means adding a Strategy, not branching
// in the service.
package method

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-varint"

	"attesto/internal/crypto"
	"attesto/internal/identity/models"
)

var (
	// ErrMalformedDID is returned for identifiers that do not parse.
	ErrMalformedDID = errors.New("malformed DID")
	// ErrUnsupportedMethod is returned when no strategy is registered.
	ErrUnsupportedMethod = errors.New("unsupported DID method")
	// ErrStoredDocumentRequired signals that the method cannot be resolved
	// locally and the caller must consult the document store.
	ErrStoredDocumentRequired = errors.New("stored document required")
)

// DIDContext is the base JSON-LD context of every generated document.
var DIDContext = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/ed25519-2020/v1",
}

// Strategy is the behavior one DID method contributes.
type Strategy interface {
	Method() models.Method
	// DefaultScheme is the signature scheme used when the caller has no preference.
	DefaultScheme() crypto.Scheme
	// NewIdentifier builds the DID string for a freshly generated public key.
	NewIdentifier(scheme crypto.Scheme, publicKey []byte, path []string) (string, error)
	// VerificationMethodID names the n-th key of the DID (1-based).
	VerificationMethodID(did string, publicKeyMultibase string, n int) string
	// Resolve produces a document without storage, or ErrStoredDocumentRequired.
	Resolve(did string, now time.Time) (*models.Document, error)
	// Validate checks the method-specific part of did.
	Validate(did string) error
}

// Table dispatches on the method tag.
type Table struct {
	strategies map[models.Method]Strategy
}

// NewTable registers the given strategies.
func NewTable(strategies ...Strategy) *Table {
	t := &Table{strategies: make(map[models.Method]Strategy, len(strategies))}
	for _, s := range strategies {
		t.strategies[s.Method()] = s
	}
	return t
}

// DefaultTable supports did:key and did:web under webDomain.
func DefaultTable(webDomain string) *Table {
	return NewTable(KeyMethod{}, WebMethod{Domain: webDomain})
}

// Get returns the strategy for m.
func (t *Table) Get(m models.Method) (Strategy, error) {
	s, ok := t.strategies[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, m)
	}
	return s, nil
}

// ForDID parses did and returns its strategy after method-specific validation.
func (t *Table) ForDID(did string) (Strategy, error) {
	m, err := Parse(did)
	if err != nil {
		return nil, err
	}
	s, err := t.Get(m)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(did); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse extracts the method tag from a DID string.
func Parse(did string) (models.Method, error) {
	parts := strings.SplitN(did, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedDID, did)
	}
	return models.Method(parts[1]), nil
}

// VerificationMethodType is the document type string for a scheme.
func VerificationMethodType(scheme crypto.Scheme) string {
	switch scheme {
	case crypto.SchemeSecp256k1:
		return "EcdsaSecp256k1VerificationKey2019"
	default:
		return "Ed25519VerificationKey2020"
	}
}

// EncodePublicKey prefixes the raw key with its multicodec code and encodes it
// as base58btc multibase.
func EncodePublicKey(scheme crypto.Scheme, publicKey []byte) (string, error) {
	code, err := codecFor(scheme)
	if err != nil {
		return "", err
	}
	buf := append(varint.ToUvarint(uint64(code)), publicKey...)
	return crypto.EncodeMultibase(buf)
}

// DecodePublicKey reverses EncodePublicKey, recovering the scheme from the
// multicodec prefix.
func DecodePublicKey(publicKeyMultibase string) (crypto.Scheme, []byte, error) {
	raw, err := crypto.DecodeMultibase(publicKeyMultibase)
	if err != nil {
		return "", nil, err
	}
	code, n, err := varint.FromUvarint(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: multicodec prefix: %v", crypto.ErrMalformedKey, err)
	}
	key := raw[n:]
	switch multicodec.Code(code) {
	case multicodec.Ed25519Pub:
		if len(key) != 32 {
			return "", nil, fmt.Errorf("%w: ed25519 key length %d", crypto.ErrMalformedKey, len(key))
		}
		return crypto.SchemeEd25519, key, nil
	case multicodec.Secp256k1Pub:
		if len(key) != 33 {
			return "", nil, fmt.Errorf("%w: secp256k1 key length %d", crypto.ErrMalformedKey, len(key))
		}
		return crypto.SchemeSecp256k1, key, nil
	default:
		return "", nil, fmt.Errorf("%w: multicodec 0x%x", crypto.ErrUnsupportedScheme, code)
	}
}

func codecFor(scheme crypto.Scheme) (multicodec.Code, error) {
	switch scheme {
	case crypto.SchemeEd25519:
		return multicodec.Ed25519Pub, nil
	case crypto.SchemeSecp256k1:
		return multicodec.Secp256k1Pub, nil
	default:
		return 0, fmt.Errorf("%w: %s", crypto.ErrUnsupportedScheme, scheme)
	}
}

// BuildDocument assembles a document whose purpose lists all reference the
// given verification methods.
func BuildDocument(did string, methods []models.VerificationMethod, purposes []models.Purpose, created, updated time.Time) *models.Document {
	doc := &models.Document{
		Context:            append([]string(nil), DIDContext...),
		ID:                 did,
		Controller:         did,
		VerificationMethod: methods,
		Created:            created,
		Updated:            updated,
	}
	ids := make([]string, 0, len(methods))
	for _, vm := range methods {
		ids = append(ids, vm.ID)
	}
	doc.SetPurposes(purposes, ids...)
	return doc
}
