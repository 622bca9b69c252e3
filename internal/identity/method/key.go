package method

import (
	"fmt"
	"strings"
	"time"

	"attesto/internal/crypto"
	"attesto/internal/identity/models"
)

const keyPrefix = "did:key:"

// KeyMethod implements did:key. The identifier embeds the public key, so
// resolution is purely local.
type KeyMethod struct{}

func (KeyMethod) Method() models.Method        { return models.MethodKey }
func (KeyMethod) DefaultScheme() crypto.Scheme { return crypto.SchemeEd25519 }

func (KeyMethod) NewIdentifier(scheme crypto.Scheme, publicKey []byte, _ []string) (string, error) {
	mb, err := EncodePublicKey(scheme, publicKey)
	if err != nil {
		return "", err
	}
	return keyPrefix + mb, nil
}

func (KeyMethod) VerificationMethodID(did string, publicKeyMultibase string, _ int) string {
	return did + "#" + publicKeyMultibase
}

func (KeyMethod) Validate(did string) error {
	if !strings.HasPrefix(did, keyPrefix) {
		return fmt.Errorf("%w: %q", ErrMalformedDID, did)
	}
	if _, _, err := DecodePublicKey(strings.TrimPrefix(did, keyPrefix)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDID, err)
	}
	return nil
}

func (m KeyMethod) Resolve(did string, now time.Time) (*models.Document, error) {
	if err := m.Validate(did); err != nil {
		return nil, err
	}
	mb := strings.TrimPrefix(did, keyPrefix)
	scheme, _, _ := DecodePublicKey(mb)
	vm := models.VerificationMethod{
		ID:                 m.VerificationMethodID(did, mb, 1),
		Type:               VerificationMethodType(scheme),
		Controller:         did,
		PublicKeyMultibase: mb,
	}
	purposes := []models.Purpose{
		models.PurposeAuthentication,
		models.PurposeAssertionMethod,
		models.PurposeCapabilityInvocation,
		models.PurposeCapabilityDelegation,
	}
	return BuildDocument(did, []models.VerificationMethod{vm}, purposes, now, now), nil
}
