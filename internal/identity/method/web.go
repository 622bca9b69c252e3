package method

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"attesto/internal/crypto"
	"attesto/internal/identity/models"
)

const webPrefix = "did:web:"

// WebMethod implements did:web for identifiers hosted under Domain. Documents
// are looked up in storage; nothing is fetched over the network.
type WebMethod struct {
	Domain string
}

func (WebMethod) Method() models.Method        { return models.MethodWeb }
func (WebMethod) DefaultScheme() crypto.Scheme { return crypto.SchemeEd25519 }

func (w WebMethod) NewIdentifier(_ crypto.Scheme, _ []byte, path []string) (string, error) {
	if w.Domain == "" {
		return "", fmt.Errorf("%w: did:web domain not configured", ErrMalformedDID)
	}
	// The port separator must not read as a path delimiter.
	segments := []string{strings.ReplaceAll(url.PathEscape(w.Domain), ":", "%3A")}
	for _, p := range path {
		if p == "" || strings.Contains(p, ":") {
			return "", fmt.Errorf("%w: invalid path segment %q", ErrMalformedDID, p)
		}
		segments = append(segments, url.PathEscape(p))
	}
	return webPrefix + strings.Join(segments, ":"), nil
}

func (WebMethod) VerificationMethodID(did string, _ string, n int) string {
	return fmt.Sprintf("%s#key-%d", did, n)
}

func (WebMethod) Validate(did string) error {
	if !strings.HasPrefix(did, webPrefix) {
		return fmt.Errorf("%w: %q", ErrMalformedDID, did)
	}
	for _, seg := range strings.Split(strings.TrimPrefix(did, webPrefix), ":") {
		if seg == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrMalformedDID, did)
		}
	}
	return nil
}

func (w WebMethod) Resolve(did string, _ time.Time) (*models.Document, error) {
	if err := w.Validate(did); err != nil {
		return nil, err
	}
	return nil, ErrStoredDocumentRequired
}
