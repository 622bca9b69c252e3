package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	credmodels "attesto/internal/credential/models"
	credservice "attesto/internal/credential/service"
	credstore "attesto/internal/credential/store"
	"attesto/internal/crypto"
	idmodels "attesto/internal/identity/models"
	idservice "attesto/internal/identity/service"
	idstore "attesto/internal/identity/store"
	jwttoken "attesto/internal/jwt_token"
	"attesto/internal/wallet/lockout"
	walletservice "attesto/internal/wallet/service"
	"attesto/internal/wallet/session"
	walletstore "attesto/internal/wallet/store"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/platform/middleware/auth"
)

const (
	passphrase      = "secure-passphrase-123"
	wrongPassphrase = "wrong-passphrase-999"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	identity    *idservice.Service
	credentials *credservice.Service
	tokens      *jwttoken.JWTService

	owner       id.UserID
	token       string
	issuerOwner id.UserID
	issuerDID   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := crypto.New(crypto.WithKDFParams(crypto.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}))

	var err error
	s.identity, err = idservice.New(
		idstore.NewInMemoryDIDStore(),
		idstore.NewInMemoryDocumentStore(),
		idstore.NewInMemoryKeyStore(),
		provider,
		idservice.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.credentials, err = credservice.New(s.identity, credservice.Stores{
		Credentials:   credstore.NewInMemoryCredentialStore(),
		Revocations:   credstore.NewInMemoryRevocationStore(),
		StatusLists:   credstore.NewInMemoryStatusListStore(),
		Schemas:       credstore.NewInMemorySchemaStore(),
		Presentations: credstore.NewInMemoryPresentationStore(),
	}, credservice.WithLogger(logger))
	s.Require().NoError(err)

	lockouts, err := lockout.NewTracker(lockout.NewInMemoryStore(), lockout.Config{MaxAttempts: 2, Window: time.Minute})
	s.Require().NoError(err)
	wallets, err := walletservice.New(s.identity, provider, walletservice.Stores{
		Wallets:  walletstore.NewInMemoryWalletStore(),
		Backups:  walletstore.NewInMemoryBackupStore(),
		Sessions: session.NewInMemoryStore(),
	}, lockouts, walletservice.WithLogger(logger), walletservice.WithPresenter(s.credentials))
	s.Require().NoError(err)

	s.tokens = jwttoken.NewJWTService("test-signing-key", "attesto", "attesto-api", time.Hour)
	s.owner = id.UserID(uuid.New())
	s.token, _, err = s.tokens.GenerateAccessToken(context.Background(), s.owner, nil)
	s.Require().NoError(err)

	s.issuerOwner = id.UserID(uuid.New())
	issuer, err := s.identity.CreateDID(context.Background(), s.issuerOwner, idmodels.MethodKey, passphrase, idmodels.CreateOptions{SetAsPrimary: true})
	s.Require().NoError(err)
	s.issuerDID = issuer.DID.DID

	h := New(wallets, s.credentials, s.identity, logger)
	r := chi.NewRouter()
	h.Register(r, auth.RequireAuth(jwttoken.NewJWTServiceAdapter(s.tokens), logger))
	s.router = r
}

func (s *HandlerSuite) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](s *HandlerSuite, rec *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *HandlerSuite) createWallet() WalletResponse {
	rec := s.do(http.MethodPost, "/wallet", CreateWalletRequest{Passphrase: passphrase}, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateWalletResponse](s, rec).Wallet
}

func (s *HandlerSuite) issueTo(subject string) *credmodels.VerifiableCredential {
	vc, err := s.credentials.IssueCredential(context.Background(), credmodels.IssueRequest{
		IssuerOwnerID:    s.issuerOwner,
		IssuerDID:        s.issuerDID,
		IssuerName:       "Example Tutoring Ltd",
		IssuerPassphrase: passphrase,
		SubjectDID:       subject,
		Types:            []string{credmodels.TypeSafeguardingCredential},
		Claims:           map[string]any{"checkType": "enhanced", "checkStatus": "cleared"},
	})
	s.Require().NoError(err)
	return vc
}

// =============================================================================
// Authentication and input
// =============================================================================

func (s *HandlerSuite) TestWalletRoutesRequireBearerToken() {
	rec := s.do(http.MethodGet, "/wallet/status", nil, false)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCreateWalletValidation() {
	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/wallet", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+s.token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown DID method", func() {
		rec := s.do(http.MethodPost, "/wallet", CreateWalletRequest{Passphrase: passphrase, DIDMethod: "ion"}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_failed", decode[httputil.ErrorResponse](s, rec).Error)
	})

	s.Run("short passphrase", func() {
		rec := s.do(http.MethodPost, "/wallet", CreateWalletRequest{Passphrase: "short"}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("second wallet conflicts", func() {
		s.createWallet()
		rec := s.do(http.MethodPost, "/wallet", CreateWalletRequest{Passphrase: passphrase}, true)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

// =============================================================================
// Wallet lifecycle
// =============================================================================

func (s *HandlerSuite) TestUnlockAndLock() {
	created := s.createWallet()

	status := decode[StatusResponse](s, s.do(http.MethodGet, "/wallet/status", nil, true))
	s.Equal(created.ID, status.WalletID)
	s.False(status.Unlocked)

	rec := s.do(http.MethodPost, "/wallet/unlock", PassphraseRequest{Passphrase: passphrase}, true)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal(created.ID, decode[UnlockResponse](s, rec).WalletID)
	s.True(decode[StatusResponse](s, s.do(http.MethodGet, "/wallet/status", nil, true)).Unlocked)

	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/wallet/lock", nil, true).Code)
	s.False(decode[StatusResponse](s, s.do(http.MethodGet, "/wallet/status", nil, true)).Unlocked)
}

func (s *HandlerSuite) TestUnlockLockoutSetsRetryAfter() {
	s.createWallet()

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/wallet/unlock", PassphraseRequest{Passphrase: wrongPassphrase}, true)
		s.Equal(http.StatusForbidden, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(http.MethodPost, "/wallet/unlock", PassphraseRequest{Passphrase: passphrase}, true)
	s.Equal(http.StatusLocked, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
	s.Equal("wallet_locked_out", decode[httputil.ErrorResponse](s, rec).Error)
}

func (s *HandlerSuite) TestBackupAndRestore() {
	created := s.createWallet()

	rec := s.do(http.MethodPost, "/wallet/backups", PassphraseRequest{Passphrase: passphrase}, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	backup := decode[BackupResponse](s, rec)
	s.Equal(created.ID, backup.WalletID)
	s.NotContains(rec.Body.String(), "ciphertext")

	list := decode[struct {
		Backups []BackupResponse `json:"backups"`
	}](s, s.do(http.MethodGet, "/wallet/backups", nil, true))
	s.Len(list.Backups, 1)

	s.Run("wrong passphrase", func() {
		rec := s.do(http.MethodPost, "/wallet/backups/"+backup.ID+"/restore", PassphraseRequest{Passphrase: wrongPassphrase}, true)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("malformed backup id", func() {
		rec := s.do(http.MethodPost, "/wallet/backups/not-a-uuid/restore", PassphraseRequest{Passphrase: passphrase}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("restores the same wallet", func() {
		rec := s.do(http.MethodPost, "/wallet/backups/"+backup.ID+"/restore", PassphraseRequest{Passphrase: passphrase}, true)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		restored := decode[WalletResponse](s, rec)
		s.Equal(created.ID, restored.ID)
		s.Equal(created.PrimaryDID, restored.PrimaryDID)
	})
}

// =============================================================================
// Credentials and presentations
// =============================================================================

func (s *HandlerSuite) TestCredentialCustodyAndPresentation() {
	created := s.createWallet()
	vc := s.issueTo(created.PrimaryDID)

	s.Run("locked wallet refuses credentials", func() {
		rec := s.do(http.MethodPost, "/wallet/credentials", AddCredentialRequest{Credential: vc}, true)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/wallet/unlock", PassphraseRequest{Passphrase: passphrase}, true).Code)

	rec := s.do(http.MethodPost, "/wallet/credentials", AddCredentialRequest{Credential: vc}, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	held := decode[struct {
		Credentials []credmodels.VerifiableCredential `json:"credentials"`
	}](s, s.do(http.MethodGet, "/wallet/credentials", nil, true))
	s.Require().Len(held.Credentials, 1)
	s.Equal(vc.ID, held.Credentials[0].ID)

	rec = s.do(http.MethodPost, "/wallet/presentations", map[string]any{
		"passphrase": passphrase,
		"challenge":  "nonce-7",
		"domain":     "verifier.example",
		"input_descriptors": []map[string]any{{
			"id": "safeguarding",
			"constraints": map[string]any{"fields": []map[string]any{{
				"path":   []string{"$.credentialSubject.checkStatus"},
				"filter": map[string]any{"type": "string", "const": "cleared"},
			}}},
		}},
	}, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	presented := decode[struct {
		Presentation *credmodels.VerifiablePresentation `json:"presentation"`
		Matches      []string                           `json:"matches"`
	}](s, rec)
	s.Equal([]string{vc.ID}, presented.Matches)

	s.Run("presentation verifies over HTTP", func() {
		rec := s.do(http.MethodPost, "/presentations/verify", VerifyPresentationRequest{
			Presentation: presented.Presentation,
			Challenge:    "nonce-7",
			Domain:       "verifier.example",
		}, false)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		result := decode[credmodels.PresentationResult](s, rec)
		s.True(result.Valid, "errors: %v", result.Errors)
	})

	s.Run("mismatched challenge fails", func() {
		rec := s.do(http.MethodPost, "/presentations/verify", VerifyPresentationRequest{
			Presentation: presented.Presentation,
			Challenge:    "other",
		}, false)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.False(decode[credmodels.PresentationResult](s, rec).Valid)
	})

	s.Run("remove credential", func() {
		path := "/wallet/credentials/" + url.PathEscape(vc.ID)
		s.Equal(http.StatusNoContent, s.do(http.MethodDelete, path, nil, true).Code)
		s.Equal(http.StatusNotFound, s.do(http.MethodDelete, path, nil, true).Code)
	})
}

func (s *HandlerSuite) TestVerifyCredential() {
	vc := s.issueTo("did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK")

	rec := s.do(http.MethodPost, "/credentials/verify", VerifyCredentialRequest{Credential: vc}, false)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.True(decode[credmodels.VerificationResult](s, rec).Valid)

	tampered := *vc
	tampered.CredentialSubject = credmodels.Subject{"id": vc.CredentialSubject.ID(), "checkStatus": "barred"}
	rec = s.do(http.MethodPost, "/credentials/verify", VerifyCredentialRequest{Credential: &tampered}, false)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.False(decode[credmodels.VerificationResult](s, rec).Valid)

	rec = s.do(http.MethodPost, "/credentials/verify", map[string]any{}, false)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestMatchHeldCredentials() {
	created := s.createWallet()
	vc := s.issueTo(created.PrimaryDID)
	body := map[string]any{
		"input_descriptors": []map[string]any{{
			"id": "safeguarding",
			"constraints": map[string]any{"fields": []map[string]any{{
				"path": []string{"$.credentialSubject.checkType"},
			}}},
		}},
	}

	s.Run("requires a token", func() {
		s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/wallet/presentations/match", body, false).Code)
		s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/presentations/match", body, false).Code)
	})

	s.Run("locked wallet refuses to match", func() {
		s.Equal(http.StatusForbidden, s.do(http.MethodPost, "/wallet/presentations/match", body, true).Code)
	})

	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/wallet/unlock", PassphraseRequest{Passphrase: passphrase}, true).Code)
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/wallet/credentials", AddCredentialRequest{Credential: vc}, true).Code)

	rec := s.do(http.MethodPost, "/wallet/presentations/match", body, true)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	result := decode[struct {
		CanSatisfy bool `json:"canSatisfy"`
	}](s, rec)
	s.True(result.CanSatisfy)

	s.Run("too many descriptors", func() {
		descriptors := make([]map[string]any, 33)
		for i := range descriptors {
			descriptors[i] = map[string]any{"id": fmt.Sprintf("d%d", i)}
		}
		rec := s.do(http.MethodPost, "/wallet/presentations/match", map[string]any{
			"input_descriptors": descriptors,
		}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "too many input descriptors")
	})
}

func (s *HandlerSuite) TestStatusList() {
	vc := s.issueTo("did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK")

	s.Require().NotNil(vc.CredentialStatus)
	listURL, err := url.Parse(vc.CredentialStatus.StatusListCredential)
	s.Require().NoError(err)
	rec := s.do(http.MethodGet, listURL.Path, nil, false)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.NotEmpty(decode[credmodels.StatusList](s, rec).EncodedList)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/status-lists/missing", nil, false).Code)
}

func (s *HandlerSuite) TestResolveDID() {
	rec := s.do(http.MethodGet, "/dids/"+s.issuerDID, nil, false)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[DIDResolutionResponse](s, rec)
	s.Equal(s.issuerDID, resolved.DIDDocument.ID)
	s.False(resolved.Metadata.Deactivated)

	rec = s.do(http.MethodGet, "/dids/not-a-did", nil, false)
	s.Equal(http.StatusBadRequest, rec.Code)
}
