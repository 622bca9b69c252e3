package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"attesto/pkg/requestcontext"
)

const testUserID = "550e8400-e29b-41d4-a716-446655440001"

// MockJWTValidator is a testify mock for JWTValidator
type MockJWTValidator struct {
	mock.Mock
}

func (m *MockJWTValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*JWTClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareTestSuite struct {
	suite.Suite
	validator *MockJWTValidator
	next      *captureHandler
	handler   http.Handler
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.validator = new(MockJWTValidator)
	s.next = &captureHandler{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireAuth(s.validator, logger)(s.next)
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func (s *AuthMiddlewareTestSuite) serve(header string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/wallet/status", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func (s *AuthMiddlewareTestSuite) TestValidToken() {
	s.validator.On("ValidateToken", "good").Return(&JWTClaims{UserID: testUserID, JTI: "jti-1"}, nil)

	rec := s.serve("Bearer good")

	s.Equal(http.StatusOK, rec.Code)
	s.Require().True(s.next.called)
	s.Equal(testUserID, requestcontext.UserID(s.next.ctx).String())
}

func (s *AuthMiddlewareTestSuite) TestMissingHeader() {
	rec := s.serve("")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.next.called)
	s.validator.AssertNotCalled(s.T(), "ValidateToken", mock.Anything)
}

func (s *AuthMiddlewareTestSuite) TestWrongScheme() {
	rec := s.serve("Basic dXNlcjpwYXNz")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.next.called)
}

func (s *AuthMiddlewareTestSuite) TestInvalidToken() {
	s.validator.On("ValidateToken", "bad").Return(nil, errors.New("token expired"))
	rec := s.serve("Bearer bad")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "Invalid or expired token")
	s.False(s.next.called)
}

func (s *AuthMiddlewareTestSuite) TestMalformedSubject() {
	s.validator.On("ValidateToken", "odd").Return(&JWTClaims{UserID: "not-a-uuid"}, nil)
	rec := s.serve("Bearer odd")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.next.called)
}
