package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/mock/gomock"

	"attesto/internal/credential/models"
	"attesto/internal/credential/service/mocks"
	"attesto/internal/credential/statuslist"
	"attesto/internal/events"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

// =============================================================================
// Verification
// =============================================================================

func (s *CredentialServiceSuite) TestVerifyCredential() {
	s.Run("nil credential", func() {
		_, err := s.service.VerifyCredential(s.ctx, nil, models.VerifyOptions{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("tampered claim fails proof", func() {
		vc := s.issue(s.holderDID)
		vc.CredentialSubject["checkStatus"] = "barred"

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.False(checkPassed(result, models.CheckProof))
	})

	s.Run("missing proof", func() {
		vc := s.issue(s.holderDID)
		vc.Proof = nil
		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Contains(result.Errors, "credential has no proof")
	})

	s.Run("expired", func() {
		vc := s.issue(s.holderDID)
		later := requestcontext.WithTime(context.Background(), s.now.Add(366*24*time.Hour))

		result, err := s.service.VerifyCredential(later, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.False(checkPassed(result, models.CheckExpiration))
		s.Contains(result.Errors, "credential has expired")
	})

	s.Run("not yet valid", func() {
		vc := s.issue(s.holderDID)
		earlier := requestcontext.WithTime(context.Background(), s.now.Add(-time.Hour))

		result, err := s.service.VerifyCredential(earlier, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.False(checkPassed(result, models.CheckExpiration))
	})

	s.Run("untrusted issuer is only a warning", func() {
		vc := s.issue(s.holderDID)
		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{
			TrustedIssuers: []string{"did:web:trusted.example"},
		})
		s.Require().NoError(err)
		s.True(result.Valid)
		s.False(checkPassed(result, models.CheckIssuer))
		s.Require().Len(result.Warnings, 1)
		s.Contains(result.Warnings[0], "trusted issuer")
		s.Empty(result.Errors)
	})

	s.Run("trusted issuer passes", func() {
		vc := s.issue(s.holderDID)
		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{TrustedIssuers: []string{s.issuerDID}})
		s.Require().NoError(err)
		s.True(checkPassed(result, models.CheckIssuer))
	})

	s.Run("schema drift is only a warning", func() {
		_, err := s.service.RegisterSchema(s.ctx, &models.Schema{
			ID:             "urn:schema:safeguarding",
			Version:        "1.0",
			Name:           "Safeguarding check",
			CredentialType: models.TypeSafeguardingCredential,
			Properties:     map[string]models.PropertySpec{"checkType": {Type: "string"}},
		})
		s.Require().NoError(err)
		req := s.issueRequest(s.holderDID)
		req.SchemaID = "urn:schema:safeguarding"
		vc, err := s.service.IssueCredential(s.ctx, req)
		s.Require().NoError(err)

		_, err = s.service.RegisterSchema(s.ctx, &models.Schema{
			ID:             "urn:schema:safeguarding",
			Version:        "2.0",
			Name:           "Safeguarding check",
			CredentialType: models.TypeSafeguardingCredential,
			Properties: map[string]models.PropertySpec{
				"checkType":         {Type: "string"},
				"certificateNumber": {Type: "string"},
			},
			Required: []string{"certificateNumber"},
		})
		s.Require().NoError(err)

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.True(result.Valid)
		s.False(checkPassed(result, models.CheckSchema))
		s.NotEmpty(result.Warnings)

		skipped, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{SkipSchemaCheck: true})
		s.Require().NoError(err)
		_, ran := skipped.Check(models.CheckSchema)
		s.False(ran)
	})

	s.Run("rotated issuer key no longer verifies", func() {
		vc := s.issue(s.holderDID)
		_, err := s.identity.RotateKeys(s.ctx, s.issuerOwner, s.issuerDID, passphrase, "rotated-passphrase-789", "scheduled")
		s.Require().NoError(err)

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.False(checkPassed(result, models.CheckProof))
	})
}

// =============================================================================
// Revocation
// =============================================================================

func (s *CredentialServiceSuite) TestRevokeCredential() {
	s.Run("revoked credential fails verification", func() {
		vc := s.issue("did:key:zSubject")
		_, err := s.service.RevokeCredential(s.ctx, vc.ID, "certificate withdrawn", s.issuerDID)
		s.Require().NoError(err)

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.False(checkPassed(result, models.CheckStatus))
		s.True(containsSubstring(result.Errors, "revoked"))
	})

	s.Run("skip status check", func() {
		vc := s.issue(s.holderDID)
		_, err := s.service.RevokeCredential(s.ctx, vc.ID, "withdrawn", s.issuerDID)
		s.Require().NoError(err)

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{SkipStatusCheck: true})
		s.Require().NoError(err)
		s.True(result.Valid)
		_, ran := result.Check(models.CheckStatus)
		s.False(ran)
	})

	s.Run("idempotent", func() {
		vc := s.issue(s.holderDID)
		before := len(s.events.ByTopic(events.CredentialRevoked))

		first, err := s.service.RevokeCredential(s.ctx, vc.ID, "first", s.issuerDID)
		s.Require().NoError(err)
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		second, err := s.service.RevokeCredential(later, vc.ID, "second", s.issuerDID)
		s.Require().NoError(err)

		s.Equal("first", second.Reason)
		s.True(first.RevokedAt.Equal(second.RevokedAt))
		s.Len(s.events.ByTopic(events.CredentialRevoked), before+1)

		status, err := s.service.RevocationStatus(s.ctx, vc.ID)
		s.Require().NoError(err)
		s.Equal("first", status.Reason)
	})

	s.Run("flips the status list bit", func() {
		vc := s.issue(s.holderDID)
		_, err := s.service.RevokeCredential(s.ctx, vc.ID, "withdrawn", s.issuerDID)
		s.Require().NoError(err)

		list, err := s.service.GetStatusList(s.ctx, "status-1")
		s.Require().NoError(err)
		decoded, err := statuslist.Decode(list.EncodedList, list.Length)
		s.Require().NoError(err)
		s.True(decoded.Test(vc.CredentialStatus.StatusListIndex))
		s.Equal(models.StatusPurposeRevoke, list.Purpose)
	})

	s.Run("unknown credential", func() {
		_, err := s.service.RevokeCredential(s.ctx, "urn:uuid:missing", "x", s.issuerDID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("status of unrevoked credential", func() {
		vc := s.issue(s.holderDID)
		_, err := s.service.RevocationStatus(s.ctx, vc.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown status list", func() {
		_, err := s.service.GetStatusList(s.ctx, "status-99")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Identity failures (mocked)
// =============================================================================

func (s *CredentialServiceSuite) TestIdentityFailures() {
	ctrl := gomock.NewController(s.T())
	identity := mocks.NewMockIdentity(ctrl)
	svc, err := New(identity, s.stores, WithLogger(discardLogger()))
	s.Require().NoError(err)

	s.Run("signing failure surfaces as credential validation", func() {
		identity.EXPECT().ValidateDID(s.holderDID).Return(nil)
		identity.EXPECT().SignWithDID(gomock.Any(), s.issuerOwner, s.issuerDID, gomock.Any(), passphrase).
			Return(nil, errors.New("hsm unavailable"))

		_, err := svc.IssueCredential(s.ctx, s.issueRequest(s.holderDID))
		s.True(dErrors.HasCode(err, dErrors.CodeCredentialValidation))
	})

	s.Run("unresolvable issuer fails the proof check", func() {
		vc := s.issue(s.holderDID)
		identity.EXPECT().VerifySignature(gomock.Any(), s.issuerDID, gomock.Any(), vc.Proof.ProofValue, vc.Proof.VerificationMethod).
			Return(false, dErrors.New(dErrors.CodeNotFound, "DID document not found"))

		result, err := svc.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.True(containsSubstring(result.Errors, "DID document not found"))
	})

	s.Run("panic becomes internal error", func() {
		identity.EXPECT().ValidateDID(gomock.Any()).DoAndReturn(func(string) error {
			panic("nil map write")
		})

		_, err := svc.IssueCredential(s.ctx, s.issueRequest(s.holderDID))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func containsSubstring(list []string, sub string) bool {
	for _, v := range list {
		if strings.Contains(v, sub) {
			return true
		}
	}
	return false
}
