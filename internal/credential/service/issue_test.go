package service

import (
	"time"

	"attesto/internal/credential/models"
	"attesto/internal/credential/store"
	"attesto/internal/events"
	dErrors "attesto/pkg/domain-errors"
)

// =============================================================================
// Issuance
// =============================================================================

func (s *CredentialServiceSuite) TestIssueCredential() {
	s.Run("round trip verifies", func() {
		vc := s.issue("did:key:zSubject")

		s.Equal("did:key:zSubject", vc.SubjectID())
		s.Equal([]string{models.TypeVerifiableCredential, models.TypeSafeguardingCredential}, vc.Type)
		s.Require().NotNil(vc.Proof)
		s.Equal(models.ProofPurposeAssertion, vc.Proof.ProofPurpose)
		s.Equal(models.ProofTypeEd25519, vc.Proof.Type)

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.True(result.Valid, "errors: %v", result.Errors)
		s.True(checkPassed(result, models.CheckProof))
		s.True(checkPassed(result, models.CheckExpiration))
		s.True(checkPassed(result, models.CheckStatus))
		s.Equal(s.issuerDID, result.Metadata.Issuer)
	})

	s.Run("carries both temporal field pairs", func() {
		vc := s.issue(s.holderDID)
		expected := s.now.Add(365 * 24 * time.Hour)
		s.Equal(s.now, vc.IssuanceDate)
		s.Equal(s.now, *vc.ValidFrom)
		s.Equal(expected, *vc.ExpirationDate)
		s.Equal(expected, *vc.ValidUntil)
	})

	s.Run("custom validity window", func() {
		req := s.issueRequest(s.holderDID)
		req.ValidFor = 48 * time.Hour
		vc, err := s.service.IssueCredential(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(s.now.Add(48*time.Hour), *vc.ValidUntil)
	})

	s.Run("persists under the holder and emits an event", func() {
		vc := s.issue(s.holderDID)
		held, err := s.service.ListCredentials(s.ctx, CredentialFilter{HolderDID: s.holderDID})
		s.Require().NoError(err)
		ids := make([]string, 0, len(held))
		for _, h := range held {
			ids = append(ids, h.ID)
		}
		s.Contains(ids, vc.ID)

		issued := s.events.ByTopic(events.CredentialIssued)
		s.Require().NotEmpty(issued)
		s.Equal(vc.ID, issued[len(issued)-1].Subject)
	})

	s.Run("rejects missing subject", func() {
		req := s.issueRequest("")
		_, err := s.service.IssueCredential(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects malformed subject DID", func() {
		_, err := s.service.IssueCredential(s.ctx, s.issueRequest("not-a-did"))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("wrong issuer passphrase", func() {
		req := s.issueRequest(s.holderDID)
		req.IssuerPassphrase = "wrong-passphrase-999"
		_, err := s.service.IssueCredential(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})

	s.Run("issuer DID not owned by caller", func() {
		req := s.issueRequest(s.holderDID)
		req.IssuerOwnerID = s.holderOwner
		_, err := s.service.IssueCredential(s.ctx, req)
		s.Error(err)
	})
}

func (s *CredentialServiceSuite) TestIssueWithSchema() {
	sch, err := s.service.RegisterSchema(s.ctx, &models.Schema{
		Name:           "Safeguarding check",
		CredentialType: models.TypeSafeguardingCredential,
		IsDefault:      true,
		Properties: map[string]models.PropertySpec{
			"checkType":   {Type: "string", Enum: []any{"basic", "standard", "enhanced"}},
			"checkStatus": {Type: "string"},
			"checkDate":   {Type: "string", Format: "date-time"},
		},
		Required: []string{"checkType", "checkStatus"},
	})
	s.Require().NoError(err)

	s.Run("default schema for the type is applied", func() {
		vc := s.issue(s.holderDID)
		s.Require().NotNil(vc.CredentialSchema)
		s.Equal(sch.ID, vc.CredentialSchema.ID)

		result, err := s.service.VerifyCredential(s.ctx, vc, models.VerifyOptions{})
		s.Require().NoError(err)
		s.True(checkPassed(result, models.CheckSchema))
	})

	s.Run("missing required field", func() {
		req := s.issueRequest(s.holderDID)
		req.Claims = map[string]any{"checkType": "enhanced"}
		_, err := s.service.IssueCredential(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeCredentialValidation))
		s.Contains(err.Error(), "checkStatus")
	})

	s.Run("enum violation", func() {
		req := s.issueRequest(s.holderDID)
		req.Claims = map[string]any{"checkType": "premium", "checkStatus": "cleared"}
		_, err := s.service.IssueCredential(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeCredentialValidation))
	})

	s.Run("date-time format", func() {
		req := s.issueRequest(s.holderDID)
		req.Claims = map[string]any{"checkType": "basic", "checkStatus": "cleared", "checkDate": "yesterday"}
		_, err := s.service.IssueCredential(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeCredentialValidation))
	})

	s.Run("unknown explicit schema", func() {
		req := s.issueRequest(s.holderDID)
		req.SchemaID = "urn:uuid:missing"
		_, err := s.service.IssueCredential(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CredentialServiceSuite) TestStatusAllocation() {
	s.Run("indices are unique and increasing", func() {
		first := s.issue(s.holderDID)
		second := s.issue(s.holderDID)
		s.Require().NotNil(first.CredentialStatus)
		s.Require().NotNil(second.CredentialStatus)
		s.Equal(first.CredentialStatus.StatusListCredential, second.CredentialStatus.StatusListCredential)
		s.Less(first.CredentialStatus.StatusListIndex, second.CredentialStatus.StatusListIndex)
		s.Equal("https://issuer.example/status-lists/status-1", first.CredentialStatus.StatusListCredential)
		s.Equal(models.StatusPurposeRevoke, first.CredentialStatus.StatusPurpose)
	})

	s.Run("full list rolls over", func() {
		s.stores.StatusLists = store.NewInMemoryStatusListStore()
		svc := s.newService(WithStatusListLength(1))
		req := s.issueRequest(s.holderDID)

		a, err := svc.IssueCredential(s.ctx, req)
		s.Require().NoError(err)
		b, err := svc.IssueCredential(s.ctx, req)
		s.Require().NoError(err)
		s.Equal("https://issuer.example/status-lists/status-1", a.CredentialStatus.StatusListCredential)
		s.Equal("https://issuer.example/status-lists/status-2", b.CredentialStatus.StatusListCredential)
		s.Equal(uint(0), b.CredentialStatus.StatusListIndex)
	})
}

func (s *CredentialServiceSuite) TestSpecializedIssuance() {
	base := s.issueRequest(s.holderDID)

	s.Run("safeguarding", func() {
		expires := s.now.Add(90 * 24 * time.Hour)
		vc, err := s.service.IssueSafeguardingCredential(s.ctx, base, models.SafeguardingClaims{
			CheckType:         "enhanced",
			CheckStatus:       "cleared",
			CertificateNumber: "001234567890",
			CheckedAt:         s.now.Add(-24 * time.Hour),
			ExpiresAt:         &expires,
		})
		s.Require().NoError(err)
		s.True(vc.HasType(models.TypeSafeguardingCredential))
		s.Equal("cleared", vc.CredentialSubject["checkStatus"])
		s.Equal(expires, *vc.ValidUntil)
	})

	s.Run("safeguarding requires status", func() {
		_, err := s.service.IssueSafeguardingCredential(s.ctx, base, models.SafeguardingClaims{CheckType: "basic"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("achievement", func() {
		vc, err := s.service.IssueAchievementCredential(s.ctx, base, models.AchievementClaims{
			Name:       "100 lessons delivered",
			AchievedAt: s.now,
		})
		s.Require().NoError(err)
		s.Equal(models.TypeAchievementCredential, vc.PrimaryType())
		achievement, ok := vc.CredentialSubject["achievement"].(map[string]any)
		s.Require().True(ok)
		s.Equal("100 lessons delivered", achievement["name"])
	})

	s.Run("qualification", func() {
		vc, err := s.service.IssueQualificationCredential(s.ctx, base, models.QualificationClaims{
			Title:        "PGCE Secondary Mathematics",
			AwardingBody: "University of Example",
			AwardedAt:    s.now,
		})
		s.Require().NoError(err)
		s.Equal(models.TypeQualificationCredential, vc.PrimaryType())
		s.Equal("University of Example", vc.CredentialSubject["awardingBody"])
	})

	s.Run("qualification requires awarding body", func() {
		_, err := s.service.IssueQualificationCredential(s.ctx, base, models.QualificationClaims{Title: "PGCE"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
