package service

import (
	"attesto/internal/credential/models"
	"attesto/internal/events"
	dErrors "attesto/pkg/domain-errors"
)

// =============================================================================
// Presentations
// =============================================================================

func (s *CredentialServiceSuite) present(challenge, domain string, vcs ...models.VerifiableCredential) *models.VerifiablePresentation {
	vp, err := s.service.CreatePresentation(s.ctx, models.PresentationRequest{
		HolderOwnerID: s.holderOwner,
		HolderDID:     s.holderDID,
		Passphrase:    passphrase,
		Credentials:   vcs,
		Challenge:     challenge,
		Domain:        domain,
	})
	s.Require().NoError(err)
	return vp
}

func (s *CredentialServiceSuite) TestCreatePresentation() {
	s.Run("signs with authentication purpose", func() {
		vc := s.issue(s.holderDID)
		vp := s.present("c1", "d1", *vc)

		s.Equal(s.holderDID, vp.Holder)
		s.Require().NotNil(vp.Proof)
		s.Equal(models.ProofPurposeAuthentication, vp.Proof.ProofPurpose)
		s.Equal("c1", vp.Proof.Challenge)
		s.Equal("d1", vp.Proof.Domain)

		stored, err := s.service.GetPresentation(s.ctx, vp.ID)
		s.Require().NoError(err)
		s.Equal(vp.Holder, stored.Holder)
		s.Len(s.events.ByTopic(events.PresentationCreated), 1)
	})

	s.Run("rejects credentials of another subject", func() {
		vc := s.issue("did:key:zSomeoneElse")
		_, err := s.service.CreatePresentation(s.ctx, models.PresentationRequest{
			HolderOwnerID: s.holderOwner,
			HolderDID:     s.holderDID,
			Passphrase:    passphrase,
			Credentials:   []models.VerifiableCredential{*vc},
		})
		s.True(dErrors.HasCode(err, dErrors.CodePresentation))
	})

	s.Run("rejects empty credential set", func() {
		_, err := s.service.CreatePresentation(s.ctx, models.PresentationRequest{
			HolderOwnerID: s.holderOwner,
			HolderDID:     s.holderDID,
			Passphrase:    passphrase,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("wrong passphrase", func() {
		vc := s.issue(s.holderDID)
		_, err := s.service.CreatePresentation(s.ctx, models.PresentationRequest{
			HolderOwnerID: s.holderOwner,
			HolderDID:     s.holderDID,
			Passphrase:    "wrong-passphrase-999",
			Credentials:   []models.VerifiableCredential{*vc},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})
}

func (s *CredentialServiceSuite) TestVerifyPresentation() {
	s.Run("matching challenge and domain", func() {
		vp := s.present("c1", "d1", *s.issue(s.holderDID))

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{Challenge: "c1", Domain: "d1"})
		s.Require().NoError(err)
		s.True(result.Valid, "errors: %v", result.Errors)
		s.Len(result.Credentials, 1)
		s.True(result.Credentials[0].Valid)
	})

	s.Run("replayed with another challenge", func() {
		vp := s.present("c1", "d1", *s.issue(s.holderDID))

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{Challenge: "c2", Domain: "d1"})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(models.CheckProof, result.Checks[0].Name)
		s.False(result.Checks[0].Passed)
	})

	s.Run("presented to another domain", func() {
		vp := s.present("c1", "d1", *s.issue(s.holderDID))

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{Domain: "evil.example"})
		s.Require().NoError(err)
		s.False(result.Valid)
	})

	s.Run("challenge edited after signing", func() {
		vp := s.present("c1", "d1", *s.issue(s.holderDID))
		vp.Proof.Challenge = "c2"

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{Challenge: "c2"})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.True(containsSubstring(result.Errors, "signature is invalid"))
	})

	s.Run("revoked embedded credential", func() {
		vc := s.issue(s.holderDID)
		vp := s.present("", "", *vc)
		_, err := s.service.RevokeCredential(s.ctx, vc.ID, "withdrawn", s.issuerDID)
		s.Require().NoError(err)

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.True(containsSubstring(result.Errors, "credential "+vc.ID+": credential has been revoked"))
	})

	s.Run("holder binding", func() {
		vp := s.present("", "", *s.issue(s.holderDID))
		vp.VerifiableCredential[0].CredentialSubject["id"] = "did:key:zSomeoneElse"

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		check := false
		for _, c := range result.Checks {
			if c.Name == models.CheckHolder && !c.Passed {
				check = true
			}
		}
		s.True(check)
	})

	s.Run("warnings do not invalidate", func() {
		vp := s.present("", "", *s.issue(s.holderDID))
		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{
			VerifyOptions: models.VerifyOptions{TrustedIssuers: []string{"did:web:other.example"}},
		})
		s.Require().NoError(err)
		s.True(result.Valid)
		s.NotEmpty(result.Warnings)
	})

	s.Run("deactivated holder", func() {
		vp := s.present("", "", *s.issue(s.holderDID))
		s.Require().NoError(s.identity.DeactivateDID(s.ctx, s.holderOwner, s.holderDID, "account closed"))

		result, err := s.service.VerifyPresentation(s.ctx, vp, models.PresentationVerifyOptions{})
		s.Require().NoError(err)
		s.False(result.Valid)
		s.True(containsSubstring(result.Errors, "deactivated"))
	})
}
