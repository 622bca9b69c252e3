package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	credmodels "attesto/internal/credential/models"
	"attesto/internal/events"
	"attesto/internal/exchange"
	"attesto/internal/wallet/models"
	"attesto/internal/wallet/service/mocks"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
)

// =============================================================================
// Credential custody
// =============================================================================

func (s *WalletServiceSuite) TestAddCredential() {
	w := s.createWallet()
	vc := s.issueTo(w.PrimaryDID, map[string]any{"checkType": "enhanced", "checkStatus": "cleared"})

	s.Run("requires an unlocked wallet", func() {
		err := s.service.AddCredential(s.ctx, s.owner, vc)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})

	s.unlock()

	s.Run("stores credential for the primary DID", func() {
		s.Require().NoError(s.service.AddCredential(s.ctx, s.owner, vc))
		held, err := s.service.GetCredentials(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Require().Len(held, 1)
		s.Equal(vc.ID, held[0].ID)
		s.Len(s.events.ByTopic(events.CredentialReceived), 1)
	})

	s.Run("rejects duplicates", func() {
		err := s.service.AddCredential(s.ctx, s.owner, vc)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects another subject", func() {
		other := s.issueTo("did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK", map[string]any{"checkStatus": "cleared"})
		err := s.service.AddCredential(s.ctx, s.owner, other)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *WalletServiceSuite) TestRemoveCredential() {
	w := s.createWallet()
	s.unlock()
	vc := s.issueTo(w.PrimaryDID, map[string]any{"checkStatus": "cleared"})
	s.Require().NoError(s.service.AddCredential(s.ctx, s.owner, vc))

	s.Require().NoError(s.service.RemoveCredential(s.ctx, s.owner, vc.ID))
	held, err := s.service.GetCredentials(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Empty(held)

	err = s.service.RemoveCredential(s.ctx, s.owner, vc.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Presentations
// =============================================================================

func clearedDescriptor() []exchange.InputDescriptor {
	return []exchange.InputDescriptor{{
		ID: "safeguarding",
		Constraints: exchange.Constraints{Fields: []exchange.Field{{
			Path:   []string{"$.credentialSubject.checkStatus"},
			Filter: &exchange.Filter{Type: "string", Const: "cleared"},
		}}},
	}}
}

func (s *WalletServiceSuite) TestMatchCredentials() {
	w := s.createWallet()
	vc := s.issueTo(w.PrimaryDID, map[string]any{"checkStatus": "cleared"})

	s.Run("requires an unlocked wallet", func() {
		_, err := s.service.MatchCredentials(s.ctx, s.owner, clearedDescriptor())
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})

	s.unlock()
	s.Require().NoError(s.service.AddCredential(s.ctx, s.owner, vc))

	s.Run("matches only held credentials", func() {
		res, err := s.service.MatchCredentials(s.ctx, s.owner, clearedDescriptor())
		s.Require().NoError(err)
		s.True(res.CanSatisfy)
		s.Require().Len(res.Matches, 1)
		s.Require().Len(res.Matches[0].Credentials, 1)
		s.Equal(vc.ID, res.Matches[0].Credentials[0].ID)
	})

	s.Run("another owner sees nothing", func() {
		_, err := s.service.MatchCredentials(s.ctx, id.UserID(uuid.New()), clearedDescriptor())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid descriptors", func() {
		_, err := s.service.MatchCredentials(s.ctx, s.owner, []exchange.InputDescriptor{{}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *WalletServiceSuite) TestPresentCredentials() {
	w := s.createWallet()
	s.unlock()
	vc := s.issueTo(w.PrimaryDID, map[string]any{"checkType": "enhanced", "checkStatus": "cleared"})
	s.Require().NoError(s.service.AddCredential(s.ctx, s.owner, vc))

	s.Run("signs a presentation from matching credentials", func() {
		res, err := s.service.PresentCredentials(s.ctx, s.owner, passphrase, clearedDescriptor(), "nonce-1", "verifier.example")
		s.Require().NoError(err)
		s.Equal([]string{vc.ID}, res.Matches)
		s.Equal(w.PrimaryDID, res.Presentation.Holder)
		s.Require().NotNil(res.Presentation.Proof)
		s.Equal("nonce-1", res.Presentation.Proof.Challenge)

		result, err := s.credentials.VerifyPresentation(s.ctx, res.Presentation, credmodels.PresentationVerifyOptions{
			Challenge: "nonce-1",
			Domain:    "verifier.example",
		})
		s.Require().NoError(err)
		s.True(result.Valid, "errors: %v", result.Errors)

		got, err := s.service.GetWallet(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Equal([]string{res.Presentation.ID}, got.Presentations)
	})

	s.Run("unsatisfiable request", func() {
		_, err := s.service.PresentCredentials(s.ctx, s.owner, passphrase, []exchange.InputDescriptor{{
			ID: "licence",
			Constraints: exchange.Constraints{Fields: []exchange.Field{{
				Path: []string{"$.credentialSubject.drivingLicence"},
			}}},
		}}, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodePresentation))
		s.Contains(err.Error(), "licence")
	})

	s.Run("invalid descriptors", func() {
		_, err := s.service.PresentCredentials(s.ctx, s.owner, passphrase, []exchange.InputDescriptor{{}}, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("wrong passphrase", func() {
		_, err := s.service.PresentCredentials(s.ctx, s.owner, wrongPassphrase, clearedDescriptor(), "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})

	s.Run("locked wallet", func() {
		s.Require().NoError(s.service.LockWallet(s.ctx, s.owner))
		_, err := s.service.PresentCredentials(s.ctx, s.owner, passphrase, clearedDescriptor(), "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})
}

func (s *WalletServiceSuite) TestPresentCredentialsPassesSelection() {
	ctrl := gomock.NewController(s.T())
	presenter := mocks.NewMockPresenter(ctrl)
	svc := s.newService(WithPresenter(presenter))

	res, err := svc.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
	s.Require().NoError(err)
	_, err = svc.UnlockWallet(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
	vc := s.issueTo(res.Wallet.PrimaryDID, map[string]any{"checkStatus": "cleared"})
	s.Require().NoError(svc.AddCredential(s.ctx, s.owner, vc))

	presenter.EXPECT().
		CreatePresentation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req credmodels.PresentationRequest) (*credmodels.VerifiablePresentation, error) {
			s.Equal(s.owner, req.HolderOwnerID)
			s.Equal(res.Wallet.PrimaryDID, req.HolderDID)
			s.Require().Len(req.Credentials, 1)
			s.Equal(vc.ID, req.Credentials[0].ID)
			return &credmodels.VerifiablePresentation{ID: "urn:uuid:vp-1", Holder: req.HolderDID}, nil
		})

	out, err := svc.PresentCredentials(s.ctx, s.owner, passphrase, clearedDescriptor(), "", "")
	s.Require().NoError(err)
	s.Equal("urn:uuid:vp-1", out.Presentation.ID)
}
