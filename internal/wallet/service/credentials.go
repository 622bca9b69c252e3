package service

import (
	"context"
	"strings"

	credmodels "attesto/internal/credential/models"
	"attesto/internal/events"
	"attesto/internal/exchange"
	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

// AddCredential stores a credential issued to the wallet's primary DID.
func (s *Service) AddCredential(ctx context.Context, ownerID id.UserID, vc *credmodels.VerifiableCredential) (err error) {
	defer s.guard(ctx, "add_credential", &err)
	if ownerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if vc == nil || vc.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "credential with an id is required")
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := s.requireUnlocked(ctx, w); err != nil {
		return err
	}
	if vc.SubjectID() != w.PrimaryDID {
		return dErrors.New(dErrors.CodeValidation, "credential subject does not match the wallet's primary DID")
	}
	if w.HasCredential(vc.ID) {
		return dErrors.New(dErrors.CodeConflict, "credential already in wallet")
	}

	w.Credentials = append(w.Credentials, *vc)
	w.UpdatedAt = requestcontext.Now(ctx)
	if err := s.wallets.Update(ctx, w); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}

	s.publish(ctx, events.CredentialReceived, vc.ID, map[string]string{
		"wallet_id": w.ID.String(),
		"issuer":    vc.Issuer.ID,
		"type":      vc.PrimaryType(),
	})
	s.logAudit(ctx, "wallet_credential_added",
		"wallet_id", w.ID.String(),
		"credential_id", vc.ID,
		"issuer_did", vc.Issuer.ID,
	)
	return nil
}

// RemoveCredential drops a held credential.
func (s *Service) RemoveCredential(ctx context.Context, ownerID id.UserID, credentialID string) (err error) {
	defer s.guard(ctx, "remove_credential", &err)
	if ownerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if credentialID == "" {
		return dErrors.New(dErrors.CodeValidation, "credential ID is required")
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := s.requireUnlocked(ctx, w); err != nil {
		return err
	}
	kept := w.Credentials[:0]
	found := false
	for _, vc := range w.Credentials {
		if vc.ID == credentialID {
			found = true
			continue
		}
		kept = append(kept, vc)
	}
	if !found {
		return dErrors.New(dErrors.CodeNotFound, "credential not found in wallet")
	}
	w.Credentials = kept
	w.UpdatedAt = requestcontext.Now(ctx)
	if err := s.wallets.Update(ctx, w); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}
	s.logAudit(ctx, "wallet_credential_removed",
		"wallet_id", w.ID.String(),
		"credential_id", credentialID,
	)
	return nil
}

// GetCredentials returns the held credentials.
func (s *Service) GetCredentials(ctx context.Context, ownerID id.UserID) (vcs []credmodels.VerifiableCredential, err error) {
	defer s.guard(ctx, "get_credentials", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnlocked(ctx, w); err != nil {
		return nil, err
	}
	return w.Credentials, nil
}

// MatchCredentials reports which held credentials satisfy each descriptor
// without signing anything. The wallet must be unlocked.
func (s *Service) MatchCredentials(ctx context.Context, ownerID id.UserID, descriptors []exchange.InputDescriptor) (res *exchange.Result, err error) {
	defer s.guard(ctx, "match_credentials", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if err := exchange.Validate(descriptors); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}
	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnlocked(ctx, w); err != nil {
		return nil, err
	}
	match := exchange.Match(w.Credentials, descriptors)
	return &match, nil
}

// PresentCredentials answers a presentation request from the held
// credentials: the first match per descriptor is signed into a presentation
// under the primary DID.
func (s *Service) PresentCredentials(ctx context.Context, ownerID id.UserID, passphrase string, descriptors []exchange.InputDescriptor, challenge, domain string) (res *models.PresentResult, err error) {
	defer s.guard(ctx, "present_credentials", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if s.presenter == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "presentations are not configured")
	}
	if err := exchange.Validate(descriptors); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUnlocked(ctx, w); err != nil {
		return nil, err
	}

	match := exchange.Match(w.Credentials, descriptors)
	if !match.CanSatisfy {
		return nil, dErrors.New(dErrors.CodePresentation,
			"presentation request cannot be satisfied: missing "+strings.Join(match.MissingDescriptors, ", "))
	}
	selected := match.Selection()
	vp, err := s.presenter.CreatePresentation(ctx, credmodels.PresentationRequest{
		HolderOwnerID: ownerID,
		HolderDID:     w.PrimaryDID,
		Passphrase:    passphrase,
		Credentials:   selected,
		Challenge:     challenge,
		Domain:        domain,
	})
	if err != nil {
		return nil, err
	}

	w.Presentations = append(w.Presentations, vp.ID)
	w.UpdatedAt = requestcontext.Now(ctx)
	if err := s.wallets.Update(ctx, w); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}

	res = &models.PresentResult{Presentation: vp}
	for _, vc := range selected {
		res.Matches = append(res.Matches, vc.ID)
	}
	s.logAudit(ctx, "wallet_presentation_created",
		"wallet_id", w.ID.String(),
		"presentation_id", vp.ID,
		"credentials", len(selected),
	)
	return res, nil
}
