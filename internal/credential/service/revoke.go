package service

import (
	"context"
	"errors"
	"path"

	"attesto/internal/credential/models"
	"attesto/internal/credential/statuslist"
	"attesto/internal/events"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// RevokeCredential records a revocation and flips the credential's status
// list bit. Revoking an already-revoked credential returns the original entry.
func (s *Service) RevokeCredential(ctx context.Context, credentialID, reason, revokedBy string) (entry *models.RevocationEntry, err error) {
	defer s.guard(ctx, "revoke_credential", &err)
	if credentialID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "credential id is required")
	}

	vc, err := s.loadCredential(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	entry = &models.RevocationEntry{
		CredentialID: vc.ID,
		Reason:       reason,
		RevokedBy:    revokedBy,
		RevokedAt:    now,
	}
	if st := vc.CredentialStatus; st != nil {
		index := st.StatusListIndex
		entry.StatusListID = path.Base(st.StatusListCredential)
		entry.StatusIndex = &index
	}

	created, err := s.revocations.Revoke(ctx, entry)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke credential")
	}
	if !created {
		existing, err := s.revocations.GetStatus(ctx, vc.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load revocation")
		}
		return existing, nil
	}

	if entry.StatusIndex != nil {
		if err := s.statusLists.SetBit(ctx, entry.StatusListID, *entry.StatusIndex, now); err != nil {
			// the revocation store stays authoritative for verification
			s.logger.ErrorContext(ctx, "failed to update status list",
				"credential_id", vc.ID,
				"status_list_id", entry.StatusListID,
				"error", err,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	s.publish(ctx, events.CredentialRevoked, vc.ID, map[string]string{
		"issuer": vc.Issuer.ID,
		"reason": reason,
	})
	s.logAudit(ctx, "credential_revoked",
		"credential_id", vc.ID,
		"revoked_by", revokedBy,
		"reason", reason,
	)
	return entry, nil
}

// RevocationStatus returns the revocation entry, or NotFound if the
// credential has not been revoked.
func (s *Service) RevocationStatus(ctx context.Context, credentialID string) (*models.RevocationEntry, error) {
	entry, err := s.revocations.GetStatus(ctx, credentialID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential is not revoked")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load revocation")
	}
	return entry, nil
}

// GetStatusList returns the published bitstring for listID.
func (s *Service) GetStatusList(ctx context.Context, listID string) (*models.StatusList, error) {
	rec, err := s.statusLists.Get(ctx, listID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "status list not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load status list")
	}
	list, err := statuslist.FromBytes(rec.Bits, rec.Length)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored status list is corrupt")
	}
	encoded, err := list.Encode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode status list")
	}
	return &models.StatusList{
		ID:          rec.ID,
		Purpose:     models.StatusPurposeRevoke,
		EncodedList: encoded,
		Length:      rec.Length,
		Allocated:   rec.NextIndex,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}
