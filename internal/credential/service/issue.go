package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"attesto/internal/credential/canonical"
	"attesto/internal/credential/models"
	"attesto/internal/credential/schema"
	"attesto/internal/crypto"
	"attesto/internal/events"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// maxStatusListRollovers bounds the search for a list with free entries.
const maxStatusListRollovers = 16

// IssueCredential validates, signs and stores a credential for req.SubjectDID.
func (s *Service) IssueCredential(ctx context.Context, req models.IssueRequest) (vc *models.VerifiableCredential, err error) {
	defer s.guard(ctx, "issue_credential", &err)

	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialIssue, tracer.String(tracer.AttrIssuer, req.IssuerDID))
	defer func() { span.End(err) }()

	if err := validateIssueRequest(req); err != nil {
		return nil, err
	}
	if err := s.identity.ValidateDID(req.SubjectDID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid subject DID")
	}

	types := normalizeTypes(req.Types)
	subject := make(models.Subject, len(req.Claims)+1)
	maps.Copy(subject, req.Claims)
	subject["id"] = req.SubjectDID

	sch, err := s.issuanceSchema(ctx, req.SchemaID, types)
	if err != nil {
		return nil, err
	}
	if sch != nil {
		if err := s.validator.Validate(sch, subject); err != nil {
			return nil, schemaError(err)
		}
	}

	now := requestcontext.Now(ctx)
	validity := s.validity
	if req.ValidFor > 0 {
		validity = req.ValidFor
	}
	expires := now.Add(validity)

	status, err := s.allocateStatus(ctx)
	if err != nil {
		return nil, err
	}

	vc = &models.VerifiableCredential{
		Context:           []string{models.ContextCredentialsV1},
		ID:                "urn:uuid:" + s.newID(),
		Type:              types,
		Issuer:            models.Issuer{ID: req.IssuerDID, Name: req.IssuerName},
		IssuanceDate:      now,
		ExpirationDate:    &expires,
		ValidFrom:         &now,
		ValidUntil:        &expires,
		CredentialSubject: subject,
		CredentialStatus:  status,
		Evidence:          req.Evidence,
	}
	if sch != nil {
		vc.CredentialSchema = &models.SchemaRef{ID: sch.ID, Type: models.SchemaTypeJSON}
	}

	payload, err := canonical.Marshal(vc, "proof")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to canonicalize credential")
	}
	sig, err := s.identity.SignWithDID(ctx, req.IssuerOwnerID, req.IssuerDID, payload, req.IssuerPassphrase)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCredentialValidation, "failed to sign credential")
	}
	vc.Proof = &models.Proof{
		Type:               proofType(sig.Scheme),
		Created:            now,
		VerificationMethod: sig.VerificationMethodID,
		ProofPurpose:       models.ProofPurposeAssertion,
		ProofValue:         sig.Value,
	}

	if err := s.credentials.Save(ctx, vc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "credential already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}

	if s.metrics != nil {
		s.metrics.IncrementIssued(vc.PrimaryType())
	}
	s.publish(ctx, events.CredentialIssued, vc.ID, map[string]string{
		"issuer":  req.IssuerDID,
		"subject": req.SubjectDID,
		"type":    vc.PrimaryType(),
	})
	s.logAudit(ctx, "credential_issued",
		"credential_id", vc.ID,
		"issuer_did", req.IssuerDID,
		"subject_did", req.SubjectDID,
		"type", vc.PrimaryType(),
	)
	return vc, nil
}

// IssueSafeguardingCredential issues a SafeguardingCredential from check details.
func (s *Service) IssueSafeguardingCredential(ctx context.Context, req models.IssueRequest, claims models.SafeguardingClaims) (*models.VerifiableCredential, error) {
	if claims.CheckType == "" || claims.CheckStatus == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "check type and status are required")
	}
	req.Types = []string{models.TypeSafeguardingCredential}
	req.Claims = claims.Claims()
	if claims.ExpiresAt != nil {
		if d := claims.ExpiresAt.Sub(requestcontext.Now(ctx)); d > 0 {
			req.ValidFor = d
		}
	}
	return s.IssueCredential(ctx, req)
}

// IssueAchievementCredential issues an AchievementCredential.
func (s *Service) IssueAchievementCredential(ctx context.Context, req models.IssueRequest, claims models.AchievementClaims) (*models.VerifiableCredential, error) {
	if claims.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "achievement name is required")
	}
	req.Types = []string{models.TypeAchievementCredential}
	req.Claims = claims.Claims()
	return s.IssueCredential(ctx, req)
}

// IssueQualificationCredential issues a QualificationCredential.
func (s *Service) IssueQualificationCredential(ctx context.Context, req models.IssueRequest, claims models.QualificationClaims) (*models.VerifiableCredential, error) {
	if claims.Title == "" || claims.AwardingBody == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "qualification title and awarding body are required")
	}
	req.Types = []string{models.TypeQualificationCredential}
	req.Claims = claims.Claims()
	return s.IssueCredential(ctx, req)
}

func validateIssueRequest(req models.IssueRequest) error {
	switch {
	case req.IssuerDID == "":
		return dErrors.New(dErrors.CodeValidation, "issuer DID is required")
	case req.SubjectDID == "":
		return dErrors.New(dErrors.CodeValidation, "subject DID is required")
	case req.IssuerPassphrase == "":
		return dErrors.New(dErrors.CodeValidation, "issuer passphrase is required")
	case req.ValidFor < 0:
		return dErrors.New(dErrors.CodeValidation, "validity window must be positive")
	}
	return nil
}

// normalizeTypes puts VerifiableCredential first and drops duplicates.
func normalizeTypes(in []string) []string {
	out := []string{models.TypeVerifiableCredential}
	seen := map[string]bool{models.TypeVerifiableCredential: true}
	for _, t := range in {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// issuanceSchema returns the explicitly requested schema, or the default for
// the credential's primary type when one is registered.
func (s *Service) issuanceSchema(ctx context.Context, schemaID string, types []string) (*models.Schema, error) {
	if schemaID != "" {
		sch, err := s.schemas.FindByID(ctx, schemaID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential schema not found")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential schema")
		}
		return sch, nil
	}
	primary := types[len(types)-1]
	if primary == models.TypeVerifiableCredential {
		return nil, nil
	}
	sch, err := s.schemas.FindDefaultForType(ctx, primary)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential schema")
	}
	return sch, nil
}

func schemaError(err error) error {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return dErrors.Wrap(err, dErrors.CodeCredentialValidation, ve.Error())
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate credential subject")
}

// allocateStatus reserves the next status list entry, moving to a fresh list
// when the current one is full.
func (s *Service) allocateStatus(ctx context.Context) (*models.StatusEntry, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	for range maxStatusListRollovers {
		listID := "status-" + strconv.Itoa(s.statusSeq)
		index, err := s.statusLists.Allocate(ctx, listID, s.statusListLength)
		if errors.Is(err, sentinel.ErrInvalidState) {
			s.statusSeq++
			if s.metrics != nil {
				s.metrics.IncrementStatusListRollover()
			}
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate status list entry")
		}
		listURL := s.StatusListURL(listID)
		return &models.StatusEntry{
			ID:                   fmt.Sprintf("%s#%d", listURL, index),
			Type:                 models.StatusEntryType,
			StatusPurpose:        models.StatusPurposeRevoke,
			StatusListIndex:      index,
			StatusListCredential: listURL,
		}, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "no status list capacity available")
}

func proofType(scheme crypto.Scheme) string {
	if scheme == crypto.SchemeSecp256k1 {
		return models.ProofTypeSecp256k1
	}
	return models.ProofTypeEd25519
}
