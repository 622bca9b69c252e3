package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"attesto/internal/credential/canonical"
	"attesto/internal/credential/models"
	"attesto/internal/events"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// maxParallelVerifications bounds concurrent credential checks per presentation.
const maxParallelVerifications = 8

// signingPayload is what a holder signs: the presentation without its proof
// plus the replay binding values.
type signingPayload struct {
	Context              []string                      `json:"@context"`
	ID                   string                        `json:"id"`
	Type                 []string                      `json:"type"`
	Holder               string                        `json:"holder"`
	VerifiableCredential []models.VerifiableCredential `json:"verifiableCredential"`
	Challenge            string                        `json:"challenge,omitempty"`
	Domain               string                        `json:"domain,omitempty"`
}

func presentationPayload(vp *models.VerifiablePresentation, challenge, domain string) ([]byte, error) {
	return canonical.Marshal(signingPayload{
		Context:              vp.Context,
		ID:                   vp.ID,
		Type:                 vp.Type,
		Holder:               vp.Holder,
		VerifiableCredential: vp.VerifiableCredential,
		Challenge:            challenge,
		Domain:               domain,
	})
}

// CreatePresentation bundles credentials the holder is the subject of and
// signs them under the holder's DID.
func (s *Service) CreatePresentation(ctx context.Context, req models.PresentationRequest) (vp *models.VerifiablePresentation, err error) {
	defer s.guard(ctx, "create_presentation", &err)

	if req.HolderDID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "holder DID is required")
	}
	if len(req.Credentials) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one credential is required")
	}
	for i := range req.Credentials {
		if req.Credentials[i].SubjectID() != req.HolderDID {
			return nil, dErrors.New(dErrors.CodePresentation,
				fmt.Sprintf("credential %s is not issued to the holder", req.Credentials[i].ID))
		}
	}

	now := requestcontext.Now(ctx)
	vp = &models.VerifiablePresentation{
		Context:              []string{models.ContextCredentialsV1},
		ID:                   "urn:uuid:" + s.newID(),
		Type:                 []string{models.TypeVerifiablePresentation},
		Holder:               req.HolderDID,
		VerifiableCredential: req.Credentials,
		CreatedAt:            now,
	}
	payload, err := presentationPayload(vp, req.Challenge, req.Domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to canonicalize presentation")
	}
	sig, err := s.identity.SignWithDID(ctx, req.HolderOwnerID, req.HolderDID, payload, req.Passphrase)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePresentation, "failed to sign presentation")
	}
	vp.Proof = &models.Proof{
		Type:               proofType(sig.Scheme),
		Created:            now,
		VerificationMethod: sig.VerificationMethodID,
		ProofPurpose:       models.ProofPurposeAuthentication,
		ProofValue:         sig.Value,
		Challenge:          req.Challenge,
		Domain:             req.Domain,
	}

	if err := s.presentations.Save(ctx, vp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store presentation")
	}
	if s.metrics != nil {
		s.metrics.IncrementPresentationsCreated()
	}
	s.publish(ctx, events.PresentationCreated, vp.ID, map[string]string{
		"holder":      vp.Holder,
		"credentials": fmt.Sprint(len(vp.VerifiableCredential)),
	})
	s.logAudit(ctx, "presentation_created",
		"presentation_id", vp.ID,
		"holder_did", vp.Holder,
		"credential_count", len(vp.VerifiableCredential),
	)
	return vp, nil
}

// VerifyPresentation checks the holder proof, including exact challenge and
// domain binding when expected values are supplied, then verifies every
// embedded credential. Valid iff no errors accumulated.
func (s *Service) VerifyPresentation(ctx context.Context, vp *models.VerifiablePresentation, opts models.PresentationVerifyOptions) (result *models.PresentationResult, err error) {
	defer s.guard(ctx, "verify_presentation", &err)
	if vp == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "presentation is required")
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanPresentationVerify,
		tracer.String(tracer.AttrHolder, vp.Holder),
		tracer.Int(tracer.AttrCredentials, len(vp.VerifiableCredential)),
	)
	defer func() { span.End(err) }()

	v := newVerification()
	s.checkPresentationProof(ctx, v, vp, opts)
	checkHolderBinding(v, vp)

	results, err := s.verifyEmbedded(ctx, vp.VerifiableCredential, opts.VerifyOptions)
	if err != nil {
		return nil, err
	}

	agg := v.finish()
	result = &models.PresentationResult{
		Holder:      vp.Holder,
		Checks:      agg.Checks,
		Errors:      agg.Errors,
		Warnings:    agg.Warnings,
		Credentials: make([]models.VerificationResult, len(results)),
	}
	for i, r := range results {
		prefix := "credential " + vp.VerifiableCredential[i].ID + ": "
		result.Checks = append(result.Checks, r.Checks...)
		for _, e := range r.Errors {
			result.Errors = append(result.Errors, prefix+e)
		}
		for _, w := range r.Warnings {
			result.Warnings = append(result.Warnings, prefix+w)
		}
		result.Credentials[i] = *r
	}
	result.Valid = len(result.Errors) == 0

	span.SetAttributes(
		tracer.Bool(tracer.AttrValid, result.Valid),
		tracer.Int(tracer.AttrErrorCount, len(result.Errors)),
	)
	if s.metrics != nil {
		s.metrics.IncrementPresentationVerified(result.Valid)
	}
	s.logAudit(ctx, "presentation_verified",
		"presentation_id", vp.ID,
		"holder_did", vp.Holder,
		"valid", result.Valid,
	)
	return result, nil
}

func (s *Service) checkPresentationProof(ctx context.Context, v *verification, vp *models.VerifiablePresentation, opts models.PresentationVerifyOptions) {
	proof := vp.Proof
	switch {
	case proof == nil || proof.ProofValue == "":
		v.fail(models.CheckProof, severityError, "presentation has no proof")
		return
	case proof.ProofPurpose != models.ProofPurposeAuthentication:
		v.fail(models.CheckProof, severityError, "presentation proof purpose must be authentication")
		return
	case opts.Challenge != "" && proof.Challenge != opts.Challenge:
		v.fail(models.CheckProof, severityError, "presentation challenge does not match")
		return
	case opts.Domain != "" && proof.Domain != opts.Domain:
		v.fail(models.CheckProof, severityError, "presentation domain does not match")
		return
	}

	doc, err := s.identity.ResolveDID(ctx, vp.Holder)
	if err != nil {
		v.fail(models.CheckProof, severityError, "holder DID could not be resolved: "+messageOf(err))
		return
	}
	if doc.Deactivated {
		v.fail(models.CheckProof, severityError, "holder DID is deactivated")
		return
	}

	payload, err := presentationPayload(vp, proof.Challenge, proof.Domain)
	if err != nil {
		v.fail(models.CheckProof, severityError, "presentation could not be canonicalized")
		return
	}
	ok, err := s.identity.VerifySignature(ctx, vp.Holder, payload, proof.ProofValue, proof.VerificationMethod)
	switch {
	case err != nil:
		v.fail(models.CheckProof, severityError, "presentation proof could not be verified: "+messageOf(err))
	case !ok:
		v.fail(models.CheckProof, severityError, "presentation signature is invalid")
	default:
		v.pass(models.CheckProof)
	}
}

func checkHolderBinding(v *verification, vp *models.VerifiablePresentation) {
	if len(vp.VerifiableCredential) == 0 {
		v.fail(models.CheckHolder, severityError, "presentation contains no credentials")
		return
	}
	for i := range vp.VerifiableCredential {
		vc := &vp.VerifiableCredential[i]
		if vc.SubjectID() != vp.Holder {
			v.fail(models.CheckHolder, severityError,
				fmt.Sprintf("credential %s subject does not match presentation holder", vc.ID))
			return
		}
	}
	v.pass(models.CheckHolder)
}

func (s *Service) verifyEmbedded(ctx context.Context, vcs []models.VerifiableCredential, opts models.VerifyOptions) ([]*models.VerificationResult, error) {
	results := make([]*models.VerificationResult, len(vcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelVerifications)
	for i := range vcs {
		g.Go(func() error {
			itemCtx, span := s.tracer.Start(gctx, tracer.SpanPresentationVerifyItem,
				tracer.String(tracer.AttrCredentialID, vcs[i].ID))
			r := s.verify(itemCtx, &vcs[i], opts)
			span.End(nil)
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify embedded credentials")
	}
	return results, nil
}

// GetPresentation returns a stored presentation.
func (s *Service) GetPresentation(ctx context.Context, presentationID string) (*models.VerifiablePresentation, error) {
	vp, err := s.presentations.FindByID(ctx, presentationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "presentation not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load presentation")
	}
	return vp, nil
}

func (s *Service) ListPresentations(ctx context.Context, holderDID string) ([]*models.VerifiablePresentation, error) {
	out, err := s.presentations.FindByHolder(ctx, holderDID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list presentations")
	}
	return out, nil
}
