package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"attesto/internal/credential/canonical"
	"attesto/internal/credential/models"
	"attesto/internal/credential/schema"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// severity decides whether a failed check is an error or a warning.
type severity int

const (
	severityError severity = iota
	severityWarning
)

// decisive checks must pass, when they ran, for a credential to be valid.
var decisive = []models.CheckName{models.CheckProof, models.CheckStatus, models.CheckExpiration}

type verification struct {
	result *models.VerificationResult
}

func newVerification() *verification {
	return &verification{result: &models.VerificationResult{
		Checks:   []models.Check{},
		Errors:   []string{},
		Warnings: []string{},
	}}
}

func (v *verification) pass(name models.CheckName) {
	v.result.Checks = append(v.result.Checks, models.Check{Name: name, Passed: true})
}

func (v *verification) fail(name models.CheckName, sev severity, msg string) {
	v.result.Checks = append(v.result.Checks, models.Check{Name: name, Passed: false, Message: msg})
	if sev == severityWarning {
		v.result.Warnings = append(v.result.Warnings, msg)
		return
	}
	v.result.Errors = append(v.result.Errors, msg)
}

func (v *verification) finish() *models.VerificationResult {
	valid := len(v.result.Errors) == 0
	for _, c := range v.result.Checks {
		if !c.Passed && slices.Contains(decisive, c.Name) {
			valid = false
		}
	}
	v.result.Valid = valid
	return v.result
}

// VerifyCredential runs the proof, expiration, issuer, status and schema
// checks. Issuer and schema failures are warnings only. The returned error
// is reserved for unusable input; a failed check is reported in the result.
func (s *Service) VerifyCredential(ctx context.Context, vc *models.VerifiableCredential, opts models.VerifyOptions) (result *models.VerificationResult, err error) {
	defer s.guard(ctx, "verify_credential", &err)
	if vc == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "credential is required")
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanCredentialVerify,
		tracer.String(tracer.AttrCredentialID, vc.ID),
		tracer.String(tracer.AttrIssuer, vc.Issuer.ID),
	)
	defer func() { span.End(err) }()

	result = s.verify(ctx, vc, opts)

	span.SetAttributes(
		tracer.Bool(tracer.AttrValid, result.Valid),
		tracer.Int(tracer.AttrErrorCount, len(result.Errors)),
		tracer.Int(tracer.AttrWarningCount, len(result.Warnings)),
	)
	if s.metrics != nil {
		s.metrics.ObserveVerification(result.Valid, time.Since(start).Seconds())
	}
	return result, nil
}

func (s *Service) verify(ctx context.Context, vc *models.VerifiableCredential, opts models.VerifyOptions) *models.VerificationResult {
	v := newVerification()

	s.checkProof(ctx, v, vc)
	checkExpiration(v, vc, requestcontext.Now(ctx))
	checkIssuer(v, vc, opts.TrustedIssuers)
	if vc.CredentialStatus != nil && !opts.SkipStatusCheck {
		s.checkStatus(ctx, v, vc)
	}
	if vc.CredentialSchema != nil && !opts.SkipSchemaCheck {
		s.checkSchema(ctx, v, vc)
	}

	result := v.finish()
	result.Metadata = &models.Metadata{
		CredentialID:   vc.ID,
		Issuer:         vc.Issuer.ID,
		IssuerName:     vc.Issuer.Name,
		IssuanceDate:   vc.IssuanceDate,
		ExpirationDate: vc.Expiry(),
		Types:          slices.Clone(vc.Type),
		SubjectID:      vc.SubjectID(),
	}
	return result
}

func (s *Service) checkProof(ctx context.Context, v *verification, vc *models.VerifiableCredential) {
	if vc.Proof == nil || vc.Proof.ProofValue == "" {
		v.fail(models.CheckProof, severityError, "credential has no proof")
		return
	}
	if vc.Proof.ProofPurpose != models.ProofPurposeAssertion {
		v.fail(models.CheckProof, severityError, "credential proof purpose must be assertionMethod")
		return
	}
	payload, err := canonical.Marshal(vc, "proof")
	if err != nil {
		v.fail(models.CheckProof, severityError, "credential could not be canonicalized")
		return
	}
	ok, err := s.identity.VerifySignature(ctx, vc.Issuer.ID, payload, vc.Proof.ProofValue, vc.Proof.VerificationMethod)
	switch {
	case err != nil:
		v.fail(models.CheckProof, severityError, "credential proof could not be verified: "+messageOf(err))
	case !ok:
		v.fail(models.CheckProof, severityError, "credential signature is invalid")
	default:
		v.pass(models.CheckProof)
	}
}

func checkExpiration(v *verification, vc *models.VerifiableCredential, now time.Time) {
	if vc.ValidFrom != nil && now.Before(*vc.ValidFrom) {
		v.fail(models.CheckExpiration, severityError, "credential is not yet valid")
		return
	}
	if exp := vc.Expiry(); exp != nil && now.After(*exp) {
		v.fail(models.CheckExpiration, severityError, "credential has expired")
		return
	}
	v.pass(models.CheckExpiration)
}

func checkIssuer(v *verification, vc *models.VerifiableCredential, trusted []string) {
	if len(trusted) > 0 && !slices.Contains(trusted, vc.Issuer.ID) {
		v.fail(models.CheckIssuer, severityWarning, fmt.Sprintf("issuer %s is not in the trusted issuer list", vc.Issuer.ID))
		return
	}
	v.pass(models.CheckIssuer)
}

func (s *Service) checkStatus(ctx context.Context, v *verification, vc *models.VerifiableCredential) {
	revoked, err := s.revocations.IsRevoked(ctx, vc.ID)
	switch {
	case err != nil:
		v.fail(models.CheckStatus, severityError, "credential revocation status is unavailable")
	case revoked:
		v.fail(models.CheckStatus, severityError, "credential has been revoked")
	default:
		v.pass(models.CheckStatus)
	}
}

func (s *Service) checkSchema(ctx context.Context, v *verification, vc *models.VerifiableCredential) {
	sch, err := s.schemas.FindByID(ctx, vc.CredentialSchema.ID)
	if err != nil {
		msg := "credential schema could not be loaded"
		if errors.Is(err, sentinel.ErrNotFound) {
			msg = "credential schema " + vc.CredentialSchema.ID + " is not registered"
		}
		v.fail(models.CheckSchema, severityWarning, msg)
		return
	}
	if err := s.validator.Validate(sch, vc.CredentialSubject); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			v.fail(models.CheckSchema, severityWarning, ve.Error())
			return
		}
		v.fail(models.CheckSchema, severityWarning, "credential subject could not be validated")
		return
	}
	v.pass(models.CheckSchema)
}

// messageOf returns the domain message for err without internal detail.
func messageOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		return de.Message
	}
	return "internal error"
}
