package httptransport

import (
	"strings"

	credmodels "attesto/internal/credential/models"
	"attesto/internal/crypto"
	"attesto/internal/exchange"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/models"
	strutil "attesto/pkg/platform/strings"
	limits "attesto/pkg/platform/validation"
)

// HTTP request DTOs. Passphrases are never trimmed.

type RecoveryRequest struct {
	Method    string   `json:"method" validate:"required,oneof=backup social"`
	Threshold int      `json:"threshold" validate:"omitempty,min=1"`
	Guardians []string `json:"guardians" validate:"omitempty,dive,did"`
}

type CreateWalletRequest struct {
	Passphrase string           `json:"passphrase" validate:"required"`
	DIDMethod  string           `json:"did_method" validate:"omitempty,oneof=key web"`
	KeyScheme  string           `json:"key_scheme" validate:"omitempty,oneof=Ed25519 secp256k1"`
	Backup     *bool            `json:"backup"`
	Recovery   *RecoveryRequest `json:"recovery"`
}

func (r *CreateWalletRequest) Normalize() {
	if r == nil {
		return
	}
	r.DIDMethod = strings.ToLower(strings.TrimSpace(r.DIDMethod))
	r.KeyScheme = strings.TrimSpace(r.KeyScheme)
	if r.Recovery != nil {
		r.Recovery.Method = strings.ToLower(strings.TrimSpace(r.Recovery.Method))
		r.Recovery.Guardians = strutil.DedupeAndTrim(r.Recovery.Guardians)
	}
}

func (r *CreateWalletRequest) Validate() error {
	if err := limits.CheckStringLength("passphrase", r.Passphrase, limits.MaxPassphraseLength); err != nil {
		return err
	}
	if r.Recovery == nil {
		return nil
	}
	if err := limits.CheckSliceCount("guardians", len(r.Recovery.Guardians), limits.MaxGuardians); err != nil {
		return err
	}
	return limits.CheckEachStringLength("guardian", r.Recovery.Guardians, limits.MaxDIDLength)
}

// ToOptions converts the validated request into service options.
func (r *CreateWalletRequest) ToOptions() models.CreateOptions {
	opts := models.CreateOptions{
		Method: idmodels.Method(r.DIDMethod),
		Scheme: crypto.Scheme(r.KeyScheme),
		Backup: r.Backup,
	}
	if r.Recovery != nil {
		opts.RecoveryConfig = &models.RecoveryConfig{
			Method:    models.RecoveryMethod(r.Recovery.Method),
			Threshold: r.Recovery.Threshold,
			Guardians: r.Recovery.Guardians,
		}
	}
	return opts
}

// PassphraseRequest carries the passphrase for unlock, backup and restore.
type PassphraseRequest struct {
	Passphrase string `json:"passphrase" validate:"required"`
}

func (r *PassphraseRequest) Validate() error {
	return limits.CheckStringLength("passphrase", r.Passphrase, limits.MaxPassphraseLength)
}

type AddCredentialRequest struct {
	Credential *credmodels.VerifiableCredential `json:"credential" validate:"required"`
}

type PresentRequest struct {
	Passphrase       string                     `json:"passphrase" validate:"required"`
	InputDescriptors []exchange.InputDescriptor `json:"input_descriptors" validate:"required,min=1"`
	Challenge        string                     `json:"challenge"`
	Domain           string                     `json:"domain"`
}

func (r *PresentRequest) Validate() error {
	if err := limits.CheckStringLength("passphrase", r.Passphrase, limits.MaxPassphraseLength); err != nil {
		return err
	}
	if err := limits.CheckStringLength("challenge", r.Challenge, limits.MaxChallengeLength); err != nil {
		return err
	}
	if err := limits.CheckStringLength("domain", r.Domain, limits.MaxChallengeLength); err != nil {
		return err
	}
	return checkDescriptors(r.InputDescriptors)
}

func checkDescriptors(descriptors []exchange.InputDescriptor) error {
	if err := limits.CheckSliceCount("input descriptors", len(descriptors), limits.MaxInputDescriptors); err != nil {
		return err
	}
	for _, d := range descriptors {
		if err := limits.CheckSliceCount("fields per input descriptor", len(d.Constraints.Fields), limits.MaxFieldsPerInput); err != nil {
			return err
		}
	}
	return nil
}

type VerifyCredentialRequest struct {
	Credential      *credmodels.VerifiableCredential `json:"credential" validate:"required"`
	TrustedIssuers  []string                         `json:"trusted_issuers" validate:"omitempty,dive,did"`
	SkipStatusCheck bool                             `json:"skip_status_check"`
	SkipSchemaCheck bool                             `json:"skip_schema_check"`
}

func (r *VerifyCredentialRequest) Normalize() {
	if r == nil {
		return
	}
	r.TrustedIssuers = strutil.DedupeAndTrim(r.TrustedIssuers)
}

func (r *VerifyCredentialRequest) Validate() error {
	return checkIssuers(r.TrustedIssuers)
}

func checkIssuers(issuers []string) error {
	if err := limits.CheckSliceCount("trusted issuers", len(issuers), limits.MaxTrustedIssuers); err != nil {
		return err
	}
	return limits.CheckEachStringLength("trusted issuer", issuers, limits.MaxDIDLength)
}

type VerifyPresentationRequest struct {
	Presentation   *credmodels.VerifiablePresentation `json:"presentation" validate:"required"`
	Challenge      string                             `json:"challenge"`
	Domain         string                             `json:"domain"`
	TrustedIssuers []string                           `json:"trusted_issuers" validate:"omitempty,dive,did"`
}

func (r *VerifyPresentationRequest) Normalize() {
	if r == nil {
		return
	}
	r.TrustedIssuers = strutil.DedupeAndTrim(r.TrustedIssuers)
}

func (r *VerifyPresentationRequest) Validate() error {
	if err := limits.CheckStringLength("challenge", r.Challenge, limits.MaxChallengeLength); err != nil {
		return err
	}
	return checkIssuers(r.TrustedIssuers)
}

// MatchRequest asks which held credentials satisfy the descriptors.
type MatchRequest struct {
	InputDescriptors []exchange.InputDescriptor `json:"input_descriptors" validate:"required,min=1"`
}

func (r *MatchRequest) Validate() error {
	return checkDescriptors(r.InputDescriptors)
}
