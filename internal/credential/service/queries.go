package service

import (
	"context"
	"errors"

	"attesto/internal/credential/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// CredentialFilter selects credentials by exactly one of its fields.
type CredentialFilter struct {
	HolderDID string
	IssuerDID string
	Type      string
}

func (s *Service) GetCredential(ctx context.Context, credentialID string) (*models.VerifiableCredential, error) {
	return s.loadCredential(ctx, credentialID)
}

// ListCredentials returns credentials matching the filter.
func (s *Service) ListCredentials(ctx context.Context, f CredentialFilter) ([]*models.VerifiableCredential, error) {
	var (
		out []*models.VerifiableCredential
		err error
	)
	switch {
	case f.HolderDID != "":
		out, err = s.credentials.FindByHolder(ctx, f.HolderDID)
	case f.IssuerDID != "":
		out, err = s.credentials.FindByIssuer(ctx, f.IssuerDID)
	case f.Type != "":
		out, err = s.credentials.FindByType(ctx, f.Type)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "a holder, issuer or type filter is required")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return out, nil
}

// RegisterSchema validates and stores a credential schema.
func (s *Service) RegisterSchema(ctx context.Context, sch *models.Schema) (*models.Schema, error) {
	if sch == nil || sch.Name == "" || sch.CredentialType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "schema name and credential type are required")
	}
	stored := *sch
	if stored.ID == "" {
		stored.ID = "urn:uuid:" + s.newID()
	}
	if stored.Version == "" {
		stored.Version = "1.0"
	}
	stored.CreatedAt = requestcontext.Now(ctx)
	for _, name := range stored.Required {
		if _, ok := stored.Properties[name]; !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "required field "+name+" has no property definition")
		}
	}
	if err := s.validator.Compile(&stored); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "schema is not valid")
	}
	if err := s.schemas.Save(ctx, &stored); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "schema already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store schema")
	}
	s.logAudit(ctx, "credential_schema_registered",
		"schema_id", stored.ID,
		"credential_type", stored.CredentialType,
	)
	return &stored, nil
}

func (s *Service) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	sch, err := s.schemas.FindByID(ctx, schemaID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential schema not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential schema")
	}
	return sch, nil
}

func (s *Service) ListSchemas(ctx context.Context, jurisdiction string) ([]*models.Schema, error) {
	out, err := s.schemas.FindByJurisdiction(ctx, jurisdiction)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credential schemas")
	}
	return out, nil
}

func (s *Service) loadCredential(ctx context.Context, credentialID string) (*models.VerifiableCredential, error) {
	vc, err := s.credentials.FindByID(ctx, credentialID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return vc, nil
}
