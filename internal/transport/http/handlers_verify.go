package httptransport

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	credmodels "attesto/internal/credential/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
)

// HandleVerifyCredential reports every check. A failed check still answers
// 200 with valid=false; only unusable input is an error.
func (h *Handler) HandleVerifyCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[VerifyCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.credentials.VerifyCredential(ctx, req.Credential, credmodels.VerifyOptions{
		TrustedIssuers:  h.issuersFor(req.TrustedIssuers),
		SkipStatusCheck: req.SkipStatusCheck,
		SkipSchemaCheck: req.SkipSchemaCheck,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleVerifyPresentation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndValidate[VerifyPresentationRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.credentials.VerifyPresentation(ctx, req.Presentation, credmodels.PresentationVerifyOptions{
		VerifyOptions: credmodels.VerifyOptions{TrustedIssuers: h.issuersFor(req.TrustedIssuers)},
		Challenge:     req.Challenge,
		Domain:        req.Domain,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleResolveDID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	did, err := url.PathUnescape(chi.URLParam(r, "did"))
	if err != nil || did == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid DID"))
		return
	}

	doc, err := h.resolver.ResolveDID(ctx, did)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DIDResolutionResponse{
		DIDDocument: doc,
		Metadata: DIDDocumentMetadata{
			Created:     doc.Created,
			Updated:     doc.Updated,
			Deactivated: doc.Deactivated,
		},
	})
}

func (h *Handler) HandleGetStatusList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.credentials.GetStatusList(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) issuersFor(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return h.trustedIssuers
}
