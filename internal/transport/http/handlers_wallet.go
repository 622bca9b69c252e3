package httptransport

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	credmodels "attesto/internal/credential/models"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/requestcontext"
)

// HandleCreateWallet creates the caller's wallet with a fresh primary DID.
func (h *Handler) HandleCreateWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[CreateWalletRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.wallets.CreateWallet(ctx, ownerID, req.Passphrase, req.ToOptions())
	if err != nil {
		h.logger.WarnContext(ctx, "create wallet failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	resp := CreateWalletResponse{Wallet: toWalletResponse(res.Wallet)}
	if res.Backup != nil {
		resp.BackupID = res.Backup.ID.String()
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) HandleWalletStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	wallet, err := h.wallets.GetWallet(ctx, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	unlocked, err := h.wallets.IsWalletUnlocked(ctx, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		WalletID:   wallet.ID.String(),
		Status:     string(wallet.Status),
		Unlocked:   unlocked,
		PrimaryDID: wallet.PrimaryDID,
	})
}

// HandleUnlockWallet opens a session. Lockouts answer 423 with Retry-After.
func (h *Handler) HandleUnlockWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[PassphraseRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.wallets.UnlockWallet(ctx, ownerID, req.Passphrase)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, UnlockResponse{
		WalletID:  res.WalletID.String(),
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *Handler) HandleLockWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.wallets.LockWallet(ctx, ownerID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	vcs, err := h.wallets.GetCredentials(ctx, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if vcs == nil {
		vcs = []credmodels.VerifiableCredential{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"credentials": vcs})
}

func (h *Handler) HandleAddCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[AddCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.wallets.AddCredential(ctx, ownerID, req.Credential); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": req.Credential.ID})
}

func (h *Handler) HandleRemoveCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credentialID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || credentialID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}
	if err := h.wallets.RemoveCredential(ctx, ownerID, credentialID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePresent matches the wallet against the request and returns a signed
// presentation.
func (h *Handler) HandlePresent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[PresentRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.wallets.PresentCredentials(ctx, ownerID, req.Passphrase, req.InputDescriptors, req.Challenge, req.Domain)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"presentation": res.Presentation,
		"matches":      res.Matches,
	})
}

// HandleMatch reports which held credentials satisfy the descriptors without
// signing a presentation.
func (h *Handler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[MatchRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.wallets.MatchCredentials(ctx, ownerID, req.InputDescriptors)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	backups, err := h.wallets.ListBackups(ctx, ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]BackupResponse, 0, len(backups))
	for _, b := range backups {
		resp = append(resp, toBackupResponse(b))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"backups": resp})
}

func (h *Handler) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndValidate[PassphraseRequest](w, r, h.logger)
	if !ok {
		return
	}

	backup, err := h.wallets.CreateBackup(ctx, ownerID, req.Passphrase)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toBackupResponse(backup))
}

// HandleRestoreBackup rebuilds the wallet from a backup. The restored wallet
// starts locked.
func (h *Handler) HandleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	backupID, err := id.ParseBackupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid backup id"))
		return
	}
	req, ok := httputil.DecodeAndValidate[PassphraseRequest](w, r, h.logger)
	if !ok {
		return
	}

	wallet, err := h.wallets.RestoreFromBackup(ctx, ownerID, backupID, req.Passphrase)
	if err != nil {
		h.logger.WarnContext(ctx, "restore failed", "error", err, "backup_id", backupID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWalletResponse(wallet))
}
