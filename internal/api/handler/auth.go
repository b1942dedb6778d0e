package handler

import (
	"context"
	"net/http"

	"github.com/iconidentify/vidgrab/internal/credentials"
)

// CredentialStatus reports whether a privileged-host credential is stored.
type CredentialStatus interface {
	Status(ctx context.Context) credentials.Status
}

// AuthHandler exposes the credential store status.
type AuthHandler struct {
	creds CredentialStatus
}

// NewAuthHandler creates a new auth handler. creds may be nil when no
// credential store is configured.
func NewAuthHandler(creds CredentialStatus) *AuthHandler {
	return &AuthHandler{creds: creds}
}

// Status handles GET /video/auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.creds == nil {
		writeJSON(w, http.StatusOK, credentials.Status{})
		return
	}
	writeJSON(w, http.StatusOK, h.creds.Status(r.Context()))
}
