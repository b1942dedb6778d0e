package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// Texts returned when the remote platform is blocking the engine.
const (
	infoBlockedError      = "YouTube is currently blocking automated access. This is a temporary restriction. Please try again later or try a different video URL."
	infoBlockedSuggestion = "You can try videos from other platforms like Vimeo, Dailymotion, or other supported sites."

	downloadBlockedError      = "YouTube is currently blocking automated access. This is a temporary restriction."
	downloadBlockedSuggestion = "Please try again in a few minutes, or try a different video URL from other platforms."
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// statusFor maps a domain error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSiteBlocking):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrArtifactNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// causeMessage returns the message of the error underneath any job context.
func causeMessage(err error) string {
	var je *domain.JobError
	if errors.As(err, &je) {
		err = je.Err
	}
	return domain.EngineMessage(err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// filenameParam returns the decoded {filename} route parameter. chi matches
// against RawPath when one is set, so only then is the value still escaped.
func filenameParam(r *http.Request) (string, bool) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return name, true
	}
	decoded, err := url.PathUnescape(name)
	return decoded, err == nil
}
