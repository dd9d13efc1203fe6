// Package httpx is a convenience wrapper around net/http that allows
// handlers to return errors.
// see https://blog.questionable.services/article/http-handler-error-handling-revisited/ for more details.
package httpx

import (
	"errors"
	"net/http"

	"golang.org/x/exp/slog"
)

// Error is a convenience function for returning an error with an associated HTTP status code.
func Error(code int, err error) error {
	return &StatusError{code, err}
}

// StatusError represents an error with an associated HTTP status code.
type StatusError struct {
	Code int
	Err  error
}

// Allows StatusError to satisfy the error interface.
func (se *StatusError) Error() string {
	return se.Err.Error()
}

func (se *StatusError) Unwrap() error {
	return se.Err
}

// Returns our HTTP status code.
func (se *StatusError) Status() int {
	return se.Code
}

// StatusCode returns the HTTP status associated with err,
// http.StatusInternalServerError if there is none.
func StatusCode(err error) int {
	if se := new(StatusError); errors.As(err, &se) {
		return se.Status()
	}
	return http.StatusInternalServerError
}

// HandlerFunc adapts a function that returns an error to an http.HandlerFunc.
// Federation peers only look at the status code, so the body is the
// status text.
func HandlerFunc[E any](env *E, fn func(*E, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(env, w, r)
		if err == nil {
			return
		}
		code := StatusCode(err)
		log := slog.Default().With("method", r.Method, "path", r.URL.Path, "status", code)
		if code >= 500 {
			log.Error("http error", "error", err)
		} else {
			log.Info("http error", "error", err)
		}
		http.Error(w, http.StatusText(code), code)
	}
}
