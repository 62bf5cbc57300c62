package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped missing index", fmt.Errorf("opening: %w", ErrIndexMissing), http.StatusServiceUnavailable},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"empty corpus", fmt.Errorf("build: %w", ErrEmptyCorpus), http.StatusBadRequest},
		{"not found", ErrDocumentNotFound, http.StatusNotFound},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrIndexMissing, http.StatusServiceUnavailable, "file %s", "title_index.json")
	assert.ErrorIs(t, err, ErrIndexMissing)
	assert.Equal(t, "index file missing: file title_index.json", err.Error())
}
