package api

import (
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func chiURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
