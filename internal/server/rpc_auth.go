package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// codeUnauthorized is the JSON-RPC "invalid request" code, used for a
// missing or wrong bearer secret.
const codeUnauthorized = -32600

// requireToken lets a request through only with "Authorization: Bearer
// <secret>". Rejections are JSON-RPC error objects with HTTP 401. An empty
// secret rejects everything.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if validToken(secret, r.Header.Get("Authorization")) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"error":   map[string]any{"code": codeUnauthorized, "message": "Unauthorized"},
			"id":      nil,
		})
	})
}

func validToken(secret, header string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if secret == "" || !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
