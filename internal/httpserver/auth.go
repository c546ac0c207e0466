package httpserver

import (
	"net/http"
	"strings"
)

// authOK checks the shared-password gate. An empty expected password disables
// the gate. The token may arrive as a ?password= query parameter, an
// X-Auth-Token header, or an Authorization bearer token.
func authOK(r *http.Request, expected string) bool {
	if expected == "" {
		return true
	}
	if r == nil {
		return false
	}
	if r.URL.Query().Get("password") == expected {
		return true
	}
	if r.Header.Get("X-Auth-Token") == expected {
		return true
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:] == expected
	}
	return false
}
