package util

import (
	"net/http"
	"strings"
)

// GetAccessTokenFromRequest pulls the caller's token from the Authorization
// header, falling back to the access_token query parameter for clients that
// can't set headers (direct download links).
func GetAccessTokenFromRequest(request *http.Request) string {
	if header := request.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return ""
		}
		return token
	}
	return request.URL.Query().Get("access_token")
}
