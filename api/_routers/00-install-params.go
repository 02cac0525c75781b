package _routers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// GetParam reads a path parameter installed by httprouter. Empty string when
// the route has no such parameter.
func GetParam(name string, r *http.Request) string {
	params := httprouter.ParamsFromContext(r.Context())
	if params == nil {
		return ""
	}
	return params.ByName(name)
}
