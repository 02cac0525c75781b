package _routers

import (
	"crypto/subtle"
	"net/http"

	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/util"
	"github.com/sirupsen/logrus"
)

type GeneratorWithCallerFn = func(r *http.Request, ctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{}

func isOwnerToken(token string) bool {
	cfg := config.Get().SharedAuth
	if !cfg.Enabled || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) == 1
}

// OptionalOwnerToken serves both audiences: the gallery owner (shared secret
// token) gets the detailed view, clients following their order link get the
// public one.
func OptionalOwnerToken(generator GeneratorWithCallerFn) GeneratorFn {
	return func(r *http.Request, ctx rcontext.RequestContext) interface{} {
		token := util.GetAccessTokenFromRequest(r)
		owner := isOwnerToken(token)
		if owner {
			ctx = ctx.LogWithFields(logrus.Fields{"isOwner": true})
		}
		return generator(r, ctx, _apimeta.CallerInfo{IsOwner: owner, Token: token})
	}
}

// RequireOwnerToken guards the endpoints only the photographer may hit.
func RequireOwnerToken(generator GeneratorWithCallerFn) GeneratorFn {
	return func(r *http.Request, ctx rcontext.RequestContext) interface{} {
		token := util.GetAccessTokenFromRequest(r)
		if token == "" {
			return _responses.MissingToken()
		}
		if !isOwnerToken(token) {
			return _responses.AuthFailed()
		}
		ctx = ctx.LogWithFields(logrus.Fields{"isOwner": true})
		return generator(r, ctx, _apimeta.CallerInfo{IsOwner: true, Token: token})
	}
}
