package v1

import (
	"net/http"

	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/common/version"
)

type HealthzResponse struct {
	OK bool `json:"ok"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
}

func GetHealthz(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return &HealthzResponse{OK: true}
}

func GetVersion(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	return &VersionResponse{Version: version.Version, GitCommit: version.GitCommit}
}
