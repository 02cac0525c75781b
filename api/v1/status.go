package v1

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/pixelvault/gallery-repo/api/_apimeta"
	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/database"
)

type BuildErrorInfo struct {
	Message  string                 `json:"message"`
	Attempts int                    `json:"attempts"`
	CanRetry bool                   `json:"canRetry"`
	Details  []database.ErrorRecord `json:"details,omitempty"`
}

type ArtifactStatusResponse struct {
	Status            string          `json:"status"`
	ZipExists         bool            `json:"zipExists"`
	ZipSize           int64           `json:"zipSize,omitempty"`
	GeneratingSinceTs int64           `json:"generatingSinceTs,omitempty"`
	Error             *BuildErrorInfo `json:"error,omitempty"`
}

// ArtifactStatus is the poll endpoint. Guests get the bare status; the owner
// additionally sees attempt counts and per-attempt failure records.
func ArtifactStatus(r *http.Request, rctx rcontext.RequestContext, caller _apimeta.CallerInfo) interface{} {
	order, rctx, errRes := orderFromRequest(r, rctx)
	if errRes != nil {
		return errRes
	}
	t, errRes := artifactTypeFromRequest(r)
	if errRes != nil {
		return errRes
	}

	st, err := deps.Reporter.Status(rctx, order, t, caller.IsOwner)
	if err != nil {
		rctx.Log.Error("Unexpected error checking artifact status: ", err)
		sentry.CaptureException(err)
		return _responses.InternalServerError("unexpected error checking status")
	}

	res := &ArtifactStatusResponse{
		Status:            string(st.Status),
		ZipExists:         st.ZipExists,
		ZipSize:           st.ZipSize,
		GeneratingSinceTs: st.SinceMillis,
	}
	if st.Message != "" || st.Attempts > 0 {
		res.Error = &BuildErrorInfo{
			Message:  st.Message,
			Attempts: st.Attempts,
			CanRetry: st.CanRetry,
			Details:  st.Details,
		}
	}
	return res
}
