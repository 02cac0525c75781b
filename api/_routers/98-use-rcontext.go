package _routers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pixelvault/gallery-repo/api/_responses"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/pixelvault/gallery-repo/common/rcontext"
)

type GeneratorFn = func(r *http.Request, ctx rcontext.RequestContext) interface{}

type RContextRouter struct {
	generatorFn GeneratorFn
	next        http.Handler
}

func NewRContextRouter(generatorFn GeneratorFn, next http.Handler) *RContextRouter {
	return &RContextRouter{generatorFn: generatorFn, next: next}
}

func (c *RContextRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := GetLogger(r)
	rctx := rcontext.RequestContext{
		Context: r.Context(),
		Log:     log,
		Config:  config.Get(),
		Request: r,
	}

	var res interface{}
	res = c.generatorFn(r, rctx)
	if res == nil {
		res = &_responses.EmptyResponse{}
	}

	proposedStatusCode := http.StatusOK
	if accepted, isAccepted := res.(*_responses.AcceptedResponse); isAccepted {
		proposedStatusCode = http.StatusAccepted
		res = accepted.Payload
	}

	headers := w.Header()

	var stream io.ReadCloser
	expectedBytes := int64(0)
	contentType := "application/json"
	if downloadRes, isDownload := res.(*_responses.DownloadResponse); isDownload {
		log.Infof("Replying with result: %T (%d bytes)", res, downloadRes.SizeBytes)
		contentType = downloadRes.ContentType
		expectedBytes = downloadRes.SizeBytes
		stream = downloadRes.Data
		headers.Set("Content-Disposition", "attachment; filename="+url.QueryEscape(downloadRes.Filename))
	} else {
		log.Infof("Replying with result: %T %+v", res, res)
	}

	if errRes, isError := res.(_responses.ErrorResponse); isError {
		res = &errRes // just fix it
	}
	if errRes, isError := res.(*_responses.ErrorResponse); isError && proposedStatusCode == http.StatusOK {
		switch errRes.Code {
		case common.ErrCodeMissingToken:
			proposedStatusCode = http.StatusUnauthorized
		case common.ErrCodeUnknownToken:
			proposedStatusCode = http.StatusUnauthorized
		case common.ErrCodeNotFound:
			proposedStatusCode = http.StatusNotFound
		case common.ErrCodeBadRequest:
			proposedStatusCode = http.StatusBadRequest
		case common.ErrCodeMethodNotAllowed:
			proposedStatusCode = http.StatusMethodNotAllowed
		case common.ErrCodeForbidden:
			proposedStatusCode = http.StatusForbidden
		case common.ErrCodeConflict:
			proposedStatusCode = http.StatusConflict
		case common.ErrCodeRetryExhausted:
			proposedStatusCode = http.StatusConflict
		default: // Treat as unknown (a generic server error)
			proposedStatusCode = http.StatusInternalServerError
		}
	}

	if stream == nil {
		b, err := json.Marshal(res)
		if err != nil {
			panic(err) // blow up this request
		}
		stream = io.NopCloser(bytes.NewReader(b))
		expectedBytes = int64(len(b))
	}

	headers.Set("Content-Type", contentType)
	if expectedBytes > 0 {
		headers.Set("Content-Length", strconv.FormatInt(expectedBytes, 10))
	}

	r = writeStatusCode(w, r, proposedStatusCode)

	defer stream.Close()
	written, err := io.Copy(w, stream)
	if err != nil {
		panic(err) // blow up this request
	}
	if expectedBytes > 0 && written != expectedBytes {
		panic(errors.New(fmt.Sprintf("mismatch transfer size: %d expected, %d sent", expectedBytes, written)))
	}

	if c.next != nil {
		c.next.ServeHTTP(w, r)
	}
}

func GetStatusCode(r *http.Request) int {
	x, ok := r.Context().Value(common.ContextStatusCode).(int)
	if !ok {
		return http.StatusOK
	}
	return x
}

func writeStatusCode(w http.ResponseWriter, r *http.Request, statusCode int) *http.Request {
	w.WriteHeader(statusCode)
	return r.WithContext(context.WithValue(r.Context(), common.ContextStatusCode, statusCode))
}
