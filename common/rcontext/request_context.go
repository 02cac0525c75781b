package rcontext

import (
	"context"
	"net/http"

	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/sirupsen/logrus"
)

func Initial() RequestContext {
	return RequestContext{
		Context: context.Background(),
		Log:     logrus.WithFields(logrus.Fields{"nocontext": true}),
		Config:  config.Get(),
		Request: nil,
	}.populate()
}

type RequestContext struct {
	context.Context

	// These are also stored on the context object itself
	Log     *logrus.Entry
	Config  *config.MainRepoConfig
	Request *http.Request
}

func (c RequestContext) populate() RequestContext {
	c.Context = context.WithValue(c.Context, common.ContextLogger, c.Log)
	c.Context = context.WithValue(c.Context, common.ContextServerConfig, c.Config)
	c.Context = context.WithValue(c.Context, common.ContextRequest, c.Request)
	return c
}

func (c RequestContext) ReplaceLogger(log *logrus.Entry) RequestContext {
	ctx := context.WithValue(c.Context, common.ContextLogger, log)
	return RequestContext{
		Context: ctx,
		Log:     log,
		Config:  c.Config,
		Request: c.Request,
	}
}

func (c RequestContext) LogWithFields(fields logrus.Fields) RequestContext {
	return c.ReplaceLogger(c.Log.WithFields(fields))
}

func (c RequestContext) ReplaceContext(ctx context.Context) RequestContext {
	c.Context = ctx
	return c.populate()
}

func ForRequest(r *http.Request) RequestContext {
	return RequestContext{
		Context: r.Context(),
		Log:     logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}),
		Config:  config.Get(),
		Request: r,
	}.populate()
}
