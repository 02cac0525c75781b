package common

type GrContextKey string

const (
	ContextLogger       GrContextKey = "gr.logger"
	ContextAction       GrContextKey = "gr.action"
	ContextRequest      GrContextKey = "gr.request"
	ContextRequestId    GrContextKey = "gr.request_id"
	ContextServerConfig GrContextKey = "gr.server_config"
	ContextStatusCode   GrContextKey = "gr.status_code"
	ContextStartTime    GrContextKey = "gr.start_time"
)
