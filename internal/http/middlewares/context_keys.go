package middlewares

// gin context keys shared between middlewares and handlers.
const (
	CtxRequestID = "request_id"
	CtxUser      = "auth.user"
	CtxToken     = "auth.token"
	CtxUpload    = "upload.avatar"
)
