package common

import (
	"crypto/subtle"
	"net/http"
	"time"

	"deeptrace-backend-controller/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestContextKeyRequestID = "request_id"
	HeaderRequestID            = "X-Request-Id"
	HeaderAdminToken           = "X-Admin-Token"
)

// LogRequest 为每个请求分配 request id（沿用客户端传入的值），并在请求结束后记录耗时与状态码。
func LogRequest(ctx *gin.Context) {
	requestID := ctx.GetHeader(HeaderRequestID)
	if len(requestID) == 0 {
		requestID = uuid.NewString()
	}
	ctx.Set(RequestContextKeyRequestID, requestID)
	ctx.Header(HeaderRequestID, requestID)

	start := time.Now()
	ctx.Next()

	logging.Default().WithField("request_id", requestID).Infof("%s %s -> %d (%s)",
		ctx.Request.Method, ctx.Request.URL.RequestURI(), ctx.Writer.Status(), time.Since(start))
}

func RequestID(ctx *gin.Context) string {
	return ctx.GetString(RequestContextKeyRequestID)
}

// RejectWrongAdminToken 校验管理接口的令牌，token 为空或调试模式下不校验。
func RejectWrongAdminToken(token string, debugMode bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if debugMode || len(token) == 0 {
			ctx.Next()
			return
		}

		given := ctx.GetHeader(HeaderAdminToken)
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			logging.Default().WithField("request_id", RequestID(ctx)).
				Warnf("reject %s: %s", ctx.Request.URL.Path, ErrAdminTokenMismatch)
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, MakeBadParamResp(ErrAdminTokenMismatch.Error()))
			return
		}

		ctx.Next()
	}
}
