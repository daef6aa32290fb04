package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"deeptrace-backend-controller/domain/analysiscall"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/server/common"
	"deeptrace-backend-controller/utils"
	"github.com/gin-gonic/gin"
)

/*
Analyze 触发一次实体抽取。

启用消息队列时请求被投递后立即返回 202，否则同步执行并返回运行结果。
*/
func Analyze(ctx *gin.Context) {
	handler := analyzeHandler{
		ctx: ctx,
	}

	if err := handler.checkParam(); err != nil {
		logging.Default().WithError(err).Warnf("parse req error: %s", err.Error())
		ctx.JSON(http.StatusBadRequest, common.MakeBadParamResp(err.Error()))
		return
	}

	if analysiscall.Async() {
		if err := analysiscall.Request(handler.request); err != nil {
			logging.Default().WithError(err).Errorf("produce error: %s", err.Error())
			ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
			return
		}

		ctx.JSON(http.StatusAccepted, common.MakeSuccessResp(gin.H{
			"request_id": handler.request.RequestID,
			"queued":     true,
		}))
		return
	}

	// 客户端断开不中断抽取，已开始的运行总是处理完整个批次
	result, err := analysiscall.Analyze(context.WithoutCancel(ctx.Request.Context()), handler.request)
	if err != nil {
		logging.Default().WithError(err).Errorf("produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(result))
}

type analyzeHandler struct {
	ctx *gin.Context

	// params
	request analysiscall.RequestSchema
}

type analyzeReq struct {
	RetryFailed bool   `json:"retry_failed"`
	NotifyEmail string `json:"notify_email"`
}

// checkParam 请求体可以为空。
func (h *analyzeHandler) checkParam() error {
	var req analyzeReq
	if err := h.ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return utils.WrapError(common.ErrRequestParamInvalid, err.Error())
	}

	h.request = analysiscall.NewRequest(req.RetryFailed, req.NotifyEmail)
	h.request.RequestID = common.RequestID(h.ctx)
	return nil
}
