package handler

import (
	"errors"
	"net/http"

	"deeptrace-backend-controller/domain/analytics"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/server/common"
	"deeptrace-backend-controller/utils"
	"github.com/gin-gonic/gin"
)

func GetNodeDetail(ctx *gin.Context) {
	handler := getNodeDetailHandler{
		ctx: ctx,
	}

	if err := handler.checkParam(); err != nil {
		logging.Default().WithError(err).Warnf("parse req error: %s", err.Error())
		ctx.JSON(http.StatusBadRequest, common.MakeBadParamResp(err.Error()))
		return
	}

	resp, err := handler.produce()
	if errors.Is(err, analytics.ErrNodeNotFound) {
		ctx.JSON(http.StatusNotFound, common.MakeNotFoundResp(err.Error()))
		return
	}
	if err != nil {
		logging.Default().WithError(err).Errorf("produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(resp))
}

type getNodeDetailHandler struct {
	ctx *gin.Context

	// params
	ref analytics.NodeRef
}

func (h *getNodeDetailHandler) checkParam() error {
	id := h.ctx.Query("id")

	if len(id) == 0 {
		return utils.WrapError(common.ErrRequestParamEmpty, "query 'id' is empty")
	}

	ref, err := analytics.ParseNodeRef(id)
	if err != nil {
		return utils.WrapError(common.ErrRequestParamInvalid, err.Error())
	}

	h.ref = ref
	return nil
}

func (h *getNodeDetailHandler) produce() (*analytics.NodeDetail, error) {
	return analytics.Detail(h.ctx.Request.Context(), h.ref)
}
