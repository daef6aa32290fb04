package handler

import (
	"net/http"

	"deeptrace-backend-controller/domain/analytics"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/server/common"
	"github.com/gin-gonic/gin"
)

func ListOrgs(ctx *gin.Context) {
	orgs, err := analytics.Organizations(ctx.Request.Context())
	if err != nil {
		logging.Default().WithError(err).Errorf("ListOrgs produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(orgs))
}

// ListDates 可选参数 org 限定机构。
func ListDates(ctx *gin.Context) {
	days, err := analytics.Dates(ctx.Request.Context(), ctx.Query("org"))
	if err != nil {
		logging.Default().WithError(err).Errorf("ListDates produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(days))
}

func GetStatus(ctx *gin.Context) {
	status, err := analytics.Status(ctx.Request.Context())
	if err != nil {
		logging.Default().WithError(err).Errorf("GetStatus produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(status))
}
