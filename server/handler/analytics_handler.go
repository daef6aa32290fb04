package handler

import (
	"errors"
	"net/http"
	"strings"

	"deeptrace-backend-controller/domain/analytics"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/server/common"
	"github.com/gin-gonic/gin"
)

func GetAnalytics(ctx *gin.Context) {
	handler := getAnalyticsHandler{
		ctx: ctx,
	}

	handler.checkParam()

	resp, err := handler.produce()
	if errors.Is(err, analytics.ErrInvalidDate) {
		logging.Default().WithError(err).Warnf("parse req error: %s", err.Error())
		ctx.JSON(http.StatusBadRequest, common.MakeBadParamResp(err.Error()))
		return
	}
	if err != nil {
		logging.Default().WithError(err).Errorf("produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(resp))
}

type getAnalyticsHandler struct {
	ctx *gin.Context

	// params
	filter analytics.Filter
}

type getAnalyticsResp struct {
	*analytics.Bundle
	Overview   *analytics.Overview     `json:"overview"`
	TopSenders []analytics.SenderCount `json:"top_senders"`
	Trend      []analytics.TrendPoint  `json:"trend"`
	Graph      *analytics.Graph        `json:"graph"`
}

func (h *getAnalyticsHandler) checkParam() {
	h.filter = analytics.Filter{
		Org:     strings.TrimSpace(h.ctx.Query("org")),
		Date:    strings.TrimSpace(h.ctx.Query("date")),
		Keyword: strings.TrimSpace(h.ctx.Query("keyword")),
	}
}

func (h *getAnalyticsHandler) produce() (*getAnalyticsResp, error) {
	bundle, err := analytics.Analytics(h.ctx.Request.Context(), h.filter)
	if err != nil {
		return nil, err
	}

	return &getAnalyticsResp{
		Bundle:     bundle,
		Overview:   analytics.BuildOverview(bundle),
		TopSenders: analytics.TopSenders(bundle, analytics.DefaultTopSenders),
		Trend:      analytics.DailyTrend(bundle, analytics.Location()),
		Graph:      analytics.BuildGraph(bundle, analytics.DefaultGraphClues),
	}, nil
}
