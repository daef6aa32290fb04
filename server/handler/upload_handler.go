package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"deeptrace-backend-controller/domain/ingest"
	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/server/common"
	"deeptrace-backend-controller/utils"
	"github.com/gin-gonic/gin"
)

func UploadFile(ctx *gin.Context) {
	handler := uploadFileHandler{
		ctx: ctx,
	}

	if err := handler.checkParam(); err != nil {
		logging.NewLogger().WithError(err).Errorf("parse req error: %s", err.Error())
		ctx.JSON(http.StatusBadRequest, common.MakeBadParamResp(err.Error()))
		return
	}

	resp, err := handler.produce()
	if errors.Is(err, ingest.ErrUnsupportedFormat) || errors.Is(err, ingest.ErrEmptyUpload) {
		ctx.JSON(http.StatusBadRequest, common.MakeBadParamResp(err.Error()))
		return
	}
	if err != nil {
		logging.NewLogger().WithError(err).Errorf("produce error: %s", err.Error())
		ctx.JSON(http.StatusInternalServerError, common.MakeUnknownErrorResp())
		return
	}

	ctx.JSON(http.StatusOK, common.MakeSuccessResp(resp))
}

type uploadFileHandler struct {
	ctx *gin.Context

	// params
	fileName   string
	fileHeader *multipart.FileHeader
}

type uploadFileResp struct {
	File     string `json:"file"`
	Inserted int    `json:"inserted"`
}

func (h *uploadFileHandler) checkParam() error {
	contentType := h.ctx.GetHeader("Content-Type")
	if !strings.Contains(contentType, "multipart/form-data") {
		return utils.WrapErrorf(common.ErrContentTypeNotMultipartFormData,
			"actual Content-Type = [%s] not 'multipart/form-data'", contentType)
	}

	header, err := h.ctx.FormFile("file")
	if err != nil {
		return utils.WrapError(common.ErrRequestParamEmpty, "read multipart file 'file' fail: "+err.Error())
	}

	h.fileName = header.Filename
	h.fileHeader = header
	return nil
}

func (h *uploadFileHandler) produce() (*uploadFileResp, error) {
	file, err := h.fileHeader.Open()
	if err != nil {
		return nil, utils.WrapError(err, "open multipart file fail")
	}
	defer file.Close()

	inserted, err := ingest.Ingest(h.ctx.Request.Context(), h.fileName, file)
	if err != nil {
		return nil, utils.WrapErrorf(err, "ingest file [%s] fail", h.fileName)
	}

	return &uploadFileResp{
		File:     h.fileName,
		Inserted: inserted,
	}, nil
}
