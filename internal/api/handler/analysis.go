package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leafsense/leafsense_server/internal/api/middleware"
	"github.com/leafsense/leafsense_server/internal/model/dto"
	"github.com/leafsense/leafsense_server/internal/pkg/response"
	"github.com/leafsense/leafsense_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Submit 提交叶片图片进行分析
// POST /api/v1/analyses (multipart/form-data: crop_type, images)
func (h *AnalysisHandler) Submit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	cropType := c.PostForm("crop_type")

	form, err := c.MultipartForm()
	if err != nil {
		response.ParamError(c, "请使用 multipart/form-data 上传图片")
		return
	}

	files := form.File["images"]
	images := make([]*service.UploadedImage, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			response.ParamError(c, "读取上传文件失败")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			response.ParamError(c, "读取上传文件失败")
			return
		}
		images = append(images, &service.UploadedImage{
			Name: fh.Filename,
			Data: data,
		})
	}

	result, err := h.analysisService.Submit(c.Request.Context(), userID, cropType, images)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCropType),
			errors.Is(err, service.ErrNoImages),
			errors.Is(err, service.ErrTooManyImages),
			errors.Is(err, service.ErrNoValidImages):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "分析完成", result)
}

// List 获取分析历史
// GET /api/v1/analyses
func (h *AnalysisHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := &dto.HistoryFilter{
		CropType: c.Query("crop_type"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		From:     c.Query("from"),
		To:       c.Query("to"),
		Page:     page,
		PageSize: pageSize,
	}

	items, total, err := h.analysisService.List(userID, filter)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, filter.Page, filter.PageSize, items)
}

// Get 获取分析详情
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	result, err := h.analysisService.GetByID(userID, analysisID, middleware.IsAdmin(c))
	if err != nil {
		switch err {
		case service.ErrAnalysisNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, result)
}

// Delete 删除分析
// DELETE /api/v1/analyses/:id
func (h *AnalysisHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	if err := h.analysisService.Delete(userID, analysisID); err != nil {
		switch err {
		case service.ErrAnalysisNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrAnalysisPermission:
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// RequestRecommendation 为已完成的分析追加生成建议（异步）
// POST /api/v1/analyses/:id/recommendations
func (h *AnalysisHandler) RequestRecommendation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	if err := h.analysisService.RequestRecommendation(c.Request.Context(), userID, analysisID); err != nil {
		switch err {
		case service.ErrAnalysisNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrAnalysisPermission:
			response.PermissionError(c, err.Error())
		case service.ErrAnalysisNotComplete:
			response.InvalidStateError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "建议生成任务已提交", nil)
}
