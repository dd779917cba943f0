package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leafsense/leafsense_server/internal/model/dto"
	"github.com/leafsense/leafsense_server/internal/pkg/response"
	"github.com/leafsense/leafsense_server/internal/service"
)

type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

// ListPending 待审核建议队列
// GET /api/v1/admin/recommendations/pending
func (h *ReviewHandler) ListPending(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.reviewService.ListPending(page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Review 审核建议（批准/驳回）
// POST /api/v1/admin/recommendations/:id/review
func (h *ReviewHandler) Review(c *gin.Context) {
	recID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的建议ID")
		return
	}

	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.reviewService.Review(recID, &req)
	if err != nil {
		var conflict *service.StateConflictError
		switch {
		case errors.Is(err, service.ErrRecommendationNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrFeedbackRequired), errors.Is(err, service.ErrInvalidReviewAction):
			response.ParamError(c, err.Error())
		case errors.As(err, &conflict):
			// 冲突时把实际状态带回去，前端据此刷新
			response.ErrorWithData(c, response.CodeInvalidState, err.Error(), gin.H{
				"current_status": conflict.Current,
			})
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "审核完成", item)
}

// CreateManual 管理员手工撰写建议
// POST /api/v1/admin/analyses/:id/recommendations
func (h *ReviewHandler) CreateManual(c *gin.Context) {
	analysisID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的分析ID")
		return
	}

	var req dto.AdminRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.reviewService.CreateManual(analysisID, &req)
	if err != nil {
		switch err {
		case service.ErrAnalysisNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "建议已创建", item)
}
