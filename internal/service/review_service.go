package service

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/internal/model"
	"github.com/leafsense/leafsense_server/internal/model/dto"
	"github.com/leafsense/leafsense_server/internal/repository"
)

var (
	ErrRecommendationNotFound = errors.New("建议不存在")
	ErrFeedbackRequired       = errors.New("驳回时必须填写审核意见")
	ErrInvalidReviewAction    = errors.New("无效的审核操作")
)

// StateConflictError 建议已处于终态，携带当前状态供调用方展示
type StateConflictError struct {
	Current string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("建议已审核，当前状态: %s", e.Current)
}

// ReviewService 管理员审核建议：批准、驳回、手工补充
type ReviewService struct {
	recRepo      *repository.RecommendationRepository
	analysisRepo *repository.AnalysisRepository
}

func NewReviewService(recRepo *repository.RecommendationRepository, analysisRepo *repository.AnalysisRepository) *ReviewService {
	return &ReviewService{
		recRepo:      recRepo,
		analysisRepo: analysisRepo,
	}
}

// ListPending 待审核队列，按提交时间先后排序
func (s *ReviewService) ListPending(page, pageSize int) ([]*dto.PendingRecommendationItem, int64, error) {
	recs, total, err := s.recRepo.ListPending(page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.PendingRecommendationItem, 0, len(recs))
	for _, rec := range recs {
		item := &dto.PendingRecommendationItem{
			RecommendationItem: *buildRecommendationItem(rec),
		}
		if rec.Analysis != nil {
			item.CropType = rec.Analysis.CropType
			item.AverageSeverity = rec.Analysis.AverageSeverity
			item.Confidence = rec.Analysis.AverageConfidence
			if rec.Analysis.User != nil {
				item.Username = rec.Analysis.User.Username
			}
		}
		items = append(items, item)
	}

	return items, total, nil
}

// Review 审核建议。pending 只能流转到 approved 或 rejected；
// 条件更新保证并发审核时恰好一个生效，失败方拿到实际状态。
func (s *ReviewService) Review(recID int64, req *dto.ReviewRequest) (*dto.RecommendationItem, error) {
	var toStatus string
	switch req.Action {
	case "approve":
		toStatus = model.RecommendationApproved
	case "reject":
		if strings.TrimSpace(req.Feedback) == "" {
			return nil, ErrFeedbackRequired
		}
		toStatus = model.RecommendationRejected
	default:
		return nil, ErrInvalidReviewAction
	}

	rec, err := s.recRepo.GetByID(recID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}

	if rec.IsTerminal() {
		return nil, &StateConflictError{Current: rec.Status}
	}

	ok, err := s.recRepo.UpdateStatusIf(recID, model.RecommendationPending, toStatus, req.Feedback)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 并发审核落败，读出实际状态
		current, err := s.recRepo.GetByID(recID)
		if err != nil {
			return nil, err
		}
		return nil, &StateConflictError{Current: current.Status}
	}

	updated, err := s.recRepo.GetByID(recID)
	if err != nil {
		return nil, err
	}
	return buildRecommendationItem(updated), nil
}

// CreateManual 管理员手工撰写建议，覆盖已驳回的 AI 建议。
// 新建议独立进入 pending，走同一套审核流程。
func (s *ReviewService) CreateManual(analysisID int64, req *dto.AdminRecommendationRequest) (*dto.RecommendationItem, error) {
	if _, err := s.analysisRepo.GetByID(analysisID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	rec := &model.Recommendation{
		AnalysisID:  analysisID,
		GeneratedBy: model.GeneratedByAdmin,
		Content:     req.Content,
		Status:      model.RecommendationPending,
		Source:      model.SourceGenerated,
	}
	if err := s.recRepo.Create(rec); err != nil {
		return nil, err
	}

	return buildRecommendationItem(rec), nil
}
