package repository

import (
	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/internal/model"
)

type RecommendationRepository struct {
	db *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

func (r *RecommendationRepository) Create(rec *model.Recommendation) error {
	return r.db.Create(rec).Error
}

func (r *RecommendationRepository) GetByID(id int64) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := r.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByIDWithAnalysis 取建议及其所属分析（含提交用户），审核页需要上下文
func (r *RecommendationRepository) GetByIDWithAnalysis(id int64) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := r.db.Preload("Analysis").Preload("Analysis.User").
		Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListPending 分页查询待审核的建议
func (r *RecommendationRepository) ListPending(page, pageSize int) ([]*model.Recommendation, int64, error) {
	var recs []*model.Recommendation
	var total int64

	query := r.db.Model(&model.Recommendation{}).Where("status = ?", model.RecommendationPending)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Preload("Analysis").Preload("Analysis.User").
		Order("created_at ASC").Offset(offset).Limit(pageSize).Find(&recs).Error; err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}

// UpdateStatusIf 仅当建议处于 fromStatus 时更新为 toStatus，返回是否生效。
// 条件更新保证并发审核时恰好一个操作成功。
func (r *RecommendationRepository) UpdateStatusIf(id int64, fromStatus, toStatus, feedback string) (bool, error) {
	result := r.db.Model(&model.Recommendation{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]interface{}{
			"status":         toStatus,
			"admin_feedback": feedback,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *RecommendationRepository) Update(rec *model.Recommendation) error {
	return r.db.Save(rec).Error
}

func (r *RecommendationRepository) Delete(id int64) error {
	return r.db.Delete(&model.Recommendation{}, id).Error
}
