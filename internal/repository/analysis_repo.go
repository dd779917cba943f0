package repository

import (
	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/internal/model"
	"github.com/leafsense/leafsense_server/internal/model/dto"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(analysis *model.Analysis) error {
	return r.db.Create(analysis).Error
}

func (r *AnalysisRepository) GetByID(id int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetByIDWithDetails 取分析及其图片结果和建议，用于详情页
func (r *AnalysisRepository) GetByIDWithDetails(id int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.
		Preload("Results").
		Preload("Recommendations", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) Update(analysis *model.Analysis) error {
	return r.db.Save(analysis).Error
}

func (r *AnalysisRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Analysis{}).Where("id = ?", id).Updates(fields).Error
}

func (r *AnalysisRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.Analysis{}).Where("id = ?", id).Update("status", status).Error
}

func (r *AnalysisRepository) Delete(id int64) error {
	return r.db.Delete(&model.Analysis{}, id).Error
}

// CreateImageResult 保存单张图片的推理结果
func (r *AnalysisRepository) CreateImageResult(result *model.ImageResult) error {
	return r.db.Create(result).Error
}

// CreateImageResults 批量保存图片结果
func (r *AnalysisRepository) CreateImageResults(results []*model.ImageResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.db.Create(results).Error
}

func (r *AnalysisRepository) ListResultsByAnalysisID(analysisID int64) ([]*model.ImageResult, error) {
	var results []*model.ImageResult
	err := r.db.Where("analysis_id = ?", analysisID).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListByUserID 按过滤条件分页查询用户的分析历史
func (r *AnalysisRepository) ListByUserID(userID int64, filter *dto.HistoryFilter) ([]*model.Analysis, int64, error) {
	var analyses []*model.Analysis
	var total int64

	query := r.db.Model(&model.Analysis{}).Where("user_id = ?", userID)

	if filter.CropType != "" {
		query = query.Where("crop_type = ?", filter.CropType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		// 关键字同时匹配作物和图片结果中检出的病害
		like := "%" + filter.Search + "%"
		diseased := r.db.Model(&model.ImageResult{}).
			Select("analysis_id").
			Where("disease_detected LIKE ?", like)
		query = query.Where("crop_type LIKE ? OR id IN (?)", like, diseased)
	}
	if filter.From != "" {
		query = query.Where("created_at >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("created_at <= ?", filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Preload("Results").Order("created_at DESC").
		Offset(offset).Limit(filter.PageSize).Find(&analyses).Error; err != nil {
		return nil, 0, err
	}

	return analyses, total, nil
}
