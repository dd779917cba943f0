package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	nano := time.Now().UnixNano()
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", nano%1000000),
		Email:        fmt.Sprintf("test_%d@example.com", nano),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
		Role:         model.RoleFarmer,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithRole 设置角色
func WithRole(role string) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// WithPasswordHash 设置密码哈希
func WithPasswordHash(hash string) func(*model.User) {
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// TestAnalysis 创建测试分析
func TestAnalysis(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Analysis)) *model.Analysis {
	t.Helper()

	analysis := &model.Analysis{
		UserID:          userID,
		CropType:        "tomato",
		Status:          model.AnalysisCompleted,
		AverageSeverity: model.SeverityLow,
	}

	for _, opt := range opts {
		opt(analysis)
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("Failed to create test analysis: %v", err)
	}

	return analysis
}

// WithCropType 设置作物类型
func WithCropType(cropType string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.CropType = cropType
	}
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.Status = status
	}
}

// WithAverages 设置平均置信度与严重程度
func WithAverages(confidence float64, severity string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.AverageConfidence = confidence
		a.AverageSeverity = severity
	}
}

// TestImageResult 创建测试图片结果
func TestImageResult(t *testing.T, db *gorm.DB, analysisID int64, opts ...func(*model.ImageResult)) *model.ImageResult {
	t.Helper()

	result := &model.ImageResult{
		AnalysisID:      analysisID,
		ImageName:       "leaf.jpg",
		DiseaseDetected: "Late_blight",
		ConfidenceScore: 0.9,
		Severity:        model.SeverityHigh,
	}

	for _, opt := range opts {
		opt(result)
	}

	if err := db.Create(result).Error; err != nil {
		t.Fatalf("Failed to create test image result: %v", err)
	}

	return result
}

// WithDisease 设置检出病害与置信度
func WithDisease(disease string, confidence float64, severity string) func(*model.ImageResult) {
	return func(r *model.ImageResult) {
		r.DiseaseDetected = disease
		r.ConfidenceScore = confidence
		r.Severity = severity
	}
}

// WithImageName 设置图片名
func WithImageName(name string) func(*model.ImageResult) {
	return func(r *model.ImageResult) {
		r.ImageName = name
	}
}

// TestRecommendation 创建测试建议
func TestRecommendation(t *testing.T, db *gorm.DB, analysisID int64, opts ...func(*model.Recommendation)) *model.Recommendation {
	t.Helper()

	rec := &model.Recommendation{
		AnalysisID:  analysisID,
		GeneratedBy: model.GeneratedByAI,
		Content:     "及时清除病叶，保持通风。",
		Status:      model.RecommendationPending,
		Source:      model.SourceGenerated,
	}

	for _, opt := range opts {
		opt(rec)
	}

	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create test recommendation: %v", err)
	}

	return rec
}

// WithRecommendationStatus 设置审核状态
func WithRecommendationStatus(status string) func(*model.Recommendation) {
	return func(r *model.Recommendation) {
		r.Status = status
	}
}

// WithContent 设置建议内容
func WithContent(content string) func(*model.Recommendation) {
	return func(r *model.Recommendation) {
		r.Content = content
	}
}

// WithGeneratedBy 设置生成来源
func WithGeneratedBy(generatedBy string) func(*model.Recommendation) {
	return func(r *model.Recommendation) {
		r.GeneratedBy = generatedBy
	}
}

// WithSource 设置内容来源（模型生成或兜底模板）
func WithSource(source string) func(*model.Recommendation) {
	return func(r *model.Recommendation) {
		r.Source = source
	}
}
