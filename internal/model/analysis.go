package model

import (
	"time"
)

// 严重程度，low < medium < high
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Analysis 状态
const (
	AnalysisPending    = "pending"
	AnalysisProcessing = "processing"
	AnalysisCompleted  = "completed"
	AnalysisFailed     = "failed"
)

// 推理结果的特殊标签
const (
	LabelHealthy = "healthy"
	LabelUnknown = "unknown"
	LabelError   = "error"
)

var severityRank = map[string]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// SeverityRank 返回严重程度的序号，未知值按 low 处理
func SeverityRank(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return severityRank[SeverityLow]
}

// MaxSeverity 返回两个严重程度中较高的一个
func MaxSeverity(a, b string) string {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}

type Analysis struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	UserID            int64     `gorm:"not null;index" json:"user_id"`
	CropType          string    `gorm:"size:50;not null" json:"crop_type"`
	AverageConfidence float64   `json:"average_confidence"`
	AverageSeverity   string    `gorm:"size:10;default:low" json:"average_severity"` // low, medium, high
	Status            string    `gorm:"size:10;default:pending;index" json:"status"` // pending, processing, completed, failed
	ErrorMessage      string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`

	// 关联，Analysis 独占所有权
	User            *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Results         []ImageResult    `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
	Recommendations []Recommendation `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE" json:"recommendations,omitempty"`
}

func (Analysis) TableName() string {
	return "analyses"
}

type ImageResult struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	AnalysisID      int64     `gorm:"not null;index" json:"analysis_id"`
	ImageName       string    `gorm:"size:255" json:"image_name"`
	ImageURL        string    `gorm:"size:500" json:"image_url"`
	DiseaseDetected string    `gorm:"size:100;not null" json:"disease_detected"` // 病害名 或 healthy/unknown/error
	ConfidenceScore float64   `json:"confidence_score"`
	Severity        string    `gorm:"size:10;not null" json:"severity"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ImageResult) TableName() string {
	return "image_results"
}

// IsHealthy 是否健康叶片
func (r *ImageResult) IsHealthy() bool {
	return r.DiseaseDetected == LabelHealthy
}

// Recommendation 来源与状态
const (
	GeneratedByAI    = "ai"
	GeneratedByAdmin = "admin"

	RecommendationPending  = "pending"
	RecommendationApproved = "approved"
	RecommendationRejected = "rejected"

	SourceGenerated = "generated"
	SourceFallback  = "fallback"
)

type Recommendation struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	AnalysisID    int64     `gorm:"not null;index" json:"analysis_id"`
	GeneratedBy   string    `gorm:"size:10;default:ai" json:"generated_by"` // ai, admin
	Content       string    `gorm:"type:text;not null" json:"content"`
	Status        string    `gorm:"size:10;default:pending;index" json:"status"` // pending, approved, rejected
	AdminFeedback string    `gorm:"type:text" json:"admin_feedback,omitempty"`
	Source        string    `gorm:"size:20;default:generated" json:"-"` // generated, fallback（内部区分兜底内容）
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Analysis *Analysis `gorm:"foreignKey:AnalysisID" json:"analysis,omitempty"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}

// IsTerminal 是否处于终态（approved/rejected 不可再变更）
func (r *Recommendation) IsTerminal() bool {
	return r.Status == RecommendationApproved || r.Status == RecommendationRejected
}
