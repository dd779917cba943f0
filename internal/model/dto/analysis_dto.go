package dto

// AnalysisResult 提交分析后的完整结果
type AnalysisResult struct {
	AnalysisID        int64                 `json:"analysis_id"`
	CropType          string                `json:"crop_type"`
	Disease           string                `json:"disease"`
	Confidence        string                `json:"confidence"` // 百分比字符串，如 "93%"
	Severity          string                `json:"severity"`
	Status            string                `json:"status"`
	ErrorMessage      string                `json:"error_message,omitempty"`
	AverageConfidence float64               `json:"average_confidence"`
	AverageSeverity   string                `json:"average_severity"`
	Results           []*ImageResultItem    `json:"results"`
	Recommendations   []*RecommendationItem `json:"recommendations"`
	RejectedImages    []*RejectedImageItem  `json:"rejected_images,omitempty"`
	CreatedAt         string                `json:"created_at"`
}

// RejectedImageItem 校验被拒的图片及原因
type RejectedImageItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ImageResultItem 单张图片的推理结果
type ImageResultItem struct {
	ID         int64   `json:"id"`
	ImageName  string  `json:"image_name"`
	ImageURL   string  `json:"image_url,omitempty"`
	Disease    string  `json:"disease"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// RecommendationItem 建议条目
type RecommendationItem struct {
	ID            int64  `json:"id"`
	AnalysisID    int64  `json:"analysis_id"`
	GeneratedBy   string `json:"generated_by"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	AdminFeedback string `json:"admin_feedback,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// AnalysisListItem 历史列表项
type AnalysisListItem struct {
	ID                int64   `json:"id"`
	CropType          string  `json:"crop_type"`
	AverageConfidence float64 `json:"average_confidence"`
	AverageSeverity   string  `json:"average_severity"`
	Status            string  `json:"status"`
	ImageCount        int     `json:"image_count"`
	CreatedAt         string  `json:"created_at"`
}

// HistoryFilter 历史查询过滤条件
type HistoryFilter struct {
	CropType string
	Status   string
	Search   string
	From     string
	To       string
	Page     int
	PageSize int
}

// PendingRecommendationItem 待审核建议（含分析上下文）
type PendingRecommendationItem struct {
	RecommendationItem
	CropType        string  `json:"crop_type"`
	AverageSeverity string  `json:"average_severity"`
	Confidence      float64 `json:"average_confidence"`
	Username        string  `json:"username,omitempty"`
}

// ReviewRequest 审核请求
type ReviewRequest struct {
	Action   string `json:"action" binding:"required,oneof=approve reject"`
	Feedback string `json:"feedback,omitempty" binding:"omitempty,max=2000"`
}

// AdminRecommendationRequest 管理员手工建议
type AdminRecommendationRequest struct {
	Content string `json:"content" binding:"required,max=10000"`
}
