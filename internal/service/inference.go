package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
)

// Predictor 模型推理接口，生产实现为 modelserver.Client
type Predictor interface {
	Predict(ctx context.Context, image []byte) (label string, confidence float64, err error)
	Ping(ctx context.Context) error
}

// Classification 单张图片的推理结论
type Classification struct {
	Crop       string
	Disease    string // 病害名 或 healthy/unknown/error
	Confidence float64
	Severity   string
}

// InferenceService 封装模型调用：标签解析、严重程度分级、降级模式
type InferenceService struct {
	predictor Predictor
	cfg       *config.InferenceConfig
	degraded  bool
	warnOnce  sync.Once
}

// NewInferenceService 启动时探测模型服务，不可用则进入降级模式。
// 降级模式下所有图片返回 unknown，服务整体仍然可用。
func NewInferenceService(predictor Predictor, cfg *config.InferenceConfig) *InferenceService {
	s := &InferenceService{
		predictor: predictor,
		cfg:       cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	if err := predictor.Ping(ctx); err != nil {
		s.degraded = true
	}

	return s
}

// Degraded 是否处于降级模式
func (s *InferenceService) Degraded() bool {
	return s.degraded
}

// Classify 对单张图片做推理。模型异常不向上抛错，
// 返回 error 标签并计零分，由聚合阶段统一处理。
func (s *InferenceService) Classify(ctx context.Context, image []byte) *Classification {
	if s.degraded {
		s.warnOnce.Do(func() {
			log.Printf("WARNING: model server unavailable, running in degraded mode, all predictions return unknown")
		})
		return &Classification{
			Disease:  model.LabelUnknown,
			Severity: model.SeverityLow,
		}
	}

	label, confidence, err := s.predictor.Predict(ctx, image)
	if err != nil {
		log.Printf("predict failed: %v", err)
		return &Classification{
			Disease:  model.LabelError,
			Severity: model.SeverityLow,
		}
	}

	crop, disease := ParseLabel(label)
	return &Classification{
		Crop:       crop,
		Disease:    disease,
		Confidence: confidence,
		Severity:   s.severityFor(disease, confidence),
	}
}

// severityFor 按置信度分级；健康叶片恒为 low
func (s *InferenceService) severityFor(disease string, confidence float64) string {
	if disease == model.LabelHealthy {
		return model.SeverityLow
	}
	switch {
	case confidence > s.cfg.HighThreshold:
		return model.SeverityHigh
	case confidence >= s.cfg.LowThreshold:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// ParseLabel 拆解 PlantVillage 风格的类别名，如
// "Tomato___Late_blight" -> ("Tomato", "Late blight")，
// "Apple___healthy" -> ("Apple", "healthy")
func ParseLabel(label string) (crop, disease string) {
	parts := strings.SplitN(label, "___", 2)
	crop = strings.TrimSpace(strings.ReplaceAll(parts[0], "_", " "))
	if len(parts) < 2 {
		return crop, model.LabelUnknown
	}

	disease = strings.TrimSpace(strings.ReplaceAll(parts[1], "_", " "))
	if strings.EqualFold(disease, model.LabelHealthy) {
		return crop, model.LabelHealthy
	}
	return crop, disease
}
