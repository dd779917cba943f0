package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
)

// Generator 文本生成接口，生产实现为 gemini.Client
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeneratedRecommendation 生成的建议内容及来源
type GeneratedRecommendation struct {
	Content string
	Source  string // generated 或 fallback
}

// RecommendationService 生成防治建议。外部模型超时或失败时
// 退回到按严重程度预置的模板，保证建议始终可用。
type RecommendationService struct {
	generator Generator
	cfg       *config.RecommendationConfig
}

func NewRecommendationService(generator Generator, cfg *config.RecommendationConfig) *RecommendationService {
	return &RecommendationService{
		generator: generator,
		cfg:       cfg,
	}
}

// Generate 为分析结论生成建议，永不返回错误
func (s *RecommendationService) Generate(ctx context.Context, cropType, disease, severity string, confidence float64) *GeneratedRecommendation {
	if s.generator != nil && s.cfg.APIKey != "" {
		genCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSeconds)*time.Second)
		defer cancel()

		content, err := s.generator.GenerateContent(genCtx, buildPrompt(cropType, disease, severity, confidence))
		if err == nil && content != "" {
			return &GeneratedRecommendation{
				Content: content,
				Source:  model.SourceGenerated,
			}
		}
		log.Printf("recommendation generation failed, using fallback: %v", err)
	}

	return &GeneratedRecommendation{
		Content: fallbackContent(cropType, disease, severity),
		Source:  model.SourceFallback,
	}
}

func buildPrompt(cropType, disease, severity string, confidence float64) string {
	var b strings.Builder
	b.WriteString("你是一名农业植保专家，请针对下面的叶片病害检测结果给出实用的防治建议。\n\n")
	b.WriteString("检测结果：\n")
	fmt.Fprintf(&b, "- 作物: %s\n", cropType)
	fmt.Fprintf(&b, "- 检出病害: %s\n", disease)
	fmt.Fprintf(&b, "- 严重程度: %s\n", severity)
	fmt.Fprintf(&b, "- 检测置信度: %.1f%%\n\n", confidence*100)
	b.WriteString("请依次给出：情况概述、立即处理步骤（3条以内）、有机与化学防治方案、预防措施、何时需要联系当地植保专家。")
	b.WriteString("面向中小农户，内容务实、安全，使用纯文本，不要使用 markdown。")
	return b.String()
}

// fallbackContent 预置模板。同样的输入必须产生同样的输出，
// 便于审核人员识别非模型生成的内容。
func fallbackContent(cropType, disease, severity string) string {
	if disease == model.LabelHealthy {
		return fmt.Sprintf(
			"您的%s叶片状态良好。建议保持现有管理：每日目视检查叶色与长势；保持稳定的浇水节奏，避免积水；"+
				"定期追施腐熟有机肥或平衡复合肥；注意植株间距，保证通风透光。若发现叶斑、卷曲等异常，请尽早复检。",
			cropType)
	}

	if disease == model.LabelUnknown {
		return fmt.Sprintf(
			"本次未能识别您的%s叶片病害。建议先隔离疑似异常植株并保持田间卫生，拍摄更清晰的叶片照片重新提交，"+
				"或携带样本咨询当地植保站。", cropType)
	}

	base := fmt.Sprintf(
		"在%s上检出%s（严重程度：%s）。立即处理：1) 摘除并销毁病叶，隔离发病植株；2) 疏枝整理，改善通风；"+
			"3) 按标签说明施用对应药剂。有机方案可选印楝油喷施（每7-14天一次，避开强光时段）；"+
			"化学方案可选铜制剂（每7-10天一次，施药时佩戴手套口罩）。预防上坚持轮作并及时清除病残体。",
		cropType, disease, severity)

	switch severity {
	case model.SeverityHigh:
		return base + "当前病情较重，若3天内未见好转或持续扩散，请尽快联系当地植保专家。"
	case model.SeverityMedium:
		return base + "请每日观察病情变化，如持续扩散请咨询当地植保站。"
	default:
		return base + "当前病情较轻，坚持每2-3天检查一次即可。"
	}
}
