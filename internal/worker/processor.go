package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/leafsense/leafsense_server/internal/pkg/queue"
	"github.com/leafsense/leafsense_server/internal/service"
)

// Processor 消费建议生成任务
type Processor struct {
	analysisService *service.AnalysisService
}

// NewProcessor 创建任务处理器
func NewProcessor(analysisService *service.AnalysisService) *Processor {
	return &Processor{
		analysisService: analysisService,
	}
}

// Process 为指定分析生成并保存一份新建议
func (p *Processor) Process(ctx context.Context, msg *queue.RecommendationJobMessage) error {
	rec, err := p.analysisService.GenerateRecommendation(ctx, msg.AnalysisID)
	if err != nil {
		// 分析在排队期间被删除或状态变化，任务作废即可，不重试
		if err == service.ErrAnalysisNotFound || err == service.ErrAnalysisNotComplete {
			log.Printf("skip recommendation job for analysis %d: %v", msg.AnalysisID, err)
			return nil
		}
		return fmt.Errorf("failed to generate recommendation for analysis %d: %w", msg.AnalysisID, err)
	}

	log.Printf("recommendation %d generated for analysis %d", rec.ID, msg.AnalysisID)
	return nil
}
