package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
	"github.com/leafsense/leafsense_server/internal/model/dto"
	"github.com/leafsense/leafsense_server/internal/pkg/pubsub"
	"github.com/leafsense/leafsense_server/internal/pkg/queue"
	"github.com/leafsense/leafsense_server/internal/repository"
)

var (
	ErrAnalysisNotFound    = errors.New("分析记录不存在")
	ErrAnalysisPermission  = errors.New("无权操作此分析记录")
	ErrAnalysisNotComplete = errors.New("分析尚未完成，无法生成建议")
)

type AnalysisService struct {
	analysisRepo *repository.AnalysisRepository
	recRepo      *repository.RecommendationRepository
	intake       *IntakeValidator
	inference    *InferenceService
	recommender  *RecommendationService
	store        ImageStore
	publisher    *pubsub.Publisher
	jobQueue     *queue.Queue
	cfg          *config.Config
}

func NewAnalysisService(
	analysisRepo *repository.AnalysisRepository,
	recRepo *repository.RecommendationRepository,
	intake *IntakeValidator,
	inference *InferenceService,
	recommender *RecommendationService,
	store ImageStore,
	publisher *pubsub.Publisher,
	jobQueue *queue.Queue,
	cfg *config.Config,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo: analysisRepo,
		recRepo:      recRepo,
		intake:       intake,
		inference:    inference,
		recommender:  recommender,
		store:        store,
		publisher:    publisher,
		jobQueue:     jobQueue,
		cfg:          cfg,
	}
}

// Submit 提交一批叶片图片并同步跑完整个流水线：
// 校验 -> 建档 -> 存图 -> 推理 -> 汇总 -> 生成建议。
// 推理失败的图片计零分参与汇总；全部失败时分析记为 failed。
func (s *AnalysisService) Submit(ctx context.Context, userID int64, cropType string, images []*UploadedImage) (*dto.AnalysisResult, error) {
	if cropType == "" {
		return nil, ErrEmptyCropType
	}

	intake, err := s.intake.Validate(images)
	if err != nil {
		return nil, err
	}

	// 建档，状态 processing
	analysis := &model.Analysis{
		UserID:   userID,
		CropType: cropType,
		Status:   model.AnalysisProcessing,
	}
	if err := s.analysisRepo.Create(analysis); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, userID, analysis.ID, model.AnalysisProcessing, pubsub.StepStoring)

	// 存图失败不中断流程，该图仍参与推理，只是没有可访问的 URL
	urls := make([]string, len(intake.Accepted))
	for i, img := range intake.Accepted {
		url, err := s.store.Save(analysis.ID, img.Name, img.Data)
		if err != nil {
			log.Printf("store image %s failed: %v", img.Name, err)
			continue
		}
		urls[i] = url
	}

	s.publishProgress(ctx, userID, analysis.ID, model.AnalysisProcessing, pubsub.StepInferring)

	classifications := s.classifyAll(ctx, intake.Accepted)

	results := make([]*model.ImageResult, len(intake.Accepted))
	for i, img := range intake.Accepted {
		c := classifications[i]
		results[i] = &model.ImageResult{
			AnalysisID:      analysis.ID,
			ImageName:       img.Name,
			ImageURL:        urls[i],
			DiseaseDetected: c.Disease,
			ConfidenceScore: c.Confidence,
			Severity:        c.Severity,
		}
	}
	if err := s.analysisRepo.CreateImageResults(results); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, userID, analysis.ID, model.AnalysisProcessing, pubsub.StepAggregating)

	agg := Aggregate(results)

	if agg.AllFailed {
		analysis.Status = model.AnalysisFailed
		analysis.ErrorMessage = "所有图片推理失败"
		analysis.AverageConfidence = agg.AverageConfidence
		analysis.AverageSeverity = agg.OverallSeverity
		if err := s.analysisRepo.Update(analysis); err != nil {
			return nil, err
		}
		s.publishFailed(ctx, userID, analysis.ID, analysis.ErrorMessage)
		return s.buildAnalysisResult(analysis, results, nil, agg, intake.Rejected), nil
	}

	analysis.Status = model.AnalysisCompleted
	analysis.AverageConfidence = agg.AverageConfidence
	analysis.AverageSeverity = agg.OverallSeverity
	if err := s.analysisRepo.Update(analysis); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, userID, analysis.ID, model.AnalysisCompleted, pubsub.StepRecommending)

	// 建议生成内部自带兜底，不会失败
	generated := s.recommender.Generate(ctx, cropType, agg.DominantDisease, agg.OverallSeverity, agg.AverageConfidence)
	rec := &model.Recommendation{
		AnalysisID:  analysis.ID,
		GeneratedBy: model.GeneratedByAI,
		Content:     generated.Content,
		Status:      model.RecommendationPending,
		Source:      generated.Source,
	}
	if err := s.recRepo.Create(rec); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, userID, analysis.ID, model.AnalysisCompleted, pubsub.StepDone)

	return s.buildAnalysisResult(analysis, results, []*model.Recommendation{rec}, agg, intake.Rejected), nil
}

// classifyAll 并发推理一批图片，并发数受 Inference.MaxParallel 限制
func (s *AnalysisService) classifyAll(ctx context.Context, images []*UploadedImage) []*Classification {
	classifications := make([]*Classification, len(images))

	// 配置缺省或为 0 时退化为串行，避免信号量容量为零卡死
	maxParallel := s.cfg.Inference.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)
	done := make(chan int, len(images))

	for i, img := range images {
		go func(i int, data []byte) {
			sem <- struct{}{}
			defer func() { <-sem }()

			classifications[i] = s.inference.Classify(ctx, data)
			done <- i
		}(i, img.Data)
	}

	for range images {
		<-done
	}

	return classifications
}

// GetByID 获取分析详情，仅所有者与管理员可见
func (s *AnalysisService) GetByID(userID, analysisID int64, isAdmin bool) (*dto.AnalysisResult, error) {
	analysis, err := s.analysisRepo.GetByIDWithDetails(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	// 非所有者一律按不存在处理，防止枚举他人的分析 ID
	if analysis.UserID != userID && !isAdmin {
		return nil, ErrAnalysisNotFound
	}

	results := make([]*model.ImageResult, len(analysis.Results))
	for i := range analysis.Results {
		results[i] = &analysis.Results[i]
	}
	recs := make([]*model.Recommendation, len(analysis.Recommendations))
	for i := range analysis.Recommendations {
		recs[i] = &analysis.Recommendations[i]
	}

	return s.buildAnalysisResult(analysis, results, recs, Aggregate(results), nil), nil
}

// List 分页查询当前用户的分析历史
func (s *AnalysisService) List(userID int64, filter *dto.HistoryFilter) ([]*dto.AnalysisListItem, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	analyses, total, err := s.analysisRepo.ListByUserID(userID, filter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.AnalysisListItem, len(analyses))
	for i, a := range analyses {
		items[i] = &dto.AnalysisListItem{
			ID:                a.ID,
			CropType:          a.CropType,
			AverageConfidence: a.AverageConfidence,
			AverageSeverity:   a.AverageSeverity,
			Status:            a.Status,
			ImageCount:        len(a.Results),
			CreatedAt:         a.CreatedAt.Format(time.RFC3339),
		}
	}

	return items, total, nil
}

// RequestRecommendation 对已完成的分析追加生成一份建议，任务入队异步处理
func (s *AnalysisService) RequestRecommendation(ctx context.Context, userID, analysisID int64) error {
	analysis, err := s.analysisRepo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnalysisNotFound
		}
		return err
	}

	if analysis.UserID != userID {
		return ErrAnalysisPermission
	}
	if analysis.Status != model.AnalysisCompleted {
		return ErrAnalysisNotComplete
	}

	return s.jobQueue.Push(ctx, &queue.RecommendationJobMessage{
		AnalysisID: analysisID,
		UserID:     userID,
	})
}

// GenerateRecommendation 为已完成的分析生成并保存一份建议，由异步 worker 调用
func (s *AnalysisService) GenerateRecommendation(ctx context.Context, analysisID int64) (*model.Recommendation, error) {
	analysis, err := s.analysisRepo.GetByIDWithDetails(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	if analysis.Status != model.AnalysisCompleted {
		return nil, ErrAnalysisNotComplete
	}

	results := make([]*model.ImageResult, len(analysis.Results))
	for i := range analysis.Results {
		results[i] = &analysis.Results[i]
	}
	agg := Aggregate(results)

	generated := s.recommender.Generate(ctx, analysis.CropType, agg.DominantDisease, agg.OverallSeverity, agg.AverageConfidence)
	rec := &model.Recommendation{
		AnalysisID:  analysis.ID,
		GeneratedBy: model.GeneratedByAI,
		Content:     generated.Content,
		Status:      model.RecommendationPending,
		Source:      generated.Source,
	}
	if err := s.recRepo.Create(rec); err != nil {
		return nil, err
	}

	s.publishProgress(ctx, analysis.UserID, analysis.ID, analysis.Status, pubsub.StepDone)

	return rec, nil
}

// Delete 删除分析及其图片结果与建议，并清理已存储的图片文件
func (s *AnalysisService) Delete(userID, analysisID int64) error {
	analysis, err := s.analysisRepo.GetByIDWithDetails(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnalysisNotFound
		}
		return err
	}

	if analysis.UserID != userID {
		return ErrAnalysisPermission
	}

	if err := s.analysisRepo.Delete(analysisID); err != nil {
		return err
	}

	// 图片清理尽力而为，失败只记日志，残留交给离线清理任务
	for i := range analysis.Results {
		if err := s.store.Delete(analysis.Results[i].ImageURL); err != nil {
			log.Printf("delete image %s failed: %v", analysis.Results[i].ImageURL, err)
		}
	}

	return nil
}

func (s *AnalysisService) publishProgress(ctx context.Context, userID, analysisID int64, status, step string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:     userID,
		AnalysisID: analysisID,
		Status:     status,
		Step:       step,
	})
	if err != nil {
		log.Printf("publish progress failed: %v", err)
	}
}

func (s *AnalysisService) publishFailed(ctx context.Context, userID, analysisID int64, errMsg string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:     userID,
		AnalysisID: analysisID,
		Status:     model.AnalysisFailed,
		Step:       pubsub.StepDone,
		Message:    "分析失败",
		Error:      errMsg,
	})
	if err != nil {
		log.Printf("publish progress failed: %v", err)
	}
}

func (s *AnalysisService) buildAnalysisResult(
	a *model.Analysis,
	results []*model.ImageResult,
	recs []*model.Recommendation,
	agg *AggregateResult,
	rejected []*RejectedImage,
) *dto.AnalysisResult {
	out := &dto.AnalysisResult{
		AnalysisID:        a.ID,
		CropType:          a.CropType,
		Disease:           agg.DominantDisease,
		Confidence:        fmt.Sprintf("%.0f%%", agg.AverageConfidence*100),
		Severity:          agg.OverallSeverity,
		Status:            a.Status,
		ErrorMessage:      a.ErrorMessage,
		AverageConfidence: agg.AverageConfidence,
		AverageSeverity:   agg.OverallSeverity,
		Results:           make([]*dto.ImageResultItem, len(results)),
		Recommendations:   make([]*dto.RecommendationItem, len(recs)),
		CreatedAt:         a.CreatedAt.Format(time.RFC3339),
	}

	for i, r := range results {
		out.Results[i] = &dto.ImageResultItem{
			ID:         r.ID,
			ImageName:  r.ImageName,
			ImageURL:   r.ImageURL,
			Disease:    r.DiseaseDetected,
			Severity:   r.Severity,
			Confidence: r.ConfidenceScore,
		}
	}
	for i, rec := range recs {
		out.Recommendations[i] = buildRecommendationItem(rec)
	}
	for _, rej := range rejected {
		out.RejectedImages = append(out.RejectedImages, &dto.RejectedImageItem{
			Name:   rej.Name,
			Reason: rej.Reason,
		})
	}

	return out
}

func buildRecommendationItem(rec *model.Recommendation) *dto.RecommendationItem {
	return &dto.RecommendationItem{
		ID:            rec.ID,
		AnalysisID:    rec.AnalysisID,
		GeneratedBy:   rec.GeneratedBy,
		Content:       rec.Content,
		Status:        rec.Status,
		AdminFeedback: rec.AdminFeedback,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     rec.UpdatedAt.Format(time.RFC3339),
	}
}
