package service

import (
	"github.com/leafsense/leafsense_server/internal/model"
)

// AggregateResult 一次分析的整体结论
type AggregateResult struct {
	AverageConfidence float64
	OverallSeverity   string
	DominantDisease   string // 最常见的病害；全部健康时为 healthy
	AllFailed         bool   // 所有图片推理均失败
}

// Aggregate 汇总一批图片结果。
// 平均置信度把失败图片按零分计入，不从分母剔除；
// 整体严重程度取所有图片的最大值，全部健康时为 low。
func Aggregate(results []*model.ImageResult) *AggregateResult {
	agg := &AggregateResult{
		OverallSeverity: model.SeverityLow,
		DominantDisease: model.LabelHealthy,
	}
	if len(results) == 0 {
		agg.AllFailed = true
		return agg
	}

	var sum float64
	allFailed := true
	allHealthy := true
	diseaseCount := make(map[string]int)
	var diseaseOrder []string

	for _, r := range results {
		sum += r.ConfidenceScore

		if r.DiseaseDetected != model.LabelError {
			allFailed = false
		}

		switch r.DiseaseDetected {
		case model.LabelHealthy, model.LabelError, model.LabelUnknown:
		default:
			allHealthy = false
			if _, seen := diseaseCount[r.DiseaseDetected]; !seen {
				diseaseOrder = append(diseaseOrder, r.DiseaseDetected)
			}
			diseaseCount[r.DiseaseDetected]++
			agg.OverallSeverity = model.MaxSeverity(agg.OverallSeverity, r.Severity)
		}
	}

	agg.AverageConfidence = sum / float64(len(results))
	agg.AllFailed = allFailed

	if allFailed {
		agg.DominantDisease = model.LabelError
		return agg
	}

	if allHealthy {
		// 全部健康（或 unknown），严重程度保持 low
		if !hasHealthy(results) {
			agg.DominantDisease = model.LabelUnknown
		}
		return agg
	}

	// 出现次数最多的病害；并列时取先出现的
	best := ""
	bestCount := 0
	for _, d := range diseaseOrder {
		if diseaseCount[d] > bestCount {
			best = d
			bestCount = diseaseCount[d]
		}
	}
	agg.DominantDisease = best

	return agg
}

func hasHealthy(results []*model.ImageResult) bool {
	for _, r := range results {
		if r.DiseaseDetected == model.LabelHealthy {
			return true
		}
	}
	return false
}
