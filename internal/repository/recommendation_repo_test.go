package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsense/leafsense_server/internal/model"
	"github.com/leafsense/leafsense_server/internal/testutil"
)

func TestRecommendationRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)

	rec := &model.Recommendation{
		AnalysisID:  analysis.ID,
		GeneratedBy: model.GeneratedByAI,
		Content:     "建议轮作并使用铜制剂。",
		Status:      model.RecommendationPending,
		Source:      model.SourceGenerated,
	}

	err := repo.Create(rec)
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
}

func TestRecommendationRepository_GetByIDWithAnalysis(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithCropType("grape"))
	rec := testutil.TestRecommendation(t, db, analysis.ID)

	found, err := repo.GetByIDWithAnalysis(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Analysis)
	assert.Equal(t, "grape", found.Analysis.CropType)
	require.NotNil(t, found.Analysis.User)
	assert.Equal(t, user.Username, found.Analysis.User.Username)
}

func TestRecommendationRepository_ListPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)

	testutil.TestRecommendation(t, db, analysis.ID)
	testutil.TestRecommendation(t, db, analysis.ID)
	testutil.TestRecommendation(t, db, analysis.ID, testutil.WithRecommendationStatus(model.RecommendationApproved))

	recs, total, err := repo.ListPending(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, model.RecommendationPending, r.Status)
	}
}

func TestRecommendationRepository_UpdateStatusIf(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)
	rec := testutil.TestRecommendation(t, db, analysis.ID)

	ok, err := repo.UpdateStatusIf(rec.ID, model.RecommendationPending, model.RecommendationApproved, "")
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.GetByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationApproved, found.Status)
}

func TestRecommendationRepository_UpdateStatusIf_AlreadyTerminal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)
	rec := testutil.TestRecommendation(t, db, analysis.ID)

	// 第一次审核成功，第二次条件不再满足
	ok, err := repo.UpdateStatusIf(rec.ID, model.RecommendationPending, model.RecommendationApproved, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.UpdateStatusIf(rec.ID, model.RecommendationPending, model.RecommendationRejected, "内容不准确")
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.GetByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationApproved, found.Status)
	assert.Empty(t, found.AdminFeedback)
}

func TestRecommendationRepository_UpdateStatusIf_RejectKeepsFeedback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)
	rec := testutil.TestRecommendation(t, db, analysis.ID)

	ok, err := repo.UpdateStatusIf(rec.ID, model.RecommendationPending, model.RecommendationRejected, "剂量描述有误")
	require.NoError(t, err)
	require.True(t, ok)

	found, err := repo.GetByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationRejected, found.Status)
	assert.Equal(t, "剂量描述有误", found.AdminFeedback)
}
