package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocahub/voca-study-hub/internal/application/command"
	"github.com/vocahub/voca-study-hub/internal/application/query"
	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/leitner"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/internal/infrastructure/persistence/memory"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

type testEnvelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *APIError              `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	s := NewServer(cfg, Dependencies{
		RegisterLearner: command.NewRegisterLearnerHandler(store, nil),
		RecordReview:    command.NewRecordReviewHandler(store, nil, nil),
		OpenDay:         command.NewOpenDayHandler(store, nil, nil),
		CompleteDay:     command.NewCompleteDayHandler(store, nil, nil),
		ConfirmCycle:    command.NewConfirmCycleHandler(store, nil, nil),
		Authenticate:    query.NewAuthenticateHandler(store),
		NextCard:        query.NewNextCardHandler(store),
		TodayCard:       query.NewTodayCardHandler(store),
		RemindCard:      query.NewRemindCardHandler(store),
		LevelStatus:     query.NewLevelStatusHandler(store, nil),
	})
	return s, store
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var envelope testEnvelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	}
	return rec, envelope
}

func registerTestLearner(t *testing.T, s *Server) string {
	t.Helper()

	rec, envelope := doRequest(t, s, http.MethodPost, "/api/learners", map[string]string{
		"username": "mina",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, ok := envelope.Data["learnerId"].(string)
	require.True(t, ok)
	return id
}

func seedLevelDays(t *testing.T, store *memory.Store, level catalog.LevelTag, days int) []int64 {
	t.Helper()

	var ids []int64
	err := store.InTx(context.Background(), func(ctx context.Context, tx study.StoreTx) error {
		for day := 1; day <= days; day++ {
			item := &catalog.Item{Level: level, Day: day, Word: "word", Meaning: "meaning"}
			if err := tx.CreateItem(ctx, item); err != nil {
				return err
			}
			ids = append(ids, item.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestReviewEndpoint_EchoesLearnerAndReviewTime(t *testing.T) {
	s, store := newTestServer(t)
	learnerID := registerTestLearner(t, s)
	ids := seedLevelDays(t, store, catalog.Level600, 1)

	rec, envelope := doRequest(t, s, http.MethodPost, "/api/review", map[string]interface{}{
		"learnerId": learnerID,
		"itemId":    ids[0],
		"grade":     "good",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, learnerID, envelope.Data["learnerId"])
	assert.Equal(t, "good", envelope.Data["grade"])
	assert.Equal(t, float64(2), envelope.Data["level"])
	assert.NotEmpty(t, envelope.Data["reviewedAt"])
	assert.NotEmpty(t, envelope.Data["nextDue"])
}

func TestOpenDayEndpoint_ReportsOpenStatus(t *testing.T) {
	s, store := newTestServer(t)
	learnerID := registerTestLearner(t, s)
	seedLevelDays(t, store, catalog.Level600, 1)

	rec, envelope := doRequest(t, s, http.MethodPost, "/api/days/open", map[string]interface{}{
		"learnerId": learnerID,
		"level":     "600",
		"day":       1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, learnerID, envelope.Data["learnerId"])
	assert.Equal(t, string(study.DayOpen), envelope.Data["status"])
	assert.Equal(t, float64(1), envelope.Data["day"])
	assert.Equal(t, float64(1), envelope.Data["cycleNo"])
}

func TestCompleteDayEndpoint_ReportsDayAndCycleStatus(t *testing.T) {
	s, store := newTestServer(t)
	learnerID := registerTestLearner(t, s)
	ids := seedLevelDays(t, store, catalog.Level600, 1)

	rec, _ := doRequest(t, s, http.MethodPost, "/api/days/open", map[string]interface{}{
		"learnerId": learnerID, "level": "600", "day": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, s, http.MethodPost, "/api/review", map[string]interface{}{
		"learnerId": learnerID, "itemId": ids[0], "grade": "perfect",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := doRequest(t, s, http.MethodPost, "/api/days/complete", map[string]interface{}{
		"learnerId": learnerID, "level": "600",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, learnerID, envelope.Data["learnerId"])
	assert.Equal(t, string(study.DayCompleted), envelope.Data["status"])
	assert.Equal(t, string(study.CycleActive), envelope.Data["cycleStatus"])
}

func TestConfirmCycleEndpoint_StartsNextCycle(t *testing.T) {
	s, store := newTestServer(t)
	learnerID := registerTestLearner(t, s)
	ids := seedLevelDays(t, store, catalog.Level600, study.TotalDays)

	// Walk all 30 days through the domain services directly; the endpoint
	// under test is the confirmation.
	now := timeutil.Now()
	for day := 1; day <= study.TotalDays; day++ {
		err := store.InTx(context.Background(), func(ctx context.Context, tx study.StoreTx) error {
			if _, _, err := study.OpenDay(ctx, tx, learnerID, catalog.Level600, day, now); err != nil {
				return err
			}
			if _, _, err := study.RecordReview(ctx, tx, learnerID, ids[day-1], leitner.GradeGood, now); err != nil {
				return err
			}
			_, _, err := study.CompleteDay(ctx, tx, learnerID, catalog.Level600, now)
			return err
		})
		require.NoError(t, err, "day %d", day)
	}

	rec, envelope := doRequest(t, s, http.MethodPost, "/api/cycles/confirm", map[string]interface{}{
		"learnerId": learnerID, "level": "600",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, learnerID, envelope.Data["learnerId"])
	assert.Equal(t, float64(2), envelope.Data["newCycleNo"])
	assert.NotEmpty(t, envelope.Data["startedAt"])
}

func TestLoginEndpoint_VerifiesCredentials(t *testing.T) {
	s, _ := newTestServer(t)
	learnerID := registerTestLearner(t, s)

	rec, envelope := doRequest(t, s, http.MethodPost, "/api/learners/login", map[string]string{
		"username": "mina",
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, learnerID, envelope.Data["learnerId"])
	assert.Equal(t, "mina", envelope.Data["username"])

	// Wrong password and unknown username fail identically.
	rec, envelope = doRequest(t, s, http.MethodPost, "/api/learners/login", map[string]string{
		"username": "mina",
		"password": "wrong password",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "not_found", envelope.Error.Code)

	rec, _ = doRequest(t, s, http.MethodPost, "/api/learners/login", map[string]string{
		"username": "nobody",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCardEndpoints_UnknownLearnerIs404(t *testing.T) {
	s, store := newTestServer(t)
	seedLevelDays(t, store, catalog.Level600, 1)

	rec, envelope := doRequest(t, s, http.MethodGet, "/api/cards/next?learnerId=ghost&level=600", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "not_found", envelope.Error.Code)

	rec, _ = doRequest(t, s, http.MethodGet, "/api/cards/today?learnerId=ghost&level=600", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
