package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"waiting-backend/internal/waiting/domain"
	waitingdto "waiting-backend/internal/waiting/dto"
	"waiting-backend/internal/waiting/repository"
	"waiting-backend/internal/waiting/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	usecase.WaitingUsecase

	filter      domain.WaitingFilter
	dataErr     error
	snapshot    *domain.GroupedWaitingData
	snoozeUntil time.Time
	snoozeErr   error
	trendDays   int
	invalidated bool
}

func (s *stubUsecase) DefaultFilter() domain.WaitingFilter { return domain.DefaultWaitingFilter() }

func (s *stubUsecase) GetWaitingData(_ context.Context, f domain.WaitingFilter) (*domain.GroupedWaitingData, error) {
	s.filter = f
	if s.dataErr != nil {
		return nil, s.dataErr
	}
	return &domain.GroupedWaitingData{TotalItems: 2}, nil
}

func (s *stubUsecase) Snapshot() (*domain.GroupedWaitingData, time.Time, bool) {
	return s.snapshot, time.Time{}, s.snapshot != nil
}

func (s *stubUsecase) ExplainUrgency(id string) (*usecase.UrgencyExplanation, error) {
	if id != "email:1" {
		return nil, usecase.ErrConversationNotFound
	}
	return &usecase.UrgencyExplanation{ConversationID: id, Score: 9, Level: "critical"}, nil
}

func (s *stubUsecase) Search(query string, limit int) []domain.Conversation {
	return []domain.Conversation{{ID: query}}[:min(limit, 1)]
}

func (s *stubUsecase) Dismiss(_ context.Context, id string) (domain.DismissedItem, error) {
	return domain.DismissedItem{ConversationID: id}, nil
}

func (s *stubUsecase) Snooze(_ context.Context, id string, until time.Time, reason string) (domain.SnoozedItem, error) {
	s.snoozeUntil = until
	if s.snoozeErr != nil {
		return domain.SnoozedItem{}, s.snoozeErr
	}
	return domain.SnoozedItem{ConversationID: id, SnoozedUntil: until, Reason: reason}, nil
}

func (s *stubUsecase) Unsnooze(context.Context, string) error { return nil }

func (s *stubUsecase) Trend(_ context.Context, days int) domain.WaitingDebtTrend {
	s.trendDays = days
	return domain.WaitingDebtTrend{Trend: domain.TrendStable}
}

func (s *stubUsecase) InvalidateCaches() { s.invalidated = true }

type stubRefresher struct{ err error }

func (r *stubRefresher) RefreshNow(context.Context) (*domain.GroupedWaitingData, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &domain.GroupedWaitingData{TotalItems: 7}, nil
}

func newTestRouter(uc usecase.WaitingUsecase, refresher Refresher, devices repository.DeviceTokenRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	NewWaitingHandler(uc, refresher).RegisterRoutes(api.Group("/waiting"))
	dh := NewDeviceHandler(devices)
	api.POST("/devices", dh.Register)
	api.DELETE("/devices/:token", dh.Unregister)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetWaitingParsesFilter(t *testing.T) {
	uc := &stubUsecase{}
	r := newTestRouter(uc, &stubRefresher{}, repository.NewMemoryDeviceTokenRepository())

	w := do(r, http.MethodGet, "/api/waiting?minStaleHours=72&includeEmail=false&relationship=manager&relationship=external&hideSnoozed=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 72, uc.filter.MinStaleDurationHours)
	assert.False(t, uc.filter.IncludeEmail)
	assert.True(t, uc.filter.IncludeMentions)
	assert.True(t, uc.filter.HideSnoozed)
	assert.Equal(t, []domain.Relationship{domain.RelationshipManager, domain.RelationshipExternal}, uc.filter.RelationshipFilter)

	w = do(r, http.MethodGet, "/api/waiting?relationship=boss", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/waiting?maxResults=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetWaitingMapsCurrentUserFailure(t *testing.T) {
	uc := &stubUsecase{dataErr: usecase.ErrCurrentUserUnavailable}
	r := newTestRouter(uc, &stubRefresher{}, repository.NewMemoryDeviceTokenRepository())

	w := do(r, http.MethodGet, "/api/waiting", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSnapshotAndUrgency(t *testing.T) {
	uc := &stubUsecase{}
	r := newTestRouter(uc, &stubRefresher{}, repository.NewMemoryDeviceTokenRepository())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/waiting/snapshot", "").Code)

	uc.snapshot = &domain.GroupedWaitingData{TotalItems: 3}
	w := do(r, http.MethodGet, "/api/waiting/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap waitingdto.SnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 3, snap.Data.TotalItems)

	w = do(r, http.MethodGet, "/api/waiting/conversations/email:1/urgency", "")
	require.Equal(t, http.StatusOK, w.Code)
	var exp usecase.UrgencyExplanation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exp))
	assert.Equal(t, 9, exp.Score)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/waiting/conversations/nope/urgency", "").Code)
}

func TestSnoozeValidation(t *testing.T) {
	uc := &stubUsecase{}
	r := newTestRouter(uc, &stubRefresher{}, repository.NewMemoryDeviceTokenRepository())

	w := do(r, http.MethodPost, "/api/waiting/conversations/chat:1/snooze", `{"until":"2030-01-02T15:04:05Z","reason":"later"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC), uc.snoozeUntil.UTC())

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/waiting/conversations/chat:1/snooze", `{"reason":"no time"}`).Code)

	uc.snoozeErr = usecase.ErrInvalidSnooze
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/waiting/conversations/chat:1/snooze", `{"until":"2000-01-01T00:00:00Z"}`).Code)
}

func TestMiscRoutes(t *testing.T) {
	uc := &stubUsecase{}
	r := newTestRouter(uc, &stubRefresher{}, repository.NewMemoryDeviceTokenRepository())

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/waiting/conversations/x/dismiss", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/waiting/conversations/x/unsnooze", "").Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/waiting/cache/invalidate", "").Code)
	assert.True(t, uc.invalidated)

	do(r, http.MethodGet, "/api/waiting/trend?days=30", "")
	assert.Equal(t, 30, uc.trendDays)
	do(r, http.MethodGet, "/api/waiting/trend?days=junk", "")
	assert.Zero(t, uc.trendDays)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/waiting/search", "").Code)
	w := do(r, http.MethodGet, "/api/waiting/search?q=budget", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sr waitingdto.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sr))
	assert.Equal(t, 1, sr.Total)

	w = do(r, http.MethodPost, "/api/waiting/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_items":7`)
}

func TestRefreshFailure(t *testing.T) {
	r := newTestRouter(&stubUsecase{}, &stubRefresher{err: usecase.ErrCurrentUserUnavailable}, repository.NewMemoryDeviceTokenRepository())
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodPost, "/api/waiting/refresh", "").Code)
}

func TestDeviceRegistration(t *testing.T) {
	devices := repository.NewMemoryDeviceTokenRepository()
	r := newTestRouter(&stubUsecase{}, &stubRefresher{}, devices)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/devices", `{}`).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/devices", `{"token":"tok","device_info":"pixel"}`).Code)

	tokens, err := devices.GetTokensByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "pixel", tokens[0].DeviceInfo)

	require.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/api/devices/tok", "").Code)
	tokens, err = devices.ListTokens(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
