package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authUsecase "waiting-backend/internal/auth/usecase"
	"waiting-backend/internal/waiting/delivery"
	"waiting-backend/internal/waiting/domain"
	waitingdto "waiting-backend/internal/waiting/dto"
	"waiting-backend/internal/waiting/repository"
	"waiting-backend/internal/waiting/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsUsecase struct {
	usecase.WaitingUsecase
	slas []domain.ResponseTimeSLA
}

func (s *settingsUsecase) SLATargets() []domain.ResponseTimeSLA { return s.slas }

func (s *settingsUsecase) SetSLATargets(slas []domain.ResponseTimeSLA) { s.slas = slas }

type intervalStub struct{ d time.Duration }

func (i *intervalStub) Interval() time.Duration     { return i.d }
func (i *intervalStub) SetInterval(d time.Duration) { i.d = d }

func newTestEngine(t *testing.T) (*gin.Engine, string, *settingsUsecase, *intervalStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := authUsecase.NewAuthUsecase("secret", time.Hour, nil)
	token, err := auth.IssueToken("u1", "me@contoso.com")
	require.NoError(t, err)

	uc := &settingsUsecase{}
	interval := &intervalStub{d: 5 * time.Minute}
	h := NewHandler(Routes{
		Auth:     auth,
		Waiting:  delivery.NewWaitingHandler(uc, nil),
		Devices:  delivery.NewDeviceHandler(repository.NewMemoryDeviceTokenRepository()),
		Settings: NewSettingsHandler(uc, interval),
	})
	return h.Engine(), token, uc, interval
}

func request(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublicAndRestIsProtected(t *testing.T) {
	r, _, _, _ := newTestEngine(t)

	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/health", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/waiting", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/settings/waiting", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodPost, "/api/devices", "", `{"token":"x"}`).Code)
}

func TestCORSPreflight(t *testing.T) {
	r, _, _, _ := newTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/waiting", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWaitingSettings(t *testing.T) {
	r, token, uc, interval := newTestEngine(t)

	w := request(r, http.MethodGet, "/api/settings/waiting", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got waitingdto.WaitingSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(300000), got.AutoRefreshIntervalMs)

	w = request(r, http.MethodPut, "/api/settings/waiting", token, `{"sla_targets":[{"relationship":"Manager","max_hours":4}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []domain.ResponseTimeSLA{{Relationship: domain.RelationshipManager, MaxHours: 4}}, uc.slas)
	assert.Equal(t, 5*time.Minute, interval.d, "absent interval is left alone")

	w = request(r, http.MethodPut, "/api/settings/waiting", token, `{"auto_refresh_interval_ms":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, interval.d)
	assert.Len(t, uc.slas, 1)

	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodPut, "/api/settings/waiting", token, `{"auto_refresh_interval_ms":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodPut, "/api/settings/waiting", token, `not json`).Code)
}
