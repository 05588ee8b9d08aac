package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/models"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const testToken = "123456:TEST-TOKEN"

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func signedInitData(t *testing.T, userJSON string, authDate time.Time) string {
	t.Helper()
	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("query_id", "AAH")
	if userJSON != "" {
		v.Set("user", userJSON)
	}
	return SignInitData(testToken, v)
}

type testServer struct {
	repo    *store.Memory
	handler http.Handler
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	settings := service.NewSettings(repo)
	require.NoError(t, settings.Seed(ctx))
	require.NoError(t, settings.Set(ctx, service.KeyWebMineCooldownSeconds, "30"))

	h := NewHandler(
		service.NewAccounts(repo, settings, clock),
		service.NewMiner(repo, settings, clock),
		NewInitDataVerifier(testToken, clock),
	)
	return &testServer{repo: repo, handler: NewRouter(h, opts)}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func bodyRequest(path, initData string) *http.Request {
	payload, _ := json.Marshal(models.InitDataRequest{InitData: initData})
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestVerifyInitData(t *testing.T) {
	v := NewInitDataVerifier(testToken, clock)

	user, err := v.Verify(signedInitData(t, `{"id":42,"username":"ali"}`, testNow.Add(-time.Hour)))
	require.NoError(t, err)
	require.Equal(t, int64(42), user.ID)
	require.Equal(t, "ali", user.Username)

	tampered := strings.Replace(signedInitData(t, `{"id":42}`, testNow), "42", "43", 1)
	_, err = v.Verify(tampered)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(signedInitData(t, `{"id":42}`, testNow.Add(-25*time.Hour)))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewInitDataVerifier("other-token", clock).Verify(signedInitData(t, `{"id":42}`, testNow))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(signedInitData(t, "", testNow))
	require.ErrorIs(t, err, ErrUserMissing)

	_, err = v.Verify("")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfileCreatesUser(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	rec := s.do(bodyRequest("/api/profile", signedInitData(t, `{"id":7,"first_name":"Vali"}`, testNow)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)
	require.Equal(t, int64(7), resp.User.ID)
	require.Nil(t, resp.User.Username)
	require.Equal(t, "Vali", *resp.User.FirstName)
	require.Equal(t, int64(30), resp.CooldownSeconds)
	require.Zero(t, resp.RemainingSeconds)
	require.Nil(t, resp.LastMineAt)

	u, err := s.repo.GetUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, u.ReferralCode, 8)
}

func TestMineThenCooldown(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	initData := signedInitData(t, `{"id":9}`, testNow)

	mine := func() models.MineResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/mine", nil)
		req.Header.Set("X-Telegram-Init-Data", initData)
		rec := s.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp models.MineResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := mine()
	require.True(t, first.OK)
	require.NotNil(t, first.Mined)
	require.Equal(t, int64(1), *first.Mined)
	require.Equal(t, int64(1), first.Balance)
	require.Nil(t, first.RemainingSeconds)

	second := mine()
	require.False(t, second.OK)
	require.Nil(t, second.Mined)
	require.Equal(t, int64(30), *second.RemainingSeconds)
	require.Equal(t, int64(1), second.Balance)

	// GET with the query parameter reads the same session.
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/profile?initData="+url.QueryEscape(initData), nil))
	var profile models.ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, int64(30), profile.RemainingSeconds)
	require.Equal(t, testNow.UnixMilli(), *profile.LastMineAt)
}

func TestRejectedSessions(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(bodyRequest("/api/mine", "hash=00&auth_date=1"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "unauthorized", resp.Error)

	rec = s.do(bodyRequest("/api/profile", signedInitData(t, "", testNow)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "user_missing", resp.Error)
}

func TestCORSAndHealth(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(httptest.NewRequest(http.MethodOptions, "/api/mine", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Telegram-Init-Data")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestWebhookMount(t *testing.T) {
	var hits int
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	s := newTestServer(t, RouterOptions{Webhook: hook})

	for _, path := range []string{"/", "/webhook", "/telegram/webhook"} {
		rec := s.do(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"update_id":1}`)))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
	require.Equal(t, 3, hits)

	withoutHook := newTestServer(t, RouterOptions{})
	rec := withoutHook.do(httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil))
	require.NotEqual(t, http.StatusOK, rec.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	s := newTestServer(t, RouterOptions{RatePerMinute: 1, RateBurst: 1})
	initData := signedInitData(t, `{"id":5}`, testNow)

	send := func(ip string) int {
		req := bodyRequest("/api/profile", initData)
		req.Header.Set("X-Real-IP", ip)
		return s.do(req).Code
	}
	require.Equal(t, http.StatusOK, send("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2"))
}
