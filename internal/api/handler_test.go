package membership

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	db "github.com/mayukomayuko7-bot/warakado-vision/internal/db"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	services "github.com/mayukomayuko7-bot/warakado-vision/internal/services"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPass = "sesame"

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := zap.NewNop()
	dir := db.NewMemoryDirectory()
	cache := db.NewCacheService(db.NewMemoryBlobs(), "test")
	clk := testclock.NewClock(time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC))
	day, err := services.NewBusinessDay(clk, services.DefaultTimezone)
	require.NoError(t, err)

	ledger := services.NewLedger(dir, cache, services.NewSession(), services.RandomIDs{}, clk, logger)
	admin := services.NewAdminConsole(ledger, testPass, logger)
	require.NoError(t, admin.Start(context.Background()))
	t.Cleanup(admin.Stop)

	feed := services.NewRecipeFeed(dir, cache, day, logger)
	cancel, err := feed.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(cancel)

	return NewHandler(Services{
		Sessions:    services.NewSessionManager(ledger, cache, logger),
		Ledger:      ledger,
		Feed:        feed,
		Fortune:     services.NewFortuneTeller(cache, day, logger),
		Admin:       admin,
		PurchaseURL: "https://shop.example.com/tarot",
	}, logger)
}

func call(t *testing.T, h http.Handler, method string, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func register(t *testing.T, h http.Handler) models.Member {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/session/register", models.RegisterInfo{Nickname: "Taro", Email: "Taro@Example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return decodeBody[models.Member](t, rec)
}

func TestSessionRoutes(t *testing.T) {
	h := newTestHandler(t)
	m := register(t, h)
	require.Equal(t, "taro@example.com", m.Email)

	rec := call(t, h, http.MethodPost, "/session/register", models.RegisterInfo{Nickname: "Other", Email: "taro@example.com"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodPost, "/session/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, h, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodPost, "/session/login", loginRequest{Nickname: "taro", Email: "taro@example.com"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = call(t, h, http.MethodPost, "/session/login", loginRequest{Nickname: "Taro", Email: " TARO@example.com "})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterBadBody(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/session/register", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPost, "/session/register", models.RegisterInfo{Nickname: "Taro"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTarotRoutes(t *testing.T) {
	h := newTestHandler(t)

	rec := call(t, h, http.MethodPost, "/tarot/use", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	register(t, h)
	for i := 0; i < models.FreeTarotUses; i++ {
		rec = call(t, h, http.MethodPost, "/tarot/use", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = call(t, h, http.MethodPost, "/tarot/use", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodPost, "/tarot/keys", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	key := decodeBody[KeyResponse](t, rec)
	require.Len(t, key.Key, models.KeyLength)
	require.Equal(t, "https://shop.example.com/tarot", key.PurchaseURL)

	rec = call(t, h, http.MethodPost, "/tarot/redeem", redeemRequest{Key: key.Key})
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody[models.Member](t, rec)
	require.Equal(t, models.KeyCredits, m.TarotCredits)
	require.True(t, m.IsSubscribed)

	rec = call(t, h, http.MethodPost, "/tarot/redeem", redeemRequest{Key: key.Key})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPost, "/tarot/use", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.KeyCredits-1, decodeBody[models.Member](t, rec).TarotCredits)
}

func TestRecipeRoutes(t *testing.T) {
	h := newTestHandler(t)
	register(t, h)

	rec := call(t, h, http.MethodPost, "/recipes", services.RecipeDraft{MenuName: " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPost, "/recipes", services.RecipeDraft{MenuName: "Curry"})
	require.Equal(t, http.StatusCreated, rec.Code)
	post := decodeBody[models.RecipePost](t, rec)

	rec = call(t, h, http.MethodPost, fmt.Sprintf("/recipes/%d/like", post.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeBody[models.RecipePost](t, rec).Likes)

	rec = call(t, h, http.MethodPost, "/recipes/12345/like", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodGet, "/recipes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decodeBody[FeedResponse](t, rec)
	require.Len(t, feed.Recipes, 1)
	require.Equal(t, 1, feed.TodayCount)
	require.Equal(t, models.DailyPostLimit, feed.DailyLimit)

	for i := 1; i < models.DailyPostLimit; i++ {
		rec = call(t, h, http.MethodPost, "/recipes", services.RecipeDraft{MenuName: fmt.Sprintf("dish %d", i)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec = call(t, h, http.MethodPost, "/recipes", services.RecipeDraft{MenuName: "late"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestFortuneRoutes(t *testing.T) {
	h := newTestHandler(t)
	register(t, h)

	rec := call(t, h, http.MethodGet, "/fortune", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeBody[FortuneResponse](t, rec).Result)

	rec = call(t, h, http.MethodPost, "/fortune", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[FortuneResponse](t, rec)
	require.True(t, first.Drawn)
	require.NotNil(t, first.Result)

	rec = call(t, h, http.MethodPost, "/fortune", nil)
	second := decodeBody[FortuneResponse](t, rec)
	require.False(t, second.Drawn)
	require.Equal(t, first.Result, second.Result)
}

func TestAdminRoutes(t *testing.T) {
	h := newTestHandler(t)
	register(t, h)

	rec := call(t, h, http.MethodGet, "/admin/members", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, h, http.MethodGet, "/admin/members", nil, staffHeader, "wrong")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, h, http.MethodGet, "/admin/members", nil, staffHeader, testPass)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]models.Member](t, rec), 1)

	rec = call(t, h, http.MethodPost, "/points/requests", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	pr := decodeBody[models.PointRequest](t, rec)

	rec = call(t, h, http.MethodGet, "/admin/requests", nil, staffHeader, testPass)
	require.Len(t, decodeBody[[]models.PointRequest](t, rec), 1)

	rec = call(t, h, http.MethodPost, "/admin/requests/"+pr.ID+"/approve", nil, staffHeader, testPass)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(t, h, http.MethodPost, "/admin/requests/"+pr.ID+"/reject", nil, staffHeader, testPass)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = call(t, h, http.MethodPost, "/admin/requests/missing/approve", nil, staffHeader, testPass)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodPost, "/admin/credits", grantRequest{Email: "taro@example.com", Amount: 5}, staffHeader, testPass)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody[models.Member](t, rec)
	require.Equal(t, 5, m.TarotCredits)
	require.Equal(t, 1, m.Points)

	rec = call(t, h, http.MethodPost, "/admin/credits", grantRequest{Email: "taro@example.com"}, staffHeader, testPass)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPost, "/admin/points", grantRequest{Email: "taro@example.com", Amount: 2}, staffHeader, testPass)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodGet, "/admin/requests", nil, staffHeader, testPass)
	require.Empty(t, decodeBody[[]models.PointRequest](t, rec))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrEmailRequired, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", models.ErrInvalidKey), http.StatusBadRequest},
		{models.ErrNoSession, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrRequestNotFound, http.StatusNotFound},
		{models.ErrDuplicate, http.StatusConflict},
		{models.ErrTarotExhausted, http.StatusConflict},
		{models.ErrDailyQuota, http.StatusTooManyRequests},
		{models.ErrOffline, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
