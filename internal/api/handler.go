package membership

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	services "github.com/mayukomayuko7-bot/warakado-vision/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Services struct {
	Sessions    *services.SessionManager
	Ledger      *services.Ledger
	Feed        *services.RecipeFeed
	Fortune     *services.FortuneTeller
	Admin       *services.AdminConsole
	PurchaseURL string
}

type Handler struct {
	router *mux.Router
	Services
	logger *zap.Logger
}

type loginRequest struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

type redeemRequest struct {
	Key string `json:"key"`
}

type grantRequest struct {
	Email  string `json:"email"`
	Amount int    `json:"amount"`
}

type KeyResponse struct {
	Key         string `json:"key"`
	Credits     int    `json:"credits"`
	PurchaseURL string `json:"purchaseUrl,omitempty"`
}

type FeedResponse struct {
	Recipes    []models.RecipePost `json:"recipes"`
	TodayCount int                 `json:"todayCount"`
	DailyLimit int                 `json:"dailyLimit"`
}

type FortuneResponse struct {
	Result *models.FortuneResult `json:"result"`
	Drawn  bool                  `json:"drawn"`
}

func NewHandler(s Services, logger *zap.Logger) *Handler {
	router := mux.NewRouter()
	handler := &Handler{router, s, logger}
	router.Use(MiddlewareLog(logger))

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/session", handler.CurrentHandler).Methods(http.MethodGet)
	router.HandleFunc("/session/register", handler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/session/login", handler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/session/logout", handler.LogoutHandler).Methods(http.MethodPost)

	router.HandleFunc("/tarot/use", handler.UseTarotHandler).Methods(http.MethodPost)
	router.HandleFunc("/tarot/keys", handler.IssueKeyHandler).Methods(http.MethodPost)
	router.HandleFunc("/tarot/redeem", handler.RedeemHandler).Methods(http.MethodPost)

	router.HandleFunc("/points/requests", handler.RequestPointsHandler).Methods(http.MethodPost)

	router.HandleFunc("/recipes", handler.FeedHandler).Methods(http.MethodGet)
	router.HandleFunc("/recipes", handler.SubmitRecipeHandler).Methods(http.MethodPost)
	router.HandleFunc("/recipes/{id:[0-9]+}/like", handler.LikeHandler).Methods(http.MethodPost)

	router.HandleFunc("/fortune", handler.TodayFortuneHandler).Methods(http.MethodGet)
	router.HandleFunc("/fortune", handler.DrawFortuneHandler).Methods(http.MethodPost)

	// оператор
	staff := router.PathPrefix("/admin").Subrouter()
	staff.Use(handler.staffOnly)
	staff.HandleFunc("/members", handler.AdminMembersHandler).Methods(http.MethodGet)
	staff.HandleFunc("/keys", handler.AdminKeysHandler).Methods(http.MethodGet)
	staff.HandleFunc("/requests", handler.AdminRequestsHandler).Methods(http.MethodGet)
	staff.HandleFunc("/recipes", handler.AdminRecipesHandler).Methods(http.MethodGet)
	staff.HandleFunc("/credits", handler.AdminCreditsHandler).Methods(http.MethodPost)
	staff.HandleFunc("/points", handler.AdminPointsHandler).Methods(http.MethodPost)
	staff.HandleFunc("/requests/{id}/approve", handler.ApproveHandler).Methods(http.MethodPost)
	staff.HandleFunc("/requests/{id}/reject", handler.RejectHandler).Methods(http.MethodPost)

	return handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.router.ServeHTTP(w, req)
}

func (h *Handler) Log(msg string, service string, err error) {
	h.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrEmailRequired),
		errors.Is(err, models.ErrFieldRequired),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrMemberNotFound),
		errors.Is(err, models.ErrRequestNotFound),
		errors.Is(err, models.ErrRecipeNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicate),
		errors.Is(err, models.ErrNotPending),
		errors.Is(err, models.ErrTarotExhausted):
		return http.StatusConflict
	case errors.Is(err, models.ErrDailyQuota):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrOffline):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, service string, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		h.Log("Request", service, err)
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func (h *Handler) reply(w http.ResponseWriter, service string, code int, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		h.Log("Marshal", service, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(j)
}

func (h *Handler) decode(w http.ResponseWriter, req *http.Request, service string, v any) bool {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		h.Log("Get request body", service, err)
		http.Error(w, "Body is empty", http.StatusBadRequest)
		return false
	}
	defer req.Body.Close()
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Body is not correct", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) current(w http.ResponseWriter, service string) (models.Member, bool) {
	m, err := h.Sessions.Current()
	if err != nil {
		h.fail(w, service, err)
		return models.Member{}, false
	}
	return m, true
}

// Текущий участник
func (h *Handler) CurrentHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "CurrentHandler")
	if !ok {
		return
	}
	h.reply(w, "CurrentHandler", http.StatusOK, m)
}

// Регистрация
func (h *Handler) RegisterHandler(w http.ResponseWriter, req *http.Request) {
	info := models.RegisterInfo{}
	if !h.decode(w, req, "RegisterHandler", &info) {
		return
	}
	m, err := h.Ledger.Register(req.Context(), info)
	if err != nil {
		h.fail(w, "RegisterHandler", err)
		return
	}
	h.reply(w, "RegisterHandler", http.StatusCreated, m)
}

// Вход по никнейму и email
func (h *Handler) LoginHandler(w http.ResponseWriter, req *http.Request) {
	login := loginRequest{}
	if !h.decode(w, req, "LoginHandler", &login) {
		return
	}
	m, err := h.Sessions.Login(req.Context(), login.Nickname, login.Email)
	if errors.Is(err, models.ErrMemberNotFound) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		h.fail(w, "LoginHandler", err)
		return
	}
	h.reply(w, "LoginHandler", http.StatusOK, m)
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, req *http.Request) {
	h.Sessions.Logout(req.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Сеанс таро
func (h *Handler) UseTarotHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "UseTarotHandler")
	if !ok {
		return
	}
	next, err := h.Ledger.UseTarot(req.Context(), m.Email)
	if err != nil {
		h.fail(w, "UseTarotHandler", err)
		return
	}
	h.reply(w, "UseTarotHandler", http.StatusOK, next)
}

// Ключ для оплаты
func (h *Handler) IssueKeyHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "IssueKeyHandler")
	if !ok {
		return
	}
	key, err := h.Ledger.IssueKey(req.Context(), m.Email)
	if err != nil {
		h.fail(w, "IssueKeyHandler", err)
		return
	}
	h.reply(w, "IssueKeyHandler", http.StatusCreated, KeyResponse{key.Key, key.Credits, h.PurchaseURL})
}

// Активация ключа
func (h *Handler) RedeemHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "RedeemHandler")
	if !ok {
		return
	}
	redeem := redeemRequest{}
	if !h.decode(w, req, "RedeemHandler", &redeem) {
		return
	}
	next, err := h.Ledger.RedeemKey(req.Context(), m.Email, redeem.Key)
	if err != nil && next.Email == "" {
		h.fail(w, "RedeemHandler", err)
		return
	}
	// кредиты уже начислены, не удалось только пометить ключ
	if err != nil {
		h.logger.Warn("Key redeemed but not marked used", zap.String("email", m.Email), zap.Error(err))
	}
	h.reply(w, "RedeemHandler", http.StatusOK, next)
}

// Заявка на балл за пост
func (h *Handler) RequestPointsHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "RequestPointsHandler")
	if !ok {
		return
	}
	pr, err := h.Ledger.RequestPoints(req.Context(), m.Email)
	if err != nil {
		h.fail(w, "RequestPointsHandler", err)
		return
	}
	h.reply(w, "RequestPointsHandler", http.StatusCreated, pr)
}

// Лента рецептов
func (h *Handler) FeedHandler(w http.ResponseWriter, req *http.Request) {
	h.reply(w, "FeedHandler", http.StatusOK, FeedResponse{
		Recipes:    h.Feed.Feed(),
		TodayCount: h.Feed.TodayCount(),
		DailyLimit: models.DailyPostLimit,
	})
}

func (h *Handler) SubmitRecipeHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "SubmitRecipeHandler")
	if !ok {
		return
	}
	draft := services.RecipeDraft{}
	if !h.decode(w, req, "SubmitRecipeHandler", &draft) {
		return
	}
	post, err := h.Feed.Submit(req.Context(), m, draft)
	if err != nil {
		h.fail(w, "SubmitRecipeHandler", err)
		return
	}
	h.reply(w, "SubmitRecipeHandler", http.StatusCreated, post)
}

func (h *Handler) LikeHandler(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Recipe not found", http.StatusNotFound)
		return
	}
	post, err := h.Feed.Like(req.Context(), id)
	if err != nil {
		h.fail(w, "LikeHandler", err)
		return
	}
	h.reply(w, "LikeHandler", http.StatusOK, post)
}

// Гадание дня
func (h *Handler) TodayFortuneHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "TodayFortuneHandler")
	if !ok {
		return
	}
	result, err := h.Fortune.Today(req.Context(), m.Email)
	if err != nil {
		h.fail(w, "TodayFortuneHandler", err)
		return
	}
	h.reply(w, "TodayFortuneHandler", http.StatusOK, FortuneResponse{Result: result})
}

func (h *Handler) DrawFortuneHandler(w http.ResponseWriter, req *http.Request) {
	m, ok := h.current(w, "DrawFortuneHandler")
	if !ok {
		return
	}
	result, drawn, err := h.Fortune.Draw(req.Context(), m.Email)
	if err != nil {
		h.fail(w, "DrawFortuneHandler", err)
		return
	}
	h.reply(w, "DrawFortuneHandler", http.StatusOK, FortuneResponse{&result, drawn})
}

func (h *Handler) AdminMembersHandler(w http.ResponseWriter, req *http.Request) {
	h.reply(w, "AdminMembersHandler", http.StatusOK, h.Admin.Members())
}

func (h *Handler) AdminKeysHandler(w http.ResponseWriter, req *http.Request) {
	h.reply(w, "AdminKeysHandler", http.StatusOK, h.Admin.Keys())
}

func (h *Handler) AdminRequestsHandler(w http.ResponseWriter, req *http.Request) {
	h.reply(w, "AdminRequestsHandler", http.StatusOK, h.Admin.PendingRequests())
}

func (h *Handler) AdminRecipesHandler(w http.ResponseWriter, req *http.Request) {
	h.reply(w, "AdminRecipesHandler", http.StatusOK, h.Admin.Recipes())
}

// Начисление кредитов таро (может быть отрицательным)
func (h *Handler) AdminCreditsHandler(w http.ResponseWriter, req *http.Request) {
	grant := grantRequest{}
	if !h.decode(w, req, "AdminCreditsHandler", &grant) {
		return
	}
	m, err := h.Admin.GrantCredits(req.Context(), grant.Email, grant.Amount)
	if err != nil {
		h.fail(w, "AdminCreditsHandler", err)
		return
	}
	h.reply(w, "AdminCreditsHandler", http.StatusOK, m)
}

// Начисление баллов в магазине
func (h *Handler) AdminPointsHandler(w http.ResponseWriter, req *http.Request) {
	grant := grantRequest{}
	if !h.decode(w, req, "AdminPointsHandler", &grant) {
		return
	}
	m, err := h.Ledger.GrantPoints(req.Context(), grant.Email, grant.Amount)
	if err != nil {
		h.fail(w, "AdminPointsHandler", err)
		return
	}
	h.reply(w, "AdminPointsHandler", http.StatusOK, m)
}

func (h *Handler) ApproveHandler(w http.ResponseWriter, req *http.Request) {
	if err := h.Admin.Approve(req.Context(), mux.Vars(req)["id"]); err != nil {
		h.fail(w, "ApproveHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RejectHandler(w http.ResponseWriter, req *http.Request) {
	if err := h.Admin.Reject(req.Context(), mux.Vars(req)["id"]); err != nil {
		h.fail(w, "RejectHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
