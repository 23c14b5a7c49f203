package membership

import (
	"context"
	"crypto/subtle"
	"sync"

	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Панель оператора: живые снимки четырех коллекций и привилегированные действия.
// Доступ по общей статической фразе.
type AdminConsole struct {
	ledger *Ledger
	dir    interf.Directory
	pass   string
	logger *zap.Logger

	mu       sync.RWMutex
	members  []models.Member
	keys     []models.TarotKey
	requests []models.PointRequest
	recipes  []models.RecipePost
	cancels  []func()
}

func NewAdminConsole(ledger *Ledger, pass string, logger *zap.Logger) *AdminConsole {
	return &AdminConsole{ledger: ledger, dir: ledger.dir, pass: pass, logger: logger}
}

func (a *AdminConsole) Authorize(pass string) error {
	if a.pass == "" || subtle.ConstantTimeCompare([]byte(a.pass), []byte(pass)) != 1 {
		return models.ErrForbidden
	}
	return nil
}

// Подписка на все коллекции
func (a *AdminConsole) Start(ctx context.Context) error {
	if a.dir == nil || !a.dir.Online() {
		return models.ErrOffline
	}
	subs := []struct {
		collection string
		order      string
		apply      func([]models.Document)
	}{
		{models.CollMembers, "registeredAt", a.applyMembers},
		{models.CollTarotKeys, "issuedAt", a.applyKeys},
		{models.CollPointRequests, "requestedAt", a.applyRequests},
		{models.CollRecipes, "id", a.applyRecipes},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		g.Go(func() error {
			cancel, err := a.dir.Subscribe(ctx, s.collection, s.order, s.apply)
			if err != nil {
				return err
			}
			if gctx.Err() != nil {
				cancel()
				return nil
			}
			a.mu.Lock()
			a.cancels = append(a.cancels, cancel)
			a.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.Stop()
		return err
	}
	return nil
}

func (a *AdminConsole) Stop() {
	a.mu.Lock()
	cancels := a.cancels
	a.cancels = nil
	a.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func decodeAll[T any](docs []models.Document, decode func(models.Document) (T, error), logger *zap.Logger) []T {
	result := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			logger.Warn("Skip document",
				zap.String("collection", doc.Ref.Collection),
				zap.String("id", doc.Ref.ID),
				zap.Error(err),
			)
			continue
		}
		result = append(result, v)
	}
	return result
}

func (a *AdminConsole) applyMembers(docs []models.Document) {
	members := decodeAll(docs, models.DecodeMember, a.logger)
	a.mu.Lock()
	a.members = members
	a.mu.Unlock()
}

func (a *AdminConsole) applyKeys(docs []models.Document) {
	keys := decodeAll(docs, models.DecodeTarotKey, a.logger)
	a.mu.Lock()
	a.keys = keys
	a.mu.Unlock()
}

// оставляем только pending
func (a *AdminConsole) applyRequests(docs []models.Document) {
	all := decodeAll(docs, models.DecodePointRequest, a.logger)
	pending := make([]models.PointRequest, 0, len(all))
	for _, r := range all {
		if r.Status == models.StatusPending {
			pending = append(pending, r)
		}
	}
	a.mu.Lock()
	a.requests = pending
	a.mu.Unlock()
}

func (a *AdminConsole) applyRecipes(docs []models.Document) {
	recipes := decodeAll(docs, models.DecodeRecipe, a.logger)
	a.mu.Lock()
	a.recipes = recipes
	a.mu.Unlock()
}

func (a *AdminConsole) Members() []models.Member {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.Member(nil), a.members...)
}

func (a *AdminConsole) Keys() []models.TarotKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.TarotKey(nil), a.keys...)
}

func (a *AdminConsole) PendingRequests() []models.PointRequest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.PointRequest(nil), a.requests...)
}

func (a *AdminConsole) Recipes() []models.RecipePost {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.RecipePost(nil), a.recipes...)
}

func (a *AdminConsole) GrantCredits(ctx context.Context, email string, credits int) (models.Member, error) {
	return a.ledger.GrantCredits(ctx, email, credits)
}

func (a *AdminConsole) Approve(ctx context.Context, id string) error {
	return a.ledger.ApprovePointRequest(ctx, id)
}

func (a *AdminConsole) Reject(ctx context.Context, id string) error {
	return a.ledger.RejectPointRequest(ctx, id)
}
