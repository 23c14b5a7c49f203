package membership

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"go.uber.org/zap"
)

const DefaultRecipeImage = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c?w=500"

type RecipeDraft struct {
	MenuName    string `json:"menuName"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Лента рецептов: данные Directory + локальный кэш.
// Лимит постов общий на всех: DailyPostLimit в бизнес-день.
type RecipeFeed struct {
	dir    interf.Directory
	cache  interf.LocalCache
	day    *BusinessDay
	logger *zap.Logger

	mu      sync.Mutex
	remote  []models.RecipePost
	local   []models.RecipePost
	pending map[int64]int // лайки, еще не подтвержденные Directory
	lastID  int64
}

func NewRecipeFeed(dir interf.Directory, cache interf.LocalCache, day *BusinessDay, logger *zap.Logger) *RecipeFeed {
	return &RecipeFeed{
		dir:     dir,
		cache:   cache,
		day:     day,
		logger:  logger,
		pending: make(map[int64]int),
	}
}

func (f *RecipeFeed) online() bool {
	return f.dir != nil && f.dir.Online()
}

// Локальные данные сразу, затем подписка на Directory (если доступен)
func (f *RecipeFeed) Start(ctx context.Context) (func(), error) {
	local, err := f.cache.Recipes(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.local = local
	f.mu.Unlock()

	if !f.online() {
		return func() {}, nil
	}
	cancel, err := f.dir.Subscribe(ctx, models.CollRecipes, "id", f.ApplySnapshot)
	if err != nil {
		f.logger.Warn("Recipe subscription", zap.Error(err))
		return func() {}, nil
	}
	return cancel, nil
}

// Снимок из Directory заменяет удаленную часть ленты; неподтвержденные лайки сохраняются
func (f *RecipeFeed) ApplySnapshot(docs []models.Document) {
	recipes := make([]models.RecipePost, 0, len(docs))
	for _, doc := range docs {
		r, err := models.DecodeRecipe(doc)
		if err != nil {
			f.logger.Warn("Skip recipe document", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		recipes = append(recipes, r)
	}
	f.mu.Lock()
	f.remote = recipes
	f.mu.Unlock()
}

func (f *RecipeFeed) Feed() []models.RecipePost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merged()
}

// remote, затем local; при одинаковом id остается копия из Directory
func (f *RecipeFeed) merged() []models.RecipePost {
	seen := make(map[int64]bool, len(f.remote)+len(f.local))
	result := make([]models.RecipePost, 0, len(f.remote)+len(f.local))
	for _, list := range [][]models.RecipePost{f.remote, f.local} {
		for _, r := range list {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			r.Likes += f.pending[r.ID]
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})
	return result
}

func (f *RecipeFeed) TodayCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.todayCount()
}

func (f *RecipeFeed) todayCount() int {
	today := f.day.TodayKey()
	count := 0
	for _, r := range f.merged() {
		if r.Date == today {
			count++
		}
	}
	return count
}

func (f *RecipeFeed) Submit(ctx context.Context, author models.Member, draft RecipeDraft) (models.RecipePost, error) {
	if strings.TrimSpace(draft.MenuName) == "" {
		return models.RecipePost{}, models.ErrFieldRequired
	}
	image := draft.Image
	if image == "" {
		image = DefaultRecipeImage
	}

	// проверка лимита и место в ленте - под одной блокировкой
	f.mu.Lock()
	if f.todayCount() >= models.DailyPostLimit {
		f.mu.Unlock()
		return models.RecipePost{}, models.ErrDailyQuota
	}
	id := f.day.Now().UnixMilli()
	if id <= f.lastID {
		id = f.lastID + 1
	}
	f.lastID = id
	post := models.RecipePost{
		ID:          id,
		Author:      author.Nickname,
		MenuName:    strings.TrimSpace(draft.MenuName),
		Description: draft.Description,
		Image:       image,
		Date:        f.day.TodayKey(),
	}
	f.local = prependRecent(f.local, post)
	f.mu.Unlock()

	if f.online() {
		if len(image) < models.MaxInlineImage {
			if _, err := f.dir.Insert(ctx, models.CollRecipes, post); err != nil {
				f.logger.Warn("Recipe save to directory failed, local only", zap.Error(err))
			}
		} else {
			f.logger.Warn("Recipe image too large for directory, local only", zap.Int64("id", id))
		}
	}
	if err := f.cache.PushRecipe(ctx, post); err != nil {
		f.logger.Error("Recipe local save", zap.Error(err))
	}
	return post, nil
}

// новый пост в начало, не больше RecentRecipes, как в локальном кэше
func prependRecent(list []models.RecipePost, post models.RecipePost) []models.RecipePost {
	result := make([]models.RecipePost, 0, min(len(list)+1, models.RecentRecipes))
	result = append(result, post)
	for _, r := range list {
		if len(result) == models.RecentRecipes {
			break
		}
		if r.ID != post.ID {
			result = append(result, r)
		}
	}
	return result
}

// Лайк: сразу +1 в памяти, затем атомарный $inc в Directory
func (f *RecipeFeed) Like(ctx context.Context, id int64) (models.RecipePost, error) {
	f.mu.Lock()
	var post *models.RecipePost
	for _, r := range f.merged() {
		if r.ID == id {
			post = &r
			break
		}
	}
	if post == nil {
		f.mu.Unlock()
		return models.RecipePost{}, models.ErrRecipeNotFound
	}
	f.pending[id]++
	post.Likes++
	f.mu.Unlock()

	if !f.online() {
		return *post, nil
	}
	applied, err := f.increment(ctx, id)
	if err != nil {
		f.logger.Warn("Like update failed", zap.Int64("id", id), zap.Error(err))
	}
	// не дошло до Directory - остается в памяти как оптимистичное значение
	if !applied {
		return *post, nil
	}
	f.mu.Lock()
	f.pending[id]--
	if f.pending[id] <= 0 {
		delete(f.pending, id)
	}
	f.mu.Unlock()
	return *post, nil
}

func (f *RecipeFeed) increment(ctx context.Context, id int64) (bool, error) {
	doc, err := f.dir.FindOne(ctx, models.CollRecipes, models.Filter{"id": id})
	if errors.Is(err, models.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := f.dir.Increment(ctx, doc.Ref, "likes", 1); err != nil {
		return false, err
	}
	return true, nil
}
