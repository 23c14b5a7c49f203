package membership

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
)

// Локальный кэш: плоские ключи с JSON.
// Все операции чтение-изменение-запись идут под одной блокировкой.
type CacheService struct {
	blobs  interf.BlobStorage
	prefix string
	mu     sync.Mutex
}

func NewCacheService(blobs interf.BlobStorage, prefix string) *CacheService {
	if prefix == "" {
		prefix = "warakado"
	}
	return &CacheService{blobs: blobs, prefix: prefix}
}

func (c *CacheService) membersKey() string {
	return c.prefix + ":members"
}

func (c *CacheService) sessionKey() string {
	return c.prefix + ":session_email"
}

func (c *CacheService) fortuneKey(email string) string {
	return c.prefix + ":fortune:" + email
}

func (c *CacheService) recipesKey() string {
	return c.prefix + ":recipes"
}

// чтение JSON; отсутствие ключа - не ошибка
func (c *CacheService) load(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.blobs.Get(ctx, key)
	if errors.Is(err, models.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (c *CacheService) store(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.blobs.Set(ctx, key, data)
}

func (c *CacheService) Members(ctx context.Context) ([]models.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members(ctx)
}

func (c *CacheService) members(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	_, err := c.load(ctx, c.membersKey(), &members)
	return members, err
}

func (c *CacheService) SaveMember(ctx context.Context, member models.Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	members, err := c.members(ctx)
	if err != nil {
		return err
	}
	found := false
	for i := range members {
		if members[i].Email == member.Email {
			members[i] = member
			found = true
			break
		}
	}
	if !found {
		members = append(members, member)
	}
	return c.store(ctx, c.membersKey(), members)
}

func (c *CacheService) SessionEmail(ctx context.Context) (string, error) {
	var email string
	_, err := c.load(ctx, c.sessionKey(), &email)
	return email, err
}

func (c *CacheService) SetSessionEmail(ctx context.Context, email string) error {
	return c.store(ctx, c.sessionKey(), email)
}

func (c *CacheService) ClearSessionEmail(ctx context.Context) error {
	return c.blobs.Del(ctx, c.sessionKey())
}

func (c *CacheService) Fortune(ctx context.Context, email string) (*models.FortuneResult, error) {
	result := &models.FortuneResult{}
	ok, err := c.load(ctx, c.fortuneKey(email), result)
	if err != nil || !ok {
		return nil, err
	}
	return result, nil
}

func (c *CacheService) SaveFortune(ctx context.Context, email string, result models.FortuneResult) error {
	return c.store(ctx, c.fortuneKey(email), result)
}

func (c *CacheService) Recipes(ctx context.Context) ([]models.RecipePost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recipes(ctx)
}

func (c *CacheService) recipes(ctx context.Context) ([]models.RecipePost, error) {
	var recipes []models.RecipePost
	_, err := c.load(ctx, c.recipesKey(), &recipes)
	return recipes, err
}

// новый рецепт в начало списка, храним не больше RecentRecipes
func (c *CacheService) PushRecipe(ctx context.Context, recipe models.RecipePost) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	recipes, err := c.recipes(ctx)
	if err != nil {
		return err
	}
	list := make([]models.RecipePost, 0, len(recipes)+1)
	list = append(list, recipe)
	for _, r := range recipes {
		if r.ID != recipe.ID {
			list = append(list, r)
		}
	}
	if len(list) > models.RecentRecipes {
		list = list[:models.RecentRecipes]
	}
	return c.store(ctx, c.recipesKey(), list)
}
