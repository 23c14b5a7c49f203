package membership

import (
	"context"

	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
)

//go:generate mockgen -destination=./../services/mock_membership_test.go -package=membership . Directory

// Directory Service: удаленное хранилище документов. Любой вызов может упасть.
type Directory interface {
	Online() bool
	FindOne(ctx context.Context, collection string, filter models.Filter) (models.Document, error)
	Insert(ctx context.Context, collection string, record any) (models.DocRef, error)
	UpdateFields(ctx context.Context, ref models.DocRef, fields models.Fields) error
	Increment(ctx context.Context, ref models.DocRef, field string, delta int) error
	Subscribe(ctx context.Context, collection string, orderField string, onChange func([]models.Document)) (cancel func(), err error)
}

// Локальный кэш на устройстве
type LocalCache interface {
	Members(ctx context.Context) ([]models.Member, error)
	SaveMember(ctx context.Context, member models.Member) error
	SessionEmail(ctx context.Context) (string, error)
	SetSessionEmail(ctx context.Context, email string) error
	ClearSessionEmail(ctx context.Context) error
	Fortune(ctx context.Context, email string) (*models.FortuneResult, error)
	SaveFortune(ctx context.Context, email string, result models.FortuneResult) error
	Recipes(ctx context.Context) ([]models.RecipePost, error)
	PushRecipe(ctx context.Context, recipe models.RecipePost) error
}

// Хранилище JSON-блобов под LocalCache
type BlobStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Генерация серийных номеров, ключей и ID
type IDGenerator interface {
	SerialNumber() string
	Key() string
	RequestID() string
}

// Уведомления оператору
type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

// Журнал изменений счетчиков
type AuditLog interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}
