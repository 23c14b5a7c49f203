package membership

import (
	"context"
	"math/rand/v2"

	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"go.uber.org/zap"
)

type Tier struct {
	Threshold float64 // накопленная вероятность
	Name      string
	Benefit   string
}

var Tiers = []Tier{
	{0.10, "大吉", "本日100円引きクーポン"},
	{0.25, "吉", "本日50円引きクーポン"},
	{0.45, "中吉", "本日30円引きクーポン"},
	{0.80, "末吉", "本日10円引きクーポン"},
	{1.00, "はずれ", "残念！また明日引いてね"},
}

func pickTier(r float64) Tier {
	for _, t := range Tiers {
		if r < t.Threshold {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// Ежедневное гадание: один результат на участника в день
type FortuneTeller struct {
	cache  interf.LocalCache
	day    *BusinessDay
	rand   func() float64
	logger *zap.Logger
}

func NewFortuneTeller(cache interf.LocalCache, day *BusinessDay, logger *zap.Logger) *FortuneTeller {
	return &FortuneTeller{cache, day, rand.Float64, logger}
}

// Сохраненный результат за сегодня или nil
func (f *FortuneTeller) Today(ctx context.Context, email string) (*models.FortuneResult, error) {
	stored, err := f.cache.Fortune(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.Date != f.day.TodayKey() {
		return nil, nil
	}
	return stored, nil
}

// Если сегодня уже тянули - возвращаем тот же результат (drawn=false)
func (f *FortuneTeller) Draw(ctx context.Context, email string) (result models.FortuneResult, drawn bool, err error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return models.FortuneResult{}, false, models.ErrNoSession
	}
	today, err := f.Today(ctx, email)
	if err != nil {
		return models.FortuneResult{}, false, err
	}
	if today != nil {
		return *today, false, nil
	}

	tier := pickTier(f.rand())
	result = models.FortuneResult{Date: f.day.TodayKey(), Tier: tier.Name, Benefit: tier.Benefit}
	if err := f.cache.SaveFortune(ctx, email, result); err != nil {
		return models.FortuneResult{}, false, err
	}
	f.logger.Debug("Fortune drawn", zap.String("email", email), zap.String("tier", tier.Name))
	return result, true, nil
}
