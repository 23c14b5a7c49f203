package membership

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultNickname = "Guest"
	Unset           = "unset"

	FreeTarotUses  = 3  // бесплатные сеансы таро
	KeyCredits     = 30 // кредиты за один ключ
	KeyLength      = 6
	DailyPostLimit = 10 // общий лимит рецептов в день
	RecentRecipes  = 30 // сколько рецептов хранится локально
	MaxInlineImage = 1000000
)

// Участник программы лояльности. Ключ - нормализованный email.
type Member struct {
	Nickname         string     `bson:"nickname" json:"nickname"`
	Email            string     `bson:"email" json:"email"`
	Gender           string     `bson:"gender" json:"gender"`
	AgeGroup         string     `bson:"ageGroup" json:"ageGroup"`
	SerialNumber     string     `bson:"serialNumber" json:"serialNumber"`
	Points           int        `bson:"points" json:"points"`
	IsSubscribed     bool       `bson:"isSubscribed" json:"isSubscribed"`
	TarotUsesCount   int        `bson:"tarotUsesCount" json:"tarotUsesCount"`
	TarotCredits     int        `bson:"tarotCredits" json:"tarotCredits"`
	TarotMemberSince *time.Time `bson:"tarotMemberSince,omitempty" json:"tarotMemberSince,omitempty"`
	RegisteredAt     time.Time  `bson:"registeredAt" json:"registeredAt"`
}

func (m Member) Validate() error {
	if m.Email == "" || m.Email != NormalizeEmail(m.Email) {
		return fmt.Errorf("%w: member email %q", ErrMalformedDocument, m.Email)
	}
	if m.Points < 0 || m.TarotUsesCount < 0 || m.TarotCredits < 0 {
		return fmt.Errorf("%w: negative counter for %s", ErrMalformedDocument, m.Email)
	}
	return nil
}

// Ключ оплаты таро
type TarotKey struct {
	Key      string    `bson:"key" json:"key"`
	Email    string    `bson:"email" json:"email"`
	Credits  int       `bson:"credits" json:"credits"`
	IsUsed   bool      `bson:"isUsed" json:"isUsed"`
	IssuedAt time.Time `bson:"issuedAt" json:"issuedAt"`
}

func (k TarotKey) Validate() error {
	if len(k.Key) != KeyLength || k.Key != strings.ToUpper(k.Key) {
		return fmt.Errorf("%w: tarot key %q", ErrMalformedDocument, k.Key)
	}
	if k.Email == "" || k.Credits <= 0 {
		return fmt.Errorf("%w: tarot key %s", ErrMalformedDocument, k.Key)
	}
	return nil
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

const RequestInstagram = "instagram"

// Заявка на начисление балла (подтверждение поста в соцсети)
type PointRequest struct {
	ID          string        `bson:"id" json:"id"`
	MemberEmail string        `bson:"memberEmail" json:"memberEmail"`
	Nickname    string        `bson:"nickname" json:"nickname"`
	Type        string        `bson:"type" json:"type"`
	Status      RequestStatus `bson:"status" json:"status"`
	RequestedAt time.Time     `bson:"requestedAt" json:"requestedAt"`
}

func (r PointRequest) Validate() error {
	if r.ID == "" || r.MemberEmail == "" {
		return fmt.Errorf("%w: point request %q", ErrMalformedDocument, r.ID)
	}
	if r.Type != RequestInstagram {
		return fmt.Errorf("%w: point request type %q", ErrMalformedDocument, r.Type)
	}
	switch r.Status {
	case StatusPending, StatusApproved, StatusRejected:
	default:
		return fmt.Errorf("%w: point request status %q", ErrMalformedDocument, r.Status)
	}
	return nil
}

// Рецепт из ленты. ID - время создания в миллисекундах, он же ключ сортировки
type RecipePost struct {
	ID          int64  `bson:"id" json:"id"`
	Author      string `bson:"author" json:"author"`
	MenuName    string `bson:"menuName" json:"menuName"`
	Description string `bson:"description" json:"description"`
	Image       string `bson:"image" json:"image"`
	Date        string `bson:"date" json:"date"`
	Likes       int    `bson:"likes" json:"likes"`
}

func (r RecipePost) Validate() error {
	if r.ID <= 0 || r.Date == "" {
		return fmt.Errorf("%w: recipe %d", ErrMalformedDocument, r.ID)
	}
	if r.Likes < 0 {
		return fmt.Errorf("%w: recipe %d likes", ErrMalformedDocument, r.ID)
	}
	return nil
}

// Результат гадания за день
type FortuneResult struct {
	Date    string `json:"date"`
	Tier    string `json:"result"`
	Benefit string `json:"benefit"`
}

// Данные регистрации
type RegisterInfo struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Gender   string `json:"gender"`
	AgeGroup string `json:"ageGroup"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeNickname(nickname string) string {
	return strings.TrimSpace(nickname)
}

func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
