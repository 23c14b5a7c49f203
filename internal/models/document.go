package membership

import "go.mongodb.org/mongo-driver/bson"

// Коллекции Directory Service
const (
	CollMembers       = "members"
	CollRecipes       = "recipes"
	CollTarotKeys     = "tarot_keys"
	CollPointRequests = "point_requests"
)

// Ссылка на документ в коллекции
type DocRef struct {
	Collection string
	ID         string
}

// Документ в том виде, в каком его вернул Directory Service
type Document struct {
	Ref DocRef
	Raw bson.Raw
}

func (d Document) Decode(v any) error {
	return bson.Unmarshal(d.Raw, v)
}

// Фильтр на точное совпадение полей
type Filter map[string]any

// Частичное обновление полей
type Fields map[string]any

func DecodeMember(d Document) (Member, error) {
	var m Member
	if err := d.Decode(&m); err != nil {
		return Member{}, err
	}
	return m, m.Validate()
}

func DecodeTarotKey(d Document) (TarotKey, error) {
	var k TarotKey
	if err := d.Decode(&k); err != nil {
		return TarotKey{}, err
	}
	return k, k.Validate()
}

func DecodePointRequest(d Document) (PointRequest, error) {
	var r PointRequest
	if err := d.Decode(&r); err != nil {
		return PointRequest{}, err
	}
	return r, r.Validate()
}

func DecodeRecipe(d Document) (RecipePost, error) {
	var r RecipePost
	if err := d.Decode(&r); err != nil {
		return RecipePost{}, err
	}
	return r, r.Validate()
}
