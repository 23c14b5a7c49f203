package membership

import (
	"context"
	"testing"
	"time"

	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCompareValues(t *testing.T) {
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		value1   any
		value2   any
		expected int
	}{
		{day, day.Add(time.Hour), -1},
		{primitive.NewDateTimeFromTime(day), day, 0},
		{int32(5), int64(5), 0},
		{int64(1700000000001), int64(1700000000000), 1},
		{344.3, 200, 1},
		{true, true, 0},
		{true, false, 1},
		{"pending", "pending", 0},
		{"a@b.com", "c@d.com", -1},
	}

	for _, ts := range tests {
		result, err := compareValues(ts.value1, ts.value2)
		require.NoError(t, err, "value1=%v value2=%v", ts.value1, ts.value2)
		require.Equal(t, ts.expected, result, "value1=%v value2=%v", ts.value1, ts.value2)
	}
}

func TestCompareValuesErrors(t *testing.T) {
	tests := []struct {
		value1 any
		value2 any
	}{
		{"2025/01/02", true},
		{"5", 5},
		{false, 244.43},
		{nil, "a"},
	}

	for _, ts := range tests {
		_, err := compareValues(ts.value1, ts.value2)
		require.Error(t, err, "value1=%v value2=%v", ts.value1, ts.value2)
	}
}

func TestMemoryDirectoryFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	_, err := dir.Insert(ctx, models.CollTarotKeys, models.TarotKey{Key: "ABC123", Email: "a@b.com", Credits: 30})
	require.NoError(t, err)

	filter := models.Filter{"key": "ABC123", "email": "a@b.com", "isUsed": false}
	doc, err := dir.FindOne(ctx, models.CollTarotKeys, filter)
	require.NoError(t, err)
	key, err := models.DecodeTarotKey(doc)
	require.NoError(t, err)
	require.Equal(t, 30, key.Credits)

	require.NoError(t, dir.UpdateFields(ctx, doc.Ref, models.Fields{"isUsed": true}))
	_, err = dir.FindOne(ctx, models.CollTarotKeys, filter)
	require.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestMemoryDirectoryIncrement(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	ref, err := dir.Insert(ctx, models.CollRecipes, models.RecipePost{ID: 1, Date: "2025/01/01"})
	require.NoError(t, err)
	require.NoError(t, dir.Increment(ctx, ref, "likes", 1))
	require.NoError(t, dir.Increment(ctx, ref, "likes", 1))

	doc, err := dir.FindOne(ctx, models.CollRecipes, models.Filter{"id": int64(1)})
	require.NoError(t, err)
	recipe, err := models.DecodeRecipe(doc)
	require.NoError(t, err)
	require.Equal(t, 2, recipe.Likes)
}

func TestMemoryDirectorySubscribeOrdered(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	var snapshots [][]models.Document
	cancel, err := dir.Subscribe(ctx, models.CollRecipes, "id", func(docs []models.Document) {
		snapshots = append(snapshots, docs)
	})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Empty(t, snapshots[0])

	_, err = dir.Insert(ctx, models.CollRecipes, models.RecipePost{ID: 1, Date: "2025/01/01"})
	require.NoError(t, err)
	_, err = dir.Insert(ctx, models.CollRecipes, models.RecipePost{ID: 2, Date: "2025/01/01"})
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	last := snapshots[2]
	require.Len(t, last, 2)
	first, err := models.DecodeRecipe(last[0])
	require.NoError(t, err)
	require.Equal(t, int64(2), first.ID)

	cancel()
	_, err = dir.Insert(ctx, models.CollRecipes, models.RecipePost{ID: 3, Date: "2025/01/01"})
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
}

func TestMemoryDirectoryFailing(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	dir.SetFailing(true)

	_, err := dir.Insert(ctx, models.CollMembers, models.Member{Email: "a@b.com"})
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = dir.FindOne(ctx, models.CollMembers, models.Filter{"email": "a@b.com"})
	require.ErrorIs(t, err, ErrUnavailable)
}
