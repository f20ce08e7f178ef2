package metadata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id, owner string, tags ...string) *Record {
	return &Record{
		ImageID:   id,
		OwnerID:   owner,
		ObjectKey: "images/" + id,
		Filename:  id + ".jpg",
		Category:  "post",
		Tags:      tags,
		IsPublic:  true,
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestClauseMatch(t *testing.T) {
	rec := sampleRecord("img1", "u1", "sunset", "beach")
	rec.Filename = "holiday_sunset.jpg"

	assert.True(t, Eq(FieldOwnerID, "u1").Match(rec))
	assert.False(t, Eq(FieldOwnerID, "u2").Match(rec))
	assert.True(t, Eq(FieldIsPublic, true).Match(rec))
	assert.False(t, Eq(FieldIsPublic, false).Match(rec))
	assert.True(t, Contains(FieldTags, "beach").Match(rec))
	assert.False(t, Contains(FieldTags, "city").Match(rec))
	assert.True(t, Substring(FieldFilename, "sunset").Match(rec))
	assert.False(t, Substring(FieldFilename, "winter").Match(rec))
	assert.True(t, AtLeast(FieldCreatedAt, rec.CreatedAt).Match(rec))
	assert.True(t, AtMost(FieldCreatedAt, rec.CreatedAt).Match(rec))
	assert.False(t, AtLeast(FieldCreatedAt, rec.CreatedAt.Add(time.Second)).Match(rec))
	assert.False(t, Eq("unknown", "x").Match(rec))
}

func TestFilterMatchIsConjunction(t *testing.T) {
	rec := sampleRecord("img1", "u1", "sunset", "beach")

	assert.True(t, Filter(nil).Match(rec))
	assert.True(t, Filter{Contains(FieldTags, "sunset"), Contains(FieldTags, "beach")}.Match(rec))
	assert.False(t, Filter{Contains(FieldTags, "sunset"), Contains(FieldTags, "city")}.Match(rec))
}

func TestFilterWithDoesNotAlias(t *testing.T) {
	base := make(Filter, 1, 4)
	base[0] = Eq(FieldCategory, "post")

	a := base.With(Eq(FieldOwnerID, "a"))
	b := base.With(Eq(FieldOwnerID, "b"))

	assert.Len(t, base, 1)
	assert.Equal(t, "a", a[1].Value)
	assert.Equal(t, "b", b[1].Value)
	assert.Equal(t, "category eq post AND user_id eq b", b.String())
}

func TestTokenRoundTrip(t *testing.T) {
	key := map[string]string{FieldImageID: "abc", FieldOwnerID: "u1"}
	tok := EncodeToken(key)
	require.NotEmpty(t, tok)
	assert.Equal(t, key, DecodeToken(tok))

	assert.Equal(t, "", EncodeToken(nil))
	assert.Nil(t, DecodeToken(""))
	assert.Nil(t, DecodeToken("%%%not-base64"))
	assert.Nil(t, DecodeToken("bm90LWpzb24")) // "not-json"
	assert.Nil(t, DecodeToken(EncodeToken(map[string]string{})))
}

func TestOwnerIndex(t *testing.T) {
	name, ok := OwnerIndex([]IndexInfo{{Name: "by-cat", PartitionKey: "category"}, {Name: "by-user", PartitionKey: FieldOwnerID}})
	assert.True(t, ok)
	assert.Equal(t, "by-user", name)

	_, ok = OwnerIndex(nil)
	assert.False(t, ok)
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)

	require.NoError(t, s.Put(ctx, sampleRecord("a", "u1", "x")))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)

	// Returned records do not alias stored state.
	got.Tags[0] = "mutated"
	again, _ := s.Get(ctx, "a")
	assert.Equal(t, []string{"x"}, again.Tags)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Put(ctx, &Record{}))
}

func TestMemoryStorePagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)
	for i := 0; i < 7; i++ {
		owner := "u1"
		if i%2 == 1 {
			owner = "u2"
		}
		require.NoError(t, s.Put(ctx, sampleRecord(fmt.Sprintf("img%02d", i), owner)))
	}

	var seen []string
	token := ""
	for {
		page, err := s.Scan(ctx, nil, 3, token)
		require.NoError(t, err)
		for _, r := range page.Items {
			seen = append(seen, r.ImageID)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	assert.Equal(t, []string{"img00", "img01", "img02", "img03", "img04", "img05", "img06"}, seen)

	page, err := s.Query(ctx, MemoryOwnerIndex, "u2", nil, 10, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Empty(t, page.NextToken)

	_, err = s.Query(ctx, "nope", "u2", nil, 10, "")
	assert.Error(t, err)
}
