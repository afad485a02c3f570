package identity

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestResolveCollectsFacets(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name    string
		req     Request
		ownerID snowflake.ID
		hasID   bool
		emails  []string
	}{
		{
			name:    "verified id and principal email",
			req:     Request{PrincipalID: "1789", PrincipalEmail: "Alice@Example.com"},
			ownerID: 1789,
			hasID:   true,
			emails:  []string{"alice@example.com"},
		},
		{
			name:   "query email only",
			req:    Request{QueryEmail: " bob@example.com "},
			emails: []string{"bob@example.com"},
		},
		{
			name:   "duplicate emails collapse",
			req:    Request{PrincipalEmail: "bob@example.com", QueryEmail: "BOB@example.com"},
			emails: []string{"bob@example.com"},
		},
		{
			name:   "invalid principal id ignored",
			req:    Request{PrincipalID: "not-an-id", QueryEmail: "carol@example.com"},
			emails: []string{"carol@example.com"},
		},
		{
			name:   "zero id ignored",
			req:    Request{PrincipalID: "0", PrincipalEmail: "dan@example.com"},
			emails: []string{"dan@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := r.Resolve(tt.req)
			require.False(t, filter.Empty())

			id, ok := filter.OwnerID()
			assert.Equal(t, tt.hasID, ok)
			assert.Equal(t, tt.ownerID, id)
			assert.Equal(t, tt.emails, filter.Emails())
		})
	}
}

func TestResolveEmpty(t *testing.T) {
	r := NewResolver()

	for _, req := range []Request{
		{},
		{PrincipalID: "abc"},
		{PrincipalID: "-5", QueryEmail: "not an email"},
		{PrincipalEmail: "Alice <alice@example.com>"},
	} {
		assert.True(t, r.Resolve(req).Empty(), "request %+v", req)
	}
}

func TestOwnerPrefersPrincipalEmail(t *testing.T) {
	r := NewResolver()

	owner, ok := r.Owner(Request{PrincipalID: "42", PrincipalEmail: "me@example.com", QueryEmail: "other@example.com"})
	require.True(t, ok)
	require.NotNil(t, owner.ID)
	assert.Equal(t, snowflake.ID(42), *owner.ID)
	require.NotNil(t, owner.Email)
	assert.Equal(t, "me@example.com", *owner.Email)

	owner, ok = r.Owner(Request{QueryEmail: "hint@example.com"})
	require.True(t, ok)
	assert.Nil(t, owner.ID)
	assert.Equal(t, "hint@example.com", *owner.Email)

	_, ok = r.Owner(Request{PrincipalID: "x"})
	assert.False(t, ok)
}

func TestOwnerKeepsEmailHintBesideVerifiedID(t *testing.T) {
	owner, ok := NewResolver().Owner(Request{PrincipalID: "42", QueryEmail: " Hint@Example.com "})
	require.True(t, ok)
	require.NotNil(t, owner.ID)
	assert.Equal(t, snowflake.ID(42), *owner.ID)
	require.NotNil(t, owner.Email)
	assert.Equal(t, "hint@example.com", *owner.Email)
}

func TestFilterMatches(t *testing.T) {
	filter := NewResolver().Resolve(Request{PrincipalID: "7", QueryEmail: "a@example.com"})

	id := snowflake.ID(7)
	other := snowflake.ID(8)
	email := "A@example.com"
	stranger := "z@example.com"

	assert.True(t, filter.Matches(&id, nil))
	assert.True(t, filter.Matches(&other, &email))
	assert.False(t, filter.Matches(&other, &stranger))
	assert.False(t, filter.Matches(nil, nil))
	assert.False(t, Filter{}.Matches(&id, &email))
}

type ownedRow struct {
	ID         int64 `gorm:"primaryKey"`
	OwnerID    *int64
	OwnerEmail *string
}

func setupScopeDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&ownedRow{}))

	ownerA := int64(100)
	ownerB := int64(200)
	emailA := "a@example.com"
	emailC := "c@example.com"
	rows := []ownedRow{
		{ID: 1, OwnerID: &ownerA},
		{ID: 2, OwnerID: &ownerB},
		{ID: 3, OwnerEmail: &emailA},
		{ID: 4, OwnerEmail: &emailC},
		{ID: 5, OwnerID: &ownerB, OwnerEmail: &emailA},
	}
	require.NoError(t, db.Create(&rows).Error)
	return db
}

func scopedIDs(t *testing.T, db *gorm.DB, filter Filter) []int64 {
	t.Helper()
	var ids []int64
	err := db.WithContext(context.Background()).
		Model(&ownedRow{}).
		Scopes(filter.Scope()).
		Where("id > ?", 0).
		Order("id").
		Pluck("id", &ids).Error
	require.NoError(t, err)
	return ids
}

func TestFilterScope(t *testing.T) {
	db := setupScopeDB(t)
	r := NewResolver()

	assert.Equal(t, []int64{1}, scopedIDs(t, db, r.Resolve(Request{PrincipalID: "100"})))
	assert.Equal(t, []int64{3, 5}, scopedIDs(t, db, r.Resolve(Request{QueryEmail: "a@example.com"})))
	assert.Equal(t, []int64{1, 3, 5}, scopedIDs(t, db, r.Resolve(Request{PrincipalID: "100", PrincipalEmail: "a@example.com"})))
	assert.Empty(t, scopedIDs(t, db, Filter{}))
}

func TestPrincipalContext(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{ID: " 9 ", Email: "x@example.com"})

	req := RequestFromContext(ctx, "hint@example.com")
	assert.Equal(t, Request{PrincipalID: "9", PrincipalEmail: "x@example.com", QueryEmail: "hint@example.com"}, req)

	assert.Equal(t, Request{QueryEmail: "h@example.com"}, RequestFromContext(context.Background(), "h@example.com"))
}
