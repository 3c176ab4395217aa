package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestGetOperatorContext(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	require.NoError(t, svc.UpsertOperatorContext(&OperatorContext{
		UserID:     "user-1",
		TenantID:   "tenant-a",
		Attributes: json.RawMessage(`{"companyRegistration":"IT-12345"}`),
	}))

	opCtx, err := svc.GetOperatorContext("user-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", opCtx.TenantID)

	attrs, err := opCtx.AttributesMap()
	require.NoError(t, err)
	assert.Equal(t, "IT-12345", attrs["companyRegistration"])
}

func TestGetOperatorContextUnknownUser(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	_, err := svc.GetOperatorContext("nobody")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = svc.GetOperatorContext("")
	assert.Error(t, err)
}

func TestUpsertOperatorContextReplaces(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	require.NoError(t, svc.UpsertOperatorContext(&OperatorContext{UserID: "user-1", TenantID: "tenant-a"}))
	require.NoError(t, svc.UpsertOperatorContext(&OperatorContext{UserID: "user-1", TenantID: "tenant-b"}))

	opCtx, err := svc.GetOperatorContext("user-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", opCtx.TenantID)

	var count int64
	require.NoError(t, db.Model(&OperatorContext{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestExtractUserIDFromHeader(t *testing.T) {
	te := NewTokenExtractor()

	userID, err := te.ExtractUserIDFromHeader("Bearer user-42")
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	_, err = te.ExtractUserIDFromHeader("Basic dXNlcjpwYXNz")
	assert.Error(t, err)

	_, err = te.ExtractUserIDFromHeader("Bearer ")
	assert.Error(t, err)

	_, err = te.ExtractUserIDFromHeader("")
	assert.Error(t, err)
}

func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "user-1", TenantID: "tenant-a"})

	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", actor.UserID)
	assert.Equal(t, "tenant-a", actor.TenantID)

	_, ok = ActorFromContext(context.Background())
	assert.False(t, ok)

	partial := WithActor(context.Background(), Actor{UserID: "user-1"})
	_, ok = ActorFromContext(partial)
	assert.False(t, ok, "actor without a tenant is not usable")
}
