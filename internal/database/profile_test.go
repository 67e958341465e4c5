package database

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/maltedev/catawiki-seller-parser/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() *models.SellerProfile {
	p := models.NewSellerProfile()
	p.Name = models.StringPtr("Jane Doe")
	p.Location = models.StringPtr("France")
	p.Reviews = append(p.Reviews, models.Review{
		Author: models.StringPtr("Marie"),
		Type:   models.StringPtr("Positive"),
	})
	return p
}

func TestNewExtractedEvent(t *testing.T) {
	repo := &ProfileRepository{stream: "stream:test"}
	stored := &StoredProfile{
		ID:         uuid.New(),
		SourceHash: "abc123",
		Profile:    testProfile(),
	}

	event, err := repo.newExtractedEvent(stored)
	require.NoError(t, err)

	assert.Equal(t, AggregateTypeSellerProfile, event.AggregateType)
	assert.Equal(t, stored.ID.String(), event.AggregateID)
	assert.Equal(t, EventTypeProfileExtracted, event.EventType)
	assert.Equal(t, "stream:test", event.TargetStream)
	require.NoError(t, event.validate())

	var payload ProfileExtractedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "abc123", payload.SourceHash)
	assert.Equal(t, "Jane Doe", *payload.Name)
	assert.Equal(t, 1, payload.ReviewCount)
	assert.NotEmpty(t, payload.EventID)
}

func TestNewProfileRepositoryDefaultStream(t *testing.T) {
	repo := NewProfileRepository(nil, "")
	assert.Equal(t, DefaultStream, repo.stream)
}

func TestProfileRepository_SaveProfile(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewProfileRepository(db, DefaultStream)
	hash := uuid.NewString()

	first, inserted, err := repo.SaveProfile(ctx, hash, testProfile())
	require.NoError(t, err)
	assert.True(t, inserted)

	second, inserted, err := repo.SaveProfile(ctx, hash, testProfile())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)

	loaded, err := repo.GetProfile(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, hash, loaded.SourceHash)
	assert.Equal(t, "Jane Doe", loaded.Profile.DisplayName())
	require.Len(t, loaded.Profile.Reviews, 1)

	summaries, err := repo.ListProfiles(ctx, 100)
	require.NoError(t, err)
	found := false
	for _, s := range summaries {
		if s.ID == first.ID {
			found = true
			assert.Equal(t, 1, s.ReviewCount)
		}
	}
	assert.True(t, found)

	events, err := repo.outbox.GetPending(ctx, 1000)
	require.NoError(t, err)
	count := 0
	for _, e := range events {
		if e.AggregateID == first.ID.String() {
			count++
		}
	}
	assert.Equal(t, 1, count, "a repeated document must not emit a second event")
}

func TestProfileRepository_GetProfileNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := NewProfileRepository(db, "").GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileRepository_SaveProfileRequiresHash(t *testing.T) {
	_, _, err := NewProfileRepository(nil, "").SaveProfile(context.Background(), "", testProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source hash is required")
}
