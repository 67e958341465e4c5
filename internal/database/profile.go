package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catawiki-seller-parser/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

const (
	AggregateTypeSellerProfile = "seller_profile"
	EventTypeProfileExtracted  = "SELLER_PROFILE_EXTRACTED"
)

// StoredProfile is a seller profile row together with its record.
type StoredProfile struct {
	ID         uuid.UUID             `json:"id"`
	SourceHash string                `json:"source_hash"`
	Profile    *models.SellerProfile `json:"profile"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

type ProfileSummary struct {
	ID          uuid.UUID `json:"id"`
	SourceHash  string    `json:"source_hash"`
	Name        *string   `json:"name,omitempty"`
	Location    *string   `json:"location,omitempty"`
	ReviewCount int       `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileExtractedPayload is the outbox payload for SELLER_PROFILE_EXTRACTED.
type ProfileExtractedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	ProfileID   string    `json:"profile_id"`
	SourceHash  string    `json:"source_hash"`
	Name        *string   `json:"name,omitempty"`
	Location    *string   `json:"location,omitempty"`
	ReviewCount int       `json:"review_count"`
	Source      string    `json:"source"`
}

// ProfileRepository persists extracted profiles. A new row and its outbox
// event are written in one transaction.
type ProfileRepository struct {
	db     *DB
	outbox *OutboxRepository
	stream string
}

func NewProfileRepository(db *DB, stream string) *ProfileRepository {
	if stream == "" {
		stream = DefaultStream
	}
	return &ProfileRepository{
		db:     db,
		outbox: NewOutboxRepository(db),
		stream: stream,
	}
}

// SaveProfile upserts the profile keyed by the hash of its source document.
// The returned bool is true when a new row was created.
func (r *ProfileRepository) SaveProfile(ctx context.Context, sourceHash string, profile *models.SellerProfile) (*StoredProfile, bool, error) {
	if sourceHash == "" {
		return nil, false, fmt.Errorf("source hash is required")
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal profile: %w", err)
	}

	stored := &StoredProfile{
		ID:         uuid.New(),
		SourceHash: sourceHash,
		Profile:    profile,
	}
	var inserted bool

	query := `
		INSERT INTO seller_profiles (id, source_hash, name, location, review_count, profile)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_hash) DO UPDATE SET
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	err = r.db.Transaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			stored.ID, sourceHash, profile.Name, profile.Location, len(profile.Reviews), data,
		).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt, &inserted)
		if err != nil {
			return fmt.Errorf("failed to upsert profile: %w", err)
		}

		if !inserted {
			return nil
		}

		event, err := r.newExtractedEvent(stored)
		if err != nil {
			return err
		}
		return r.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return nil, false, err
	}

	return stored, inserted, nil
}

func (r *ProfileRepository) newExtractedEvent(stored *StoredProfile) (*OutboxEvent, error) {
	payload := ProfileExtractedPayload{
		EventID:     uuid.New().String(),
		EventType:   EventTypeProfileExtracted,
		Timestamp:   time.Now(),
		ProfileID:   stored.ID.String(),
		SourceHash:  stored.SourceHash,
		Name:        stored.Profile.Name,
		Location:    stored.Profile.Location,
		ReviewCount: len(stored.Profile.Reviews),
		Source:      "seller-profile-parser",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &OutboxEvent{
		AggregateType: AggregateTypeSellerProfile,
		AggregateID:   stored.ID.String(),
		EventType:     EventTypeProfileExtracted,
		Payload:       data,
		TargetStream:  r.stream,
	}, nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id uuid.UUID) (*StoredProfile, error) {
	query := `
		SELECT id, source_hash, profile, created_at, updated_at
		FROM seller_profiles
		WHERE id = $1`

	stored := &StoredProfile{}
	var data []byte
	err := r.db.pool.QueryRow(ctx, query, id).Scan(
		&stored.ID, &stored.SourceHash, &data, &stored.CreatedAt, &stored.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	stored.Profile = models.NewSellerProfile()
	if err := json.Unmarshal(data, stored.Profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return stored, nil
}

// ListProfiles returns the most recently stored profiles first.
func (r *ProfileRepository) ListProfiles(ctx context.Context, limit int) ([]ProfileSummary, error) {
	query := `
		SELECT id, source_hash, name, location, review_count, created_at
		FROM seller_profiles
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	summaries := make([]ProfileSummary, 0, limit)
	for rows.Next() {
		var s ProfileSummary
		if err := rows.Scan(&s.ID, &s.SourceHash, &s.Name, &s.Location, &s.ReviewCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return summaries, nil
}
