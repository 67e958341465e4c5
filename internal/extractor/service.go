package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/catawiki-seller-parser/internal/database"
	"github.com/maltedev/catawiki-seller-parser/internal/metrics"
	"github.com/maltedev/catawiki-seller-parser/internal/models"
	"github.com/maltedev/catawiki-seller-parser/internal/parser"
)

type ProfileCache interface {
	Get(ctx context.Context, sourceHash string) (*models.SellerProfile, bool, error)
	Set(ctx context.Context, sourceHash string, profile *models.SellerProfile) error
}

type ProfileStore interface {
	SaveProfile(ctx context.Context, sourceHash string, profile *models.SellerProfile) (*database.StoredProfile, bool, error)
}

// Extraction is the outcome of one Extract call.
type Extraction struct {
	Profile    *models.SellerProfile
	SourceHash string
	ProfileID  string
	Cached     bool
}

// Service runs the profile parser behind an optional result cache and an
// optional profile store.
type Service struct {
	parser  parser.Parser
	cache   ProfileCache
	store   ProfileStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithCache(c ProfileCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithStore(st ProfileStore) Option {
	return func(s *Service) { s.store = st }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(p parser.Parser, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		parser: p,
		logger: logger.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// SourceHash returns the hex sha256 of a document.
func SourceHash(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// Extract parses the document, or returns the cached record for an
// identical document. Cache and store failures are logged and do not fail
// the extraction.
func (s *Service) Extract(ctx context.Context, document []byte) (*Extraction, error) {
	result := &Extraction{SourceHash: SourceHash(document)}

	if s.cache != nil {
		profile, ok, err := s.cache.Get(ctx, result.SourceHash)
		switch {
		case err != nil:
			s.metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("cache lookup failed", "source_hash", result.SourceHash, "error", err)
		case ok:
			s.metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			result.Profile = profile
			result.Cached = true
		default:
			s.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	if result.Profile == nil {
		profile, err := s.parse(document)
		if err != nil {
			return nil, err
		}
		result.Profile = profile

		if s.cache != nil {
			if err := s.cache.Set(ctx, result.SourceHash, profile); err != nil {
				s.logger.Warn("failed to cache profile", "source_hash", result.SourceHash, "error", err)
			}
		}
	}

	if s.store != nil {
		stored, inserted, err := s.store.SaveProfile(ctx, result.SourceHash, result.Profile)
		if err != nil {
			s.logger.Error("failed to store profile", "source_hash", result.SourceHash, "error", err)
		} else {
			result.ProfileID = stored.ID.String()
			s.logger.Debug("profile stored", "profile_id", result.ProfileID, "new", inserted)
		}
	}

	return result, nil
}

func (s *Service) parse(document []byte) (*models.SellerProfile, error) {
	start := time.Now()
	profile, err := s.parser.ParseProfileBytes(document)
	s.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var parseErr *parser.ParseError
		if errors.As(err, &parseErr) {
			s.metrics.ExtractionsTotal.WithLabelValues(metrics.ResultParseError).Inc()
		} else {
			s.metrics.ExtractionsTotal.WithLabelValues(metrics.ResultError).Inc()
		}
		return nil, err
	}

	s.metrics.ExtractionsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.metrics.ReviewsExtracted.Add(float64(len(profile.Reviews)))

	missing := profile.MissingFields()
	for _, field := range missing {
		s.metrics.MissingFieldsTotal.WithLabelValues(field).Inc()
	}

	s.logger.Info("profile extracted",
		"name", profile.DisplayName(),
		"reviews", len(profile.Reviews),
		"missing_fields", missing)

	return profile, nil
}
