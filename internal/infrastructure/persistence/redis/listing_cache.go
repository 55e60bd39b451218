package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/pkg/circuitbreaker"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED LISTING REPOSITORY
// Decorates the PostgreSQL listing repository with a Redis read-through cache.
// Every cache access goes through a circuit breaker: when Redis degrades the
// breaker opens and reads go straight to PostgreSQL without waiting on Redis.
// ══════════════════════════════════════════════════════════════════════════════

// Store is the subset of Cache operations the decorator needs.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedListingRepository implements listing.Repository with a cache in front
// of another repository implementation.
type CachedListingRepository struct {
	next    listing.Repository
	cache   Store
	breaker *circuitbreaker.Breaker
	logger  *logger.Logger
}

// NewCachedListingRepository creates the caching decorator.
func NewCachedListingRepository(next listing.Repository, cache Store, breaker *circuitbreaker.Breaker, log *logger.Logger) *CachedListingRepository {
	return &CachedListingRepository{
		next:    next,
		cache:   cache,
		breaker: breaker,
		logger:  log.With(logger.Component("listing_cache")),
	}
}

// Create creates a listing and invalidates the category page.
func (r *CachedListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	if err := r.next.Create(ctx, l); err != nil {
		return err
	}
	r.invalidate(ctx, CategoryKey(l.Category))
	return nil
}

// GetByID returns a listing, serving from cache when possible.
func (r *CachedListingRepository) GetByID(ctx context.Context, id string) (*listing.Listing, error) {
	key := ListingKey(id)

	var cached listing.Listing
	if r.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	l, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.backfill(ctx, key, l, TTLListing)
	return l, nil
}

// GetBySeller returns the seller's listings. A seller's own view must reflect
// their edits immediately, so it is never cached.
func (r *CachedListingRepository) GetBySeller(ctx context.Context, seller user.TelegramID, opts listing.ListOptions) ([]*listing.Listing, error) {
	return r.next.GetBySeller(ctx, seller, opts)
}

// Search is not cached: the query space is unbounded.
func (r *CachedListingRepository) Search(ctx context.Context, query string, opts listing.ListOptions) ([]*listing.Listing, error) {
	return r.next.Search(ctx, query, opts)
}

// GetByCategory returns a category page, caching the first page only.
func (r *CachedListingRepository) GetByCategory(ctx context.Context, category string, opts listing.ListOptions) ([]*listing.Listing, error) {
	if opts.Offset != 0 {
		return r.next.GetByCategory(ctx, category, opts)
	}

	key := CategoryKey(category)

	var cached []*listing.Listing
	if r.lookup(ctx, key, &cached) {
		return cached, nil
	}

	out, err := r.next.GetByCategory(ctx, category, opts)
	if err != nil {
		return nil, err
	}

	r.backfill(ctx, key, out, TTLCategory)
	return out, nil
}

// Update updates a listing and invalidates its cache entries.
func (r *CachedListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	if err := r.next.Update(ctx, l); err != nil {
		return err
	}
	r.invalidate(ctx, ListingKey(l.ID), CategoryKey(l.Category))
	return nil
}

// Count returns the number of active listings.
func (r *CachedListingRepository) Count(ctx context.Context) (int, error) {
	return r.next.Count(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache access helpers
// ─────────────────────────────────────────────────────────────────────────────

// lookup reports whether the key was served from cache. A miss is a normal
// outcome and must not trip the breaker; only transport errors count.
func (r *CachedListingRepository) lookup(ctx context.Context, key string, dest interface{}) bool {
	miss := false
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		err := r.cache.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			r.logger.Warn("cache read failed, falling back to database",
				logger.String("key", key),
				logger.Err(err),
			)
		}
		return false
	}
	return !miss
}

func (r *CachedListingRepository) backfill(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Set(ctx, key, value, ttl)
	})
	if err != nil && !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		r.logger.Warn("cache backfill failed", logger.String("key", key), logger.Err(err))
	}
}

func (r *CachedListingRepository) invalidate(ctx context.Context, keys ...string) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Delete(ctx, keys...)
	})
	if err != nil && !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		r.logger.Warn("cache invalidation failed", logger.Err(err))
	}
}
