package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// LISTING REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const listingColumns = `id, seller_telegram_id, title, description, category,
	   price, status, created_at, updated_at`

// ListingRepository implements listing.Repository for PostgreSQL.
type ListingRepository struct {
	conn *Connection
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

// Create creates a new listing.
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	query := `
		INSERT INTO listings (
			id, seller_telegram_id, title, description, category,
			price, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		int64(l.SellerTelegramID),
		l.Title,
		l.Description,
		l.Category,
		int64(l.Price),
		string(l.Status),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create listing: %w", err)
	}

	return nil
}

// GetByID returns a listing by ID.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*listing.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = $1", listingColumns)

	l, err := r.scanListing(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return l, nil
}

// GetBySeller returns the seller's listings, newest first.
func (r *ListingRepository) GetBySeller(ctx context.Context, seller user.TelegramID, opts listing.ListOptions) ([]*listing.Listing, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE seller_telegram_id = $1 AND status <> 'removed'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, listingColumns)

	rows, err := r.conn.Query(ctx, query, int64(seller), normalizeLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("get listings by seller: %w", err)
	}
	defer rows.Close()

	return r.collectListings(rows)
}

// Search returns active listings whose title contains the query,
// case-insensitively, newest first.
func (r *ListingRepository) Search(ctx context.Context, query string, opts listing.ListOptions) ([]*listing.Listing, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE status = 'active' AND title ILIKE '%%' || $1 || '%%'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, listingColumns)

	rows, err := r.conn.Query(ctx, sql, query, normalizeLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}
	defer rows.Close()

	return r.collectListings(rows)
}

// GetByCategory returns active listings of a category, newest first.
func (r *ListingRepository) GetByCategory(ctx context.Context, category string, opts listing.ListOptions) ([]*listing.Listing, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE status = 'active' AND category = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, listingColumns)

	rows, err := r.conn.Query(ctx, query, category, normalizeLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("get listings by category: %w", err)
	}
	defer rows.Close()

	return r.collectListings(rows)
}

// Update updates a listing.
func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	query := `
		UPDATE listings SET
			title = $1,
			description = $2,
			category = $3,
			price = $4,
			status = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := r.conn.Exec(ctx, query,
		l.Title,
		l.Description,
		l.Category,
		int64(l.Price),
		string(l.Status),
		l.UpdatedAt,
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrListingNotFound
	}

	return nil
}

// Count returns the number of active listings.
func (r *ListingRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM listings WHERE status = 'active'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ListingRepository) scanListing(row pgx.Row) (*listing.Listing, error) {
	var l listing.Listing
	var sellerID, price int64
	var status string

	err := row.Scan(
		&l.ID,
		&sellerID,
		&l.Title,
		&l.Description,
		&l.Category,
		&price,
		&status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.SellerTelegramID = user.TelegramID(sellerID)
	l.Price = listing.Price(price)
	l.Status = listing.Status(status)
	return &l, nil
}

func (r *ListingRepository) collectListings(rows pgx.Rows) ([]*listing.Listing, error) {
	var out []*listing.Listing
	for rows.Next() {
		l, err := r.scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
