package listing

import (
	"context"

	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
)

// ListOptions задаёт пагинацию для выборок.
type ListOptions struct {
	Limit  int
	Offset int
}

// Repository определяет контракт для работы с хранилищем объявлений.
// Реализация находится в infrastructure/persistence/postgres.
type Repository interface {
	// Create создаёт новое объявление.
	Create(ctx context.Context, l *Listing) error

	// GetByID возвращает объявление по ID.
	// Возвращает ErrListingNotFound, если объявление не найдено.
	GetByID(ctx context.Context, id string) (*Listing, error)

	// GetBySeller возвращает объявления продавца.
	GetBySeller(ctx context.Context, seller user.TelegramID, opts ListOptions) ([]*Listing, error)

	// Search ищет активные объявления по подстроке заголовка.
	Search(ctx context.Context, query string, opts ListOptions) ([]*Listing, error)

	// GetByCategory возвращает активные объявления категории.
	GetByCategory(ctx context.Context, category string, opts ListOptions) ([]*Listing, error)

	// Update обновляет объявление.
	Update(ctx context.Context, l *Listing) error

	// Count возвращает количество активных объявлений.
	Count(ctx context.Context) (int, error)
}
