// Package listing содержит доменную модель объявления маркетплейса.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package listing

import (
	"strings"
	"time"

	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет состояние объявления.
type Status string

const (
	// StatusActive - объявление опубликовано и видно в поиске.
	StatusActive Status = "active"
	// StatusSold - товар продан.
	StatusSold Status = "sold"
	// StatusRemoved - объявление снято (продавцом или модерацией).
	StatusRemoved Status = "removed"
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSold, StatusRemoved:
		return true
	}
	return false
}

// Price представляет цену в тенге.
type Price int64

// IsValid проверяет, что цена неотрицательная.
func (p Price) IsValid() bool {
	return p >= 0
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTING ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Listing представляет объявление о продаже.
type Listing struct {
	// ID - идентификатор объявления (UUID).
	ID string

	// SellerTelegramID - продавец.
	SellerTelegramID user.TelegramID

	// Title - заголовок объявления.
	Title string

	// Description - описание товара.
	Description string

	// Category - slug категории (например "electronics").
	Category string

	// Price - цена в тенге.
	Price Price

	// Status - состояние объявления.
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт новое объявление в статусе active.
func New(id string, seller user.TelegramID, title, description, category string, price Price, now time.Time) (*Listing, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.WrapError("listing", "New", shared.ErrEmptyValue, "title is required", nil)
	}
	if !price.IsValid() {
		return nil, shared.ErrInvalidListing
	}
	return &Listing{
		ID:               id,
		SellerTelegramID: seller,
		Title:            title,
		Description:      strings.TrimSpace(description),
		Category:         category,
		Price:            price,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// MarkSold помечает товар проданным.
func (l *Listing) MarkSold(now time.Time) error {
	if l.Status != StatusActive {
		return shared.ErrListingNotActive
	}
	l.Status = StatusSold
	l.UpdatedAt = now
	return nil
}

// Remove снимает объявление с публикации.
func (l *Listing) Remove(now time.Time) {
	l.Status = StatusRemoved
	l.UpdatedAt = now
}

// IsOwnedBy проверяет, принадлежит ли объявление пользователю.
func (l *Listing) IsOwnedBy(telegramID user.TelegramID) bool {
	return l.SellerTelegramID == telegramID
}
