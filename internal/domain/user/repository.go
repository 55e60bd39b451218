package user

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Контракт для работы с хранилищем пользователей.
// Реализация находится в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над пользователями, которые нужны
// конвейеру обработки webhook-событий.
type Repository interface {
	// Create создаёт нового пользователя.
	// Возвращает ErrUserAlreadyExists, если пользователь уже существует.
	Create(ctx context.Context, u *User) error

	// GetByTelegramID возвращает пользователя по Telegram ID.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	GetByTelegramID(ctx context.Context, telegramID TelegramID) (*User, error)

	// Update обновляет данные пользователя.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	Update(ctx context.Context, u *User) error

	// Count возвращает общее количество пользователей.
	Count(ctx context.Context) (int, error)
}
