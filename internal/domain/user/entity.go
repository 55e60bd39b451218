// Package user содержит доменную модель пользователя маркетплейса.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"strings"
	"time"

	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TelegramID представляет уникальный идентификатор пользователя Telegram.
type TelegramID int64

// IsValid проверяет, что TelegramID положительный.
func (t TelegramID) IsValid() bool {
	return t > 0
}

// Role представляет роль пользователя в маркетплейсе.
type Role string

const (
	// RoleBuyer - обычный покупатель/продавец.
	RoleBuyer Role = "buyer"
	// RoleAdmin - администратор маркетплейса.
	RoleAdmin Role = "admin"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User представляет пользователя маркетплейса.
type User struct {
	// ID - внутренний идентификатор (UUID).
	ID string

	// TelegramID - идентификатор в Telegram, уникален.
	TelegramID TelegramID

	// Username - username в Telegram (может быть пустым).
	Username string

	// FirstName, LastName - имя из профиля Telegram.
	FirstName string
	LastName  string

	// Role - роль пользователя.
	Role Role

	// IsBanned - заблокирован ли пользователь модерацией.
	IsBanned bool

	// BanReason - причина блокировки (если заблокирован).
	BanReason string

	// CreatedAt - когда пользователь впервые написал боту.
	CreatedAt time.Time

	// LastActiveAt - время последней активности.
	LastActiveAt time.Time
}

// New создаёт нового пользователя из данных профиля Telegram.
func New(id string, telegramID TelegramID, username, firstName, lastName string, now time.Time) (*User, error) {
	if !telegramID.IsValid() {
		return nil, shared.ErrInvalidTelegramID
	}
	return &User{
		ID:           id,
		TelegramID:   telegramID,
		Username:     strings.TrimPrefix(username, "@"),
		FirstName:    firstName,
		LastName:     lastName,
		Role:         RoleBuyer,
		CreatedAt:    now,
		LastActiveAt: now,
	}, nil
}

// FullName возвращает полное имя пользователя.
func (u *User) FullName() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// MarkActive обновляет время последней активности.
func (u *User) MarkActive(now time.Time) {
	u.LastActiveAt = now
}

// Ban блокирует пользователя с указанием причины.
func (u *User) Ban(reason string) {
	u.IsBanned = true
	u.BanReason = reason
}

// Unban снимает блокировку.
func (u *User) Unban() {
	u.IsBanned = false
	u.BanReason = ""
}

// IsAdmin проверяет, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
