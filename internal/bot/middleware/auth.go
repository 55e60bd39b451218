package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// Auth resolves the sender to a marketplace user record: first contact
// creates the record from the Telegram profile, later contacts refresh the
// last-active timestamp. The resolved user is attached to the request for
// downstream stages and handlers.
//
// Failures here are logged and swallowed. User bookkeeping must never
// block message handling.
type Auth struct {
	users  user.Repository
	clock  clock.Clock
	newID  func() string
	logger *logger.Logger
}

// NewAuth creates the authentication stage.
func NewAuth(users user.Repository, clk clock.Clock, log *logger.Logger) *Auth {
	if clk == nil {
		clk = clock.NewReal()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Auth{
		users:  users,
		clock:  clk,
		newID:  uuid.NewString,
		logger: log,
	}
}

func (s *Auth) Name() string { return "auth" }

func (s *Auth) Process(ctx context.Context, req *Request) (Result, error) {
	if req.Sender == nil {
		return Continue(), nil
	}

	u, err := s.resolve(ctx, req.Sender)
	if err != nil {
		s.logger.Warn("user bookkeeping failed",
			logger.UserID(req.Sender.ID),
			logger.Err(err))
		return Continue(), nil
	}

	req.User = u
	return Continue(), nil
}

// resolve implements get-or-create keyed by Telegram ID.
func (s *Auth) resolve(ctx context.Context, sender *telegram.User) (*user.User, error) {
	now := s.clock.Now()

	existing, err := s.users.GetByTelegramID(ctx, user.TelegramID(sender.ID))
	if err == nil {
		existing.MarkActive(now)
		if uerr := s.users.Update(ctx, existing); uerr != nil {
			// The stale timestamp is tolerable; the resolved user is not.
			s.logger.Warn("last-active update failed",
				logger.UserID(sender.ID),
				logger.Err(uerr))
		}
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}

	created, err := user.New(s.newID(), user.TelegramID(sender.ID),
		sender.Username, sender.FirstName, sender.LastName, now)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, created); err != nil {
		// Lost a create race: another delivery for the same sender won.
		if shared.IsAlreadyExists(err) {
			return s.users.GetByTelegramID(ctx, user.TelegramID(sender.ID))
		}
		return nil, err
	}

	s.logger.Info("new user registered",
		logger.UserID(sender.ID),
		logger.String("username", sender.Username))
	return created, nil
}
