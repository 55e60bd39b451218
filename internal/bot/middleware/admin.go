package middleware

import (
	"context"

	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// AdminGate restricts the /admin_* command family to the configured
// administrator identity.
type AdminGate struct {
	isAdmin IsAdminFunc
	logger  *logger.Logger
}

// NewAdminGate creates the admin gating stage.
func NewAdminGate(isAdmin IsAdminFunc, log *logger.Logger) *AdminGate {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	if log == nil {
		log = logger.Default()
	}
	return &AdminGate{isAdmin: isAdmin, logger: log}
}

func (s *AdminGate) Name() string { return "admin_gate" }

func (s *AdminGate) Process(ctx context.Context, req *Request) (Result, error) {
	if !req.Command.IsAdminCommand() {
		return Continue(), nil
	}
	if req.Sender != nil && s.isAdmin(req.Sender.ID) {
		return Continue(), nil
	}

	var senderID int64
	if req.Sender != nil {
		senderID = req.Sender.ID
	}
	s.logger.Warn("admin command denied",
		logger.UserID(senderID),
		logger.Command(string(req.Command)))

	return Stop(adminDeniedNotice), nil
}

const adminDeniedNotice = "🔒 Эта команда доступна только администратору."
