package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bazarhub/bazar-marketplace/internal/bot/monitor"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN API
// A small authenticated REST surface for operators: health, listings,
// moderation. API keys are verified against bcrypt hashes so config files
// never hold a usable key.
// ══════════════════════════════════════════════════════════════════════════════

// Pinger checks one dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminAPI implements the /api/v1/ endpoints.
type AdminAPI struct {
	users    user.Repository
	listings listing.Repository
	status   *monitor.Status
	db       Pinger
	cache    Pinger
	clock    clock.Clock
	logger   *logger.Logger

	apiKeyHashes [][]byte
}

// NewAdminAPI creates the admin API. The cache pinger may be nil when
// Redis is not configured.
func NewAdminAPI(
	users user.Repository,
	listings listing.Repository,
	status *monitor.Status,
	db Pinger,
	cache Pinger,
	clk clock.Clock,
	apiKeyHashes []string,
	log *logger.Logger,
) *AdminAPI {
	if clk == nil {
		clk = clock.NewReal()
	}
	if log == nil {
		log = logger.Default()
	}

	hashes := make([][]byte, 0, len(apiKeyHashes))
	for _, h := range apiKeyHashes {
		if h != "" {
			hashes = append(hashes, []byte(h))
		}
	}

	return &AdminAPI{
		users:        users,
		listings:     listings,
		status:       status,
		db:           db,
		cache:        cache,
		clock:        clk,
		logger:       log.With(logger.Component("admin_api")),
		apiKeyHashes: hashes,
	}
}

// Authorize reports whether the presented key matches any configured hash.
// No configured hashes means the admin API is disabled entirely.
func (a *AdminAPI) Authorize(key string) bool {
	if key == "" || len(a.apiKeyHashes) == 0 {
		return false
	}
	for _, hash := range a.apiKeyHashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

type healthResponse struct {
	Healthy  bool                   `json:"healthy"`
	Telegram telegramHealth         `json:"telegram"`
	Checks   map[string]checkResult `json:"checks"`
}

type telegramHealth struct {
	Connected         bool      `json:"connected"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastSuccessAt     time.Time `json:"last_success_at,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}

type checkResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

func (a *AdminAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap := a.status.Snapshot()
	resp := healthResponse{
		Healthy: snap.Connected,
		Telegram: telegramHealth{
			Connected:         snap.Connected,
			ConsecutiveErrors: snap.ConsecutiveErrors,
			LastSuccessAt:     snap.LastSuccessAt,
			LastError:         snap.LastError,
		},
		Checks: make(map[string]checkResult),
	}

	resp.Checks["postgres"] = runCheck(ctx, a.db)
	if a.cache != nil {
		// A degraded cache does not make the service unhealthy: reads
		// fall back to postgres.
		resp.Checks["redis"] = runCheck(ctx, a.cache)
	}

	if !resp.Checks["postgres"].Healthy {
		resp.Healthy = false
	}

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func runCheck(ctx context.Context, p Pinger) checkResult {
	if p == nil {
		return checkResult{Healthy: false, Message: "not configured"}
	}
	if err := p.Ping(ctx); err != nil {
		return checkResult{Healthy: false, Message: err.Error()}
	}
	return checkResult{Healthy: true, Message: "OK"}
}

// ─────────────────────────────────────────────────────────────────────────────
// Listings
// ─────────────────────────────────────────────────────────────────────────────

type listingView struct {
	ID        string    `json:"id"`
	SellerID  int64     `json:"seller_telegram_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *AdminAPI) handleListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := listing.ListOptions{
		Limit:  queryInt(q.Get("limit"), 50),
		Offset: queryInt(q.Get("offset"), 0),
	}

	var (
		out []*listing.Listing
		err error
	)
	if category := q.Get("category"); category != "" {
		out, err = a.listings.GetByCategory(r.Context(), category, opts)
	} else {
		out, err = a.listings.Search(r.Context(), q.Get("q"), opts)
	}
	if err != nil {
		a.logger.Error("admin listings query failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "query_failed", "failed to query listings")
		return
	}

	views := make([]listingView, 0, len(out))
	for _, l := range out {
		views = append(views, listingView{
			ID:        l.ID,
			SellerID:  int64(l.SellerTelegramID),
			Title:     l.Title,
			Category:  l.Category,
			Price:     int64(l.Price),
			Status:    string(l.Status),
			CreatedAt: l.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// ─────────────────────────────────────────────────────────────────────────────
// Moderation
// ─────────────────────────────────────────────────────────────────────────────

type banRequest struct {
	Reason string `json:"reason"`
}

func (a *AdminAPI) handleBan(w http.ResponseWriter, r *http.Request) {
	a.setBanned(w, r, true)
}

func (a *AdminAPI) handleUnban(w http.ResponseWriter, r *http.Request) {
	a.setBanned(w, r, false)
}

func (a *AdminAPI) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	telegramID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "user id must be a number")
		return
	}

	var req banRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "нарушение правил площадки"
	}

	u, err := a.users.GetByTelegramID(r.Context(), user.TelegramID(telegramID))
	if err != nil {
		if shared.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "user_not_found", "no such user")
			return
		}
		a.logger.Error("admin user lookup failed", logger.UserID(telegramID), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "lookup_failed", "failed to load user")
		return
	}

	if banned {
		u.Ban(req.Reason)
	} else {
		u.Unban()
	}
	u.MarkActive(a.clock.Now())

	if err := a.users.Update(r.Context(), u); err != nil {
		a.logger.Error("admin user update failed", logger.UserID(telegramID), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "update_failed", "failed to update user")
		return
	}

	a.logger.Info("moderation action applied",
		logger.UserID(telegramID),
		logger.Bool("banned", banned),
		logger.String("reason", req.Reason))

	writeJSON(w, http.StatusOK, map[string]any{
		"telegram_id": telegramID,
		"is_banned":   banned,
	})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
