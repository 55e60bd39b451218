package http

import (
	"net/http"
	"strings"

	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK REQUEST VALIDATION
// Every check runs against the request headers only, before the body is
// read. All checks are evaluated even after the first failure so the log
// carries the complete picture of a bad request.
// ══════════════════════════════════════════════════════════════════════════════

// MaxWebhookBodySize is the largest accepted webhook payload (1 MiB).
const MaxWebhookBodySize = 1 << 20

// secretTokenHeader carries the webhook secret set via setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// ValidationResult is the outcome of validating a webhook request.
type ValidationResult struct {
	// IsValid reports whether the request may be processed.
	IsValid bool

	// Errors lists the hard validation failures.
	Errors []string

	// SecurityFlags lists suspicious traits that warrant a warning even
	// when the request is otherwise valid.
	SecurityFlags []string
}

func (r *ValidationResult) addError(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) addFlag(flag string) {
	r.SecurityFlags = append(r.SecurityFlags, flag)
}

// WebhookValidator validates inbound webhook requests.
type WebhookValidator struct {
	// secretToken is compared against the secret token header. Empty
	// disables the check.
	secretToken string

	logger *logger.Logger
}

// NewWebhookValidator creates a validator.
func NewWebhookValidator(secretToken string, log *logger.Logger) *WebhookValidator {
	if log == nil {
		log = logger.Default()
	}
	return &WebhookValidator{
		secretToken: secretToken,
		logger:      log.With(logger.Component("webhook_validator")),
	}
}

// Validate runs every check against the request and returns the combined
// result. The caller rejects the request with 400 when IsValid is false,
// before any of the body is read.
func (v *WebhookValidator) Validate(r *http.Request) ValidationResult {
	result := ValidationResult{IsValid: true}

	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		result.addError("content type must be application/json")
	}

	if v.secretToken != "" {
		if r.Header.Get(secretTokenHeader) != v.secretToken {
			result.addError("secret token mismatch")
			result.addFlag("secret_token_mismatch")
		}
	}

	if r.ContentLength > MaxWebhookBodySize {
		result.addError("request body too large")
	}

	// Telegram identifies itself in the User-Agent. Anything else is
	// suspicious but not a reason to reject on its own.
	ua := r.Header.Get("User-Agent")
	if ua != "" && !strings.Contains(ua, "TelegramBot") {
		result.addFlag("unexpected_user_agent")
	}

	if len(result.SecurityFlags) > 0 {
		v.logger.Warn("suspicious webhook request",
			logger.String("remote_addr", r.RemoteAddr),
			logger.String("user_agent", ua),
			logger.Any("flags", result.SecurityFlags),
			logger.Bool("valid", result.IsValid))
	}

	return result
}
