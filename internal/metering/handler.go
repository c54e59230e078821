package metering

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fxgate/fxgate/internal/api"
	"github.com/fxgate/fxgate/internal/ratelimit"
)

// HeaderAPIKey carries the caller's API key on metered routes.
const HeaderAPIKey = "X-API-Key"

const maxBodyBytes = 1 << 20

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: api.NewValidator(),
	}
}

func (h *Handler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	resp, stats, err := h.svc.ListCurrencies(r.Context(), r.Header.Get(HeaderAPIKey))
	setRateHeaders(w, stats)
	if err != nil {
		h.handleError(w, err, stats, "Currencies not found")
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Authenticate(r.Context(), EndpointConversion, r.Header.Get(HeaderAPIKey))
	if err != nil {
		h.handleError(w, err, ratelimit.Stats{}, "")
		return
	}

	var req ConversionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid conversion body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.ValidationFailed(err))
		return
	}
	req.BaseCurrency = strings.ToUpper(req.BaseCurrency)
	req.TargetCurrency = strings.ToUpper(req.TargetCurrency)

	resp, stats, err := h.svc.ConvertAs(r.Context(), user, req)
	setRateHeaders(w, stats)
	if err != nil {
		h.handleError(w, err, stats, "Currency rates not found")
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) HistoricalRates(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	base := strings.ToUpper(r.URL.Query().Get("base_currency"))
	target := strings.ToUpper(r.URL.Query().Get("target_currency"))

	resp, stats, err := h.svc.Historical(r.Context(), r.Header.Get(HeaderAPIKey), date, base, target)
	setRateHeaders(w, stats)
	if err != nil {
		h.handleError(w, err, stats, "Historical currency rates not found")
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, stats ratelimit.Stats, notFoundMsg string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		api.HandleError(w, api.ErrInvalidAPIKey)
	case errors.Is(err, ErrInsufficientCredits):
		api.HandleError(w, api.ErrInsufficientCredits)
	case errors.Is(err, ErrRateLimitExceeded):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter(stats.ResetAt)))
		api.HandleError(w, api.ErrRateLimitExceeded)
	case errors.Is(err, ErrResourceNotFound):
		api.HandleError(w, api.NewNotFoundError(notFoundMsg))
	default:
		slog.Error("metered request failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

// setRateHeaders reports the caller's window. Nothing is set when the
// request was rejected before the window was consulted.
func setRateHeaders(w http.ResponseWriter, stats ratelimit.Stats) {
	if stats.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(stats.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(stats.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(stats.ResetAt.Unix(), 10))
}

func retryAfter(reset time.Time) int {
	secs := int(math.Ceil(time.Until(reset).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
