package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	apperrors "mall-dashboard/internal/errors"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/observability"
)

// PurchaseStore is the data behind the REST API.
type PurchaseStore interface {
	Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error)
	CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error)
	FrequencyBetween(from, to time.Time) []models.PriceFrequency
	Stats() map[string]any
}

type APIHandlers struct {
	store    PurchaseStore
	logger   *slog.Logger
	decoder  *schema.Decoder
	validate *validator.Validate
}

func NewAPIHandlers(store PurchaseStore, logger *slog.Logger) *APIHandlers {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &APIHandlers{
		store:    store,
		logger:   logger,
		decoder:  decoder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

var cacheHeaders = map[string]string{
	"Cache-Control": "public, max-age=60",
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteError(w, observability.LoggerFrom(r.Context(), h.logger), err, observability.GetRequestID(r.Context()))
}

// HandleCustomers serves GET /api/customers?name=&sortBy=. A name filter that
// matches nobody is a 404.
func (h *APIHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	var q models.CustomerQuery
	if err := h.decoder.Decode(&q, r.URL.Query()); err != nil {
		h.fail(w, r, apperrors.BadRequestWrap(err, "invalid query parameters"))
		return
	}
	if err := h.validate.Struct(q); err != nil {
		h.fail(w, r, apperrors.ValidationWrap(err, "invalid customer query").WithDetails(describe(err)))
		return
	}

	customers, err := h.store.Customers(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if q.Name != "" && len(customers) == 0 {
		h.fail(w, r, apperrors.NotFound(fmt.Sprintf("no customer name contains %q", q.Name)))
		return
	}

	apperrors.WriteSuccessWithHeaders(w, customers, cacheHeaders)
}

// HandleCustomerPurchases serves GET /api/customers/{id}/purchases.
func (h *APIHandlers) HandleCustomerPurchases(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		h.fail(w, r, apperrors.BadRequest("customer id must be a positive integer"))
		return
	}

	purchases, err := h.store.CustomerPurchases(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	apperrors.WriteSuccessWithHeaders(w, purchases, cacheHeaders)
}

// HandlePurchaseFrequency serves GET /api/purchase-frequency. from and to are
// RFC 3339 instants, given together or not at all.
func (h *APIHandlers) HandlePurchaseFrequency(w http.ResponseWriter, r *http.Request) {
	rawFrom := r.URL.Query().Get("from")
	rawTo := r.URL.Query().Get("to")
	if (rawFrom == "") != (rawTo == "") {
		h.fail(w, r, apperrors.BadRequest("from and to must be provided together"))
		return
	}

	var from, to time.Time
	if rawFrom != "" {
		var err error
		if from, err = time.Parse(time.RFC3339, rawFrom); err != nil {
			h.fail(w, r, apperrors.BadRequestWrap(err, "from must be an RFC 3339 timestamp"))
			return
		}
		if to, err = time.Parse(time.RFC3339, rawTo); err != nil {
			h.fail(w, r, apperrors.BadRequestWrap(err, "to must be an RFC 3339 timestamp"))
			return
		}
		if to.Before(from) {
			h.fail(w, r, apperrors.Validation("to must not be before from"))
			return
		}
	}

	apperrors.WriteSuccessWithHeaders(w, h.store.FrequencyBetween(from, to), cacheHeaders)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	apperrors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, h.store.Stats())
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
