// Package api exposes the loader pipeline over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/loader"
	"github.com/ginjaninja78/facturas-loader/internal/logging"
	"github.com/ginjaninja78/facturas-loader/internal/metrics"
	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// MaxTicketBytes bounds the request body of a ticket upload.
const MaxTicketBytes = 16 << 20

const ticketsEndpoint = "/api/v1/tickets"

// TicketResponse is the body returned for an uploaded ticket.
type TicketResponse struct {
	TicketID         string           `json:"ticket_id"`
	Facturas         []FacturaSummary `json:"facturas"`
	Failed           []SlotError      `json:"failed"`
	ValidationErrors []SlotError      `json:"validation_errors"`
	Persisted        bool             `json:"persisted"`
	Stored           int              `json:"stored"`
	Error            string           `json:"error,omitempty"`
}

// FacturaSummary describes one successfully parsed invoice.
type FacturaSummary struct {
	Slot          int    `json:"slot"`
	InvoiceNumber int32  `json:"invoice_number"`
	ClientID      int32  `json:"client_id"`
	Date          string `json:"date"`
	Currency      string `json:"currency"`
	Items         int    `json:"items"`
	Total         string `json:"total"`
	Valid         bool   `json:"valid"`
}

// SlotError is a parse or validation failure of one slot.
type SlotError struct {
	Slot          int    `json:"slot"`
	InvoiceNumber int32  `json:"invoice_number,omitempty"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

type Handler struct {
	pipeline *loader.Pipeline
	logger   *zap.Logger
}

func NewHandler(p *loader.Pipeline, logger *zap.Logger) *Handler {
	return &Handler{pipeline: p, logger: logging.OrNop(logger)}
}

// NewRouter wires the handler, health check and metrics endpoints.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/tickets", h.CreateTicket).Methods("POST")
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// CreateTicket loads the ticket text in the request body.
//
// Query parameters:
//   - persist: "false" parses and validates only. Default true.
//
// Status codes: 200 when every slot parsed and validated, 422 when any slot
// failed, 400 for an unreadable request, 500 when the sink failed.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.HTTPLatency.WithLabelValues("POST", ticketsEndpoint))
	defer timer.ObserveDuration()

	persist := true
	if raw := r.URL.Query().Get("persist"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "persist must be a boolean", "POST", ticketsEndpoint)
			return
		}
		persist = v
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxTicketBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unreadable request body", "POST", ticketsEndpoint)
		return
	}

	ticketID := uuid.New().String()
	logger := h.logger.With(zap.String("ticket_id", ticketID))

	outcome, err := h.pipeline.Load(r.Context(), string(body), persist)
	if outcome == nil {
		logger.Error("ticket load aborted", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Ticket load aborted", "POST", ticketsEndpoint)
		return
	}

	resp := buildResponse(ticketID, outcome)
	code := http.StatusOK
	switch {
	case err != nil && errors.Is(err, errors.ErrValidationFailed):
		resp.Error = err.Error()
		code = http.StatusUnprocessableEntity
	case err != nil:
		logger.Error("ticket persistence failed", zap.Error(err))
		resp.Error = "Internal Server Error"
		code = http.StatusInternalServerError
	case outcome.Failed():
		code = http.StatusUnprocessableEntity
	}

	logger.Info("ticket received",
		zap.Int("slots", outcome.Ticket.Len()),
		zap.Int("failed", len(resp.Failed)),
		zap.Int("validation_errors", len(resp.ValidationErrors)),
		zap.Int("status", code),
	)
	respondJSON(w, code, resp, "POST", ticketsEndpoint)
}

func buildResponse(ticketID string, outcome *loader.Outcome) TicketResponse {
	resp := TicketResponse{
		TicketID:         ticketID,
		Facturas:         []FacturaSummary{},
		Failed:           []SlotError{},
		ValidationErrors: []SlotError{},
		Persisted:        outcome.Persisted,
		Stored:           outcome.Stored.Facturas,
	}

	for i, slot := range outcome.Ticket.Facturas {
		if !slot.OK() {
			resp.Failed = append(resp.Failed, SlotError{Slot: i, Kind: slot.Err.Kind.String(), Message: slot.Err.Message})
			continue
		}
		f := slot.Factura
		resp.Facturas = append(resp.Facturas, FacturaSummary{
			Slot:          i,
			InvoiceNumber: f.Header.InvoiceNumber,
			ClientID:      f.Header.ClientID,
			Date:          f.Header.Date.Format("2006-01-02"),
			Currency:      f.Header.Currency.String(),
			Items:         len(f.Items),
			Total:         types.FormatAmount(f.Trailer.TotalValue),
			Valid:         !outcome.Validation.Rejected(i),
		})
	}

	for _, v := range outcome.Validation.Errors {
		resp.ValidationErrors = append(resp.ValidationErrors, SlotError{
			Slot:          v.Slot,
			InvoiceNumber: v.InvoiceNumber,
			Kind:          v.Kind.String(),
			Message:       v.Message,
		})
	}
	return resp
}

// Helpers
func respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	metrics.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
