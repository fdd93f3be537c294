package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/yegors/flightwx/internal/flightdata"
	"github.com/yegors/flightwx/internal/weather"
	"github.com/yegors/flightwx/pkg/logger"
)

const (
	defaultImagesPage  = 1
	defaultImagesLimit = 10

	msgTimeout = "Request timed out"
)

var validate = validator.New()

// METARResolver answers the METAR endpoints
type METARResolver interface {
	ResolveMETAR(ctx context.Context, code string, mode weather.Mode) (json.RawMessage, error)
	LatestMETAR(ctx context.Context, code string) (map[string]any, error)
	DecodedMETAR(ctx context.Context, code string) (map[string]any, error)
	METARs(ctx context.Context, code string) ([]flightdata.Observation, error)
	METARHistory(ctx context.Context, code string) ([]flightdata.Observation, error)
}

// FlightData answers the flight and aircraft passthrough endpoints
type FlightData interface {
	HistoryByFlightNumber(ctx context.Context, flightNumber string) ([]json.RawMessage, error)
	ImagesByTailNumber(ctx context.Context, registration string, page, limit int) (flightdata.AircraftImages, error)
}

// Handler contains the API handlers
type Handler struct {
	resolver METARResolver
	flights  FlightData
	version  string
	logger   *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(resolver METARResolver, flights FlightData, version string, logger *logger.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		flights:  flights,
		version:  version,
		logger:   logger.Named("api-handler"),
	}
}

// GetHealth reports that the process is serving requests
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// GetFlightHistory returns the recent flights operated under a flight number
func (h *Handler) GetFlightHistory(w http.ResponseWriter, r *http.Request) {
	flightNumber := chi.URLParam(r, "flight_number")

	data, err := h.flights.HistoryByFlightNumber(r.Context(), flightNumber)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if data == nil {
		data = []json.RawMessage{}
	}
	WriteJSON(w, http.StatusOK, data)
}

// GetAircraftPhoto returns the photos of an aircraft
func (h *Handler) GetAircraftPhoto(w http.ResponseWriter, r *http.Request) {
	registration := chi.URLParam(r, "registration")

	photos, err := h.flights.ImagesByTailNumber(r.Context(), registration, defaultImagesPage, defaultImagesLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if photos.Empty() {
		WriteError(w, http.StatusNotFound, "No photo found")
		return
	}
	WriteJSON(w, http.StatusOK, photos)
}

// imagesQuery holds the pagination parameters of the images endpoint
type imagesQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=100"`
}

func parseImagesQuery(r *http.Request) (imagesQuery, error) {
	q := imagesQuery{Page: defaultImagesPage, Limit: defaultImagesLimit}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.New("page must be an integer")
		}
		q.Page = page
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.New("limit must be an integer")
		}
		q.Limit = limit
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// GetAircraftImages returns one page of an aircraft's photos
func (h *Handler) GetAircraftImages(w http.ResponseWriter, r *http.Request) {
	tailNumber := chi.URLParam(r, "tail_number")

	q, err := parseImagesQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	images, err := h.flights.ImagesByTailNumber(r.Context(), tailNumber, q.Page, q.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if images == nil {
		images = flightdata.AircraftImages{}
	}
	WriteJSON(w, http.StatusOK, images)
}

// GetAirportMETARs returns the METAR observations listed for an airport
func (h *Handler) GetAirportMETARs(w http.ResponseWriter, r *http.Request) {
	observations, err := h.resolver.METARs(r.Context(), chi.URLParam(r, "iata"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, observations)
}

// GetDecodedMETAR returns the decoded fields of an airport's latest METAR
func (h *Handler) GetDecodedMETAR(w http.ResponseWriter, r *http.Request) {
	fields, err := h.resolver.DecodedMETAR(r.Context(), chi.URLParam(r, "iata"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, fields)
}

// GetAirportMETARsHistory returns the METAR history listed on the airport weather page
func (h *Handler) GetAirportMETARsHistory(w http.ResponseWriter, r *http.Request) {
	observations, err := h.resolver.METARHistory(r.Context(), chi.URLParam(r, "iata"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, observations)
}

// GetLatestAirportMETAR returns the latest METAR with whatever could be decoded from it
func (h *Handler) GetLatestAirportMETAR(w http.ResponseWriter, r *http.Request) {
	report, err := h.resolver.LatestMETAR(r.Context(), chi.URLParam(r, "iata"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// GetMETAR returns the latest METAR, preferring the AVWX provider
func (h *Handler) GetMETAR(w http.ResponseWriter, r *http.Request) {
	h.resolveMETAR(w, r, weather.Current)
}

// GetMETARHistory returns the last 72 hours of METARs, preferring the AVWX provider
func (h *Handler) GetMETARHistory(w http.ResponseWriter, r *http.Request) {
	h.resolveMETAR(w, r, weather.History)
}

func (h *Handler) resolveMETAR(w http.ResponseWriter, r *http.Request, mode weather.Mode) {
	body, err := h.resolver.ResolveMETAR(r.Context(), chi.URLParam(r, "iata"), mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeRawJSON(w, r, http.StatusOK, body)
}

// writeRawJSON writes an already encoded JSON body unchanged
func (h *Handler) writeRawJSON(w http.ResponseWriter, r *http.Request, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write response",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
	}
}

// writeError maps resolver and backend errors to the JSON error envelope
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *weather.NotFoundError
	if errors.As(err, &notFound) {
		WriteError(w, http.StatusNotFound, notFound.Message)
		return
	}
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		WriteError(w, http.StatusGatewayTimeout, msgTimeout)
		return
	}

	h.logger.Error("Request failed",
		logger.String("path", r.URL.Path),
		logger.String("request_id", middleware.GetReqID(r.Context())),
		logger.Error(err))
	WriteError(w, http.StatusInternalServerError, err.Error())
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes the {"error": message} envelope
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
