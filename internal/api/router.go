package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yegors/flightwx/internal/config"
	"github.com/yegors/flightwx/pkg/logger"
)

// Router wires the API handlers to their routes
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(resolver METARResolver, flights FlightData, cfg *config.Config, version string, logger *logger.Logger) *Router {
	return &Router{
		handler: NewHandler(resolver, flights, version, logger),
		config:  cfg,
		logger:  logger.Named("api-router"),
	}
}

// Routes returns the HTTP handler serving every endpoint
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(r.accessLog)
	router.Use(middleware.Recoverer)
	if r.config.Server.WriteTimeoutSecs > 0 {
		router.Use(requestTimeout(time.Duration(r.config.Server.WriteTimeoutSecs) * time.Second))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	h := r.handler
	router.Route("/api", func(api chi.Router) {
		api.Get("/health", h.GetHealth)

		api.Route("/flightradar", func(fr chi.Router) {
			fr.Get("/history/{flight_number}", h.GetFlightHistory)
			fr.Get("/photo/{registration}", h.GetAircraftPhoto)
			fr.Get("/images/{tail_number}", h.GetAircraftImages)
			fr.Get("/metar/{iata}", h.GetAirportMETARs)
			fr.Get("/metar/decoded/{iata}", h.GetDecodedMETAR)
			fr.Get("/airport_weather/{iata}", h.GetDecodedMETAR)
			fr.Get("/airport_metars_hist/{iata}", h.GetAirportMETARsHistory)
			fr.Get("/airport_metars/{iata}", h.GetLatestAirportMETAR)
		})

		api.Get("/metar/{iata}", h.GetMETAR)
		api.Get("/metar/{iata}/history", h.GetMETARHistory)
	})

	router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return router
}

func (r *Router) allowedOrigins() []string {
	if len(r.config.Server.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return r.config.Server.CORSAllowedOrigins
}

// accessLog logs one line per request through the application logger
func (r *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()

		defer func() {
			r.logger.Info("HTTP request",
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)),
				logger.String("remote_addr", req.RemoteAddr),
				logger.String("request_id", middleware.GetReqID(req.Context())))
		}()

		next.ServeHTTP(ww, req)
	})
}

// requestTimeout cancels the request context after d. A handler that gave up
// without writing anything gets the JSON 504 envelope.
func requestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()

			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req.WithContext(ctx))

			if ww.Status() == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				WriteError(ww, http.StatusGatewayTimeout, msgTimeout)
			}
		})
	}
}
