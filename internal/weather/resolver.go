package weather

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yegors/flightwx/internal/airports"
	"github.com/yegors/flightwx/internal/avwx"
	"github.com/yegors/flightwx/internal/flightdata"
	"github.com/yegors/flightwx/internal/metar"
	"github.com/yegors/flightwx/pkg/logger"
)

// airportMETARsLimit is the page size used when listing an airport's METARs
const airportMETARsLimit = 100

// Mode selects between the latest METAR and the recent history
type Mode int

const (
	Current Mode = iota
	History
)

func (m Mode) String() string {
	if m == History {
		return "history"
	}
	return "current"
}

// Primary is the preferred METAR provider
type Primary interface {
	METAR(ctx context.Context, station string) avwx.Result
	METARHistory(ctx context.Context, station string) avwx.Result
}

// Secondary is the fallback METAR provider
type Secondary interface {
	AirportMETARs(ctx context.Context, airport string, page, limit int) ([]flightdata.Observation, error)
	AirportMETARsHistory(ctx context.Context, airport string) ([]flightdata.Observation, error)
}

// Resolver answers METAR queries from the primary provider, degrading to the secondary
type Resolver struct {
	primary   Primary
	secondary Secondary
	airports  *airports.Directory
	logger    *logger.Logger
}

// NewResolver creates a new resolver. directory may be nil.
func NewResolver(primary Primary, secondary Secondary, directory *airports.Directory, logger *logger.Logger) *Resolver {
	return &Resolver{
		primary:   primary,
		secondary: secondary,
		airports:  directory,
		logger:    logger.Named("weather-resolver"),
	}
}

// ResolveMETAR returns the primary provider's body verbatim when it succeeds.
// Otherwise the secondary provider is queried: the latest observation is
// returned as {raw_metar, time, ...decoded fields}, the history as a list.
func (r *Resolver) ResolveMETAR(ctx context.Context, code string, mode Mode) (json.RawMessage, error) {
	station := r.airports.ICAO(code)

	var res avwx.Result
	if mode == History {
		res = r.primary.METARHistory(ctx, station)
	} else {
		res = r.primary.METAR(ctx, station)
	}
	if res.OK() {
		return res.Body, nil
	}

	r.logger.Debug("Primary METAR provider failed, using fallback",
		logger.String("airport", code),
		logger.String("station", station),
		logger.String("mode", mode.String()),
		logger.String("kind", string(res.Failure.Kind)),
		logger.Error(res.Failure))

	if mode == History {
		observations, err := r.history(ctx, code)
		if err != nil {
			return nil, err
		}
		if len(observations) == 0 {
			return nil, &NotFoundError{Message: msgNoHistory}
		}
		return json.Marshal(observations)
	}

	report, err := r.LatestMETAR(ctx, code)
	if err != nil {
		return nil, err
	}
	return json.Marshal(report)
}

// LatestMETAR returns the newest secondary observation with its best-effort decode
func (r *Resolver) LatestMETAR(ctx context.Context, code string) (map[string]any, error) {
	obs, err := r.first(ctx, code)
	if err != nil {
		return nil, err
	}

	report := map[string]any{"raw_metar": obs.Raw}
	if obs.Structured() && obs.Time != nil {
		report["time"] = obs.Time
	}

	decoded, err := metar.Decode(obs.Raw)
	if err != nil {
		r.logger.Debug("Unable to decode METAR",
			logger.String("airport", code),
			logger.String("raw", obs.Raw),
			logger.Error(err))
		return report, nil
	}
	for k, v := range decoded.Fields() {
		report[k] = v
	}
	return report, nil
}

// DecodedMETAR returns only the decoded fields of the newest secondary observation
func (r *Resolver) DecodedMETAR(ctx context.Context, code string) (map[string]any, error) {
	obs, err := r.first(ctx, code)
	if err != nil {
		return nil, err
	}

	decoded, err := metar.Decode(obs.Raw)
	if err != nil {
		r.logger.Debug("Unable to decode METAR",
			logger.String("airport", code),
			logger.String("raw", obs.Raw),
			logger.Error(err))
		return nil, &NotFoundError{Message: msgNoMETAR}
	}
	return decoded.Fields(), nil
}

// METARs returns the secondary provider's observations for an airport
func (r *Resolver) METARs(ctx context.Context, code string) ([]flightdata.Observation, error) {
	observations, err := r.secondary.AirportMETARs(ctx, r.airports.IATA(code), 1, airportMETARsLimit)
	if err != nil {
		return nil, fmt.Errorf("error fetching METARs for %s: %w", code, err)
	}
	if len(observations) == 0 {
		return nil, &NotFoundError{Message: msgNoMETAR}
	}
	return observations, nil
}

// METARHistory returns the secondary provider's history as-is, an empty list included
func (r *Resolver) METARHistory(ctx context.Context, code string) ([]flightdata.Observation, error) {
	observations, err := r.history(ctx, code)
	if err != nil {
		return nil, err
	}
	if observations == nil {
		observations = []flightdata.Observation{}
	}
	return observations, nil
}

func (r *Resolver) history(ctx context.Context, code string) ([]flightdata.Observation, error) {
	observations, err := r.secondary.AirportMETARsHistory(ctx, r.airports.IATA(code))
	if err != nil {
		return nil, fmt.Errorf("error fetching METAR history for %s: %w", code, err)
	}
	return observations, nil
}

// first returns the newest secondary observation, or NotFound when there is none
func (r *Resolver) first(ctx context.Context, code string) (flightdata.Observation, error) {
	observations, err := r.secondary.AirportMETARs(ctx, r.airports.IATA(code), 1, 1)
	if err != nil {
		return flightdata.Observation{}, fmt.Errorf("error fetching METAR for %s: %w", code, err)
	}
	if len(observations) == 0 || observations[0].Raw == "" {
		return flightdata.Observation{}, &NotFoundError{Message: msgNoMETAR}
	}
	return observations[0], nil
}
