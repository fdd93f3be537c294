package metar

import (
	"encoding/json"
	"errors"
)

var (
	// ErrEmpty is returned when the raw report is blank
	ErrEmpty = errors.New("empty METAR")
	// ErrNoStation is returned when no station identifier can be located
	ErrNoStation = errors.New("no station identifier in METAR")
	// ErrNoBody is returned when no weather group (wind, visibility, weather,
	// cloud, temperature, pressure) follows the station and time
	ErrNoBody = errors.New("no weather groups in METAR")
)

// Report is a decoded METAR or SPECI observation.
// None of the JSON keys collide with the raw_metar/time keys of the gateway response.
type Report struct {
	Station           string    `json:"station"`
	ReportType        string    `json:"report_type,omitempty"` // METAR or SPECI
	ObservationDay    int       `json:"observation_day,omitempty"`
	ObservationTime   string    `json:"observation_time,omitempty"`
	Modifier          string    `json:"modifier,omitempty"` // AUTO or COR
	Wind              *Wind     `json:"wind,omitempty"`
	Visibility        *Vis      `json:"visibility,omitempty"`
	RunwayVisualRange []string  `json:"runway_visual_range,omitempty"`
	Weather           []Wx      `json:"weather,omitempty"`
	Clouds            []Cloud   `json:"clouds,omitempty"`
	TemperatureC      *float64  `json:"temperature_c,omitempty"`
	DewpointC         *float64  `json:"dewpoint_c,omitempty"`
	Altimeter         *Pressure `json:"altimeter,omitempty"`
	FlightCategory    string    `json:"flight_category,omitempty"`
	Trend             string    `json:"trend,omitempty"`
	Remarks           string    `json:"remarks,omitempty"`
	Unparsed          []string  `json:"unparsed,omitempty"`
}

// Wind is the surface wind group
type Wind struct {
	Direction    *int   `json:"direction,omitempty"` // degrees true, nil when variable
	Variable     bool   `json:"variable,omitempty"`
	Speed        int    `json:"speed"`
	Gust         int    `json:"gust,omitempty"`
	Unit         string `json:"unit"`
	VariableFrom *int   `json:"variable_from,omitempty"`
	VariableTo   *int   `json:"variable_to,omitempty"`
}

// Vis is the prevailing visibility group
type Vis struct {
	Raw         string   `json:"raw"`
	CAVOK       bool     `json:"cavok,omitempty"`
	Meters      *int     `json:"meters,omitempty"`
	StatuteMile *float64 `json:"statute_miles,omitempty"`
	LessThan    bool     `json:"less_than,omitempty"`
	GreaterThan bool     `json:"greater_than,omitempty"`
}

// Wx is a present weather group
type Wx struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Cloud is a single sky condition layer
type Cloud struct {
	Cover       string `json:"cover"`
	Description string `json:"description"`
	HeightFt    *int   `json:"height_ft,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Pressure is the altimeter setting
type Pressure struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"` // hPa or inHg
}

// Fields flattens the report into a generic map suitable for merging into a JSON object
func (r *Report) Fields() map[string]any {
	out := map[string]any{}
	if r == nil {
		return out
	}
	data, err := json.Marshal(r)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
