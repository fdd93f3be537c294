package flightdata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Observation is a single METAR as returned by the flight-data backend.
// The backend returns either a record {"raw_metar": ..., "time": ...} or a bare string.
// A decoded observation re-encodes to the exact bytes it was decoded from.
type Observation struct {
	Raw  string
	Time json.RawMessage // nil when the backend did not report a time

	structured bool
	source     json.RawMessage
}

// NewRecord builds a structured observation
func NewRecord(raw string, t json.RawMessage) Observation {
	return Observation{Raw: raw, Time: t, structured: true}
}

// NewText builds a bare-string observation
func NewText(raw string) Observation {
	return Observation{Raw: raw}
}

// Structured reports whether the observation was received as a record
func (o Observation) Structured() bool {
	return o.structured
}

type observationRecord struct {
	RawMETAR *string         `json:"raw_metar"`
	METAR    *string         `json:"metar,omitempty"`
	Time     json.RawMessage `json:"time,omitempty"`
}

// UnmarshalJSON accepts both the record and the bare string forms
func (o *Observation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	source := append(json.RawMessage(nil), data...)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = NewText(s)
		o.source = source
		return nil
	}

	var rec observationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("observation is neither a string nor a record: %w", err)
	}

	obs := Observation{structured: true}
	switch {
	case rec.RawMETAR != nil:
		obs.Raw = *rec.RawMETAR
	case rec.METAR != nil:
		obs.Raw = *rec.METAR
	default:
		// A record without a raw report is treated as the raw text itself
		obs = NewText(string(data))
	}
	if obs.structured && len(rec.Time) > 0 && string(rec.Time) != "null" {
		obs.Time = rec.Time
	}
	obs.source = source
	*o = obs
	return nil
}

// MarshalJSON writes decoded observations back unchanged.
// Observations built with NewRecord or NewText are written in their own form.
func (o Observation) MarshalJSON() ([]byte, error) {
	if o.source != nil {
		return o.source, nil
	}
	if !o.structured {
		return json.Marshal(o.Raw)
	}
	return json.Marshal(observationRecord{RawMETAR: &o.Raw, Time: o.Time})
}

// Image is a single aircraft photo
type Image struct {
	Src       string `json:"src"`
	Link      string `json:"link,omitempty"`
	Copyright string `json:"copyright,omitempty"`
	Source    string `json:"source,omitempty"`
}

// AircraftImages groups photos by size bucket (thumbnails, medium, large, ...)
type AircraftImages map[string][]Image

// Empty reports whether no bucket holds any photo
func (a AircraftImages) Empty() bool {
	for _, imgs := range a {
		if len(imgs) > 0 {
			return false
		}
	}
	return true
}

// Page returns the given 1-based page of every bucket
func (a AircraftImages) Page(page, limit int) AircraftImages {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return a
	}
	out := make(AircraftImages, len(a))
	start := (page - 1) * limit
	for bucket, imgs := range a {
		if start >= len(imgs) {
			out[bucket] = []Image{}
			continue
		}
		end := start + limit
		if end > len(imgs) {
			end = len(imgs)
		}
		out[bucket] = imgs[start:end]
	}
	return out
}

// envelope is the common wrapper of the backend's JSON responses
type envelope struct {
	Result struct {
		Response json.RawMessage `json:"response"`
	} `json:"result"`
}

type flightListResponse struct {
	Data           []json.RawMessage `json:"data"`
	AircraftImages []struct {
		Registration string         `json:"registration"`
		Images       AircraftImages `json:"images"`
	} `json:"aircraftImages"`
}

type airportResponse struct {
	Airport struct {
		PluginData struct {
			Weather *weatherPlugin `json:"weather"`
		} `json:"pluginData"`
	} `json:"airport"`
}

type weatherPlugin struct {
	METAR json.RawMessage `json:"metar"`
	Time  json.RawMessage `json:"time"`
}
