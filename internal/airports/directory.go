package airports

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
)

// Airport is one row of the OurAirports airports.csv file.
// Columns not listed here are ignored.
type Airport struct {
	Ident        string  `csv:"ident"`
	Type         string  `csv:"type"`
	Name         string  `csv:"name"`
	Latitude     float64 `csv:"latitude_deg"`
	Longitude    float64 `csv:"longitude_deg"`
	ElevationFt  *int    `csv:"elevation_ft"`
	Country      string  `csv:"iso_country"`
	Municipality string  `csv:"municipality"`
	GPSCode      string  `csv:"gps_code"`
	ICAOCode     string  `csv:"icao_code"`
	IATACode     string  `csv:"iata_code"`
}

// ICAO returns the best four-letter location indicator known for the airport
func (a Airport) ICAO() string {
	for _, c := range []string{a.ICAOCode, a.GPSCode, a.Ident} {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) == 4 {
			return c
		}
	}
	return ""
}

// IATA returns the three-letter code, or "" when the airport has none
func (a Airport) IATA() string {
	return strings.ToUpper(strings.TrimSpace(a.IATACode))
}

// Directory translates airport codes between the IATA and ICAO families.
// It is read-only after construction and safe for concurrent use.
// A nil *Directory is valid and translates nothing.
type Directory struct {
	byICAO map[string]Airport
	byIATA map[string]Airport
}

// Load reads an OurAirports CSV file from disk
func Load(path string) (*Directory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports file: %w", err)
	}
	defer file.Close()

	return NewDirectory(file)
}

// NewDirectory decodes an OurAirports CSV stream. The first line must be the header.
func NewDirectory(r io.Reader) (*Directory, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true

	decoder, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder for airports: %w", err)
	}

	var rows []Airport
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode airports CSV data: %w", err)
	}

	d := &Directory{
		byICAO: make(map[string]Airport, len(rows)),
		byIATA: make(map[string]Airport),
	}
	for _, a := range rows {
		// Closed fields often share codes with their replacement
		if a.Type == "closed" {
			continue
		}
		if icao := a.ICAO(); icao != "" {
			d.byICAO[icao] = a
		}
		if iata := a.IATA(); iata != "" {
			if _, taken := d.byIATA[iata]; !taken {
				d.byIATA[iata] = a
			}
		}
	}
	return d, nil
}

// Len returns the number of airports indexed by ICAO code
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byICAO)
}

// Lookup finds an airport by either code family
func (d *Directory) Lookup(code string) (Airport, bool) {
	if d == nil {
		return Airport{}, false
	}
	key := strings.ToUpper(strings.TrimSpace(code))
	if a, ok := d.byICAO[key]; ok {
		return a, true
	}
	a, ok := d.byIATA[key]
	return a, ok
}

// ICAO translates code to its ICAO form. Unknown codes are returned unchanged.
func (d *Directory) ICAO(code string) string {
	if a, ok := d.Lookup(code); ok {
		if icao := a.ICAO(); icao != "" {
			return icao
		}
	}
	return code
}

// IATA translates code to its IATA form. Unknown codes, and airports without
// an IATA code, are returned unchanged.
func (d *Directory) IATA(code string) string {
	if a, ok := d.Lookup(code); ok {
		if iata := a.IATA(); iata != "" {
			return iata
		}
	}
	return code
}
