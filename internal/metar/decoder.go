package metar

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	stationRegex   = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)
	timeRegex      = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})Z$`)
	windRegex      = regexp.MustCompile(`^(VRB|\d{3})(\d{2,3})(?:G(\d{2,3}))?(KT|MPS|KMH)$`)
	windVarRegex   = regexp.MustCompile(`^(\d{3})V(\d{3})$`)
	visMetersRegex = regexp.MustCompile(`^(\d{4})(NDV)?$`)
	visMilesRegex  = regexp.MustCompile(`^([MP])?(\d+)(?:/(\d+))?SM$`)
	wholeMileRegex = regexp.MustCompile(`^\d$`)
	rvrRegex       = regexp.MustCompile(`^R\d{2}[LCR]?/`)
	wxRegex        = regexp.MustCompile(`^(-|\+|VC)?(MI|PR|BC|DR|BL|SH|TS|FZ)?((?:DZ|RA|SN|SG|IC|PL|GR|GS|UP|BR|FG|FU|VA|DU|SA|HZ|PY|PO|SQ|FC|SS|DS)*)$`)
	cloudRegex     = regexp.MustCompile(`^(SKC|CLR|NSC|NCD|FEW|SCT|BKN|OVC|VV)(\d{3}|///)?(CB|TCU|///)?$`)
	tempRegex      = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})?$`)
	altInHgRegex   = regexp.MustCompile(`^A(\d{4})$`)
	altHPaRegex    = regexp.MustCompile(`^Q(\d{4})$`)
	// Precise temperature/dew point in remarks: T s ttt s ddd (s: 0 positive, 1 negative)
	tGroupRegex = regexp.MustCompile(`^T([01])(\d{3})(?:([01])(\d{3}))?$`)
)

var phenomena = map[string]string{
	"DZ": "drizzle",
	"RA": "rain",
	"SN": "snow",
	"SG": "snow grains",
	"IC": "ice crystals",
	"PL": "ice pellets",
	"GR": "hail",
	"GS": "small hail",
	"UP": "unknown precipitation",
	"BR": "mist",
	"FG": "fog",
	"FU": "smoke",
	"VA": "volcanic ash",
	"DU": "widespread dust",
	"SA": "sand",
	"HZ": "haze",
	"PY": "spray",
	"PO": "dust whirls",
	"SQ": "squalls",
	"FC": "funnel cloud",
	"SS": "sandstorm",
	"DS": "duststorm",
}

var descriptors = map[string]string{
	"MI": "shallow",
	"PR": "partial",
	"BC": "patches of",
	"DR": "low drifting",
	"BL": "blowing",
	"FZ": "freezing",
}

var cloudCover = map[string]string{
	"SKC": "sky clear",
	"CLR": "clear",
	"NSC": "no significant cloud",
	"NCD": "no cloud detected",
	"FEW": "few",
	"SCT": "scattered",
	"BKN": "broken",
	"OVC": "overcast",
	"VV":  "vertical visibility",
}

var trendMarkers = map[string]bool{
	"NOSIG": true,
	"BECMG": true,
	"TEMPO": true,
}

// Decode parses a raw METAR/SPECI string into a Report.
// Groups that are not understood are kept in Unparsed instead of failing the decode.
func Decode(raw string) (*Report, error) {
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "="))
	if text == "" {
		return nil, ErrEmpty
	}

	parts := strings.Fields(text)
	r := &Report{}

	i := 0
	if parts[i] == "METAR" || parts[i] == "SPECI" {
		r.ReportType = parts[i]
		i++
	}
	if i < len(parts) && (parts[i] == "COR" || parts[i] == "AMD") {
		r.Modifier = parts[i]
		i++
	}
	if i >= len(parts) || !stationRegex.MatchString(parts[i]) {
		return nil, ErrNoStation
	}
	r.Station = parts[i]
	i++

	for ; i < len(parts); i++ {
		part := parts[i]

		if part == "RMK" {
			r.decodeRemarks(parts[i+1:])
			break
		}
		if trendMarkers[part] {
			end := len(parts)
			for j := i; j < len(parts); j++ {
				if parts[j] == "RMK" {
					end = j
					break
				}
			}
			r.Trend = strings.Join(parts[i:end], " ")
			i = end - 1
			continue
		}

		switch {
		case part == "AUTO" || part == "COR" || part == "NIL":
			r.Modifier = part
		case timeRegex.MatchString(part) && r.ObservationTime == "":
			if !r.decodeTime(part) {
				r.Unparsed = append(r.Unparsed, part)
			}
		case windRegex.MatchString(part):
			r.Wind = decodeWind(part)
		case windVarRegex.MatchString(part) && r.Wind != nil:
			m := windVarRegex.FindStringSubmatch(part)
			from, _ := strconv.Atoi(m[1])
			to, _ := strconv.Atoi(m[2])
			r.Wind.VariableFrom = &from
			r.Wind.VariableTo = &to
		case part == "CAVOK":
			r.Visibility = &Vis{Raw: part, CAVOK: true}
		case visMetersRegex.MatchString(part) && r.Visibility == nil:
			r.Visibility = decodeMeters(part)
		case wholeMileRegex.MatchString(part) && i+1 < len(parts) && visMilesRegex.MatchString(parts[i+1]) && r.Visibility == nil:
			r.Visibility = decodeMiles(part + " " + parts[i+1])
			i++
		case visMilesRegex.MatchString(part) && r.Visibility == nil:
			r.Visibility = decodeMiles(part)
		case rvrRegex.MatchString(part):
			r.RunwayVisualRange = append(r.RunwayVisualRange, part)
		case cloudRegex.MatchString(part):
			r.Clouds = append(r.Clouds, decodeCloud(part))
		case tempRegex.MatchString(part):
			m := tempRegex.FindStringSubmatch(part)
			r.TemperatureC = signedValue(m[1])
			if m[2] != "" {
				r.DewpointC = signedValue(m[2])
			}
		case altInHgRegex.MatchString(part):
			m := altInHgRegex.FindStringSubmatch(part)
			v, _ := strconv.Atoi(m[1])
			r.Altimeter = &Pressure{Value: float64(v) / 100.0, Unit: "inHg"}
		case altHPaRegex.MatchString(part):
			m := altHPaRegex.FindStringSubmatch(part)
			v, _ := strconv.Atoi(m[1])
			r.Altimeter = &Pressure{Value: float64(v), Unit: "hPa"}
		case isWeather(part):
			r.Weather = append(r.Weather, Wx{Code: part, Description: describeWeather(part)})
		default:
			r.Unparsed = append(r.Unparsed, part)
		}
	}

	if !r.hasBody() {
		return nil, ErrNoBody
	}

	r.FlightCategory = flightCategory(r)
	return r, nil
}

// hasBody reports whether at least one observed weather group was decoded
func (r *Report) hasBody() bool {
	return r.Wind != nil || r.Visibility != nil || len(r.RunwayVisualRange) > 0 ||
		len(r.Weather) > 0 || len(r.Clouds) > 0 || r.TemperatureC != nil || r.Altimeter != nil
}

func (r *Report) decodeTime(part string) bool {
	m := timeRegex.FindStringSubmatch(part)
	day, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 || hour > 23 || minute > 59 {
		return false
	}
	r.ObservationDay = day
	r.ObservationTime = m[2] + ":" + m[3] + "Z"
	return true
}

func (r *Report) decodeRemarks(parts []string) {
	r.Remarks = strings.Join(parts, " ")
	for _, part := range parts {
		m := tGroupRegex.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		r.TemperatureC = tenths(m[1], m[2])
		if m[3] != "" {
			r.DewpointC = tenths(m[3], m[4])
		}
		return
	}
}

func decodeWind(part string) *Wind {
	m := windRegex.FindStringSubmatch(part)
	w := &Wind{Unit: m[4]}
	if m[1] == "VRB" {
		w.Variable = true
	} else {
		dir, _ := strconv.Atoi(m[1])
		w.Direction = &dir
	}
	w.Speed, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		w.Gust, _ = strconv.Atoi(m[3])
	}
	return w
}

func decodeMeters(part string) *Vis {
	m := visMetersRegex.FindStringSubmatch(part)
	meters, _ := strconv.Atoi(m[1])
	v := &Vis{Raw: part, Meters: &meters}
	if meters == 9999 {
		v.GreaterThan = true
	}
	return v
}

func decodeMiles(part string) *Vis {
	v := &Vis{Raw: part}
	whole := 0.0
	token := part
	if idx := strings.IndexByte(part, ' '); idx > 0 {
		w, _ := strconv.Atoi(part[:idx])
		whole = float64(w)
		token = part[idx+1:]
	}

	m := visMilesRegex.FindStringSubmatch(token)
	switch m[1] {
	case "M":
		v.LessThan = true
	case "P":
		v.GreaterThan = true
	}

	num, _ := strconv.Atoi(m[2])
	miles := float64(num)
	if m[3] != "" {
		den, _ := strconv.Atoi(m[3])
		if den > 0 {
			miles = miles / float64(den)
		}
	}
	miles += whole
	v.StatuteMile = &miles
	return v
}

func decodeCloud(part string) Cloud {
	m := cloudRegex.FindStringSubmatch(part)
	c := Cloud{Cover: m[1], Description: cloudCover[m[1]]}
	if m[2] != "" && m[2] != "///" {
		h, _ := strconv.Atoi(m[2])
		h *= 100
		c.HeightFt = &h
	}
	if m[3] != "///" {
		c.Type = m[3]
	}
	return c
}

func isWeather(part string) bool {
	m := wxRegex.FindStringSubmatch(part)
	if m == nil {
		return false
	}
	// A bare intensity sign is not a weather group
	return m[2] != "" || m[3] != ""
}

func describeWeather(code string) string {
	m := wxRegex.FindStringSubmatch(code)
	intensity, descriptor, phen := m[1], m[2], m[3]

	var names []string
	for j := 0; j+2 <= len(phen); j += 2 {
		names = append(names, phenomena[phen[j:j+2]])
	}
	what := strings.Join(names, " and ")

	var words []string
	switch intensity {
	case "-":
		words = append(words, "light")
	case "+":
		words = append(words, "heavy")
	}

	switch descriptor {
	case "TS":
		if what == "" {
			words = append(words, "thunderstorm")
		} else {
			words = append(words, "thunderstorm with", what)
		}
	case "SH":
		if what == "" {
			words = append(words, "showers")
		} else {
			words = append(words, what, "showers")
		}
	case "":
		words = append(words, what)
	default:
		words = append(words, descriptors[descriptor], what)
	}

	if intensity == "VC" {
		words = append(words, "in vicinity")
	}

	desc := strings.TrimSpace(strings.Join(words, " "))
	desc = cases.Title(language.English).String(desc)
	// Joining words must stay lowercase after title casing
	desc = strings.ReplaceAll(desc, " With ", " with ")
	desc = strings.ReplaceAll(desc, " And ", " and ")
	desc = strings.ReplaceAll(desc, " In ", " in ")
	desc = strings.ReplaceAll(desc, " Of ", " of ")
	return desc
}

func signedValue(s string) *float64 {
	neg := strings.HasPrefix(s, "M")
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "M"), 64)
	if err != nil {
		return nil
	}
	if neg {
		v = -v
	}
	return &v
}

func tenths(sign, digits string) *float64 {
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	v = v / 10.0
	if sign == "1" {
		v = -v
	}
	return &v
}

// flightCategory derives VFR/MVFR/IFR/LIFR from ceiling and visibility.
// Empty when neither is known.
func flightCategory(r *Report) string {
	ceiling := -1
	for _, c := range r.Clouds {
		if (c.Cover == "BKN" || c.Cover == "OVC" || c.Cover == "VV") && c.HeightFt != nil {
			if ceiling < 0 || *c.HeightFt < ceiling {
				ceiling = *c.HeightFt
			}
		}
	}

	visSM := -1.0
	if r.Visibility != nil {
		switch {
		case r.Visibility.CAVOK:
			visSM = 10
		case r.Visibility.StatuteMile != nil:
			visSM = *r.Visibility.StatuteMile
		case r.Visibility.Meters != nil:
			visSM = float64(*r.Visibility.Meters) / 1609.344
		}
	}

	if ceiling < 0 && visSM < 0 {
		if r.Visibility != nil && r.Visibility.CAVOK {
			return "VFR"
		}
		return ""
	}

	switch {
	case (ceiling >= 0 && ceiling < 500) || (visSM >= 0 && visSM < 1):
		return "LIFR"
	case (ceiling >= 0 && ceiling < 1000) || (visSM >= 0 && visSM < 3):
		return "IFR"
	case (ceiling >= 0 && ceiling <= 3000) || (visSM >= 0 && visSM <= 5):
		return "MVFR"
	default:
		return "VFR"
	}
}
