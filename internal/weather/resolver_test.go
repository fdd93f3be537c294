package weather

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yegors/flightwx/internal/airports"
	"github.com/yegors/flightwx/internal/avwx"
	"github.com/yegors/flightwx/internal/flightdata"
	"github.com/yegors/flightwx/pkg/logger"
)

type fakePrimary struct {
	current  avwx.Result
	history  avwx.Result
	stations []string
}

func (f *fakePrimary) METAR(_ context.Context, station string) avwx.Result {
	f.stations = append(f.stations, station)
	return f.current
}

func (f *fakePrimary) METARHistory(_ context.Context, station string) avwx.Result {
	f.stations = append(f.stations, station)
	return f.history
}

type fakeSecondary struct {
	current   []flightdata.Observation
	history   []flightdata.Observation
	err       error
	calls     int
	airports  []string
	lastLimit int
}

func (f *fakeSecondary) AirportMETARs(_ context.Context, airport string, page, limit int) ([]flightdata.Observation, error) {
	f.calls++
	f.airports = append(f.airports, airport)
	f.lastLimit = limit
	return f.current, f.err
}

func (f *fakeSecondary) AirportMETARsHistory(_ context.Context, airport string) ([]flightdata.Observation, error) {
	f.calls++
	f.airports = append(f.airports, airport)
	return f.history, f.err
}

func timeoutFailure() avwx.Result {
	return avwx.Result{Failure: &avwx.Failure{Kind: avwx.FailureTimeout, Err: context.DeadlineExceeded}}
}

func decodeObject(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("payload is not a JSON object: %v (%s)", err, raw)
	}
	return out
}

func newResolver(p Primary, s Secondary, d *airports.Directory) *Resolver {
	return NewResolver(p, s, d, logger.NewNop())
}

func TestPrimarySuccessIsReturnedVerbatim(t *testing.T) {
	body := json.RawMessage(`{"raw":"LFPG 251200Z 24012KT 9999 FEW020 18/12 Q1013","flight_rules":"VFR"}`)
	primary := &fakePrimary{current: avwx.Result{Body: body}}
	secondary := &fakeSecondary{}

	got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "LFPG", Current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("primary body was modified:\n got: %s\nwant: %s", got, body)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary must not be called when the primary succeeds, got %d calls", secondary.calls)
	}
}

func TestFallbackOnPrimaryTimeout(t *testing.T) {
	primary := &fakePrimary{current: timeoutFailure()}
	secondary := &fakeSecondary{current: []flightdata.Observation{flightdata.NewText("METAR LFPG 251200Z ...")}}

	got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "LFPG", Current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"raw_metar":"METAR LFPG 251200Z ..."}`
	if string(got) != want {
		t.Fatalf("unexpected fallback body:\n got: %s\nwant: %s", got, want)
	}
}

func TestFallbackMergesDecodedFields(t *testing.T) {
	primary := &fakePrimary{current: timeoutFailure()}
	secondary := &fakeSecondary{current: []flightdata.Observation{flightdata.NewText("LFPG 251200Z 24012KT 9999 FEW020 18/12 Q1013")}}

	got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "LFPG", Current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := decodeObject(t, got)
	if payload["raw_metar"] != "LFPG 251200Z 24012KT 9999 FEW020 18/12 Q1013" || payload["station"] != "LFPG" {
		t.Fatalf("expected raw_metar with decoded fields merged, got %v", payload)
	}
	if _, ok := payload["time"]; ok {
		t.Fatal("time must be absent for a bare string observation")
	}
}

func TestFallbackOnEveryFailureKind(t *testing.T) {
	kinds := []avwx.FailureKind{avwx.FailureTransport, avwx.FailureTimeout, avwx.FailureStatus, avwx.FailurePayload}
	for _, kind := range kinds {
		primary := &fakePrimary{current: avwx.Result{Failure: &avwx.Failure{Kind: kind, Err: errors.New("boom")}}}
		secondary := &fakeSecondary{current: []flightdata.Observation{flightdata.NewText("KJFK 251151Z 18008KT 10SM CLR 20/10 A3001")}}

		got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "KJFK", Current)
		if err != nil {
			t.Fatalf("%s: primary failure leaked: %v", kind, err)
		}
		if decodeObject(t, got)["raw_metar"] == nil {
			t.Fatalf("%s: raw_metar missing", kind)
		}
	}
}

func TestStructuredObservationKeepsTime(t *testing.T) {
	primary := &fakePrimary{current: timeoutFailure()}
	secondary := &fakeSecondary{current: []flightdata.Observation{
		flightdata.NewRecord("LFPG 251200Z 24012KT 9999 FEW020 18/12 Q1013", json.RawMessage(`1761393600`)),
	}}

	got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "CDG", Current)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := decodeObject(t, got)
	if payload["time"] != float64(1761393600) {
		t.Fatalf("expected time to be carried over, got %v", payload["time"])
	}
	if payload["flight_category"] != "VFR" || payload["temperature_c"] != float64(18) {
		t.Fatalf("decoded fields missing: %v", payload)
	}
}

func TestUndecodableMETARStillReturnsRaw(t *testing.T) {
	primary := &fakePrimary{current: timeoutFailure()}
	secondary := &fakeSecondary{current: []flightdata.Observation{flightdata.NewText("no data available")}}

	got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "XXX", Current)
	if err != nil {
		t.Fatalf("decode failure must not fail the request: %v", err)
	}
	want := map[string]any{"raw_metar": "no data available"}
	if diff := cmp.Diff(want, decodeObject(t, got)); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestBothProvidersEmptyIsNotFound(t *testing.T) {
	primary := &fakePrimary{current: avwx.Result{Failure: &avwx.Failure{Kind: avwx.FailureStatus, StatusCode: 404, Err: errors.New("not found")}}}
	secondary := &fakeSecondary{current: []flightdata.Observation{}}

	_, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "ZZZZ", Current)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Message != "No METAR found" {
		t.Fatalf("unexpected not found message: %v", err)
	}
}

func TestSecondaryFaultIsInternal(t *testing.T) {
	primary := &fakePrimary{current: timeoutFailure()}
	secondary := &fakeSecondary{err: flightdata.ErrUnavailable}

	_, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "LFPG", Current)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected an internal error, got %v", err)
	}
	if !errors.Is(err, flightdata.ErrUnavailable) {
		t.Fatalf("expected the secondary error to be wrapped, got %v", err)
	}
	if strings.Contains(err.Error(), "deadline") {
		t.Fatalf("primary failure must not be surfaced: %v", err)
	}
}

func TestHistoryFallback(t *testing.T) {
	primary := &fakePrimary{history: timeoutFailure()}
	secondary := &fakeSecondary{history: []flightdata.Observation{
		flightdata.NewRecord("LFPG 251200Z 24012KT CAVOK 18/12 Q1013", json.RawMessage(`"2025-10-25T12:00:00Z"`)),
		flightdata.NewText("LFPG 251130Z 24010KT CAVOK 17/12 Q1013"),
	}}

	got, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "LFPG", History)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `[{"raw_metar":"LFPG 251200Z 24012KT CAVOK 18/12 Q1013","time":"2025-10-25T12:00:00Z"},"LFPG 251130Z 24010KT CAVOK 17/12 Q1013"]`
	if string(got) != want {
		t.Fatalf("history was not passed through as-is:\n got: %s\nwant: %s", got, want)
	}
}

func TestHistoryEmptyIsNotFound(t *testing.T) {
	primary := &fakePrimary{history: timeoutFailure()}
	secondary := &fakeSecondary{}

	_, err := newResolver(primary, secondary, nil).ResolveMETAR(context.Background(), "ZZZZ", History)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Message != "No history found" {
		t.Fatalf("expected No history found, got %v", err)
	}
}

func TestCodesAreTranslatedPerProvider(t *testing.T) {
	dir, err := airports.NewDirectory(strings.NewReader("ident,type,name,icao_code,iata_code,gps_code\nLFPG,large_airport,Charles de Gaulle,LFPG,CDG,LFPG\n"))
	if err != nil {
		t.Fatal(err)
	}
	primary := &fakePrimary{current: timeoutFailure()}
	secondary := &fakeSecondary{current: []flightdata.Observation{flightdata.NewText("LFPG 251200Z CAVOK")}}

	if _, err := newResolver(primary, secondary, dir).ResolveMETAR(context.Background(), "cdg", Current); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"LFPG"}, primary.stations); diff != "" {
		t.Fatalf("primary should receive the ICAO code (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"CDG"}, secondary.airports); diff != "" {
		t.Fatalf("secondary should receive the IATA code (-want +got):\n%s", diff)
	}
}

func TestLatestMETARAlwaysCarriesRaw(t *testing.T) {
	secondary := &fakeSecondary{current: []flightdata.Observation{flightdata.NewText("EGLL 251150Z 27015G25KT 9999 BKN012 14/11 Q1005")}}

	report, err := newResolver(&fakePrimary{}, secondary, nil).LatestMETAR(context.Background(), "LHR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report["raw_metar"] != "EGLL 251150Z 27015G25KT 9999 BKN012 14/11 Q1005" {
		t.Fatalf("unexpected raw_metar: %v", report["raw_metar"])
	}
	if report["flight_category"] != "MVFR" {
		t.Fatalf("expected MVFR, got %v", report["flight_category"])
	}
	if secondary.lastLimit != 1 {
		t.Fatalf("latest METAR should request a single observation, got limit %d", secondary.lastLimit)
	}
}

func TestDecodedMETAR(t *testing.T) {
	secondary := &fakeSecondary{current: []flightdata.Observation{
		flightdata.NewRecord("LFPG 251200Z 24012KT 9999 FEW020 18/12 Q1013", json.RawMessage(`1761393600`)),
	}}
	r := newResolver(&fakePrimary{}, secondary, nil)

	fields, err := r.DecodedMETAR(context.Background(), "CDG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["station"] != "LFPG" {
		t.Fatalf("unexpected station: %v", fields["station"])
	}
	if _, ok := fields["raw_metar"]; ok {
		t.Fatal("decoded payload must not carry raw_metar")
	}

	for _, raw := range []string{"garbage", "METAR LFPG 251200Z ..."} {
		secondary.current = []flightdata.Observation{flightdata.NewText(raw)}
		if _, err := r.DecodedMETAR(context.Background(), "CDG"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%q: undecodable METAR should be not found, got %v", raw, err)
		}
	}
}

func TestMETARs(t *testing.T) {
	secondary := &fakeSecondary{}
	r := newResolver(&fakePrimary{}, secondary, nil)

	if _, err := r.METARs(context.Background(), "ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	secondary.current = []flightdata.Observation{flightdata.NewText("A"), flightdata.NewText("B")}
	got, err := r.METARs(context.Background(), "CDG")
	if err != nil || len(got) != 2 {
		t.Fatalf("unexpected result: %v / %v", got, err)
	}
	if secondary.lastLimit != airportMETARsLimit {
		t.Fatalf("expected limit %d, got %d", airportMETARsLimit, secondary.lastLimit)
	}
}

func TestMETARHistoryPassesEmptyThrough(t *testing.T) {
	r := newResolver(&fakePrimary{}, &fakeSecondary{}, nil)

	got, err := r.METARHistory(context.Background(), "ZZZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, _ := json.Marshal(got)
	if string(out) != "[]" {
		t.Fatalf("expected empty list, got %s", out)
	}
}

func TestNotFoundError(t *testing.T) {
	var err error = &NotFoundError{Message: "No photo found"}
	if !errors.Is(err, ErrNotFound) || err.Error() != "No photo found" {
		t.Fatalf("unexpected NotFoundError behavior: %v", err)
	}
}
