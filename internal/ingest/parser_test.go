package ingest

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

const header = "asset_id,timestamp,temperature,vibration_level,pressure,runtime_hours,location"

// quietLogger discards log output so skipped-row warnings don't clutter test runs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parse(t *testing.T, text string) *Result {
	t.Helper()
	res, err := Parse(text, quietLogger())
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	return res
}

func TestParse_SingleValidRow(t *testing.T) {
	res := parse(t, header+"\nA1,2024-01-01,90,2.0,160,8000,PlantA\n")

	if len(res.Records) != 1 {
		t.Fatalf("records: got %d, want 1", len(res.Records))
	}
	r := res.Records[0]
	if r.AssetID != "A1" || r.Location != "PlantA" || r.Timestamp != "2024-01-01" {
		t.Errorf("text fields: got %+v", r)
	}
	if r.Temperature != 90 || r.VibrationLevel != 2.0 || r.Pressure != 160 || r.RuntimeHours != 8000 {
		t.Errorf("numeric fields: got %+v", r)
	}
	if r.FailureEvent != nil {
		t.Errorf("failure_event: got %v, want nil", *r.FailureEvent)
	}
	if len(res.Skipped) != 0 || res.Warnings() != nil {
		t.Errorf("expected no skipped rows, got %v", res.Skipped)
	}
}

func TestParse_TooShort(t *testing.T) {
	for _, in := range []string{"", "   \n  ", header, header + "\n"} {
		_, err := Parse(in, quietLogger())
		var mie *MalformedInputError
		if !errors.As(err, &mie) {
			t.Errorf("Parse(%q): got %v, want MalformedInputError", in, err)
		}
		if !errors.Is(err, ErrMalformedInput) {
			t.Errorf("Parse(%q): errors.Is(ErrMalformedInput) = false", in)
		}
	}
}

func TestParse_MissingColumns(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantMissing []string
	}{
		{
			name:        "pressure missing",
			header:      "asset_id,timestamp,temperature,vibration_level,runtime_hours,location,failure_event",
			wantMissing: []string{"pressure"},
		},
		{
			name:        "several missing",
			header:      "asset_id,temperature,location",
			wantMissing: []string{"timestamp", "vibration_level", "pressure", "runtime_hours"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.header+"\nA1,x,1,2,3,4,5\n", quietLogger())
			var mce *MissingColumnsError
			if !errors.As(err, &mce) {
				t.Fatalf("got %v, want MissingColumnsError", err)
			}
			if strings.Join(mce.Missing, ",") != strings.Join(tc.wantMissing, ",") {
				t.Errorf("Missing: got %v, want %v", mce.Missing, tc.wantMissing)
			}
			if !errors.Is(err, ErrMissingColumns) {
				t.Error("errors.Is(ErrMissingColumns) = false")
			}
		})
	}
}

func TestParse_HeaderNormalization(t *testing.T) {
	in := "Asset ID, TimeStamp ,Temperature,Vibration  Level,PRESSURE,Runtime Hours,Location\n" +
		"A1,2024-01-01,70,1.0,100,100,PlantA\n"
	res := parse(t, in)
	if len(res.Records) != 1 {
		t.Fatalf("records: got %d, want 1", len(res.Records))
	}
}

func TestParse_NaNTemperatureOnlyRow(t *testing.T) {
	_, err := Parse(header+"\nA1,2024-01-01,NaN,2.0,160,8000,PlantA\n", quietLogger())
	var nve *NoValidDataError
	if !errors.As(err, &nve) {
		t.Fatalf("got %v, want NoValidDataError", err)
	}
	if nve.Skipped != 1 {
		t.Errorf("Skipped: got %d, want 1", nve.Skipped)
	}
	if !errors.Is(err, ErrNoValidData) {
		t.Error("errors.Is(ErrNoValidData) = false")
	}
}

func TestParse_InvalidRowsSkipped(t *testing.T) {
	in := strings.Join([]string{
		header,
		"A1,2024-01-01,70,1.0,100,100,PlantA",  // row 2 valid
		"A2,2024-01-01,abc,1.0,100,100,PlantA", // row 3 bad temperature
		",2024-01-01,70,1.0,100,100,PlantA",    // row 4 empty asset_id
		"A4,,70,1.0,100,100,PlantA",            // row 5 empty timestamp
		"A5,2024-01-01,70,1.0,100,100,",        // row 6 empty location
		"A6,2024-01-01,70",                     // row 7 too few fields
		"A7,2024-01-01,70,1.0,100,inf,PlantB",  // row 8 non-finite runtime
		"A8,2024-01-01,70,1.0,100,250,PlantB",  // row 9 valid
	}, "\n")
	res := parse(t, in)

	if len(res.Records) != 2 {
		t.Fatalf("records: got %d, want 2", len(res.Records))
	}
	if res.Records[0].AssetID != "A1" || res.Records[1].AssetID != "A8" {
		t.Errorf("record order: got %s, %s", res.Records[0].AssetID, res.Records[1].AssetID)
	}

	wantRows := []int{3, 4, 5, 6, 7, 8}
	if len(res.Skipped) != len(wantRows) {
		t.Fatalf("skipped: got %d, want %d (%v)", len(res.Skipped), len(wantRows), res.Skipped)
	}
	for i, row := range wantRows {
		if res.Skipped[i].Row != row {
			t.Errorf("skipped[%d].Row: got %d, want %d", i, res.Skipped[i].Row, row)
		}
		if res.Skipped[i].Line == "" || res.Skipped[i].Reason == "" {
			t.Errorf("skipped[%d]: line and reason must be set: %+v", i, res.Skipped[i])
		}
	}
	if res.Warnings() == nil {
		t.Error("Warnings(): got nil, want combined row errors")
	}
}

func TestParse_FieldCountRule(t *testing.T) {
	t.Run("optional column absent allows one fewer field", func(t *testing.T) {
		// Seven header columns; six fields is mappable but location is then empty.
		res, err := Parse(header+"\nA1,2024-01-01,70,1.0,100,100\nA2,2024-01-01,70,1.0,100,100,P\n", quietLogger())
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Records) != 1 || len(res.Skipped) != 1 {
			t.Fatalf("got %d records, %d skipped", len(res.Records), len(res.Skipped))
		}
		if !strings.Contains(res.Skipped[0].Reason, "missing location") {
			t.Errorf("reason: got %q", res.Skipped[0].Reason)
		}
	})

	t.Run("optional column present requires full width", func(t *testing.T) {
		h := header + ",failure_event"
		res, err := Parse(h+"\nA1,2024-01-01,70,1.0,100,100,P\nA2,2024-01-01,70,1.0,100,100,P,1\n", quietLogger())
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Records) != 1 || res.Records[0].AssetID != "A2" {
			t.Fatalf("records: got %+v", res.Records)
		}
		if !strings.Contains(res.Skipped[0].Reason, "expected at least 8") {
			t.Errorf("reason: got %q", res.Skipped[0].Reason)
		}
	})
}

func TestParse_FailureEvent(t *testing.T) {
	h := "failure_event," + header
	res := parse(t, h+"\n1,A1,2024-01-01,70,1.0,100,100,P\n,A2,2024-01-01,70,1.0,100,100,P\n")

	if !res.HasFailureEvent {
		t.Error("HasFailureEvent: got false")
	}
	if res.Records[0].FailureEvent == nil || *res.Records[0].FailureEvent != 1 {
		t.Errorf("A1 failure_event: got %v, want 1", res.Records[0].FailureEvent)
	}
	if res.Records[1].FailureEvent != nil {
		t.Errorf("A2 failure_event: got %v, want nil", *res.Records[1].FailureEvent)
	}
}

func TestParse_ColumnOrderIndependence(t *testing.T) {
	canonical := header + "\nA1,2024-01-01,90,2.0,160,8000,PlantA\nB2,2024-02-03,60,0.5,120,10,PlantB\n"
	swapped := "location,timestamp,temperature,vibration_level,pressure,runtime_hours,asset_id\n" +
		"PlantA,2024-01-01,90,2.0,160,8000,A1\nPlantB,2024-02-03,60,0.5,120,10,B2\n"

	a := parse(t, canonical)
	b := parse(t, swapped)
	if len(a.Records) != len(b.Records) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Records), len(b.Records))
	}
	for i := range a.Records {
		if a.Records[i] != b.Records[i] {
			t.Errorf("record %d differs: %+v vs %+v", i, a.Records[i], b.Records[i])
		}
	}
}

func TestParse_CRLFAndQuotedFields(t *testing.T) {
	in := header + "\r\nA1,2024-01-01,70,1.0,100,100,\"Plant A, Hall 2\"\r\n"
	res := parse(t, in)
	if got := res.Records[0].Location; got != "Plant A, Hall 2" {
		t.Errorf("location: got %q", got)
	}
}

func TestParse_UnbalancedQuoteSplitsOnCommas(t *testing.T) {
	res := parse(t, header+"\n\"A1,2024-01-01,90,2.0,160,8000,PlantA\nB2,2024-01-01,60,0.5,100,10,Plant \"B\n")
	if len(res.Records) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("got %d records, %d skipped: %+v", len(res.Records), len(res.Skipped), res.Skipped)
	}
	if got := res.Records[0].AssetID; got != `"A1` {
		t.Errorf("asset_id: got %q, want %q", got, `"A1`)
	}
	if got := res.Records[0].Temperature; got != 90 {
		t.Errorf("temperature: got %v, want 90", got)
	}
	if got := res.Records[1].Location; got != `Plant "B` {
		t.Errorf("location: got %q", got)
	}
}

func TestParseInt_TruncatesDecimals(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"8000", 8000, true},
		{"8000.9", 8000, true},
		{"-3.5", -3, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseInt(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
