package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/lox/flowcal/internal/calibration"
)

func TestParseCSVRows(t *testing.T) {
	in := "qrot, time\n360, 25\n720,12.5\n,9\n"
	rows, err := parseCSVRows(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parseCSVRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[1].ID != "2" || rows[1].Get("qrot") != "720" || rows[1].Get("time") != "12.5" {
		t.Errorf("rows[1] = %+v", rows[1])
	}
	if rows[2].Get("qrot") != "" {
		t.Errorf("rows[2] qrot = %q, want blank", rows[2].Get("qrot"))
	}
}

func TestParseCSVRows_IDColumn(t *testing.T) {
	rows, err := parseCSVRows(strings.NewReader("id,P1,P2,time\n7,0.5,0.3,20\n,0.6,0.2,15\n"))
	if err != nil {
		t.Fatalf("parseCSVRows: %v", err)
	}
	if rows[0].ID != "7" || rows[1].ID != "2" {
		t.Errorf("ids = %s,%s, want 7,2", rows[0].ID, rows[1].ID)
	}
	if _, ok := rows[0].Fields["id"]; ok {
		t.Error("id column kept as a field")
	}
}

func TestParseJSONRows(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"array", `[{"qrot":"360","time":25},{"qrot":720,"time":"12.5"}]`},
		{"wrapped", `{"rows":[{"id":"1","qrot":"360","time":"25"},{"qrot":"720","time":"12.5"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseJSONRows([]byte(tt.in))
			if err != nil {
				t.Fatalf("parseJSONRows: %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("len(rows) = %d, want 2", len(rows))
			}
			if rows[1].ID != "2" || rows[1].Get("qrot") != "720" {
				t.Errorf("rows[1] = %+v", rows[1])
			}
		})
	}

	if _, err := parseJSONRows([]byte(`{"rows": 3}`)); err == nil {
		t.Error("parseJSONRows accepted a non-array rows field")
	}
}

func TestEditRows(t *testing.T) {
	f, err := calibration.Lookup("rotameter")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		drop    []string
		specs   []string
		want    []string // id:qrot:time
		wantErr string
	}{
		{
			name:  "drop then append",
			drop:  []string{"1"},
			specs: []string{"qrot=720, time=12.5"},
			want:  []string{"2:500:30", "3:720:12.5"},
		},
		{
			name:  "partial row keeps other fields blank",
			specs: []string{"time=9"},
			want:  []string{"1:360:25", "2:500:30", "3::9"},
		},
		{name: "unknown row", drop: []string{"7"}, wantErr: "no such row"},
		{name: "unknown field", specs: []string{"qrot=1,flow=2"}, wantErr: `unknown field "flow"`},
		{name: "missing value", specs: []string{"qrot"}, wantErr: "expected field=value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := calibration.NewSession(f)
			sess.Rows().Reset([]calibration.RawRow{
				{ID: "5", Fields: map[string]string{"qrot": "360", "time": "25"}},
				{ID: "8", Fields: map[string]string{"qrot": "500", "time": "30"}},
			})

			err := editRows(sess.Rows(), tt.drop, tt.specs)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("editRows: %v", err)
			}

			var got []string
			for _, r := range sess.Rows().Rows() {
				got = append(got, r.ID+":"+r.Get("qrot")+":"+r.Get("time"))
			}
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("rows = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrintRun(t *testing.T) {
	f := calibration.NewRotameter()
	res, err := calibration.ComputeAndPrepare([]calibration.RawRow{
		{ID: "1", Fields: map[string]string{"qrot": "360", "time": "25"}},
	}, f, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printRun(&buf, f.Schema(), res.Rows, res.Aggregate, time.Time{}); err != nil {
		t.Fatalf("printRun: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Calibration of Rotameter", "qrot(L/h)", "2.00000 x 10^-4", "Average cf:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	if err := setupLogger("debug"); err != nil {
		t.Errorf("setupLogger(debug): %v", err)
	}
	if err := setupLogger("loud"); err == nil {
		t.Error("setupLogger(loud) = nil, want error")
	}
}
