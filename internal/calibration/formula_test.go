package calibration

import (
	"errors"
	"math"
	"testing"
)

func rawRow(id string, kv ...string) RawRow {
	r := RawRow{ID: id, Fields: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Fields[kv[i]] = kv[i+1]
	}
	return r
}

func closeTo(a, b, rel float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= rel*math.Max(math.Abs(a), math.Abs(b))
}

func TestRotameterDerive(t *testing.T) {
	f := NewRotameter()
	tests := []struct {
		qrot, time float64
		in         RawRow
	}{
		{360, 25, rawRow("1", "qrot", "360", "time", "25")},
		{120.5, 48.2, rawRow("2", "qrot", " 120.5 ", "time", "48.2")},
		{1e6, 0.001, rawRow("3", "qrot", "1e6", "time", "0.001")},
	}

	for _, tt := range tests {
		row, ok := Derive(f, tt.in)
		if !ok {
			t.Fatalf("Derive(%v) excluded, want computed", tt.in.Fields)
		}
		if got, want := row["qrot_m3s"], tt.qrot/3_600_000; got != want {
			t.Errorf("qrot_m3s = %v, want %v", got, want)
		}
		if got, want := row["qact"], RotameterTankVolume/tt.time; got != want {
			t.Errorf("qact = %v, want %v", got, want)
		}
		if got, want := row["cf"], row["qact"]/row["qrot_m3s"]; got != want {
			t.Errorf("cf = %v, want %v", got, want)
		}
		if row["qrot"] != tt.qrot || row["time"] != tt.time {
			t.Errorf("inputs = (%v, %v), want (%v, %v)", row["qrot"], row["time"], tt.qrot, tt.time)
		}
	}
}

func TestRotameterDerive_Exclusions(t *testing.T) {
	f := NewRotameter()
	tests := []struct {
		name string
		in   RawRow
	}{
		{"zero time", rawRow("1", "qrot", "360", "time", "0")},
		{"negative time", rawRow("1", "qrot", "360", "time", "-4")},
		{"blank time", rawRow("1", "qrot", "360", "time", "")},
		{"text qrot", rawRow("1", "qrot", "abc", "time", "25")},
		{"missing qrot", rawRow("1", "time", "25")},
		{"nan text", rawRow("1", "qrot", "NaN", "time", "25")},
		{"infinite time", rawRow("1", "qrot", "360", "time", "Inf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if row, ok := Derive(f, tt.in); ok {
				t.Errorf("Derive(%v) = %v, want excluded", tt.in.Fields, row)
			}
		})
	}
}

func TestRotameterDerive_ZeroFlowKeepsRowWithoutRatio(t *testing.T) {
	row, ok := Derive(NewRotameter(), rawRow("1", "qrot", "0", "time", "10"))
	if !ok {
		t.Fatal("row with zero rotameter flow was excluded")
	}
	if _, ok := row.Value("cf"); ok {
		t.Errorf("cf = %v, want absent", row["cf"])
	}
}

func TestEvaluate_DropsExcludedRows(t *testing.T) {
	raw := []RawRow{
		rawRow("1", "qrot", "360", "time", "25"),
		rawRow("2", "qrot", "360", "time", "0"),
		rawRow("3", "qrot", "x", "time", "25"),
		rawRow("4", "qrot", "720", "time", "12.5"),
	}
	rows := Evaluate(NewRotameter(), raw)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0]["qrot"] != 360 || rows[1]["qrot"] != 720 {
		t.Errorf("rows out of order: %v", rows)
	}
}

func TestVenturimeterDerive(t *testing.T) {
	f := NewVenturimeter()
	g := DefaultVenturiGeometry()

	row, ok := Derive(f, rawRow("1", "P1", "0.5", "P2", "0.3", "time", "20"))
	if !ok {
		t.Fatal("Derive excluded a valid row")
	}

	dp := 0.5 - 0.3
	dpPa := dp * 98066.5
	h := dpPa / (1000 * 9.81)
	ratioSq := math.Pow(g.ThroatArea/g.PipeArea, 2)
	qTheo := g.ThroatArea * math.Sqrt(2*9.81*h/(1-ratioSq))
	qAct := 0.6 * 0.4 * 0.05 / 20

	checks := []struct {
		field string
		want  float64
	}{
		{"dP_kgcm2", dp},
		{"dP_Pa", dpPa},
		{"H_m", h},
		{"Q_theo", qTheo},
		{"Q_act", qAct},
		{"Cd", qAct / qTheo},
	}
	for _, c := range checks {
		got, ok := row.Value(c.field)
		if !ok {
			t.Errorf("%s missing", c.field)
			continue
		}
		if !closeTo(got, c.want, 1e-12) {
			t.Errorf("%s = %v, want %v", c.field, got, c.want)
		}
	}

	if cd := row["Cd"]; cd < 0.7 || cd > 0.74 {
		t.Errorf("Cd = %v, want roughly 0.72 for the bench rig", cd)
	}
}

func TestVenturimeterDerive_Exclusions(t *testing.T) {
	f := NewVenturimeter()
	tests := []struct {
		name string
		in   RawRow
	}{
		{"negative head", rawRow("1", "P1", "0.3", "P2", "0.5", "time", "20")},
		{"zero time", rawRow("1", "P1", "0.5", "P2", "0.3", "time", "0")},
		{"missing P2", rawRow("1", "P1", "0.5", "time", "20")},
		{"text P1", rawRow("1", "P1", "high", "P2", "0.3", "time", "20")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if row, ok := Derive(f, tt.in); ok {
				t.Errorf("Derive(%v) = %v, want excluded", tt.in.Fields, row)
			}
		})
	}
}

func TestVenturimeterDerive_ZeroHeadKeepsRowWithoutRatio(t *testing.T) {
	row, ok := Derive(NewVenturimeter(), rawRow("1", "P1", "0.4", "P2", "0.4", "time", "20"))
	if !ok {
		t.Fatal("zero head row was excluded")
	}
	if row["Q_theo"] != 0 {
		t.Errorf("Q_theo = %v, want 0", row["Q_theo"])
	}
	if _, ok := row.Value("Cd"); ok {
		t.Errorf("Cd = %v, want absent", row["Cd"])
	}
}

func TestVenturimeterDerive_DegenerateGeometry(t *testing.T) {
	tests := []struct {
		name   string
		throat float64
	}{
		{"throat equals pipe", 1},
		{"throat wider than pipe", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultVenturiGeometry()
			g.ThroatArea = g.PipeArea * tt.throat
			f := &Venturimeter{Geometry: g}

			row, ok := Derive(f, rawRow("1", "P1", "0.5", "P2", "0.3", "time", "20"))
			if ok {
				t.Errorf("Derive = %v, want excluded", row)
			}
			partial := f.Complete(ComputedRow{"P1": 0.5, "P2": 0.3, "time": 20})
			if _, ok := partial.Value("Q_theo"); ok {
				t.Errorf("Q_theo = %v, want absent for degenerate geometry", partial["Q_theo"])
			}
		})
	}
}

func TestComplete_KeepsStoredValues(t *testing.T) {
	row := ComputedRow{"qrot": 360, "time": 25, "qact": 3e-4, "cf": math.NaN()}
	got := NewRotameter().Complete(row)

	if got["qact"] != 3e-4 {
		t.Errorf("qact = %v, want stored 3e-4", got["qact"])
	}
	qrot, qact := 360.0, 3e-4
	if want := qact / (qrot / 3_600_000); !closeTo(got["cf"], want, 1e-12) {
		t.Errorf("cf = %v, want re-derived %v", got["cf"], want)
	}
	if !math.IsNaN(row["cf"]) {
		t.Error("Complete modified its input row")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want Experiment
	}{
		{"rotameter", ExperimentRotameter},
		{"Rotameter", ExperimentRotameter},
		{"flowCalibration", ExperimentRotameter},
		{" venturimeter ", ExperimentVenturimeter},
		{"venturimeterCalibration", ExperimentVenturimeter},
	}

	for _, tt := range tests {
		f, err := Lookup(tt.name)
		if err != nil {
			t.Errorf("Lookup(%q): %v", tt.name, err)
			continue
		}
		if got := f.Schema().Experiment; got != tt.want {
			t.Errorf("Lookup(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}

	if _, err := Lookup("orifice"); !errors.Is(err, ErrUnknownExperiment) {
		t.Errorf("Lookup(orifice) err = %v, want ErrUnknownExperiment", err)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12", 12, true},
		{" 0.25 ", 0.25, true},
		{"-3", -3, true},
		{"1e-3", 0.001, true},
		{"", 0, false},
		{"   ", 0, false},
		{"1,5", 0, false},
		{"NaN", 0, false},
		{"-Inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
