package api

import "testing"

func TestSearchExperimentsFolding(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"   ", nil},
		{"rota", []string{"rotameter"}},
		{"CALIBRATION", []string{"rotameter", "venturimeter"}},
		{"vénturi", []string{"venturimeter"}},
		{"orifice", nil},
	}

	for _, tt := range tests {
		got := SearchExperiments(tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("SearchExperiments(%q) = %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i, e := range got {
			if e.Experiment != tt.want[i] {
				t.Errorf("SearchExperiments(%q)[%d] = %s, want %s", tt.query, i, e.Experiment, tt.want[i])
			}
		}
	}
}
