package api

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lox/flowcal/internal/calibration"
)

// ExperimentInfo is one entry in the experiment catalog.
type ExperimentInfo struct {
	Experiment string `json:"experiment"`
	Title      string `json:"title"`
	Collection string `json:"collection"`
}

// foldText lowercases and strips diacritics so "VENTURÍMETER" matches "venturimeter".
func foldText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// Casers are stateful, so each call gets its own
	return cases.Fold().String(strings.TrimSpace(out))
}

// SearchExperiments returns the experiments whose name or title contains query.
// A blank query matches nothing.
func SearchExperiments(query string) []ExperimentInfo {
	q := foldText(query)
	if q == "" {
		return []ExperimentInfo{}
	}

	out := []ExperimentInfo{}
	for _, f := range calibration.Experiments() {
		s := f.Schema()
		if strings.Contains(foldText(string(s.Experiment)), q) || strings.Contains(foldText(s.Title), q) {
			out = append(out, ExperimentInfo{
				Experiment: string(s.Experiment),
				Title:      s.Title,
				Collection: s.Collection,
			})
		}
	}
	return out
}

func (s *Server) handleSearchExperiments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"experiments": SearchExperiments(c.Query("q"))})
}
