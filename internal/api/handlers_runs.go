package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lox/flowcal/internal/calibration"
	"github.com/lox/flowcal/internal/chart"
	"github.com/lox/flowcal/internal/metrics"
	"github.com/lox/flowcal/internal/store"
)

type createRunRequest struct {
	Rows []calibration.RawRow `json:"rows"`
}

type createRunResponse struct {
	RunView
	Excluded  int    `json:"excluded"`
	Saved     bool   `json:"saved"`
	SaveError string `json:"saveError,omitempty"`
}

type latestRunResponse struct {
	Found bool `json:"found"`
	*RunView
	Source string `json:"source,omitempty"`
	// Prefill is the form to start the next run from: the entered rows renumbered from 1.
	Prefill []calibration.RawRow `json:"prefill,omitempty"`
}

func newRecordID() string {
	return uuid.NewString()
}

// lookupFormula resolves the :experiment path parameter, writing a 404 if it is unknown.
func lookupFormula(c *gin.Context) (calibration.Formula, bool) {
	f, err := calibration.Lookup(c.Param("experiment"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return f, true
}

func (s *Server) handleCreateRun(c *gin.Context) {
	f, ok := lookupFormula(c)
	if !ok {
		return
	}
	schema := f.Schema()
	experiment := string(schema.Experiment)

	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := calibration.ComputeAndPrepare(req.Rows, f, s.now())
	metrics.RowsExcluded.WithLabelValues(experiment).Add(float64(res.Excluded))
	if errors.Is(err, calibration.ErrNoValidRows) {
		metrics.CalculationsTotal.WithLabelValues(experiment, "no_valid_rows").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "fill at least one valid row",
			"excluded": res.Excluded,
		})
		return
	}
	if err != nil {
		metrics.CalculationsTotal.WithLabelValues(experiment, "error").Inc()
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	metrics.CalculationsTotal.WithLabelValues(experiment, "ok").Inc()

	resp := createRunResponse{
		RunView:  newRunView(schema, res.Record.RawRows, res.Rows, res.Aggregate),
		Excluded: res.Excluded,
	}
	createdAt := res.Record.CreatedAt
	resp.CreatedAt = &createdAt

	user := userID(c)
	if user == "" {
		c.JSON(http.StatusOK, resp)
		return
	}

	id := s.newID()
	if err := s.saveResult(c, user, id, res); err != nil {
		logrus.WithFields(logrus.Fields{
			"experiment": experiment,
			"user":       user,
		}).Errorf("failed to save calibration record: %v", err)
		metrics.RecordsWritten.WithLabelValues(experiment, "error").Inc()
		resp.SaveError = "failed to save data"
		c.JSON(http.StatusOK, resp)
		return
	}

	metrics.RecordsWritten.WithLabelValues(experiment, "ok").Inc()
	resp.ID = id
	resp.Saved = true
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) saveResult(c *gin.Context, user, id string, res calibration.Result) error {
	doc, err := json.Marshal(res.Document)
	if err != nil {
		return err
	}
	return s.store.WriteRecord(c.Request.Context(), user, string(res.Record.Experiment), id,
		res.Record.CreatedAt, doc, store.WithSummary(len(res.Rows), res.Aggregate.AverageRatio))
}

// loadLatest reads and normalizes the caller's most recent record. It returns
// ErrNoRecordFound when there is no user or nothing stored.
func (s *Server) loadLatest(c *gin.Context, f calibration.Formula) (calibration.Record, error) {
	experiment := string(f.Schema().Experiment)
	user := userID(c)
	if user == "" {
		return calibration.Record{}, calibration.ErrNoRecordFound
	}

	stored, err := s.store.GetMostRecentRecord(c.Request.Context(), user, experiment)
	if err != nil {
		metrics.RecordsRead.WithLabelValues(experiment, "error").Inc()
		return calibration.Record{}, err
	}
	if stored == nil {
		metrics.RecordsRead.WithLabelValues(experiment, "missing").Inc()
		return calibration.Record{}, calibration.ErrNoRecordFound
	}

	doc, err := calibration.DecodeDocument(stored.Document)
	if err != nil {
		metrics.RecordsRead.WithLabelValues(experiment, "error").Inc()
		return calibration.Record{}, err
	}
	rec, err := calibration.Normalize(doc, f)
	if err != nil {
		metrics.RecordsRead.WithLabelValues(experiment, "missing").Inc()
		return calibration.Record{}, err
	}

	metrics.RecordsRead.WithLabelValues(experiment, "found").Inc()
	source := rec.Source
	if source == "" {
		source = "none"
	}
	metrics.NormalizeSource.WithLabelValues(experiment, source).Inc()

	rec.ID = stored.ID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = stored.CreatedAt
	}
	return rec, nil
}

func (s *Server) handleLatestRun(c *gin.Context) {
	f, ok := lookupFormula(c)
	if !ok {
		return
	}

	rec, err := s.loadLatest(c, f)
	if errors.Is(err, calibration.ErrNoRecordFound) {
		c.JSON(http.StatusOK, latestRunResponse{Found: false})
		return
	}
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	schema := f.Schema()
	agg := calibration.Aggregate(rec.ComputedRows, schema)
	// the stored average wins over the recomputed one
	agg.AverageRatio = rec.AverageRatio

	view := newRunView(schema, rec.RawRows, rec.ComputedRows, agg)
	view.ID = rec.ID
	if !rec.CreatedAt.IsZero() {
		createdAt := rec.CreatedAt
		view.CreatedAt = &createdAt
	}
	form := calibration.NewSession(f)
	form.Prefill(rec)

	c.JSON(http.StatusOK, latestRunResponse{
		Found:   true,
		RunView: &view,
		Source:  rec.Source,
		Prefill: form.Rows().Rows(),
	})
}

func (s *Server) handleLatestChart(c *gin.Context) {
	f, ok := lookupFormula(c)
	if !ok {
		return
	}

	rec, err := s.loadLatest(c, f)
	if errors.Is(err, calibration.ErrNoRecordFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no record found"})
		return
	}
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if data, ok := s.charts.Get(rec.ID); ok {
		c.Data(http.StatusOK, "image/png", data)
		return
	}

	data, err := chart.Render(chart.FromRecord(rec, f.Schema()))
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if err := s.charts.Set(rec.ID, data); err != nil {
		logrus.Warnf("failed to cache chart for %s: %v", rec.ID, err)
	}
	c.Data(http.StatusOK, "image/png", data)
}

type runSummary struct {
	ID            string   `json:"id"`
	CreatedAt     string   `json:"createdAt"`
	SchemaVersion int      `json:"schemaVersion"`
	RowCount      *int64   `json:"rowCount"`
	AverageRatio  *float64 `json:"averageRatio"`
	SizeBytes     int64    `json:"sizeBytes"`
}

func (s *Server) handleListRuns(c *gin.Context) {
	f, ok := lookupFormula(c)
	if !ok {
		return
	}
	user := userID(c)
	if user == "" {
		c.JSON(http.StatusOK, gin.H{"runs": []runSummary{}})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	records, err := s.store.ListRecords(c.Request.Context(), user, string(f.Schema().Experiment), limit)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	runs := make([]runSummary, 0, len(records))
	for _, r := range records {
		sum := runSummary{
			ID:            r.ID,
			CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
			SchemaVersion: r.SchemaVersion,
			SizeBytes:     r.SizeBytes,
		}
		if r.RowCount.Valid {
			sum.RowCount = &r.RowCount.Int64
		}
		if r.AverageRatio.Valid {
			sum.AverageRatio = &r.AverageRatio.Float64
		}
		runs = append(runs, sum)
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
