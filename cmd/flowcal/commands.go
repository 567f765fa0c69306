package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lox/flowcal/internal/calibration"
	"github.com/lox/flowcal/internal/metrics"
	"github.com/lox/flowcal/internal/models"
	"github.com/lox/flowcal/internal/store"
)

type CalcCmd struct {
	Experiment string   `arg:"" help:"Experiment name (rotameter, venturimeter)."`
	File       string   `arg:"" optional:"" type:"existingfile" help:"JSON or CSV file with measurement rows. Rows are renumbered from 1."`
	FromLatest bool     `name:"from-latest" help:"Start from the rows of the user's most recent saved run."`
	Row        []string `name:"row" sep:"none" placeholder:"FIELD=VALUE,..." help:"Append a row, e.g. --row qrot=360,time=25. Repeatable."`
	Drop       []string `name:"drop" placeholder:"ID" help:"Remove the row with this id before calculating. Repeatable."`
	Save       bool     `help:"Save the run to the database."`
	User       string   `help:"User the run belongs to." env:"FLOWCAL_USER"`
	JSON       bool     `name:"json" help:"Print the stored document instead of a table."`
}

func (c *CalcCmd) Run(g *Globals) error {
	f, err := calibration.Lookup(c.Experiment)
	if err != nil {
		return err
	}
	switch {
	case c.File != "" && c.FromLatest:
		return errors.New("pass either a file or --from-latest, not both")
	case c.File == "" && !c.FromLatest && len(c.Row) == 0:
		return errors.New("nothing to calculate: pass a file, --from-latest or --row")
	case (c.Save || c.FromLatest) && c.User == "":
		return errors.New("--save and --from-latest require --user")
	}

	ctx := context.Background()
	var st *store.Store
	if c.Save || c.FromLatest {
		var closeDB func()
		if st, closeDB, err = openStore(ctx, g.DB); err != nil {
			return err
		}
		defer closeDB()
	}

	sess := calibration.NewSession(f)
	switch {
	case c.FromLatest:
		rec, stored, err := latestRecord(ctx, st, f, c.User)
		if errors.Is(err, calibration.ErrNoRecordFound) {
			logrus.Info("no saved runs, starting from an empty form")
			sess.Rows().Reset(nil)
			break
		}
		if err != nil {
			return err
		}
		sess.Prefill(rec)
		logrus.WithFields(logrus.Fields{"id": stored.ID, "rows": sess.Rows().Len()}).Debug("form prefilled")
	case c.File != "":
		raw, err := readRows(c.File)
		if err != nil {
			return err
		}
		sess.Rows().Reset(raw)
	default:
		sess.Rows().Reset(nil)
	}
	if err := editRows(sess.Rows(), c.Drop, c.Row); err != nil {
		return err
	}

	schema := sess.Formula().Schema()
	experiment := string(schema.Experiment)
	res, err := sess.Calculate(time.Now())
	if errors.Is(err, calibration.ErrNoValidRows) {
		metrics.CalculationsTotal.WithLabelValues(experiment, "no_valid_rows").Inc()
		return errors.New("fill at least one valid row")
	}
	if err != nil {
		return err
	}
	metrics.CalculationsTotal.WithLabelValues(experiment, "ok").Inc()
	if res.Excluded > 0 {
		logrus.Infof("excluded %d of %d rows with missing or invalid values", res.Excluded, sess.Rows().Len())
	}

	doc, err := json.Marshal(res.Document)
	if err != nil {
		return err
	}

	if c.JSON {
		fmt.Println(string(doc))
	} else if err := printRun(os.Stdout, schema, res.Rows, res.Aggregate, time.Time{}); err != nil {
		return err
	}

	if !c.Save {
		return nil
	}

	id := uuid.NewString()
	if err := st.WriteRecord(ctx, c.User, experiment, id, res.Record.CreatedAt, doc,
		store.WithSummary(len(res.Rows), res.Aggregate.AverageRatio)); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"id": id, "experiment": experiment, "user": c.User}).Info("run saved")
	return nil
}

// latestRecord loads and normalizes the user's newest run. It returns ErrNoRecordFound when
// there is none or the stored document has nothing to show.
func latestRecord(ctx context.Context, st *store.Store, f calibration.Formula, user string) (calibration.Record, *models.StoredRecord, error) {
	stored, err := st.GetMostRecentRecord(ctx, user, string(f.Schema().Experiment))
	if err != nil {
		return calibration.Record{}, nil, err
	}
	var doc calibration.Document
	if stored != nil {
		if doc, err = calibration.DecodeDocument(stored.Document); err != nil {
			return calibration.Record{}, nil, fmt.Errorf("decode record %s: %w", stored.ID, err)
		}
	}

	rec, err := calibration.Normalize(doc, f)
	if err != nil {
		return calibration.Record{}, nil, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = stored.CreatedAt
	}
	return rec, stored, nil
}

type LatestCmd struct {
	Experiment string `arg:"" help:"Experiment name (rotameter, venturimeter)."`
	User       string `required:"" help:"User whose runs to read." env:"FLOWCAL_USER"`
}

func (c *LatestCmd) Run(g *Globals) error {
	f, err := calibration.Lookup(c.Experiment)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, closeDB, err := openStore(ctx, g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	rec, stored, err := latestRecord(ctx, st, f, c.User)
	if errors.Is(err, calibration.ErrNoRecordFound) {
		fmt.Println("No saved runs.")
		return nil
	}
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"id": stored.ID, "source": rec.Source}).Debug("record normalized")

	agg := calibration.Aggregate(rec.ComputedRows, f.Schema())
	agg.AverageRatio = rec.AverageRatio
	return printRun(os.Stdout, f.Schema(), rec.ComputedRows, agg, rec.CreatedAt)
}

type ImportCmd struct {
	Experiment string `arg:"" help:"Experiment name or legacy collection name."`
	File       string `arg:"" type:"existingfile" help:"Exported JSON document."`
	User       string `required:"" help:"User the record belongs to." env:"FLOWCAL_USER"`
	ID         string `help:"Record id; generated when empty."`
}

func (c *ImportCmd) Run(g *Globals) error {
	f, err := calibration.Lookup(c.Experiment)
	if err != nil {
		return err
	}

	b, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	doc, err := calibration.DecodeDocument(b)
	if err != nil {
		return fmt.Errorf("decode %s: %w", c.File, err)
	}
	rec, err := calibration.Normalize(doc, f)
	if err != nil {
		return fmt.Errorf("%s: %w", c.File, err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		logrus.Warnf("%s has no readable createdAt, using the current time", c.File)
	}
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}

	ctx := context.Background()
	st, closeDB, err := openStore(ctx, g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	// the document is stored verbatim; it is normalized again whenever it is read
	if err := st.WriteRecord(ctx, c.User, string(f.Schema().Experiment), id, createdAt, b,
		store.WithSchemaVersion(store.SchemaVersionLegacy),
		store.WithSummary(len(rec.ComputedRows), rec.AverageRatio)); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"id":     id,
		"rows":   len(rec.ComputedRows),
		"source": rec.Source,
	}).Info("record imported")
	return nil
}
