package calibration

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestComputeAndPrepare_NoValidRows(t *testing.T) {
	raw := []RawRow{
		rawRow("1", "qrot", "", "time", ""),
		rawRow("2", "qrot", "360", "time", "0"),
	}
	res, err := ComputeAndPrepare(raw, NewRotameter(), time.Now())
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("err = %v, want ErrNoValidRows", err)
	}
	if res.Document != nil {
		t.Errorf("Document = %v, want nil so nothing is persisted", res.Document)
	}
	if res.Excluded != 2 {
		t.Errorf("Excluded = %d, want 2", res.Excluded)
	}
}

func TestComputeAndPrepare_RotameterDocument(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := []RawRow{
		rawRow("1", "qrot", "360", "time", "25"),
		rawRow("2", "qrot", "720", "time", "12.5"),
		rawRow("3", "qrot", "x", "time", "1"),
	}
	res, err := ComputeAndPrepare(raw, NewRotameter(), now)
	if err != nil {
		t.Fatalf("ComputeAndPrepare: %v", err)
	}
	if len(res.Rows) != 2 || res.Excluded != 1 {
		t.Errorf("rows/excluded = %d/%d, want 2/1", len(res.Rows), res.Excluded)
	}
	if len(res.Record.RawRows) != 3 {
		t.Errorf("len(Record.RawRows) = %d, want all 3 entered rows", len(res.Record.RawRows))
	}

	b, err := json.Marshal(res.Document)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"createdAt", "data", "computed", "inputRows", "avgCorrectionFactor", "avgCf"} {
		if _, ok := got[field]; !ok {
			t.Errorf("document missing %q", field)
		}
	}
	if string(got["data"]) != string(got["computed"]) {
		t.Error("data and computed differ")
	}
	if string(got["createdAt"]) != `"2025-01-02T03:04:05Z"` {
		t.Errorf("createdAt = %s", got["createdAt"])
	}
}

func TestComputeAndPrepare_VenturimeterDocument(t *testing.T) {
	raw := []RawRow{rawRow("1", "P1", "0.5", "P2", "0.3", "time", "20")}
	res, err := ComputeAndPrepare(raw, NewVenturimeter(), time.Now())
	if err != nil {
		t.Fatalf("ComputeAndPrepare: %v", err)
	}
	for _, field := range []string{"data", "inputRows", "averageCd"} {
		if _, ok := res.Document[field]; !ok {
			t.Errorf("document missing %q", field)
		}
	}
	for _, field := range []string{"computed", "avgCf", "avgCorrectionFactor"} {
		if _, ok := res.Document[field]; ok {
			t.Errorf("venturimeter document has rotameter field %q", field)
		}
	}
}

func TestComputeAndPrepare_DoesNotAliasInput(t *testing.T) {
	raw := []RawRow{rawRow("1", "qrot", "360", "time", "25")}
	res, err := ComputeAndPrepare(raw, NewRotameter(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	raw[0].Fields["qrot"] = "999"
	if got := res.Record.RawRows[0].Get("qrot"); got != "360" {
		t.Errorf("record raw row changed with input: qrot = %q", got)
	}
}

func TestRowSet(t *testing.T) {
	s := NewRowSet([]string{"qrot", "time"})
	a, b, c := s.Add(), s.Add(), s.Add()
	if a != "1" || b != "2" || c != "3" {
		t.Fatalf("ids = %s,%s,%s, want 1,2,3", a, b, c)
	}

	if !s.Remove(b) {
		t.Fatal("Remove(2) = false")
	}
	if s.Remove(b) {
		t.Error("second Remove(2) = true")
	}
	if d := s.Add(); d != "4" {
		t.Errorf("id after removal = %s, want 4", d)
	}

	if !s.Update("3", "qrot", "360") {
		t.Error("Update(3, qrot) = false")
	}
	if s.Update("3", "P1", "1") {
		t.Error("Update accepted an unknown field")
	}
	if s.Update("2", "qrot", "1") {
		t.Error("Update accepted a removed row")
	}

	var ids []string
	for _, r := range s.Rows() {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"1", "3", "4"}) {
		t.Errorf("order = %v, want [1 3 4]", ids)
	}
	if got := s.Rows()[1].Get("qrot"); got != "360" {
		t.Errorf("row 3 qrot = %q, want 360", got)
	}

	rows := s.Rows()
	rows[0].Fields["qrot"] = "mutated"
	if s.Rows()[0].Get("qrot") != "" {
		t.Error("Rows returned shared field maps")
	}
}

func TestRowSet_Reset(t *testing.T) {
	s := NewRowSet([]string{"P1", "P2", "time"})
	s.Add()
	s.Reset([]RawRow{
		rawRow("17", "P1", "0.5", "P2", "0.3", "time", "20", "extra", "x"),
		rawRow("42", "P1", "0.6"),
	})

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].ID != "1" || rows[1].ID != "2" {
		t.Errorf("ids = %s,%s, want 1,2", rows[0].ID, rows[1].ID)
	}
	if _, ok := rows[0].Fields["extra"]; ok {
		t.Error("Reset kept an unknown field")
	}
	if rows[1].Get("time") != "" {
		t.Errorf("missing field = %q, want blank", rows[1].Get("time"))
	}
	if id := s.Add(); id != "3" {
		t.Errorf("next id = %s, want 3", id)
	}
}

func TestSession(t *testing.T) {
	s := NewSession(NewRotameter())
	if s.Rows().Len() != 1 {
		t.Fatalf("new session rows = %d, want 1", s.Rows().Len())
	}
	if _, err := s.Calculate(time.Now()); !errors.Is(err, ErrNoValidRows) {
		t.Errorf("empty form err = %v, want ErrNoValidRows", err)
	}

	s.Rows().Update("1", "qrot", "360")
	s.Rows().Update("1", "time", "25")
	id := s.Rows().Add()
	s.Rows().Update(id, "qrot", "720")
	s.Rows().Update(id, "time", "12.5")

	res, err := s.Calculate(time.Now())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("len(Rows) = %d, want 2", len(res.Rows))
	}

	next := NewSession(NewRotameter())
	next.Prefill(res.Record)
	if got := next.Rows().Rows(); len(got) != 2 || got[1].Get("qrot") != "720" {
		t.Errorf("prefilled rows = %v", got)
	}

	next.Prefill(Record{})
	if next.Rows().Len() != 2 {
		t.Error("Prefill with an empty record cleared the form")
	}
}

func TestRawRowJSON(t *testing.T) {
	var r RawRow
	if err := json.Unmarshal([]byte(`{"id": 3, "qrot": 360, "time": "25", "note": null}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ID != "3" || r.Get("qrot") != "360" || r.Get("time") != "25" || r.Get("note") != "" {
		t.Errorf("RawRow = %+v", r)
	}

	b, err := json.Marshal(rawRow("1", "qrot", "12"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"id":"1","qrot":"12"}` {
		t.Errorf("marshal = %s", b)
	}
}
