package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/transformkit/remap/internal/types"
)

func TestReport_Counts(t *testing.T) {
	r := New("study", "data.csv")
	if r.RunID == "" {
		t.Fatalf("RunID empty, want a UUID")
	}

	r.AddTable("subject", []types.OutputRow{
		{types.ValidColumn: true, "id": "001"},
		{types.ValidColumn: false, types.ErrorColumn: "age: expected number", "id": "002"},
		{types.ValidColumn: false, types.ErrorColumn: "age: expected number", "id": "004"},
		{"id": "003"},
	})
	r.AddTable("observation", nil)

	if len(r.Tables) != 2 {
		t.Fatalf("len(Tables) = %d, want 2", len(r.Tables))
	}
	got := r.Tables[0]
	if got.Total != 4 || got.Valid != 2 {
		t.Errorf("subject = %d/%d, want 2/4 valid (unvalidated rows count as valid)", got.Valid, got.Total)
	}
	if got.Errors["age: expected number"] != 2 {
		t.Errorf("Errors = %v, want the repeated message counted twice", got.Errors)
	}
	if r.Tables[1].Total != 0 || r.Tables[1].Valid != 0 {
		t.Errorf("observation = %+v, want zero counts", r.Tables[1])
	}
}

func TestReport_Summary(t *testing.T) {
	r := New("study", "data.csv")
	r.AddTable("subject", []types.OutputRow{
		{types.ValidColumn: true},
		{types.ValidColumn: false, types.ErrorColumn: "id: missing"},
	})

	s := r.Summary()
	if !strings.Contains(s, "study (data.csv)") {
		t.Errorf("Summary() = %q, want spec and source named", s)
	}
	if !strings.Contains(s, "subject: 1/2 valid (50.0%)") {
		t.Errorf("Summary() = %q, want per-table line", s)
	}
	if !strings.Contains(s, "1x id: missing") {
		t.Errorf("Summary() = %q, want error counter line", s)
	}
}

func TestReport_WriteJSON(t *testing.T) {
	r := New("study", "data.csv")
	r.AddTable("subject", nil)

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error = %v, want nil", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("round trip error = %v, want nil", err)
	}
	if decoded.RunID != r.RunID || decoded.SpecName != "study" {
		t.Errorf("decoded = %+v, want original identity", decoded)
	}
}
