package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aptscout/aptscout/models"
)

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}

	listings := []*models.Listing{
		listing("123 Fake St", 2, 3200, "Mission"),
		{Address: "9 Pine Ave", Rent: intPtr(1800), SourceURL: "http://example.test/"},
	}
	if err := w.Write(listings); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2 records", len(rows))
	}
	if rows[0][0] != "address" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][3] != "3200" {
		t.Errorf("rent cell = %q, want 3200", rows[1][3])
	}
	// Nil bedrooms and bathrooms render as empty cells.
	if rows[2][1] != "" || rows[2][2] != "" {
		t.Errorf("nil fields not empty: %v", rows[2])
	}
}

func TestJSONWriterProducesArrayWithNulls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}

	records := []*models.Listing{
		listing("123 Fake St", 2, 3200, "Mission"),
		{Address: "9 Pine Ave", Bedrooms: intPtr(0), SourceURL: "http://example.test/"},
	}
	if err := w.Write(records[:1]); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := w.Write(records[1:]); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, data)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d elements, want 2", len(decoded))
	}

	second := decoded[1]
	if second["bedrooms"] != float64(0) {
		t.Errorf("bedrooms = %v, want 0", second["bedrooms"])
	}
	rent, present := second["rent"]
	if !present || rent != nil {
		t.Errorf("rent should be an explicit null, got present=%v value=%v", present, rent)
	}
	if !strings.Contains(string(data), `"bathrooms":null`) {
		t.Errorf("bathrooms null omitted from output:\n%s", data)
	}
}

func TestJSONWriterEmptyOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}
	if err := w.Validate(); err == nil {
		t.Errorf("validate should fail with zero records")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var decoded []json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("empty output must still be a valid array: %v\n%s", err, data)
	}
	if len(decoded) != 0 {
		t.Fatalf("got %d elements, want 0", len(decoded))
	}
}

func TestWritersCreateParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "out.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}
