package materialize

import (
	"testing"

	avro "github.com/go-avro/avro"

	"github.com/plateaudb/plateau/record"
)

const sourceSchemaJSON = `{
	"type": "record",
	"name": "trip",
	"fields": [
		{"name": "id", "type": "string"},
		{"name": "ts", "type": "long"},
		{"name": "region", "type": "string"},
		{"name": "value", "type": "double"}
	]
}`

// dataFileSchemaJSON is sourceSchemaJSON with the partition column
// ("region") dropped.
const dataFileSchemaJSON = `{
	"type": "record",
	"name": "trip",
	"fields": [
		{"name": "id", "type": "string"},
		{"name": "ts", "type": "long"},
		{"name": "value", "type": "double"}
	]
}`

func mustParse(t *testing.T, js string) *avro.RecordSchema {
	t.Helper()
	parsed, err := avro.ParseSchema(js)
	if err != nil {
		t.Fatalf("parsing schema: %v", err)
	}
	return parsed.(*avro.RecordSchema)
}

func TestProjectorSubsetPreservesValues(t *testing.T) {
	source := mustParse(t, sourceSchemaJSON)
	target := mustParse(t, dataFileSchemaJSON)
	proj := NewProjector(target)

	rec := avro.NewGenericRecord(source)
	rec.Set("id", "a")
	rec.Set("ts", int64(5))
	rec.Set("region", "emea")
	rec.Set("value", 1.5)

	out := proj.Apply(record.NewAvroRow(rec))
	if got := out.Value("id"); got != "a" {
		t.Errorf("id: expected a, got %v", got)
	}
	if got := out.Value("ts"); got != int64(5) {
		t.Errorf("ts: expected 5, got %v", got)
	}
	if got := out.Value("value"); got != 1.5 {
		t.Errorf("value: expected 1.5, got %v", got)
	}
	if got := out.Value("region"); got != nil {
		t.Errorf("region should be dropped, got %v", got)
	}
	if len(out.Schema().Fields) != 3 {
		t.Errorf("expected 3 fields in projected schema, got %d", len(out.Schema().Fields))
	}
}

func TestProjectorColumnarKeepsRepresentation(t *testing.T) {
	source := mustParse(t, sourceSchemaJSON)
	target := mustParse(t, dataFileSchemaJSON)
	proj := NewProjector(target)

	layout := record.NewColumnLayout(source)
	values := []interface{}{"a", int64(5), "emea", 1.5}
	out := proj.Apply(layout.Row(values))

	cr, ok := out.(record.ColumnarRow)
	if !ok {
		t.Fatalf("expected a columnar row back, got %T", out)
	}
	exp := []interface{}{"a", int64(5), 1.5}
	got := cr.Values()
	if len(got) != len(exp) {
		t.Fatalf("expected %d values, got %d", len(exp), len(got))
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("position %d: expected %v, got %v", i, exp[i], got[i])
		}
	}

	// The projected row must not alias the input slice.
	values[0] = "mutated"
	if cr.Values()[0] != "a" {
		t.Error("projection must copy values, not alias the input")
	}
}

func TestProjectorMissingFieldsAreBestEffort(t *testing.T) {
	source := mustParse(t, dataFileSchemaJSON) // lacks "region"
	target := mustParse(t, sourceSchemaJSON)   // wants "region"
	proj := NewProjector(target)

	rec := avro.NewGenericRecord(source)
	rec.Set("id", "a")
	rec.Set("ts", int64(5))
	rec.Set("value", 1.5)

	out := proj.Apply(record.NewAvroRow(rec))
	if got := out.Value("id"); got != "a" {
		t.Errorf("id: expected a, got %v", got)
	}
	if got := out.Value("region"); got != nil {
		t.Errorf("missing field should project to nil, got %v", got)
	}
}
