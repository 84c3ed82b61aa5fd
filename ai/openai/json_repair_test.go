package openai

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRepairJSONUnquotedKeys(t *testing.T) {
	broken := `{"entities": [{name": "paris", type": "place"}], "facts": []}`
	repaired := repairJSON(broken)

	var out extraction
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		t.Fatalf("repaired JSON still invalid: %v\n%s", err, repaired)
	}
	if len(out.Entities) != 1 || out.Entities[0].Name != "paris" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestRepairJSONTrailingComma(t *testing.T) {
	broken := `{"entities": [{"name": "paris", "type": "place"},], "facts": [],}`
	repaired := repairJSON(broken)

	var out extraction
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		t.Fatalf("repaired JSON still invalid: %v\n%s", err, repaired)
	}
}

func TestRepairJSONLeavesValidInput(t *testing.T) {
	valid := `{"entities": [{"name": "paris", "type": "place"}], "facts": []}`
	if got := repairJSON(valid); got != valid {
		t.Fatalf("valid JSON was altered:\n in: %s\nout: %s", valid, got)
	}
}
