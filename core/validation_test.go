package core

import (
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	schema := Schema{
		Fields: map[string]FieldSpec{
			"domain":       {Kind: FieldString, Required: true},
			"content_type": {Kind: FieldString},
			"priority":     {Kind: FieldInt},
			"published_at": {Kind: FieldTime},
		},
	}

	tests := []struct {
		name       string
		metadata   map[string]string
		wantFields []string
	}{
		{
			name: "valid metadata",
			metadata: map[string]string{
				"domain":       "engineering",
				"content_type": "markdown",
				"priority":     "3",
				"published_at": "2025-06-01T10:00:00Z",
			},
			wantFields: nil,
		},
		{
			name:       "missing required field",
			metadata:   map[string]string{"content_type": "markdown"},
			wantFields: []string{"domain"},
		},
		{
			name: "bad int and bad time",
			metadata: map[string]string{
				"domain":       "engineering",
				"priority":     "high",
				"published_at": "yesterday",
			},
			wantFields: []string{"priority", "published_at"},
		},
		{
			name:       "optional fields may be absent",
			metadata:   map[string]string{"domain": "engineering"},
			wantFields: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := schema.Validate(tt.metadata)
			if len(violations) != len(tt.wantFields) {
				t.Fatalf("expected %d violations, got %d: %v", len(tt.wantFields), len(violations), violations)
			}
			for _, want := range tt.wantFields {
				found := false
				for _, v := range violations {
					if v.Field == want {
						found = true
					}
				}
				if !found {
					t.Errorf("expected a violation for field %q, got %v", want, violations)
				}
			}
		})
	}
}

func TestSchemaValidateStrict(t *testing.T) {
	schema := Schema{
		Fields: map[string]FieldSpec{
			"domain": {Kind: FieldString},
		},
		Strict: true,
	}

	violations := schema.Validate(map[string]string{
		"domain":  "engineering",
		"unknown": "value",
	})
	if len(violations) != 1 || violations[0].Field != "unknown" {
		t.Fatalf("expected one violation for 'unknown', got %v", violations)
	}

	// Crawl metadata is machine-generated and must pass strict schemas.
	violations = schema.Validate(map[string]string{
		"domain":           "engineering",
		MetaCrawlRootURL:   "https://example.com",
		MetaCrawlSessionID: "abc",
		MetaCrawlDepth:     "2",
	})
	if len(violations) != 0 {
		t.Fatalf("expected crawl keys to pass strict schema, got %v", violations)
	}
}

func TestEmptySchemaAcceptsAnything(t *testing.T) {
	var schema Schema
	violations := schema.Validate(map[string]string{"anything": "goes", "really": "yes"})
	if len(violations) != 0 {
		t.Fatalf("expected no violations for empty schema, got %v", violations)
	}
}
