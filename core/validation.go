// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strconv"
	"time"
)

// FieldKind is the declared type of a metadata field.
type FieldKind int

const (
	// FieldString accepts any value.
	FieldString FieldKind = iota + 1
	// FieldInt requires the value to parse as a base-10 integer.
	FieldInt
	// FieldTime requires the value to parse as RFC 3339.
	FieldTime
)

// String returns the kind's name as used in schema definitions.
func (k FieldKind) String() string {
	switch k {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldTime:
		return "time"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// FieldSpec declares the constraints on one metadata field.
type FieldSpec struct {
	Kind     FieldKind
	Required bool
}

// Schema declares the metadata fields a collection accepts. A nil or empty
// Fields map accepts any metadata. When Strict is set, keys not declared in
// Fields are rejected; the crawl metadata keys are always permitted because
// the crawler attaches them outside the caller's control.
type Schema struct {
	Fields map[string]FieldSpec
	Strict bool
}

// Violation describes one metadata field that failed schema validation.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// crawl metadata bypasses Strict because it is machine-generated
var crawlKeys = map[string]bool{
	MetaCrawlRootURL:   true,
	MetaCrawlSessionID: true,
	MetaCrawlDepth:     true,
}

// Validate checks metadata against the schema and returns every violation
// found, not just the first. An empty result means the metadata is valid.
func (s Schema) Validate(metadata map[string]string) []Violation {
	var violations []Violation

	for name, spec := range s.Fields {
		value, ok := metadata[name]
		if !ok {
			if spec.Required {
				violations = append(violations, Violation{Field: name, Reason: "required field missing"})
			}
			continue
		}

		switch spec.Kind {
		case FieldInt:
			if _, err := strconv.Atoi(value); err != nil {
				violations = append(violations, Violation{
					Field:  name,
					Reason: fmt.Sprintf("expected int, got %q", value),
				})
			}
		case FieldTime:
			if _, err := time.Parse(time.RFC3339, value); err != nil {
				violations = append(violations, Violation{
					Field:  name,
					Reason: fmt.Sprintf("expected RFC 3339 time, got %q", value),
				})
			}
		}
	}

	if s.Strict && len(s.Fields) > 0 {
		for name := range metadata {
			if _, declared := s.Fields[name]; !declared && !crawlKeys[name] {
				violations = append(violations, Violation{Field: name, Reason: "field not declared in schema"})
			}
		}
	}

	return violations
}
