package ai

// EntityTypes defines the valid categories for extracted entities.
// These types are used by fact extractors to classify named things.
var EntityTypes = []string{
	"abstract_concept",
	"activity",
	"building",
	"document",
	"event",
	"location",
	"man_made_object",
	"measurement",
	"natural_object",
	"occupation",
	"organization",
	"person",
	"place",
	"product",
	"software",
	"technology",
	"time",
	"tool",
}
