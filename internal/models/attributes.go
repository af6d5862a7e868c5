package models

// Attributes is the in-memory, validated form of a domain record that can be
// stored through a generic entity store. E is the persisted representation.
type Attributes[E any] interface {
	// SanitizeForSaving normalises and escapes the record in place.
	SanitizeForSaving()
	// InvalidityInfo lists every validation problem, in a stable order.
	InvalidityInfo() []string
	IsValid() bool
	// EntityType is the short type name used in errors and logs.
	EntityType() string
	// IdentificationString describes the record for errors and logs.
	IdentificationString() string
	ToEntity() *E
}
