package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RecipientType classifies who a comment is about.
type RecipientType string

const (
	RecipientPerson  RecipientType = "PERSON"
	RecipientTeam    RecipientType = "TEAM"
	RecipientSection RecipientType = "SECTION"
	RecipientCourse  RecipientType = "COURSE"
	RecipientNone    RecipientType = "NONE"
)

// ParseRecipientType converts the stored tag back into a RecipientType.
func ParseRecipientType(raw string) (RecipientType, error) {
	switch t := RecipientType(strings.TrimSpace(raw)); t {
	case RecipientPerson, RecipientTeam, RecipientSection, RecipientCourse, RecipientNone:
		return t, nil
	default:
		return "", fmt.Errorf("unknown recipient type %q", raw)
	}
}

// RecipientSet is an unordered set of recipient identifiers. Their meaning
// depends on the comment's RecipientType.
type RecipientSet map[string]struct{}

// NewRecipientSet builds a set from ids, dropping duplicates.
func NewRecipientSet(ids ...string) RecipientSet {
	set := make(RecipientSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set.
func (s RecipientSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s RecipientSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s RecipientSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array into the set.
func (s *RecipientSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewRecipientSet(ids...)
	return nil
}
