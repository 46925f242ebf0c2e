package core

import (
	"fmt"
	"strings"
)

// RelationshipType tags the kind of relationship a triple records.
type RelationshipType int

const (
	RelUnknown RelationshipType = iota
	RelOwns
	RelPrefers
	RelVisited
	RelPlanningTrip
	RelRentedBooked
	RelAttendingEvent
	RelFavorite
)

var relationshipNames = [...]string{
	RelUnknown:        "UNKNOWN",
	RelOwns:           "OWNS",
	RelPrefers:        "PREFERS",
	RelVisited:        "VISITED",
	RelPlanningTrip:   "PLANNING_TRIP",
	RelRentedBooked:   "RENTED_BOOKED",
	RelAttendingEvent: "ATTENDING_EVENT",
	RelFavorite:       "FAVORITE",
}

// AllRelationshipTypes returns every known relationship type, excluding RelUnknown.
func AllRelationshipTypes() []RelationshipType {
	return []RelationshipType{
		RelOwns,
		RelPrefers,
		RelVisited,
		RelPlanningTrip,
		RelRentedBooked,
		RelAttendingEvent,
		RelFavorite,
	}
}

func (r RelationshipType) String() string {
	if r < 0 || int(r) >= len(relationshipNames) {
		return fmt.Sprintf("RelationshipType(%d)", int(r))
	}
	return relationshipNames[r]
}

// Valid reports whether r is a known, non-unknown relationship type.
func (r RelationshipType) Valid() bool {
	return r > RelUnknown && int(r) < len(relationshipNames)
}

// ParseRelationshipType parses a tag such as "PREFERS". Matching is case-insensitive.
func ParseRelationshipType(s string) (RelationshipType, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	for _, r := range AllRelationshipTypes() {
		if relationshipNames[r] == tag {
			return r, nil
		}
	}
	return RelUnknown, fmt.Errorf("%w: %q", ErrUnknownRelationship, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r RelationshipType) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRelationship, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RelationshipType) UnmarshalText(text []byte) error {
	parsed, err := ParseRelationshipType(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// QueryType classifies what a query is asking for.
type QueryType int

const (
	EntitySpecificBroad QueryType = iota
	EntitySpecificPrecise
	Aggregation
	Conceptual
)

var queryTypeNames = [...]string{
	EntitySpecificBroad:   "ENTITY_SPECIFIC_BROAD",
	EntitySpecificPrecise: "ENTITY_SPECIFIC_PRECISE",
	Aggregation:           "AGGREGATION",
	Conceptual:            "CONCEPTUAL",
}

// AllQueryTypes returns every query type.
func AllQueryTypes() []QueryType {
	return []QueryType{Aggregation, EntitySpecificPrecise, EntitySpecificBroad, Conceptual}
}

func (q QueryType) String() string {
	if q < 0 || int(q) >= len(queryTypeNames) {
		return fmt.Sprintf("QueryType(%d)", int(q))
	}
	return queryTypeNames[q]
}

// ParseQueryType parses a tag such as "AGGREGATION". Matching is case-insensitive.
func ParseQueryType(s string) (QueryType, error) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	for _, q := range AllQueryTypes() {
		if queryTypeNames[q] == tag {
			return q, nil
		}
	}
	return EntitySpecificBroad, fmt.Errorf("%w: %q", ErrUnknownQueryType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (q QueryType) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QueryType) UnmarshalText(text []byte) error {
	parsed, err := ParseQueryType(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
