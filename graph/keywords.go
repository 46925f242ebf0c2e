package graph

import "github.com/poiesic/recall/core"

// stopWords are dropped from queries before name resolution.
var stopWords = map[string]bool{
	"how": true, "many": true, "what": true, "when": true, "where": true,
	"who": true, "is": true, "are": true, "the": true, "a": true, "an": true,
	"does": true, "do": true, "have": true, "has": true, "s": true, "my": true,
	"his": true, "her": true,
}

// relationshipKeywords maps query words to the relationship they ask about.
// Every relationship type must appear at least once.
var relationshipKeywords = map[string]core.RelationshipType{
	"prefer":      core.RelPrefers,
	"preference":  core.RelPrefers,
	"preferences": core.RelPrefers,

	"favorite":   core.RelFavorite,
	"favourite":  core.RelFavorite,
	"favorites":  core.RelFavorite,
	"favourites": core.RelFavorite,

	"own":       core.RelOwns,
	"owns":      core.RelOwns,
	"ownership": core.RelOwns,
	"has":       core.RelOwns,

	"visit":   core.RelVisited,
	"visited": core.RelVisited,

	"travel":   core.RelPlanningTrip,
	"trip":     core.RelPlanningTrip,
	"planning": core.RelPlanningTrip,

	"rent":         core.RelRentedBooked,
	"rented":       core.RelRentedBooked,
	"rental":       core.RelRentedBooked,
	"book":         core.RelRentedBooked,
	"booked":       core.RelRentedBooked,
	"booking":      core.RelRentedBooked,
	"bookings":     core.RelRentedBooked,
	"reserve":      core.RelRentedBooked,
	"reserved":     core.RelRentedBooked,
	"reservation":  core.RelRentedBooked,
	"reservations": core.RelRentedBooked,

	"attend":    core.RelAttendingEvent,
	"attending": core.RelAttendingEvent,
	"event":     core.RelAttendingEvent,
}

// RelationshipFor returns the relationship type keyword asks about.
func RelationshipFor(keyword string) (core.RelationshipType, bool) {
	rel, ok := relationshipKeywords[keyword]
	return rel, ok
}
