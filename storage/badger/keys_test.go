package badger

import (
	"bytes"
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
)

func TestUserTripleKeyOrdering(t *testing.T) {
	prefers := &core.RelationshipTriple{ID: 7, Subject: core.UserIdentity{ID: "u1"}, Relationship: core.RelPrefers, MessageID: "m2"}
	owns := &core.RelationshipTriple{ID: 3, Subject: core.UserIdentity{ID: "u1"}, Relationship: core.RelOwns, MessageID: "m9"}

	assert.Negative(t, bytes.Compare(makeUserTripleKey(owns), makeUserTripleKey(prefers)))
	assert.Equal(t, core.ID(7), tripleIDFromIndexKey(makeUserTripleKey(prefers)))

	rel := core.RelPrefers
	assert.True(t, bytes.HasPrefix(makeUserTripleKey(prefers), makePartialUserTripleKey("u1", &rel)))
	assert.False(t, bytes.HasPrefix(makeUserTripleKey(owns), makePartialUserTripleKey("u1", &rel)))
	assert.True(t, bytes.HasPrefix(makeUserTripleKey(owns), makePartialUserTripleKey("u1", nil)))
}

func TestPartialKeysDoNotOverlapUsers(t *testing.T) {
	// "u1" must not match entries belonging to "u10".
	assert.False(t, bytes.HasPrefix(makeUserMessageKey("u10", "m1"), makePartialUserMessageKey("u1")))
	assert.False(t, bytes.HasPrefix(makeEntityKey("cars", "u1"), makePartialEntityKey("car")))
}
