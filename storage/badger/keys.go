package badger

import (
	"encoding/binary"

	"github.com/poiesic/recall/core"
)

// Key prefixes for different data types. Every prefix ends in ':' so no
// prefix is a prefix of another.
const (
	messagePrefix     = "msg:"
	userMessagePrefix = "msgu:"
	userPrefix        = "usr:"
	triplePrefix      = "tri:"
	userTriplePrefix  = "triu:"
	entityPrefix      = "ent:"
	checkpointPrefix  = "chk:"
)

const keySep = 0x00

// makeMessageKey generates a key for a message by ID.
func makeMessageKey(id core.MessageID) []byte {
	return append([]byte(messagePrefix), string(id)...)
}

// makeUserMessageKey generates a composite key for the per-user message index.
// Format: prefix:userID\x00messageID
func makeUserMessageKey(userID core.UserID, id core.MessageID) []byte {
	buf := makePartialUserMessageKey(userID)
	return append(buf, string(id)...)
}

// makePartialUserMessageKey generates the prefix of a user's message index entries.
func makePartialUserMessageKey(userID core.UserID) []byte {
	buf := append([]byte(userMessagePrefix), string(userID)...)
	return append(buf, keySep)
}

// makeUserKey generates a key for a user identity.
func makeUserKey(userID core.UserID) []byte {
	return append([]byte(userPrefix), string(userID)...)
}

// makeTripleKey generates a key for a triple by ID.
func makeTripleKey(id core.ID) []byte {
	buf := make([]byte, len(triplePrefix)+8)
	offset := copy(buf, triplePrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeUserTripleKey generates a composite key for the per-user relationship index.
// Format: prefix:userID\x00relType messageID\x00tripleID
func makeUserTripleKey(t *core.RelationshipTriple) []byte {
	buf := makePartialUserTripleKey(t.Subject.ID, &t.Relationship)
	buf = append(buf, string(t.MessageID)...)
	buf = append(buf, keySep)
	return binary.BigEndian.AppendUint64(buf, uint64(t.ID))
}

// makePartialUserTripleKey generates the prefix of a user's relationship
// index entries, optionally narrowed to one relationship type.
func makePartialUserTripleKey(userID core.UserID, relType *core.RelationshipType) []byte {
	buf := append([]byte(userTriplePrefix), string(userID)...)
	buf = append(buf, keySep)
	if relType != nil {
		buf = append(buf, byte(*relType))
	}
	return buf
}

// tripleIDFromIndexKey extracts the trailing triple ID of a user triple key.
func tripleIDFromIndexKey(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeEntityKey generates a composite key for the entity index.
// Format: prefix:term\x00userID
func makeEntityKey(term string, userID core.UserID) []byte {
	buf := makePartialEntityKey(term)
	return append(buf, string(userID)...)
}

// makePartialEntityKey generates the prefix of a term's entity index entries.
func makePartialEntityKey(term string) []byte {
	buf := append([]byte(entityPrefix), term...)
	return append(buf, keySep)
}

// makeCheckpointKey generates the key of an operation's checkpoint.
func makeCheckpointKey(operation string) []byte {
	return append([]byte(checkpointPrefix), operation...)
}
