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

package storage

import (
	"errors"
	"fmt"
	"time"

	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go"
	slops "github.com/mus-format/mus-go/options/slice"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/recall/core"
)

// maxVectorDims bounds the vector length accepted when decoding.
const maxVectorDims = 1 << 16

var errVectorTooLong = errors.New("vector exceeds maximum dimensions")

var (
	vectorMUS = ord.NewValidSliceSer[float32](raw.Float32,
		slops.WithLenValidator[float32](com.ValidatorFn[int](func(n int) error {
			if n > maxVectorDims {
				return errVectorTooLong
			}
			return nil
		})))

	// TimeMUS encodes a timestamp as Unix seconds plus nanoseconds.
	TimeMUS mus.Serializer[time.Time] = timeMUS{}
	// IdentityMUS encodes a core.UserIdentity.
	IdentityMUS mus.Serializer[core.UserIdentity] = identityMUS{}
	// MessageMUS encodes a core.Message.
	MessageMUS mus.Serializer[core.Message] = messageMUS{}
	// TripleMUS encodes a core.RelationshipTriple. The relationship is
	// stored by its tag name so reordering the enum keeps old data readable.
	TripleMUS mus.Serializer[core.RelationshipTriple] = tripleMUS{}
	// CheckpointMUS encodes a core.Checkpoint.
	CheckpointMUS mus.Serializer[core.Checkpoint] = checkpointMUS{}
)

type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	n = varint.Int64.Marshal(t.Unix(), bs)
	n += varint.Int64.Marshal(int64(t.Nanosecond()), bs[n:])
	return
}

func (timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	sec, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	nsec, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	return time.Unix(sec, nsec).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	return varint.Int64.Size(t.Unix()) + varint.Int64.Size(int64(t.Nanosecond()))
}

func (timeMUS) Skip(bs []byte) (n int, err error) {
	n, err = varint.Int64.Skip(bs)
	if err != nil {
		return
	}
	n1, err := varint.Int64.Skip(bs[n:])
	return n + n1, err
}

type identityMUS struct{}

func (identityMUS) Marshal(u core.UserIdentity, bs []byte) (n int) {
	n = ord.String.Marshal(string(u.ID), bs)
	n += ord.String.Marshal(u.DisplayName, bs[n:])
	return
}

func (identityMUS) Unmarshal(bs []byte) (u core.UserIdentity, n int, err error) {
	id, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	u.ID = core.UserID(id)
	var n1 int
	u.DisplayName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (identityMUS) Size(u core.UserIdentity) int {
	return ord.String.Size(string(u.ID)) + ord.String.Size(u.DisplayName)
}

func (identityMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	n1, err := ord.String.Skip(bs[n:])
	return n + n1, err
}

type messageMUS struct{}

func (messageMUS) Marshal(m core.Message, bs []byte) (n int) {
	n = ord.String.Marshal(string(m.ID), bs)
	n += ord.String.Marshal(string(m.UserID), bs[n:])
	n += ord.String.Marshal(m.UserDisplayName, bs[n:])
	n += TimeMUS.Marshal(m.Timestamp, bs[n:])
	n += ord.String.Marshal(m.Text, bs[n:])
	n += vectorMUS.Marshal(m.Vector, bs[n:])
	return
}

func (messageMUS) Unmarshal(bs []byte) (m core.Message, n int, err error) {
	var (
		s  string
		n1 int
	)
	if s, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	m.ID, n = core.MessageID(s), n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	m.UserID, n = core.UserID(s), n+n1
	if m.UserDisplayName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if m.Timestamp, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if m.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if m.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	if len(m.Vector) == 0 {
		m.Vector = nil
	}
	n += n1
	return
}

func (messageMUS) Size(m core.Message) int {
	return ord.String.Size(string(m.ID)) +
		ord.String.Size(string(m.UserID)) +
		ord.String.Size(m.UserDisplayName) +
		TimeMUS.Size(m.Timestamp) +
		ord.String.Size(m.Text) +
		vectorMUS.Size(m.Vector)
}

func (messageMUS) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		ord.String.Skip, ord.String.Skip, ord.String.Skip,
		TimeMUS.Skip, ord.String.Skip, vectorMUS.Skip,
	}
	return skipAll(bs, skips)
}

type tripleMUS struct{}

func (tripleMUS) Marshal(t core.RelationshipTriple, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(t.ID), bs)
	n += IdentityMUS.Marshal(t.Subject, bs[n:])
	n += ord.String.Marshal(t.Relationship.String(), bs[n:])
	n += ord.String.Marshal(t.Object, bs[n:])
	n += ord.String.Marshal(string(t.MessageID), bs[n:])
	return
}

func (tripleMUS) Unmarshal(bs []byte) (t core.RelationshipTriple, n int, err error) {
	id, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	t.ID = core.ID(id)
	var (
		s  string
		n1 int
	)
	if t.Subject, n1, err = IdentityMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if t.Relationship, err = core.ParseRelationshipType(s); err != nil {
		return
	}
	if t.Object, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	t.MessageID, n = core.MessageID(s), n+n1
	return
}

func (tripleMUS) Size(t core.RelationshipTriple) int {
	return varint.Uint64.Size(uint64(t.ID)) +
		IdentityMUS.Size(t.Subject) +
		ord.String.Size(t.Relationship.String()) +
		ord.String.Size(t.Object) +
		ord.String.Size(string(t.MessageID))
}

func (tripleMUS) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		varint.Uint64.Skip, IdentityMUS.Skip,
		ord.String.Skip, ord.String.Skip, ord.String.Skip,
	}
	return skipAll(bs, skips)
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(c core.Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(c.Operation, bs)
	n += ord.String.Marshal(string(c.LastID), bs[n:])
	n += varint.Int.Marshal(c.Processed, bs[n:])
	n += TimeMUS.Marshal(c.UpdatedAt, bs[n:])
	return
}

func (checkpointMUS) Unmarshal(bs []byte) (c core.Checkpoint, n int, err error) {
	var (
		s  string
		n1 int
	)
	if c.Operation, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	c.LastID, n = core.MessageID(s), n+n1
	if c.Processed, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (checkpointMUS) Size(c core.Checkpoint) int {
	return ord.String.Size(c.Operation) +
		ord.String.Size(string(c.LastID)) +
		varint.Int.Size(c.Processed) +
		TimeMUS.Size(c.UpdatedAt)
}

func (checkpointMUS) Skip(bs []byte) (n int, err error) {
	skips := []func([]byte) (int, error){
		ord.String.Skip, ord.String.Skip, varint.Int.Skip, TimeMUS.Skip,
	}
	return skipAll(bs, skips)
}

func skipAll(bs []byte, skips []func([]byte) (int, error)) (n int, err error) {
	for _, skip := range skips {
		n1, err := skip(bs[n:])
		n += n1
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func marshal[T any](ser mus.Serializer[T], v T) []byte {
	buf := make([]byte, ser.Size(v))
	ser.Marshal(v, buf)
	return buf
}

func unmarshal[T any](ser mus.Serializer[T], data []byte) (T, error) {
	v, n, err := ser.Unmarshal(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("%d trailing bytes", len(data)-n)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return v, nil
}

// MarshalMessage serializes a Message to bytes.
func MarshalMessage(msg *core.Message) ([]byte, error) {
	return marshal(MessageMUS, *msg), nil
}

// UnmarshalMessage deserializes a Message from bytes.
func UnmarshalMessage(data []byte) (*core.Message, error) {
	msg, err := unmarshal(MessageMUS, data)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarshalTriple serializes a RelationshipTriple to bytes. Triples with an
// unknown relationship are rejected.
func MarshalTriple(triple *core.RelationshipTriple) ([]byte, error) {
	if _, err := triple.Relationship.MarshalText(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return marshal(TripleMUS, *triple), nil
}

// UnmarshalTriple deserializes a RelationshipTriple from bytes.
func UnmarshalTriple(data []byte) (*core.RelationshipTriple, error) {
	triple, err := unmarshal(TripleMUS, data)
	if err != nil {
		return nil, err
	}
	return &triple, nil
}

// MarshalIdentity serializes a UserIdentity to bytes.
func MarshalIdentity(identity core.UserIdentity) ([]byte, error) {
	return marshal(IdentityMUS, identity), nil
}

// UnmarshalIdentity deserializes a UserIdentity from bytes.
func UnmarshalIdentity(data []byte) (core.UserIdentity, error) {
	return unmarshal(IdentityMUS, data)
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return marshal(CheckpointMUS, *checkpoint), nil
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, err := unmarshal(CheckpointMUS, data)
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}
