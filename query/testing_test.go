package query

import (
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/names"
	"github.com/stretchr/testify/require"
)

var testUsers = []core.UserIdentity{
	{ID: "u1", DisplayName: "Hans Müller"},
	{ID: "u2", DisplayName: "Layla Kawaguchi"},
	{ID: "u3", DisplayName: "Vikram Desai"},
	{ID: "u4", DisplayName: "Amira Desai"},
	{ID: "u5", DisplayName: "Lily O'Sullivan"},
	{ID: "u6", DisplayName: "Thiago Monteiro"},
}

func newTestResolver(t *testing.T) *names.Resolver {
	t.Helper()
	r, err := names.NewResolver()
	require.NoError(t, err)
	for _, u := range testUsers {
		r.Add(u)
	}
	return r
}
