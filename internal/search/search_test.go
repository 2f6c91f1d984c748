package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/suisen/internal/model"
)

// The Index must satisfy both read and write contracts.
var (
	_ Searcher = (*Index)(nil)
	_ Writer   = (*Index)(nil)
)

func TestPointIDDeterministic(t *testing.T) {
	a := PointID(model.ClassCandidate, "alice")
	b := PointID(model.ClassCandidate, "alice")
	assert.Equal(t, a, b, "same class and profile must map to the same point id")
}

func TestPointIDDistinctAcrossClasses(t *testing.T) {
	// The same profile id indexed under two classes must not collide:
	// the class name is part of the hashed identity.
	candidate := PointID(model.ClassCandidate, "alice")
	team := PointID(model.ClassTeam, "alice")
	assert.NotEqual(t, candidate, team)
}

func TestPointIDMatchesNamespacedSHA1(t *testing.T) {
	want := uuid.NewSHA1(uuid.NameSpaceDNS, []byte("Candidate:alice"))
	assert.Equal(t, want, PointID(model.ClassCandidate, "alice"))
}

func TestPointIDIsVersion5(t *testing.T) {
	id := PointID(model.ClassPosition, "backend-eng-1")
	assert.Equal(t, uuid.Version(5), id.Version())
}
