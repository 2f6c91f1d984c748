package model_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
)

// ---- ValidateCandidate ---------------------------------------------------

func TestValidateCandidate_HappyPath(t *testing.T) {
	c := &model.Candidate{
		ID:              "cand-1",
		TenantID:        "default",
		Skills:          []string{"Python", "CUDA"},
		Domains:         []string{"ml-infrastructure"},
		ExperienceYears: 6,
	}
	assert.NoError(t, model.ValidateCandidate(c))
}

func TestValidateCandidate_MissingID(t *testing.T) {
	err := model.ValidateCandidate(&model.Candidate{TenantID: "default"})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	assert.Contains(t, err.Error(), "id is required")
}

func TestValidateCandidate_NegativeExperience(t *testing.T) {
	err := model.ValidateCandidate(&model.Candidate{ID: "c", ExperienceYears: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "experience_years")
}

func TestValidateCandidate_SkillAtExactMax(t *testing.T) {
	c := &model.Candidate{
		ID:     "c",
		Skills: []string{strings.Repeat("x", model.MaxProfileFieldLen)},
	}
	assert.NoError(t, model.ValidateCandidate(c), "at the limit should pass")
}

func TestValidateCandidate_SkillOverMax(t *testing.T) {
	c := &model.Candidate{
		ID:     "c",
		Skills: []string{strings.Repeat("x", model.MaxProfileFieldLen+1)},
	}
	err := model.ValidateCandidate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill")
}

func TestValidateCandidate_TooManySkills(t *testing.T) {
	skills := make([]string, model.MaxProfileSetSize+1)
	for i := range skills {
		skills[i] = fmt.Sprintf("skill-%d", i)
	}
	err := model.ValidateCandidate(&model.Candidate{ID: "c", Skills: skills})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skills")
}

func TestValidateFeedbackText_Empty(t *testing.T) {
	err := model.ValidateFeedbackText("")
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestValidateFeedbackText_OverMax(t *testing.T) {
	err := model.ValidateFeedbackText(strings.Repeat("x", model.MaxFeedbackTextLen+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum length")
}

// ---- error kinds ---------------------------------------------------------

func TestKindOf_TypedError(t *testing.T) {
	err := model.NotFound("graph.GetTeam", "team %q", "t-1")
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
	assert.True(t, model.IsNotFound(err))
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := model.Timeout("search.Query", errors.New("context deadline exceeded"))
	wrapped := fmt.Errorf("query: hybrid path: %w", inner)
	assert.Equal(t, model.KindTimeout, model.KindOf(wrapped))
	assert.True(t, model.IsTimeout(wrapped))
}

func TestKindOf_UntypedError(t *testing.T) {
	assert.Equal(t, model.KindInternal, model.KindOf(errors.New("boom")))
}

func TestExternalKind_TenantMismatchIsNotFound(t *testing.T) {
	err := model.TenantMismatch("graph.GetTeam", "team %q", "t-1")
	assert.Equal(t, model.KindNotFound, model.ExternalKind(err))
	assert.True(t, model.IsNotFound(err))
	assert.Equal(t, model.ErrCodeNotFound, model.CodeForKind(model.ExternalKind(err)))
}

func TestErrorString_IncludesOpAndCause(t *testing.T) {
	err := model.Transport("search.Upsert", errors.New("connection refused"))
	assert.Contains(t, err.Error(), "search.Upsert")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeForKind_Mapping(t *testing.T) {
	assert.Equal(t, model.ErrCodeInvalidInput, model.CodeForKind(model.KindValidation))
	assert.Equal(t, model.ErrCodeTimeout, model.CodeForKind(model.KindTimeout))
	assert.Equal(t, model.ErrCodeTransport, model.CodeForKind(model.KindTransport))
	assert.Equal(t, model.ErrCodeInvariant, model.CodeForKind(model.KindInvariant))
	assert.Equal(t, model.ErrCodeInternalError, model.CodeForKind(model.KindInternal))
}

// ---- expertise levels ----------------------------------------------------

func TestExpertiseLevel_Ordering(t *testing.T) {
	assert.True(t, model.LevelSenior.AtLeast(model.LevelMid))
	assert.True(t, model.LevelSenior.AtLeast(model.LevelSenior))
	assert.False(t, model.LevelJunior.AtLeast(model.LevelStaff))
	assert.True(t, model.LevelPrincipal.AtLeast(model.LevelJunior))
}

func TestExpertiseLevel_EmptyMinimumIsNoConstraint(t *testing.T) {
	assert.True(t, model.LevelJunior.AtLeast(""))
	assert.True(t, model.ExpertiseLevel("").AtLeast(""))
}

func TestExpertiseLevel_UnknownLevelFailsKnownMinimum(t *testing.T) {
	assert.False(t, model.ExpertiseLevel("wizard").AtLeast(model.LevelJunior))
}

// ---- positions -----------------------------------------------------------

func TestArmCandidates_SelectedTakesPrecedence(t *testing.T) {
	p := &model.Position{
		SelectedCandidates: []string{"a", "b"},
		CandidateIDs:       []string{"c"},
	}
	assert.Equal(t, []string{"a", "b"}, p.ArmCandidates())
}

func TestArmCandidates_FallsBackToCandidateIDs(t *testing.T) {
	p := &model.Position{CandidateIDs: []string{"c", "d"}}
	assert.Equal(t, []string{"c", "d"}, p.ArmCandidates())
}

func TestArmCandidates_Empty(t *testing.T) {
	assert.Empty(t, (&model.Position{}).ArmCandidates())
}
