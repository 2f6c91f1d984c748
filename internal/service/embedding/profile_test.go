package embedding

import (
	"strings"
	"testing"

	"github.com/ashita-ai/suisen/internal/model"
)

func TestCandidateTextCanonicalizesSets(t *testing.T) {
	a := &model.Candidate{
		Name:            "Alice Chen",
		Skills:          []string{"CUDA", "Go", "cuda "},
		Domains:         []string{"Inference"},
		ExperienceYears: 7,
		ExpertiseLevel:  model.LevelSenior,
	}
	b := &model.Candidate{
		Name:            "Alice Chen",
		Skills:          []string{"go", "CUDA"},
		Domains:         []string{"inference"},
		ExperienceYears: 7,
		ExpertiseLevel:  model.LevelSenior,
	}

	if CandidateText(a) != CandidateText(b) {
		t.Errorf("same profile content must render identically:\n%q\n%q", CandidateText(a), CandidateText(b))
	}
	if got := CandidateText(a); !strings.Contains(got, "skills: cuda, go.") {
		t.Errorf("expected sorted deduped skills, got %q", got)
	}
}

func TestCandidateTextExcludesCluster(t *testing.T) {
	cluster := "CUDA/GPU Experts"
	c := &model.Candidate{Name: "Bob", AbilityCluster: &cluster}

	if got := CandidateText(c); strings.Contains(strings.ToLower(got), "cuda/gpu") {
		t.Errorf("cluster label must not appear in the embedded text, got %q", got)
	}
}

func TestCandidateTextOmitsEmptySegments(t *testing.T) {
	c := &model.Candidate{Name: "Minimal"}
	got := CandidateText(c)

	if strings.Contains(got, "skills:") || strings.Contains(got, "papers:") {
		t.Errorf("empty fields must not render segments, got %q", got)
	}
	if got != "candidate minimal." {
		t.Errorf("expected bare rendering, got %q", got)
	}
}

func TestClassPrefixesDiffer(t *testing.T) {
	// A candidate and a position sharing descriptive words must still
	// render distinct texts: the class prefix is part of the identity.
	c := &model.Candidate{Name: "Backend"}
	p := &model.Position{Title: "Backend"}

	if CandidateText(c) == PositionText(p) {
		t.Error("candidate and position renderings must differ")
	}
}

func TestTeamText(t *testing.T) {
	tm := &model.Team{
		Name:          "ML Infra",
		Domain:        "Training",
		Needs:         []string{"distributed systems", "CUDA"},
		Expertise:     []string{"pytorch"},
		OpenPositions: []string{"p1", "p2"},
	}

	got := TeamText(tm)
	for _, want := range []string{"team ml infra.", "domain: training.", "needs: cuda, distributed systems.", "open positions: 2."} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func TestInterviewerTextExcludesLearnedSignals(t *testing.T) {
	iv := &model.Interviewer{
		Name:        "Dana",
		Expertise:   []string{"Systems"},
		SuccessRate: 0.91,
		ClusterSuccessRates: map[string]float64{
			"CUDA/GPU Experts": 0.8,
		},
	}

	got := InterviewerText(iv)
	if strings.Contains(got, "0.9") || strings.Contains(got, "success") {
		t.Errorf("learned rates must not leak into the profile text, got %q", got)
	}
	if !strings.Contains(got, "expertise: systems.") {
		t.Errorf("expected expertise segment, got %q", got)
	}
}

func TestPositionText(t *testing.T) {
	p := &model.Position{
		Title:           "Senior CUDA Engineer",
		MustHaves:       []string{"CUDA"},
		RequiredSkills:  []string{"c++", "Triton"},
		OptionalSkills:  []string{"go"},
		Domains:         []string{"inference"},
		ExperienceLevel: model.LevelSenior,
	}

	got := PositionText(p)
	for _, want := range []string{
		"position senior cuda engineer.",
		"must haves: cuda.",
		"required skills: c++, triton.",
		"optional skills: go.",
		"level: senior.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}
