// Package match selects the best team and interviewer for a candidate.
//
// Every option is scored by a weighted component table, and the
// composite scores warm-start a per-request bandit whose arms are the
// options; the sampled winner is returned with a reasoning string built
// from the components strong enough to show. Sampling instead of a
// plain argmax keeps close alternatives in rotation.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/telemetry"
)

var matchMeter = telemetry.Meter("suisen/match")

// Graph is the slice of the knowledge graph the matchers read.
// *graph.Graph satisfies it.
type Graph interface {
	GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error)
	ListTeams(ctx context.Context, tenantID string, limit, offset int) ([]model.Team, error)
	TeamMembers(ctx context.Context, tenantID, teamID string) ([]model.Interviewer, error)
	Vector(ctx context.Context, class model.Class, tenantID, profileID string) ([]float32, error)
}

// Config controls bandit behavior and reasoning verbosity.
type Config struct {
	// Bandit parameterizes the per-request selection bandit. A zero
	// Seed draws a fresh one per request so repeated matches explore;
	// set it for reproducible selection.
	Bandit bandit.Config

	// DisplayThreshold gates which score components are spelled out in
	// the reasoning string.
	DisplayThreshold float64
}

// DefaultConfig returns the matcher defaults.
func DefaultConfig() Config {
	b := bandit.DefaultConfig()
	b.Seed = 0
	return Config{Bandit: b, DisplayThreshold: 0.5}
}

func (c Config) normalized() Config {
	if c.DisplayThreshold <= 0 || c.DisplayThreshold >= 1 {
		c.DisplayThreshold = DefaultConfig().DisplayThreshold
	}
	return c
}

// Matcher scores and selects teams and interviewers.
type Matcher struct {
	graph  Graph
	logger *slog.Logger
	cfg    Config
}

// New builds a Matcher.
func New(g Graph, logger *slog.Logger, cfg Config) *Matcher {
	return &Matcher{graph: g, logger: logger, cfg: cfg.normalized()}
}

// TeamMatch is one scored team. Components holds the unweighted
// per-component values.
type TeamMatch struct {
	Team       *model.Team        `json:"team"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
	Selected   bool               `json:"selected"`
}

// TeamMatchResult is the outcome of MatchTeam. Ranked is ordered by
// composite score; Selected is the bandit's pick, which is usually but
// not always the top-ranked team.
type TeamMatchResult struct {
	CandidateID string      `json:"candidate_id"`
	Selected    *TeamMatch  `json:"selected"`
	Reasoning   string      `json:"reasoning"`
	Ranked      []TeamMatch `json:"ranked"`
}

// MatchTeam scores every team for the candidate and lets a bandit
// warm-started from the composites pick one.
func (m *Matcher) MatchTeam(ctx context.Context, tenantID, candidateID string) (*TeamMatchResult, error) {
	const op = "match.MatchTeam"

	cand, err := m.graph.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	candVec, err := m.graph.Vector(ctx, model.ClassCandidate, tenantID, candidateID)
	if err != nil {
		return nil, err
	}

	teams, err := m.allTeams(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, model.NotFound(op, "tenant has no teams to match against")
	}

	boost := ArxivBoost(cand)
	matches := make([]TeamMatch, len(teams))
	ids := make([]string, len(teams))
	scores := make([]float64, len(teams))
	for i := range teams {
		t := &teams[i]
		components := map[string]float64{
			ComponentSimilarity:     m.similarity(ctx, op, candVec, model.ClassTeam, tenantID, t.ID),
			ComponentNeedsMatch:     overlapRatio(cand.Skills, t.Needs),
			ComponentExpertiseMatch: overlapRatio(cand.Domains, t.Expertise),
			ComponentArxivBoost:     boost,
			ComponentCapacity:       capacityFactor(t.OpenPositions),
		}
		score := teamWeightSimilarity*components[ComponentSimilarity] +
			teamWeightNeeds*components[ComponentNeedsMatch] +
			teamWeightExpertise*components[ComponentExpertiseMatch] +
			teamWeightArxiv*components[ComponentArxivBoost] +
			teamWeightCapacity*components[ComponentCapacity]

		matches[i] = TeamMatch{Team: t, Score: score, Components: components}
		ids[i] = t.ID
		scores[i] = score
	}

	selected, err := m.pick(ctx, op, "team", ids, scores)
	if err != nil {
		return nil, err
	}
	matches[selected].Selected = true
	reasoning := m.reasoning(fmt.Sprintf("team %s", teams[selected].Name), matches[selected].Components)

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	var pick *TeamMatch
	for i := range matches {
		if matches[i].Selected {
			pick = &matches[i]
			break
		}
	}
	return &TeamMatchResult{
		CandidateID: candidateID,
		Selected:    pick,
		Reasoning:   reasoning,
		Ranked:      matches,
	}, nil
}

// InterviewerMatch is one scored interviewer.
type InterviewerMatch struct {
	Interviewer *model.Interviewer `json:"interviewer"`
	Score       float64            `json:"score"`
	Components  map[string]float64 `json:"components"`
	Selected    bool               `json:"selected"`
}

// InterviewerMatchResult is the outcome of MatchInterviewer.
type InterviewerMatchResult struct {
	CandidateID string             `json:"candidate_id"`
	TeamID      string             `json:"team_id"`
	Selected    *InterviewerMatch  `json:"selected"`
	Reasoning   string             `json:"reasoning"`
	Ranked      []InterviewerMatch `json:"ranked"`
}

// MatchInterviewer scores the team's interviewers for the candidate and
// lets a bandit warm-started from the composites pick one. The cluster
// component reads the interviewer's success rate for the candidate's
// ability cluster, 0.5 when unknown.
func (m *Matcher) MatchInterviewer(ctx context.Context, tenantID, candidateID, teamID string) (*InterviewerMatchResult, error) {
	const op = "match.MatchInterviewer"

	cand, err := m.graph.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	candVec, err := m.graph.Vector(ctx, model.ClassCandidate, tenantID, candidateID)
	if err != nil {
		return nil, err
	}

	members, err := m.graph.TeamMembers(ctx, tenantID, teamID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, model.NotFound(op, "team %q has no interviewers", teamID)
	}

	boost := ArxivBoost(cand)
	cluster := cand.ClusterLabel()
	matches := make([]InterviewerMatch, len(members))
	ids := make([]string, len(members))
	scores := make([]float64, len(members))
	for i := range members {
		iv := &members[i]
		clusterSuccess := defaultClusterSuccess
		if rate, ok := iv.ClusterSuccessRates[cluster]; ok && cluster != "" {
			clusterSuccess = rate
		}
		components := map[string]float64{
			ComponentSimilarity:     m.similarity(ctx, op, candVec, model.ClassInterviewer, tenantID, iv.ID),
			ComponentExpertiseMatch: overlapRatio(cand.Domains, iv.Expertise),
			ComponentArxivBoost:     boost,
			ComponentSuccessRate:    iv.SuccessRate,
			ComponentClusterSuccess: clusterSuccess,
		}
		score := ivWeightSimilarity*components[ComponentSimilarity] +
			ivWeightExpertise*components[ComponentExpertiseMatch] +
			ivWeightArxiv*components[ComponentArxivBoost] +
			ivWeightSuccessRate*components[ComponentSuccessRate] +
			ivWeightClusterSuccess*components[ComponentClusterSuccess]

		matches[i] = InterviewerMatch{Interviewer: iv, Score: score, Components: components}
		ids[i] = iv.ID
		scores[i] = score
	}

	selected, err := m.pick(ctx, op, "interviewer", ids, scores)
	if err != nil {
		return nil, err
	}
	matches[selected].Selected = true
	reasoning := m.reasoning(fmt.Sprintf("interviewer %s", members[selected].Name), matches[selected].Components)

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	var pick *InterviewerMatch
	for i := range matches {
		if matches[i].Selected {
			pick = &matches[i]
			break
		}
	}
	return &InterviewerMatchResult{
		CandidateID: candidateID,
		TeamID:      teamID,
		Selected:    pick,
		Reasoning:   reasoning,
		Ranked:      matches,
	}, nil
}

// pick runs a fresh bandit over the composite scores. Each request gets
// its own instance so selection state never leaks between requests.
func (m *Matcher) pick(ctx context.Context, op, kind string, ids []string, scores []float64) (int, error) {
	cfg := m.cfg.Bandit
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	b, err := bandit.NewWarm(ids, scores, cfg)
	if err != nil {
		return 0, &model.Error{Kind: model.KindInternal, Op: op, Msg: "seed selection bandit", Err: err}
	}
	if counter, cerr := matchMeter.Int64Counter("suisen.bandit.selections"); cerr == nil {
		counter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
	}
	return b.Select(), nil
}

// similarity is the cosine between the candidate and an entity vector,
// clipped to [0,1]. A missing entity vector degrades that one option to
// zero similarity rather than failing the whole match.
func (m *Matcher) similarity(ctx context.Context, op string, candVec []float32, class model.Class, tenantID, id string) float64 {
	vec, err := m.graph.Vector(ctx, class, tenantID, id)
	if err != nil {
		m.logger.Warn("similarity unavailable, scoring component as zero",
			"op", op,
			"class", class,
			"profile_id", id,
			"error", err,
		)
		return 0
	}
	return clip01(dot(candVec, vec))
}

func (m *Matcher) allTeams(ctx context.Context, tenantID string) ([]model.Team, error) {
	const page = 500
	var out []model.Team
	for offset := 0; ; offset += page {
		batch, err := m.graph.ListTeams(ctx, tenantID, page, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
	}
}
