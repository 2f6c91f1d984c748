package graph

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/service/embedding"
	"github.com/ashita-ai/suisen/internal/storage"
	"github.com/ashita-ai/suisen/internal/testutil"
)

// testDB is the shared database for all integration tests in this package.
var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()

	db, err := tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}
	testDB = db

	code := m.Run()

	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

// errProvider simulates an unreachable embedding backend.
type errProvider struct{}

func (errProvider) Embed(context.Context, string) (pgvector.Vector, error) {
	return pgvector.Vector{}, errors.New("embed backend down")
}

func (errProvider) EmbedBatch(context.Context, []string) ([]pgvector.Vector, error) {
	return nil, errors.New("embed backend down")
}

func (errProvider) Dimensions() int { return 64 }

func newIntegrationGraph(fx *fakeIndex) *Graph {
	return New(testDB, fx, embedding.NewHashProvider(64), testLogger())
}

func teamFixture(tenantID, id string) *model.Team {
	return &model.Team{
		ID:        id,
		TenantID:  tenantID,
		Name:      "Team " + id,
		Domain:    "ml infrastructure",
		Needs:     []string{"cuda", "triton"},
		Expertise: []string{"inference", "gpu"},
	}
}

func interviewerFixture(tenantID, id string) *model.Interviewer {
	return &model.Interviewer{
		ID:          id,
		TenantID:    tenantID,
		Name:        "Interviewer " + id,
		Expertise:   []string{"systems design"},
		SuccessRate: 0.8,
	}
}

func positionFixture(tenantID, id string) *model.Position {
	return &model.Position{
		ID:              id,
		TenantID:        tenantID,
		Title:           "Position " + id,
		MustHaves:       []string{"go"},
		RequiredSkills:  []string{"go", "postgres"},
		Domains:         []string{"backend"},
		ExperienceLevel: model.LevelSenior,
	}
}

func TestAddTeamRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newFakeIndex()
	g := newIntegrationGraph(fx)

	in := teamFixture("t-roundtrip", "team-rt")
	in.MemberIDs = []string{"iv-a", "iv-a", "iv-b"}

	saved, err := g.AddTeam(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.MemberCount, "member ids dedupe before counting")

	got, err := g.GetTeam(ctx, "t-roundtrip", "team-rt")
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Domain, got.Domain)
	assert.Equal(t, []string{"cuda", "triton"}, got.Needs)
	assert.Equal(t, []string{"iv-a", "iv-b"}, got.MemberIDs)
	assert.Equal(t, len(got.MemberIDs), got.MemberCount)

	p, ok := fx.point(model.ClassTeam, "team-rt")
	require.True(t, ok)
	assert.Equal(t, "t-roundtrip", p.TenantID)
	assert.Equal(t, in.Name, p.Metadata["name"])

	var stored bool
	err = testDB.Pool().QueryRow(ctx,
		`SELECT embedding IS NOT NULL FROM teams WHERE tenant_id = $1 AND id = $2`,
		"t-roundtrip", "team-rt",
	).Scan(&stored)
	require.NoError(t, err)
	assert.True(t, stored, "embedding column is written alongside the row")
}

func TestUpdateTeamMergesPatch(t *testing.T) {
	ctx := context.Background()
	fx := newFakeIndex()
	g := newIntegrationGraph(fx)

	_, err := g.AddTeam(ctx, teamFixture("t-patch", "team-patch"))
	require.NoError(t, err)

	name := "Renamed Team"
	updated, err := g.UpdateTeam(ctx, "t-patch", "team-patch", &TeamPatch{
		Name:  &name,
		Needs: []string{"llm serving"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Team", updated.Name)
	assert.Equal(t, []string{"llm serving"}, updated.Needs)
	assert.Equal(t, []string{"inference", "gpu"}, updated.Expertise, "unpatched fields survive")

	require.Equal(t, 1, fx.replaces)
	p, _ := fx.point(model.ClassTeam, "team-patch")
	assert.Equal(t, "Renamed Team", p.Metadata["name"])
}

func TestLinkInterviewerToTeamSymmetricIdempotent(t *testing.T) {
	ctx := context.Background()
	g := newIntegrationGraph(newFakeIndex())

	_, err := g.AddTeam(ctx, teamFixture("t-link", "team-link"))
	require.NoError(t, err)
	_, err = g.AddInterviewer(ctx, interviewerFixture("t-link", "iv-link"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		team, iv, err := g.LinkInterviewerToTeam(ctx, "t-link", "iv-link", "team-link")
		require.NoError(t, err)
		assert.Equal(t, []string{"iv-link"}, team.MemberIDs)
		assert.Equal(t, len(team.MemberIDs), team.MemberCount)
		require.NotNil(t, iv.TeamID)
		assert.Equal(t, "team-link", *iv.TeamID)
	}

	members, err := g.TeamMembers(ctx, "t-link", "team-link")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "iv-link", members[0].ID)
}

func TestTeamPositionsPreservesListOrder(t *testing.T) {
	ctx := context.Background()
	g := newIntegrationGraph(newFakeIndex())

	_, err := g.AddPosition(ctx, positionFixture("t-pos", "pos-b"))
	require.NoError(t, err)
	_, err = g.AddPosition(ctx, positionFixture("t-pos", "pos-a"))
	require.NoError(t, err)

	team := teamFixture("t-pos", "team-pos")
	team.OpenPositions = []string{"pos-b", "pos-a", "pos-missing"}
	_, err = g.AddTeam(ctx, team)
	require.NoError(t, err)

	positions, err := g.TeamPositions(ctx, "t-pos", "team-pos")
	require.NoError(t, err)
	require.Len(t, positions, 2, "unknown position ids are dropped")
	assert.Equal(t, "pos-b", positions[0].ID)
	assert.Equal(t, "pos-a", positions[1].ID)
}

func TestTeamMembersUnknownTeam(t *testing.T) {
	g := newIntegrationGraph(newFakeIndex())
	_, err := g.TeamMembers(context.Background(), "t-none", "ghost")
	require.Error(t, err)
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
}

func TestInterviewerRoundTripWithHistory(t *testing.T) {
	ctx := context.Background()
	g := newIntegrationGraph(newFakeIndex())

	in := interviewerFixture("t-iv", "iv-hist")
	in.ClusterSuccessRates = map[string]float64{"CUDA/GPU Experts": 0.7}
	in.InterviewHistory = []model.InterviewRecord{
		{CandidateID: "c1", Result: model.InterviewHired},
		{CandidateID: "c2", Result: model.InterviewRejected},
	}

	_, err := g.AddInterviewer(ctx, in)
	require.NoError(t, err)

	got, err := g.GetInterviewer(ctx, "t-iv", "iv-hist")
	require.NoError(t, err)
	assert.Equal(t, in.SuccessRate, got.SuccessRate)
	assert.Equal(t, in.ClusterSuccessRates, got.ClusterSuccessRates)
	assert.Equal(t, in.InterviewHistory, got.InterviewHistory)
}

func TestFreezeArmsFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	g := newIntegrationGraph(newFakeIndex())

	_, err := g.AddPosition(ctx, positionFixture("t-freeze", "pos-freeze"))
	require.NoError(t, err)

	frozen, err := g.FreezeArms(ctx, "t-freeze", "pos-freeze", []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, frozen)

	again, err := g.FreezeArms(ctx, "t-freeze", "pos-freeze", []string{"c9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, again, "snapshot never changes once set")

	got, err := g.GetPosition(ctx, "t-freeze", "pos-freeze")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, got.ArmCandidates())
}

func TestVectorWriteFailureStillSucceedsAndQueuesRepair(t *testing.T) {
	ctx := context.Background()
	fx := newFakeIndex()
	fx.writeErr = errors.New("index unreachable")
	g := newIntegrationGraph(fx)

	_, err := g.AddTeam(ctx, teamFixture("t-degrade", "team-degrade"))
	require.NoError(t, err, "relational success with vector failure is still success")

	var attempts int
	err = testDB.Pool().QueryRow(ctx,
		`SELECT attempts FROM vector_outbox WHERE class = $1 AND profile_id = $2 AND tenant_id = $3`,
		string(model.ClassTeam), "team-degrade", "t-degrade",
	).Scan(&attempts)
	require.NoError(t, err, "a repair entry must be queued")
	assert.Equal(t, 0, attempts)

	_, err = g.GetTeam(ctx, "t-degrade", "team-degrade")
	require.NoError(t, err, "the row is readable while the index lags")
}

func TestPointForUsesStoredEmbedding(t *testing.T) {
	ctx := context.Background()

	seeded := newIntegrationGraph(newFakeIndex())
	_, err := seeded.AddTeam(ctx, teamFixture("t-repair", "team-repair"))
	require.NoError(t, err)

	// A repair must succeed even when the embedding backend is down,
	// because relational rows carry their embedding.
	degraded := New(testDB, newFakeIndex(), errProvider{}, testLogger())
	p, err := degraded.PointFor(ctx, model.ClassTeam, "team-repair", "t-repair")
	require.NoError(t, err)
	assert.Len(t, p.Vector, 64)
	assert.Equal(t, "t-repair", p.TenantID)

	// Candidates have no relational row, so their repair re-embeds and
	// inherits the backend failure.
	degraded.cands.Insert(candidateFixture("t-repair", "cand-repair"))
	_, err = degraded.PointFor(ctx, model.ClassCandidate, "cand-repair", "t-repair")
	require.Error(t, err)
	assert.Equal(t, model.KindTransport, model.KindOf(err))
}

func TestPointForMissingEntity(t *testing.T) {
	g := newIntegrationGraph(newFakeIndex())
	_, err := g.PointFor(context.Background(), model.ClassTeam, "ghost", "t-ghost")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestListPointsWalksRelationalRows(t *testing.T) {
	ctx := context.Background()
	g := newIntegrationGraph(newFakeIndex())

	_, err := g.AddTeam(ctx, teamFixture("t-sweep-a", "team-sweep-a"))
	require.NoError(t, err)
	_, err = g.AddTeam(ctx, teamFixture("t-sweep-b", "team-sweep-b"))
	require.NoError(t, err)

	points, err := g.ListPoints(ctx, model.ClassTeam, 1000, 0)
	require.NoError(t, err)

	found := map[string]string{}
	for _, p := range points {
		found[p.ProfileID] = p.TenantID
		require.NotEmpty(t, p.Vector)
	}
	assert.Equal(t, "t-sweep-a", found["team-sweep-a"])
	assert.Equal(t, "t-sweep-b", found["team-sweep-b"])
}
