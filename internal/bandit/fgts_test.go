package bandit

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
)

func TestWarmPriors(t *testing.T) {
	b, err := NewWarm(
		[]string{"a", "b", "c", "d"},
		[]float64{0.9, 0.2, -0.5, 1.5},
		Config{Kappa: 10},
	)
	require.NoError(t, err)
	assert.True(t, b.Warm())

	arms := b.Snapshot()
	require.Len(t, arms, 4)
	assert.InDelta(t, 10.0, arms[0].Alpha, 1e-9)
	assert.InDelta(t, 2.0, arms[0].Beta, 1e-9)
	assert.InDelta(t, 3.0, arms[1].Alpha, 1e-9)
	assert.InDelta(t, 9.0, arms[1].Beta, 1e-9)
	// Similarity clips to [0,1] before it reaches the prior.
	assert.InDelta(t, 1.0, arms[2].Alpha, 1e-9)
	assert.InDelta(t, 11.0, arms[2].Beta, 1e-9)
	assert.InDelta(t, 11.0, arms[3].Alpha, 1e-9)
	assert.InDelta(t, 1.0, arms[3].Beta, 1e-9)

	assert.Equal(t, []string{"a", "b", "c", "d"}, b.ArmIDs())
}

func TestUniformPriors(t *testing.T) {
	b, err := NewUniform([]string{"a", "b"}, Config{})
	require.NoError(t, err)
	assert.False(t, b.Warm())
	for _, a := range b.Snapshot() {
		assert.InDelta(t, 1.0, a.Alpha, 1e-9)
		assert.InDelta(t, 1.0, a.Beta, 1e-9)
	}
}

func TestConstructorValidation(t *testing.T) {
	_, err := NewWarm(nil, nil, Config{})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = NewWarm([]string{"a", "b"}, []float64{0.5}, Config{})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = NewUniform(nil, Config{})
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestUpdateMath(t *testing.T) {
	b, err := NewUniform([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	require.NoError(t, b.Update(0, 1.0))
	require.NoError(t, b.Update(0, 0.3))
	require.NoError(t, b.Update(1, 7.0)) // clamps to 1

	arms := b.Snapshot()
	assert.InDelta(t, 2.3, arms[0].Alpha, 1e-9)
	assert.InDelta(t, 1.7, arms[0].Beta, 1e-9)
	assert.Equal(t, 2, arms[0].Pulls)
	assert.InDelta(t, 2.0, arms[1].Alpha, 1e-9)
	assert.InDelta(t, 1.0, arms[1].Beta, 1e-9)

	// One unit of posterior mass lands per update, split by the reward.
	for _, a := range arms {
		assert.InDelta(t, float64(a.Pulls), (a.Alpha-1)+(a.Beta-1), 1e-9)
	}

	err = b.Update(5, 1.0)
	require.Error(t, err)
	assert.Equal(t, model.KindInvariant, model.KindOf(err))
}

func TestUpdateByID(t *testing.T) {
	b, err := NewUniform([]string{"a", "b"}, Config{})
	require.NoError(t, err)

	arm, err := b.UpdateByID("b", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, arm)
	assert.InDelta(t, 2.0, b.Snapshot()[1].Alpha, 1e-9)

	_, err = b.UpdateByID("ghost", 1.0)
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))

	i, ok := b.ArmIndex("a")
	assert.True(t, ok)
	assert.Zero(t, i)
	_, ok = b.ArmIndex("ghost")
	assert.False(t, ok)
}

func TestOneUpdateMovesPosteriorMean(t *testing.T) {
	b, err := NewWarm([]string{"a", "b"}, []float64{0.5, 0.48}, Config{})
	require.NoError(t, err)

	before := b.Snapshot()
	require.NoError(t, b.Update(0, 1.0))
	after := b.Snapshot()

	assert.Greater(t, after[0].Mean(), before[0].Mean())
	assert.Greater(t, after[0].Mean(), after[1].Mean())
}

// Three strong positives for one arm and two rejections for the other
// must flip near-equal warm priors into a decisive preference.
func TestFeedbackFlipsArmPreference(t *testing.T) {
	b, err := NewWarm([]string{"a", "b"}, []float64{0.5, 0.49}, Config{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Update(0, 1.0))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Update(1, 0.0))
	}

	wins := 0
	for i := 0; i < 1000; i++ {
		if b.Select() == 0 {
			wins++
		}
	}
	assert.GreaterOrEqual(t, wins, 850, "arm a should dominate after the feedback run")
}

func TestSelectDeterministicForSeed(t *testing.T) {
	build := func() *Bandit {
		b, err := NewWarm([]string{"a", "b", "c"}, []float64{0.2, 0.5, 0.8}, Config{Seed: 7})
		require.NoError(t, err)
		return b
	}
	x, y := build(), build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, x.Select(), y.Select(), "draw %d diverged", i)
	}
}

func TestArgmaxTiesKeepLowestIndex(t *testing.T) {
	assert.Zero(t, argmax([]float64{0.3, 0.3, 0.2}))
	assert.Equal(t, 2, argmax([]float64{0.1, 0.2, 0.4, 0.4}))
	assert.Zero(t, argmax([]float64{0.5}))
}

func TestSampleBetaMoments(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var sum float64
	const draws = 5000
	for i := 0; i < draws; i++ {
		x := sampleBeta(rng, 8, 2)
		require.GreaterOrEqual(t, x, 0.0)
		require.LessOrEqual(t, x, 1.0)
		sum += x
	}
	assert.InDelta(t, 0.8, sum/draws, 0.02, "Beta(8,2) mean")

	// Small-shape branch stays in range.
	for i := 0; i < 100; i++ {
		x := sampleBeta(rng, 0.5, 0.5)
		require.GreaterOrEqual(t, x, 0.0)
		require.LessOrEqual(t, x, 1.0)
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	builds := 0
	build := func() (*Bandit, error) {
		builds++
		return NewUniform([]string{"a"}, Config{})
	}

	b1, err := r.GetOrCreate("acme", "pos-1", build)
	require.NoError(t, err)
	b2, err := r.GetOrCreate("acme", "pos-1", build)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, 1, builds)

	got, ok := r.Get("acme", "pos-1")
	assert.True(t, ok)
	assert.Same(t, b1, got)
	_, ok = r.Get("acme", "pos-2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	// Same position under another tenant is a separate bandit.
	b3, err := r.GetOrCreate("globex", "pos-1", build)
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
	assert.Equal(t, 2, builds)

	r.Remove("acme", "pos-1")
	_, ok = r.Get("acme", "pos-1")
	assert.False(t, ok)
	_, err = r.GetOrCreate("acme", "pos-1", build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds, "removal forces a fresh warm start")
}

func TestRegistryFailedBuildLeavesNoEntry(t *testing.T) {
	r := NewRegistry()
	_, err := r.GetOrCreate("acme", "pos-1", func() (*Bandit, error) {
		return nil, errors.New("embed backend down")
	})
	require.Error(t, err)
	_, ok := r.Get("acme", "pos-1")
	assert.False(t, ok)

	b, err := r.GetOrCreate("acme", "pos-1", func() (*Bandit, error) {
		return NewUniform([]string{"a"}, Config{})
	})
	require.NoError(t, err)
	assert.NotNil(t, b)
}

func TestRegistryConcurrentCreateSharesOneBuild(t *testing.T) {
	r := NewRegistry()
	var builds atomic.Int32
	build := func() (*Bandit, error) {
		builds.Add(1)
		time.Sleep(10 * time.Millisecond)
		return NewUniform([]string{"a", "b"}, Config{})
	}

	const workers = 16
	results := make([]*Bandit, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := r.GetOrCreate("acme", "pos-1", build)
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load(), "concurrent first use shares one build")
	for _, b := range results {
		assert.Same(t, results[0], b)
	}
}
