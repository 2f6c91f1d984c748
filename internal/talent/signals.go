package talent

import (
	"fmt"
	"math"
	"strings"

	"github.com/ashita-ai/suisen/internal/model"
)

// Signals are the per-platform scores in [0,1] feeding the aggregate.
type Signals struct {
	Arxiv     float64 `json:"arxiv"`
	Github    float64 `json:"github"`
	X         float64 `json:"x"`
	Phone     float64 `json:"phone_screen"`
	Composite float64 `json:"composite"`
}

// Aggregate weights over the five signals.
const (
	weightArxiv     = 0.30
	weightGithub    = 0.25
	weightX         = 0.15
	weightPhone     = 0.20
	weightComposite = 0.10
)

// Strictness gate multipliers.
const (
	gateFewStrong   = 0.3
	gateThreeStrong = 0.8
	gateWeakSignal  = 0.5
	gateCoreFloor   = 0.6

	// coreFloor is the arxiv/github level below which the floor gate
	// fires.
	coreFloor = 0.5

	// excellenceBar is the level every core signal must clear for the
	// composite's all-four indicator.
	excellenceBar = 0.8
)

func signalsFor(c *model.Candidate, th Thresholds) Signals {
	sig := Signals{
		Arxiv:  arxivSignal(c, th),
		Github: githubSignal(c, th),
		X:      xSignal(c, th),
		Phone:  phoneSignal(c, th),
	}
	sig.Composite = compositeSignal(sig)
	return sig
}

func arxivSignal(c *model.Candidate, th Thresholds) float64 {
	papers := logRamp(float64(c.PaperCount()), float64(th.ArxivMinPapers), float64(th.ArxivFullPapers))
	contrib := gatedRatio(float64(len(c.ResearchContributions)), float64(th.ArxivMinContributions), float64(th.ArxivMinContributions))
	areas := gatedRatio(float64(len(c.ResearchAreas)), 0, float64(th.ArxivFullAreas))
	return 0.50*papers + 0.30*contrib + 0.20*areas
}

func githubSignal(c *model.Candidate, th Thresholds) float64 {
	st := c.GithubStats
	if st == nil {
		return 0
	}
	stars := logRamp(float64(st.TotalStars), float64(th.GithubMinStars), float64(th.GithubFullStars))
	repos := gatedRatio(float64(st.TotalRepos), float64(th.GithubMinRepos), float64(th.GithubFullRepos))
	langs := gatedRatio(float64(len(st.Languages)), float64(th.GithubFullLanguages), float64(th.GithubFullLanguages))
	return 0.60*stars + 0.25*repos + 0.15*langs
}

func xSignal(c *model.Candidate, th Thresholds) float64 {
	xa := c.XAnalytics
	if xa == nil {
		return 0
	}
	followers := logRamp(float64(xa.FollowersCount), float64(th.XMinFollowers), float64(th.XFullFollowers))
	engagement := gatedRatio(xa.AvgEngagementRate, th.XMinEngagement, th.XMinEngagement)
	quality := clip01(xa.ContentQualityScore)
	return 0.50*followers + 0.30*engagement + 0.20*quality
}

func phoneSignal(c *model.Candidate, th Thresholds) float64 {
	ps := c.PhoneScreenResults
	if ps == nil {
		return 0
	}
	tech := linRamp(ps.TechnicalDepth, th.PhoneMinTechnicalDepth)
	problem := linRamp(ps.ProblemSolving, th.PhoneMinProblemSolving)
	comm := linRamp(ps.Communication, th.PhoneMinCommunication)
	impl := linRamp(ps.Implementation, th.PhoneMinImplementation)
	return 0.40*tech + 0.25*problem + 0.20*comm + 0.15*impl
}

// compositeSignal rewards cross-platform excellence. The pair factors
// are geometric means, so one lagging platform drags its products; the
// indicator pays out only when every core signal clears the bar, and
// below the bar the whole blend is scaled by the weakest core signal so
// a lopsided profile cannot buy composite credit with two strong
// platforms.
func compositeSignal(sig Signals) float64 {
	researchToProduction := math.Sqrt(sig.Arxiv * sig.Github)
	influence := math.Sqrt(sig.Github * sig.X)
	validation := math.Sqrt(sig.Arxiv * sig.Phone)

	low := minCore(sig)
	allFour := 0.0
	balance := 1.0
	if low >= excellenceBar {
		allFour = 1
	} else {
		balance = low / excellenceBar
	}
	blend := 0.30*researchToProduction + 0.25*influence + 0.25*validation + 0.20*allFour
	return blend * balance
}

func minCore(sig Signals) float64 {
	low := sig.Arxiv
	for _, v := range [...]float64{sig.Github, sig.X, sig.Phone} {
		if v < low {
			low = v
		}
	}
	return low
}

// baseScore is the weighted blend of the five signals.
func baseScore(sig Signals) float64 {
	return weightArxiv*sig.Arxiv +
		weightGithub*sig.Github +
		weightX*sig.X +
		weightPhone*sig.Phone +
		weightComposite*sig.Composite
}

// applyGates applies the multiplicative strictness gates: fewer than
// three strong core signals collapses the score, exactly three takes a
// smaller cut, any weak signal halves it, and a sub-floor arxiv or
// github signal cuts it again.
func applyGates(base float64, sig Signals, th Thresholds) float64 {
	core := [...]float64{sig.Arxiv, sig.Github, sig.X, sig.Phone}
	strong := 0
	weak := false
	for _, v := range core {
		if v >= th.StrongSignal {
			strong++
		}
		if v < th.WeakSignal {
			weak = true
		}
	}
	score := base
	switch {
	case strong < 3:
		score *= gateFewStrong
	case strong == 3:
		score *= gateThreeStrong
	}
	if weak {
		score *= gateWeakSignal
	}
	if sig.Arxiv < coreFloor || sig.Github < coreFloor {
		score *= gateCoreFloor
	}
	return score
}

// Evidence carries the raw counts behind each signal.
type Evidence struct {
	Papers                int     `json:"papers"`
	ResearchContributions int     `json:"research_contributions"`
	ResearchAreas         int     `json:"research_areas"`
	GithubStars           int     `json:"github_stars"`
	GithubRepos           int     `json:"github_repos"`
	GithubLanguages       int     `json:"github_languages"`
	XFollowers            int     `json:"x_followers"`
	XEngagementRate       float64 `json:"x_engagement_rate"`
	PhoneScreened         bool    `json:"phone_screened"`
}

func evidenceFor(c *model.Candidate) Evidence {
	ev := Evidence{
		Papers:                c.PaperCount(),
		ResearchContributions: len(c.ResearchContributions),
		ResearchAreas:         len(c.ResearchAreas),
	}
	if st := c.GithubStats; st != nil {
		ev.GithubStars = st.TotalStars
		ev.GithubRepos = st.TotalRepos
		ev.GithubLanguages = len(st.Languages)
	}
	if xa := c.XAnalytics; xa != nil {
		ev.XFollowers = xa.FollowersCount
		ev.XEngagementRate = xa.AvgEngagementRate
	}
	ev.PhoneScreened = c.PhoneScreenResults != nil
	return ev
}

func whyExceptional(sig Signals, ev Evidence, th Thresholds) string {
	var parts []string
	if sig.Arxiv >= th.StrongSignal {
		parts = append(parts, fmt.Sprintf("exceptional research output (%d papers)", ev.Papers))
	}
	if sig.Github >= th.StrongSignal {
		parts = append(parts, fmt.Sprintf("major open-source impact (%d stars)", ev.GithubStars))
	}
	if sig.X >= th.StrongSignal {
		parts = append(parts, fmt.Sprintf("broad technical audience (%d followers)", ev.XFollowers))
	}
	if sig.Phone >= th.StrongSignal {
		parts = append(parts, "outstanding phone screen")
	}
	if len(parts) == 0 {
		return "no platform signal clears the exceptional bar"
	}
	return strings.Join(parts, "; ")
}

// logRamp maps x onto [0,1] logarithmically between lo and hi, hard
// zero below lo.
func logRamp(x, lo, hi float64) float64 {
	if x < lo || lo <= 0 || hi <= lo {
		return 0
	}
	if x >= hi {
		return 1
	}
	return math.Log(x/lo) / math.Log(hi/lo)
}

// linRamp maps x onto [0,1] linearly between floor and 1, hard zero
// below floor.
func linRamp(x, floor float64) float64 {
	if x < floor {
		return 0
	}
	if floor >= 1 {
		return 1
	}
	r := (x - floor) / (1 - floor)
	if r > 1 {
		return 1
	}
	return r
}

// gatedRatio is x/full capped at 1, hard zero below floor.
func gatedRatio(x, floor, full float64) float64 {
	if x < floor || full <= 0 {
		return 0
	}
	r := x / full
	if r > 1 {
		return 1
	}
	return r
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
