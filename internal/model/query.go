package model

// SkillFilters matches candidate skills by case-insensitive substring.
// Required must all be present, Optional needs at least one hit when
// non-empty, Excluded must have none.
type SkillFilters struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
}

// DomainFilters matches candidate domains with the same semantics as
// SkillFilters minus the optional tier.
type DomainFilters struct {
	Required []string `json:"required,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
}

// MinFilter is a lower bound on an integer signal.
type MinFilter struct {
	Min int `json:"min"`
}

// RangeFilter bounds experience years; nil ends are unbounded.
type RangeFilter struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// CandidateFilters is the composable filter set. All present filters are
// AND-joined.
type CandidateFilters struct {
	Skills          *SkillFilters  `json:"skills,omitempty"`
	Domains         *DomainFilters `json:"domains,omitempty"`
	ArxivPapers     *MinFilter     `json:"arxiv_papers,omitempty"`
	GithubStars     *MinFilter     `json:"github_stars,omitempty"`
	ExperienceYears *RangeFilter   `json:"experience_years,omitempty"`
	AbilityCluster  *string        `json:"ability_cluster,omitempty"`
}

// QueryRequest is the request body for POST /v1/query. SimilarityQuery
// upgrades the query to the hybrid filter+similarity path.
type QueryRequest struct {
	Filters         CandidateFilters `json:"filters"`
	SimilarityQuery string           `json:"similarity_query,omitempty"`
	TopK            int              `json:"top_k,omitempty"`
}

// CandidateHit is one row of a query result. SimilarityScore is set only
// on the hybrid path.
type CandidateHit struct {
	Candidate       *Candidate `json:"candidate"`
	SimilarityScore *float64   `json:"similarity_score,omitempty"`
}

// QueryResult wraps query output. Degraded is true when the hybrid path
// fell back to filter-only results.
type QueryResult struct {
	Hits     []CandidateHit `json:"hits"`
	Total    int            `json:"total"`
	Degraded bool           `json:"degraded,omitempty"`
}
