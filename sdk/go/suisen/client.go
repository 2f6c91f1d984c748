package suisen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TenantHeader is the HTTP header carrying the tenant identifier.
const TenantHeader = "X-Suisen-Tenant"

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Suisen server (e.g. "http://localhost:8080").
	BaseURL string

	// Tenant scopes every request. Empty means the server's default tenant.
	Tenant string

	// HTTPClient is an optional custom HTTP client. If nil, a default
	// client with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests when HTTPClient is nil.
	// Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Suisen candidate-matching API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	tenant  string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("suisen: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tenant:  cfg.Tenant,
		client:  httpClient,
	}, nil
}

// ListOptions paginate list endpoints. The server caps Limit at 500 and
// defaults it to 50.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o *ListOptions) query() string {
	if o == nil {
		return ""
	}
	params := url.Values{}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		params.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// ---------------------------------------------------------------------------
// Candidates
// ---------------------------------------------------------------------------

// CreateCandidate registers a candidate profile. The server embeds the
// profile and indexes it for similarity search.
func (c *Client) CreateCandidate(ctx context.Context, cand Candidate) (*Candidate, error) {
	var resp Candidate
	if err := c.post(ctx, "/v1/candidates", cand, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCandidate retrieves a candidate by ID.
func (c *Client) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	var resp Candidate
	if err := c.get(ctx, "/v1/candidates/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCandidates lists the tenant's candidates. Nil opts use server
// defaults.
func (c *Client) ListCandidates(ctx context.Context, opts *ListOptions) ([]Candidate, error) {
	var resp struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := c.get(ctx, "/v1/candidates"+opts.query(), &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// UpdateCandidate applies a partial update and re-embeds the profile.
func (c *Client) UpdateCandidate(ctx context.Context, id string, patch CandidatePatch) (*Candidate, error) {
	var resp Candidate
	if err := c.patch(ctx, "/v1/candidates/"+url.PathEscape(id), patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteCandidate removes a candidate and its vector.
func (c *Client) DeleteCandidate(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/v1/candidates/"+url.PathEscape(id), nil)
}

// SimilarProfiles returns the k nearest entities of every class to the
// candidate, keyed by class name. k <= 0 uses the server default of 5.
func (c *Client) SimilarProfiles(ctx context.Context, id string, k int) (map[string][]Hit, error) {
	path := "/v1/candidates/" + url.PathEscape(id) + "/similar"
	if k > 0 {
		path += "?k=" + strconv.Itoa(k)
	}
	var resp map[string][]Hit
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Teams
// ---------------------------------------------------------------------------

// CreateTeam registers a team profile.
func (c *Client) CreateTeam(ctx context.Context, team Team) (*Team, error) {
	var resp Team
	if err := c.post(ctx, "/v1/teams", team, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTeam retrieves a team by ID.
func (c *Client) GetTeam(ctx context.Context, id string) (*Team, error) {
	var resp Team
	if err := c.get(ctx, "/v1/teams/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTeams lists the tenant's teams.
func (c *Client) ListTeams(ctx context.Context, opts *ListOptions) ([]Team, error) {
	var resp struct {
		Teams []Team `json:"teams"`
	}
	if err := c.get(ctx, "/v1/teams"+opts.query(), &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// UpdateTeam applies a partial update.
func (c *Client) UpdateTeam(ctx context.Context, id string, patch TeamPatch) (*Team, error) {
	var resp Team
	if err := c.patch(ctx, "/v1/teams/"+url.PathEscape(id), patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkInterviewer adds an interviewer to a team and returns both sides
// of the membership edge.
func (c *Client) LinkInterviewer(ctx context.Context, teamID, interviewerID string) (*LinkResult, error) {
	body := map[string]any{"interviewer_id": interviewerID}
	var resp LinkResult
	if err := c.post(ctx, "/v1/teams/"+url.PathEscape(teamID)+"/interviewers", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TeamMembers lists the interviewers on a team.
func (c *Client) TeamMembers(ctx context.Context, teamID string) ([]Interviewer, error) {
	var resp struct {
		Members []Interviewer `json:"members"`
	}
	if err := c.get(ctx, "/v1/teams/"+url.PathEscape(teamID)+"/members", &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// TeamPositions lists the open positions attached to a team.
func (c *Client) TeamPositions(ctx context.Context, teamID string) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/v1/teams/"+url.PathEscape(teamID)+"/positions", &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// ---------------------------------------------------------------------------
// Interviewers
// ---------------------------------------------------------------------------

// CreateInterviewer registers an interviewer profile.
func (c *Client) CreateInterviewer(ctx context.Context, iv Interviewer) (*Interviewer, error) {
	var resp Interviewer
	if err := c.post(ctx, "/v1/interviewers", iv, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetInterviewer retrieves an interviewer by ID.
func (c *Client) GetInterviewer(ctx context.Context, id string) (*Interviewer, error) {
	var resp Interviewer
	if err := c.get(ctx, "/v1/interviewers/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListInterviewers lists the tenant's interviewers.
func (c *Client) ListInterviewers(ctx context.Context, opts *ListOptions) ([]Interviewer, error) {
	var resp struct {
		Interviewers []Interviewer `json:"interviewers"`
	}
	if err := c.get(ctx, "/v1/interviewers"+opts.query(), &resp); err != nil {
		return nil, err
	}
	return resp.Interviewers, nil
}

// UpdateInterviewer applies a partial update.
func (c *Client) UpdateInterviewer(ctx context.Context, id string, patch InterviewerPatch) (*Interviewer, error) {
	var resp Interviewer
	if err := c.patch(ctx, "/v1/interviewers/"+url.PathEscape(id), patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// CreatePosition registers an open position.
func (c *Client) CreatePosition(ctx context.Context, pos Position) (*Position, error) {
	var resp Position
	if err := c.post(ctx, "/v1/positions", pos, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPosition retrieves a position by ID.
func (c *Client) GetPosition(ctx context.Context, id string) (*Position, error) {
	var resp Position
	if err := c.get(ctx, "/v1/positions/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPositions lists the tenant's positions.
func (c *Client) ListPositions(ctx context.Context, opts *ListOptions) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/v1/positions"+opts.query(), &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// UpdatePosition applies a partial update.
func (c *Client) UpdatePosition(ctx context.Context, id string, patch PositionPatch) (*Position, error) {
	var resp Position
	if err := c.patch(ctx, "/v1/positions/"+url.PathEscape(id), patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FreezeArms pins the bandit arm set for a position. Empty candidateIDs
// default to the position's selected candidates. Once frozen, repeated
// calls return the original snapshot.
func (c *Client) FreezeArms(ctx context.Context, positionID string, candidateIDs []string) (*FreezeResult, error) {
	body := map[string]any{}
	if len(candidateIDs) > 0 {
		body["candidate_ids"] = candidateIDs
	}
	var resp FreezeResult
	if err := c.post(ctx, "/v1/positions/"+url.PathEscape(positionID)+"/freeze", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Matching and scoring
// ---------------------------------------------------------------------------

// Query runs a structured candidate query, optionally re-ranked by a
// semantic similarity query.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	var resp QueryResult
	if err := c.post(ctx, "/v1/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TalentSearch ranks the tenant's candidates against a position and
// returns those clearing the exceptional threshold.
func (c *Client) TalentSearch(ctx context.Context, req TalentSearchRequest) ([]Score, error) {
	var resp struct {
		Matches []Score `json:"matches"`
	}
	if err := c.post(ctx, "/v1/talent/search", req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// ScoreCandidate computes the talent score for one candidate. Empty
// positionID produces a position-free score.
func (c *Client) ScoreCandidate(ctx context.Context, id, positionID string) (*Score, error) {
	path := "/v1/candidates/" + url.PathEscape(id) + "/score"
	if positionID != "" {
		path += "?position_id=" + url.QueryEscape(positionID)
	}
	var resp Score
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MatchTeam ranks every team for the candidate and selects the best fit.
func (c *Client) MatchTeam(ctx context.Context, candidateID string) (*TeamMatchResult, error) {
	var resp TeamMatchResult
	if err := c.post(ctx, "/v1/candidates/"+url.PathEscape(candidateID)+"/match/team", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MatchInterviewer picks the interviewer on the team best placed to
// interview the candidate.
func (c *Client) MatchInterviewer(ctx context.Context, candidateID, teamID string) (*InterviewerMatchResult, error) {
	body := map[string]any{"team_id": teamID}
	var resp InterviewerMatchResult
	if err := c.post(ctx, "/v1/candidates/"+url.PathEscape(candidateID)+"/match/interviewer", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Screen renders a phone-screen decision for a candidate against a
// position.
func (c *Client) Screen(ctx context.Context, req ScreenRequest) (*ScreeningDecision, error) {
	var resp ScreeningDecision
	if err := c.post(ctx, "/v1/screen", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Learning loop
// ---------------------------------------------------------------------------

// SendFeedback submits interview feedback. Free text is parsed into a
// reward server-side unless req.Reward is set.
func (c *Client) SendFeedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	var resp FeedbackResult
	if err := c.post(ctx, "/v1/feedback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunClusters re-clusters the tenant's candidates into ability groups.
func (c *Client) RunClusters(ctx context.Context) (*ClusterSummary, error) {
	var resp ClusterSummary
	if err := c.post(ctx, "/v1/clusters/run", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AssignCluster reports the nearest trained cluster for one candidate
// without re-clustering.
func (c *Client) AssignCluster(ctx context.Context, candidateID string) (*ClusterAssignment, error) {
	body := map[string]any{"candidate_id": candidateID}
	var resp ClusterAssignment
	if err := c.post(ctx, "/v1/clusters/assign", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateClusterRates recomputes per-cluster interviewer success rates
// from candidate feedback history.
func (c *Client) UpdateClusterRates(ctx context.Context) (*ClusterRatesSummary, error) {
	var resp ClusterRatesSummary
	if err := c.post(ctx, "/v1/clusters/rates", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LearningMetrics returns the current online-learning metrics.
func (c *Client) LearningMetrics(ctx context.Context) (*LearningMetrics, error) {
	var resp LearningMetrics
	if err := c.get(ctx, "/v1/learning/metrics", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Simulate replays a warm-started and a cold-started bandit against the
// same synthetic feedback stream and reports the comparison.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (*SimulationResult, error) {
	var resp SimulationResult
	if err := c.post(ctx, "/v1/simulate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Health reports server health. Degraded and unhealthy states arrive
// with non-2xx status codes but still carry a report, so the report is
// returned whenever the server produced one.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("suisen: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suisen: GET /healthz: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("suisen: read response body: %w", err)
	}

	var env envelope
	if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.Success && env.Data != nil {
		var h Health
		if jsonErr := json.Unmarshal(env.Data, &h); jsonErr == nil {
			return &h, nil
		}
	}
	return nil, parseErrorResponse(resp.StatusCode, body)
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// envelope is the server's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("suisen: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("suisen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("suisen: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) patch(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("suisen: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("suisen: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("suisen: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if c.tenant != "" {
		req.Header.Set(TenantHeader, c.tenant)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("suisen: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("suisen: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, body)
	}

	if dest == nil {
		return nil
	}

	// Unwrap the server's { "success", "data", "meta" } envelope.
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("suisen: decode response envelope: %w", err)
	}
	if env.Data == nil {
		// The envelope omits data entirely for empty payloads.
		return nil
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("suisen: decode response data: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.RequestID = env.Meta.RequestID
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
