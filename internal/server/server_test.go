package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-health/internal/apperr"
	"github.com/naka-gawa/repo-health/internal/config"
	"github.com/naka-gawa/repo-health/internal/domain"
)

// mockAnalyzer is a mock implementation of the Analyzer interface.
type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) AnalyzeRepo(ctx context.Context, owner, repo string) (*domain.RepoReport, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RepoReport), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeUser(ctx context.Context, username string) (*domain.UserReport, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserReport), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeOrg(ctx context.Context, org string) (*domain.OrgReport, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrgReport), args.Error(1)
}

func (m *mockAnalyzer) AnalyzeURL(ctx context.Context, raw string) (*domain.URLReport, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URLReport), args.Error(1)
}

func testConfig(token string, origins ...string) *config.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &config.Config{
		Port:   config.DefaultPort,
		GitHub: config.GitHubConfig{Token: token},
		CORS:   config.CORSConfig{AllowedOrigins: origins},
	}
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHandler_MissingToken(t *testing.T) {
	paths := []string{
		"/analyze_repo?owner=denoland&repo=deno",
		"/analyze_repo",
		"/analyze_user?username=octocat",
		"/analyze_org",
		"/analyze_github?url=https://github.com/denoland",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			analyzer := new(mockAnalyzer)
			h := New(analyzer, testConfig(""), log.New(io.Discard))

			rec := serve(t, h, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, MsgMissingToken, decodeError(t, rec))
			analyzer.AssertExpectations(t)
		})
	}
}

func TestHandler_MissingParameters(t *testing.T) {
	testCases := []struct {
		name        string
		path        string
		expectedMsg string
	}{
		{name: "repo without params", path: "/analyze_repo", expectedMsg: MsgRepoParams},
		{name: "repo without repo", path: "/analyze_repo?owner=denoland", expectedMsg: MsgRepoParams},
		{name: "repo with empty owner", path: "/analyze_repo?owner=&repo=deno", expectedMsg: MsgRepoParams},
		{name: "user", path: "/analyze_user", expectedMsg: MsgUserParam},
		{name: "org", path: "/analyze_org?org=", expectedMsg: MsgOrgParam},
		{name: "github url", path: "/analyze_github", expectedMsg: MsgURLParam},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := new(mockAnalyzer)
			h := New(analyzer, testConfig("token"), log.New(io.Discard))

			rec := serve(t, h, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tc.expectedMsg, decodeError(t, rec))
			analyzer.AssertExpectations(t)
		})
	}
}

func TestHandler_AnalyzeRepo(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeRepo", mock.Anything, "denoland", "deno").Return(&domain.RepoReport{
		RepoName:   "deno",
		Owner:      "denoland",
		TotalScore: 100,
		Details: domain.RepoScoreInfo{
			Stars: 1000, Forks: 500, Commits: 150,
			StarScore: 70, CommitFrequencyScore: 15, ForkScore: 15,
		},
	}, nil)
	h := New(analyzer, testConfig("token"), log.New(io.Discard))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/analyze_repo?owner=denoland&repo=deno", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"repoName": "deno",
		"owner": "denoland",
		"totalScore": 100,
		"details": {
			"stars": 1000, "forks": 500, "commits": 150,
			"starScore": 70, "commitFrequencyScore": 15, "forkScore": 15
		}
	}`, rec.Body.String())
	analyzer.AssertExpectations(t)
}

func TestHandler_AnalyzeOrg(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeOrg", mock.Anything, "denoland").Return(&domain.OrgReport{
		Analysis: domain.ActivitySummary{Score: 42.5, ActivityRate: 50, TotalRepos: 2, TotalSourceRepos: 2, TotalForkRepos: 1, ActiveRepos: 1, TopLanguages: []string{"Rust"}},
		RawData:  domain.OrgRawData{OrganizationName: "denoland", DisplayName: "Deno", PublicRepos: 3, AverageScore: 42.5},
	}, nil)
	h := New(analyzer, testConfig("token"), log.New(io.Discard))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/analyze_org?org=denoland", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 42.5, body["analysis"]["score"])
	assert.Equal(t, float64(2), body["analysis"]["totalSourceRepos"])
	assert.Equal(t, "denoland", body["raw_data"]["organizationName"])
	assert.Equal(t, float64(3), body["raw_data"]["publicRepos"])
}

func TestHandler_AnalyzeUser(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeUser", mock.Anything, "octocat").Return(&domain.UserReport{
		Analysis: domain.UserAnalysis{FollowersBiggerThanOne: true, HasPublicEmail: true},
		RawData:  domain.UserRawData{Username: "octocat", SocialAccounts: []domain.SocialAccount{}},
	}, nil)
	h := New(analyzer, testConfig("token"), log.New(io.Discard))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/analyze_user?username=octocat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["analysis"]["followersBiggerThanOne"])
	assert.Equal(t, true, body["analysis"]["hasPublicEmail"])
	assert.Equal(t, false, body["analysis"]["hasSocialAccounts"])
	assert.Contains(t, body["analysis"], "score")
	assert.Equal(t, "octocat", body["raw_data"]["username"])
	assert.Nil(t, body["raw_data"]["lastCommitTime"])
}

func TestHandler_AnalyzeGitHub(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("AnalyzeURL", mock.Anything, "https://github.com/denoland/deno").Return(&domain.URLReport{
		Type: domain.KindRepository,
		Data: &domain.RepoReport{RepoName: "deno", Owner: "denoland", TotalScore: 70.5},
	}, nil)
	h := New(analyzer, testConfig("token"), log.New(io.Discard))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/analyze_github?url=https://github.com/denoland/deno", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Type string            `json:"type"`
		Data domain.RepoReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Repository", body.Type)
	assert.Equal(t, "deno", body.Data.RepoName)
	assert.Equal(t, 70.5, body.Data.TotalScore)
}

func TestHandler_Failures(t *testing.T) {
	upstreamErr := apperr.Wrap(apperr.KindUpstream, errors.New("403 rate limit exceeded for token ghp_secret"), "analyze repository")

	testCases := []struct {
		name           string
		path           string
		setup          func(m *mockAnalyzer)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "repo upstream failure is opaque",
			path: "/analyze_repo?owner=denoland&repo=deno",
			setup: func(m *mockAnalyzer) {
				m.On("AnalyzeRepo", mock.Anything, "denoland", "deno").Return(nil, upstreamErr)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    MsgRepoFailed,
		},
		{
			name: "user unclassified failure is opaque",
			path: "/analyze_user?username=octocat",
			setup: func(m *mockAnalyzer) {
				m.On("AnalyzeUser", mock.Anything, "octocat").Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    MsgUserFailed,
		},
		{
			name: "org upstream failure is opaque",
			path: "/analyze_org?org=denoland",
			setup: func(m *mockAnalyzer) {
				m.On("AnalyzeOrg", mock.Anything, "denoland").Return(nil, upstreamErr)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    MsgOrgFailed,
		},
		{
			name: "invalid URL is a client error",
			path: "/analyze_github?url=https://gitlab.com/foo",
			setup: func(m *mockAnalyzer) {
				m.On("AnalyzeURL", mock.Anything, "https://gitlab.com/foo").Return(nil, apperr.New(apperr.KindValidation, domain.MsgInvalidURL))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid GitHub URL",
		},
		{
			name: "config failure passes its message through",
			path: "/analyze_org?org=denoland",
			setup: func(m *mockAnalyzer) {
				m.On("AnalyzeOrg", mock.Anything, "denoland").Return(nil, apperr.New(apperr.KindConfig, "GitHub GraphQL endpoint not configured"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "GitHub GraphQL endpoint not configured",
		},
		{
			name: "URL upstream failure is opaque",
			path: "/analyze_github?url=https://github.com/nobody",
			setup: func(m *mockAnalyzer) {
				m.On("AnalyzeURL", mock.Anything, "https://github.com/nobody").Return(nil, upstreamErr)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    MsgURLFailed,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := new(mockAnalyzer)
			tc.setup(analyzer)
			h := New(analyzer, testConfig("token"), log.New(io.Discard))

			rec := serve(t, h, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, tc.expectedMsg, decodeError(t, rec))
			assert.NotContains(t, rec.Body.String(), "ghp_secret")
			analyzer.AssertExpectations(t)
		})
	}
}

func TestHandler_Healthz(t *testing.T) {
	h := New(new(mockAnalyzer), testConfig(""), log.New(io.Discard))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_CORS(t *testing.T) {
	testCases := []struct {
		name           string
		origins        []string
		requestOrigin  string
		expectedHeader string
	}{
		{name: "wildcard", origins: []string{"*"}, requestOrigin: "https://app.example.com", expectedHeader: "*"},
		{name: "listed origin", origins: []string{"https://app.example.com"}, requestOrigin: "https://app.example.com", expectedHeader: "https://app.example.com"},
		{name: "unlisted origin", origins: []string{"https://app.example.com"}, requestOrigin: "https://evil.example.com", expectedHeader: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(new(mockAnalyzer), testConfig("token", tc.origins...), log.New(io.Discard))

			req := httptest.NewRequest(http.MethodGet, "/analyze_user", nil)
			req.Header.Set("Origin", tc.requestOrigin)
			rec := serve(t, h, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.expectedHeader, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHandler_RequestID(t *testing.T) {
	h := New(new(mockAnalyzer), testConfig(""), log.New(io.Discard))

	t.Run("assigned when absent", func(t *testing.T) {
		rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Len(t, rec.Header().Get(headerRequestID), 36)
	})

	t.Run("echoed when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(headerRequestID, "req-123")
		rec := serve(t, h, req)
		assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
	})
}
