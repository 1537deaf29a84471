// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/repo-health/internal/config"
	"github.com/naka-gawa/repo-health/internal/domain"
)

// pageSize is the fixed page size of every list request. Only the first page is read.
const pageSize = 100

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	FetchOwnerKind(ctx context.Context, name string) (domain.EntityKind, error)
	FetchUser(ctx context.Context, username string) (*domain.UserProfile, error)
	FetchOrganization(ctx context.Context, org string) (*domain.OrgProfile, error)
	FetchRepository(ctx context.Context, owner, repo string) (*domain.RepoMetrics, error)
	ListUserRepositories(ctx context.Context, username string) ([]*domain.RepoMetrics, error)
	ListOrgRepositories(ctx context.Context, org string) ([]*domain.RepoMetrics, error)
	// FetchCommitCount returns the number of commits on the first page (at most 100).
	FetchCommitCount(ctx context.Context, owner, repo string) (int, error)
	FetchContributorCount(ctx context.Context, owner, repo string) (int, error)
	FetchSocialAccounts(ctx context.Context, username string) ([]domain.SocialAccount, error)
	// FetchLastPushTime returns the time of the user's latest public push, or nil if none is visible.
	FetchLastPushTime(ctx context.Context, username string) (*time.Time, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// socialAccountsQuery fetches the social profiles linked from a user account.
type socialAccountsQuery struct {
	User struct {
		SocialAccounts struct {
			Nodes []struct {
				Provider    string
				URL         string `graphql:"url"`
				DisplayName string
			}
		} `graphql:"socialAccounts(first: 20)"`
	} `graphql:"user(login: $login)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
//
// Secondary rate limits are detected but never waited out: the waiter gets a
// zero sleep budget, so the limited response is returned to the caller as an error.
func NewGitHubGateway(cfg config.GitHubConfig, logger *log.Logger) (*GitHubGateway, error) {
	versioned := &apiVersionTransport{base: http.DefaultTransport, version: cfg.APIVersion}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(versioned, github_ratelimit.WithSingleSleepLimit(0, func(cbContext *github_ratelimit.CallbackContext) {
		logger.Warn("GitHub secondary rate limit hit", "url", cbContext.Request.URL.String())
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse GitHub base URL: %w", err)
		}
		restClient.BaseURL = baseURL
	}

	graphqlClient := githubv4.NewClient(httpClient)
	if cfg.GraphQLURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(cfg.GraphQLURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
	}, nil
}

func (g *GitHubGateway) FetchOwnerKind(ctx context.Context, name string) (domain.EntityKind, error) {
	g.logger.Debug("Classifying owner", "name", name)
	user, _, err := g.restClient.Users.Get(ctx, name)
	if err != nil {
		return "", g.fail("look up owner "+name, err)
	}
	if user.GetType() == string(domain.KindOrganization) {
		return domain.KindOrganization, nil
	}
	return domain.KindUser, nil
}

func (g *GitHubGateway) FetchUser(ctx context.Context, username string) (*domain.UserProfile, error) {
	g.logger.Debug("Fetching user", "user", username)
	user, _, err := g.restClient.Users.Get(ctx, username)
	if err != nil {
		return nil, g.fail("fetch user "+username, err)
	}
	return &domain.UserProfile{
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		Bio:         user.GetBio(),
		Email:       user.GetEmail(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
		PublicRepos: user.GetPublicRepos(),
		CreatedAt:   user.GetCreatedAt().Time,
	}, nil
}

func (g *GitHubGateway) FetchOrganization(ctx context.Context, org string) (*domain.OrgProfile, error) {
	g.logger.Debug("Fetching organization", "org", org)
	o, _, err := g.restClient.Organizations.Get(ctx, org)
	if err != nil {
		return nil, g.fail("fetch organization "+org, err)
	}
	return &domain.OrgProfile{
		Login:       o.GetLogin(),
		Name:        o.GetName(),
		Description: o.GetDescription(),
		Email:       o.GetEmail(),
		Blog:        o.GetBlog(),
		Location:    o.GetLocation(),
		Followers:   o.GetFollowers(),
		CreatedAt:   o.GetCreatedAt().Time,
	}, nil
}

func (g *GitHubGateway) FetchRepository(ctx context.Context, owner, repo string) (*domain.RepoMetrics, error) {
	g.logger.Debug("Fetching repository", "owner", owner, "repo", repo)
	r, _, err := g.restClient.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, g.fail(fmt.Sprintf("fetch repository %s/%s", owner, repo), err)
	}
	return toRepoMetrics(r), nil
}

func (g *GitHubGateway) ListUserRepositories(ctx context.Context, username string) ([]*domain.RepoMetrics, error) {
	g.logger.Debug("Listing user repositories", "user", username)
	opts := &github.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	repos, _, err := g.restClient.Repositories.ListByUser(ctx, username, opts)
	if err != nil {
		return nil, g.fail("list repositories of user "+username, err)
	}
	return toRepoMetricsList(repos), nil
}

func (g *GitHubGateway) ListOrgRepositories(ctx context.Context, org string) ([]*domain.RepoMetrics, error) {
	g.logger.Debug("Listing organization repositories", "org", org)
	opts := &github.RepositoryListByOrgOptions{
		Type:        "public",
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	repos, _, err := g.restClient.Repositories.ListByOrg(ctx, org, opts)
	if err != nil {
		return nil, g.fail("list repositories of organization "+org, err)
	}
	return toRepoMetricsList(repos), nil
}

func (g *GitHubGateway) FetchCommitCount(ctx context.Context, owner, repo string) (int, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: pageSize}}
	commits, _, err := g.restClient.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		// GitHub answers 409 Conflict for a repository without any commits.
		if hasStatus(err, http.StatusConflict) {
			return 0, nil
		}
		return 0, g.fail(fmt.Sprintf("list commits of %s/%s", owner, repo), err)
	}
	return len(commits), nil
}

func (g *GitHubGateway) FetchContributorCount(ctx context.Context, owner, repo string) (int, error) {
	opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: pageSize}}
	contributors, _, err := g.restClient.Repositories.ListContributors(ctx, owner, repo, opts)
	if err != nil {
		// GitHub answers a plain 403 when the contributor list is too large to compute.
		// Rate limit 403s are typed differently and do not match here.
		if hasStatus(err, http.StatusForbidden) {
			g.logger.Debug("Contributor list unavailable, counting as zero", "owner", owner, "repo", repo)
			return 0, nil
		}
		return 0, g.fail(fmt.Sprintf("list contributors of %s/%s", owner, repo), err)
	}
	return len(contributors), nil
}

func (g *GitHubGateway) FetchSocialAccounts(ctx context.Context, username string) ([]domain.SocialAccount, error) {
	g.logger.Debug("Fetching social accounts via GraphQL", "user", username)
	var q socialAccountsQuery
	variables := map[string]interface{}{"login": githubv4.String(username)}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for social accounts: %w", err)
	}
	accounts := make([]domain.SocialAccount, 0, len(q.User.SocialAccounts.Nodes))
	for _, n := range q.User.SocialAccounts.Nodes {
		accounts = append(accounts, domain.SocialAccount{
			Provider:    n.Provider,
			URL:         n.URL,
			DisplayName: n.DisplayName,
		})
	}
	return accounts, nil
}

func (g *GitHubGateway) FetchLastPushTime(ctx context.Context, username string) (*time.Time, error) {
	g.logger.Debug("Fetching public events", "user", username)
	events, _, err := g.restClient.Activity.ListEventsPerformedByUser(ctx, username, true, &github.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, g.fail("list events of user "+username, err)
	}
	// Events are returned newest first.
	for _, e := range events {
		if e.GetType() == "PushEvent" {
			t := e.GetCreatedAt().Time
			return &t, nil
		}
	}
	return nil, nil
}

// fail wraps err with the failed operation and logs primary rate limiting.
func (g *GitHubGateway) fail(op string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		g.logger.Warn("GitHub rate limit exceeded", "op", op, "reset", rateErr.Rate.Reset.Time)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func hasStatus(err error, code int) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == code
}

func toRepoMetricsList(repos []*github.Repository) []*domain.RepoMetrics {
	out := make([]*domain.RepoMetrics, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepoMetrics(r))
	}
	return out
}

func toRepoMetrics(r *github.Repository) *domain.RepoMetrics {
	return &domain.RepoMetrics{
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		Description: r.GetDescription(),
		StarCount:   r.GetStargazersCount(),
		ForkCount:   r.GetForksCount(),
		Language:    r.GetLanguage(),
		IsFork:      r.GetFork(),
		IsArchived:  r.GetArchived(),
		CreatedAt:   r.GetCreatedAt().Time,
		UpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// apiVersionTransport sends the configured X-GitHub-Api-Version. go-github pins
// its own default per request and githubv4 sends none, so this is the one place
// the configured version reaches both clients.
type apiVersionTransport struct {
	base    http.RoundTripper
	version string
}

func (t *apiVersionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.version == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("X-GitHub-Api-Version", t.version)
	return t.base.RoundTrip(req)
}
