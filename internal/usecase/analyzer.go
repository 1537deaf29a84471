// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/repo-health/internal/apperr"
	"github.com/naka-gawa/repo-health/internal/config"
	"github.com/naka-gawa/repo-health/internal/domain"
	"github.com/naka-gawa/repo-health/internal/gateway"
)

// sourcePublicReposThreshold is the number of non-fork repositories a user needs
// for the sourcePublicRepos check to pass.
const sourcePublicReposThreshold = 3

// Analyzer is the use case for scoring GitHub repositories, users, and organizations.
// It orchestrates the fetching and combining of data.
type Analyzer struct {
	fetcher      gateway.Fetcher
	logger       *log.Logger
	concurrency  int
	activeWindow time.Duration
	now          func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConcurrency bounds the in-flight upstream calls of one fan-out.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithActiveWindow sets how recently a repository must have been updated to count as active.
func WithActiveWindow(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.activeWindow = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates a new Analyzer instance.
func NewAnalyzer(fetcher gateway.Fetcher, logger *log.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		fetcher:      fetcher,
		logger:       logger,
		concurrency:  config.DefaultMaxConcurrentRequests,
		activeWindow: config.DefaultActiveWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeRepo scores a single repository.
func (a *Analyzer) AnalyzeRepo(ctx context.Context, owner, repo string) (*domain.RepoReport, error) {
	a.logger.Debug("Usecase: analyzing repository", "owner", owner, "repo", repo)

	var metrics *domain.RepoMetrics
	var commits int

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		metrics, err = a.fetcher.FetchRepository(egCtx, owner, repo)
		return err
	})
	eg.Go(func() error {
		var err error
		commits, err = a.fetcher.FetchCommitCount(egCtx, owner, repo)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, upstream(err, "analyze repository %s/%s", owner, repo)
	}

	b := domain.CalculateScore(metrics.StarCount, metrics.ForkCount, commits)
	return &domain.RepoReport{
		RepoName:   repo,
		Owner:      owner,
		TotalScore: b.TotalScore,
		Details: domain.RepoScoreInfo{
			Stars:                metrics.StarCount,
			Forks:                metrics.ForkCount,
			Commits:              commits,
			StarScore:            b.StarScore,
			CommitFrequencyScore: b.CommitFrequencyScore,
			ForkScore:            b.ForkScore,
		},
	}, nil
}

// AnalyzeUser scores every non-fork repository of a user and adds profile checks.
func (a *Analyzer) AnalyzeUser(ctx context.Context, username string) (*domain.UserReport, error) {
	a.logger.Debug("Usecase: analyzing user", "user", username)

	var (
		profile  *domain.UserProfile
		repos    []*domain.RepoMetrics
		social   []domain.SocialAccount
		lastPush *time.Time
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		profile, err = a.fetcher.FetchUser(egCtx, username)
		return err
	})
	eg.Go(func() error {
		var err error
		repos, err = a.fetcher.ListUserRepositories(egCtx, username)
		return err
	})
	eg.Go(func() error {
		var err error
		social, err = a.fetcher.FetchSocialAccounts(egCtx, username)
		return err
	})
	eg.Go(func() error {
		var err error
		lastPush, err = a.fetcher.FetchLastPushTime(egCtx, username)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, upstream(err, "analyze user %s", username)
	}

	agg, err := a.aggregate(ctx, username, repos)
	if err != nil {
		return nil, upstream(err, "analyze user %s", username)
	}

	now := a.now()
	return &domain.UserReport{
		Analysis: domain.UserAnalysis{
			ActivitySummary:        domain.NewActivitySummary(agg),
			FollowersBiggerThanOne: profile.Followers >= 1,
			SourcePublicRepos:      agg.TotalSourceRepos >= sourcePublicReposThreshold,
			HasSocialAccounts:      len(social) > 0,
			HasPublicEmail:         profile.Email != "",
			LastCommitInLastMonth:  lastPush != nil && now.Sub(*lastPush) <= a.activeWindow,
		},
		RawData: domain.UserRawData{
			Username:        profile.Login,
			Name:            profile.Name,
			Bio:             profile.Bio,
			PublicRepos:     profile.PublicRepos,
			Followers:       profile.Followers,
			Following:       profile.Following,
			CreatedAt:       profile.CreatedAt,
			SocialAccounts:  social,
			UserEmail:       profile.Email,
			LastCommitTime:  lastPush,
			TopLanguages:    agg.TopLanguages,
			TopRepositories: agg.TopRepositories,
			AverageScore:    agg.AverageScore,
		},
	}, nil
}

// AnalyzeOrg scores every non-fork repository of an organization.
func (a *Analyzer) AnalyzeOrg(ctx context.Context, org string) (*domain.OrgReport, error) {
	a.logger.Debug("Usecase: analyzing organization", "org", org)

	var profile *domain.OrgProfile
	var repos []*domain.RepoMetrics

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		profile, err = a.fetcher.FetchOrganization(egCtx, org)
		return err
	})
	eg.Go(func() error {
		var err error
		repos, err = a.fetcher.ListOrgRepositories(egCtx, org)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, upstream(err, "analyze organization %s", org)
	}

	agg, err := a.aggregate(ctx, org, repos)
	if err != nil {
		return nil, upstream(err, "analyze organization %s", org)
	}

	name := profile.Login
	if name == "" {
		name = org
	}
	displayName := profile.Name
	if displayName == "" {
		displayName = name
	}

	return &domain.OrgReport{
		Analysis: domain.NewActivitySummary(agg),
		RawData: domain.OrgRawData{
			OrganizationName: name,
			DisplayName:      displayName,
			Description:      profile.Description,
			Blog:             profile.Blog,
			Location:         profile.Location,
			Email:            profile.Email,
			Followers:        profile.Followers,
			CreatedAt:        profile.CreatedAt,
			PublicRepos:      len(repos),
			AverageScore:     agg.AverageScore,
			TopRepositories:  agg.TopRepositories,
		},
	}, nil
}

// Classify parses raw as a GitHub URL and, for owner-only URLs, asks GitHub
// whether the owner is a user or an organization.
func (a *Analyzer) Classify(ctx context.Context, raw string) (domain.EntityRef, error) {
	ref, err := domain.ParseGitHubURL(raw)
	if err != nil {
		return domain.EntityRef{}, err
	}
	if ref.HasRepo() {
		return ref, nil
	}
	kind, err := a.fetcher.FetchOwnerKind(ctx, ref.PrimaryName)
	if err != nil {
		return domain.EntityRef{}, upstream(err, "classify %s", ref.PrimaryName)
	}
	return ref.WithKind(kind), nil
}

// AnalyzeURL classifies raw and runs the matching analysis.
func (a *Analyzer) AnalyzeURL(ctx context.Context, raw string) (*domain.URLReport, error) {
	ref, err := a.Classify(ctx, raw)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Usecase: dispatching URL", "kind", ref.Kind, "name", ref.PrimaryName, "repo", ref.RepoName)

	var data any
	switch ref.Kind {
	case domain.KindRepository:
		data, err = a.AnalyzeRepo(ctx, ref.PrimaryName, ref.RepoName)
	case domain.KindOrganization:
		data, err = a.AnalyzeOrg(ctx, ref.PrimaryName)
	default:
		data, err = a.AnalyzeUser(ctx, ref.PrimaryName)
	}
	if err != nil {
		return nil, err
	}
	return &domain.URLReport{Type: ref.Kind, Data: data}, nil
}

// aggregate scores the non-fork repositories of owner concurrently, then
// fetches contributor counts for the top-ranked ones.
func (a *Analyzer) aggregate(ctx context.Context, owner string, repos []*domain.RepoMetrics) (domain.AggregateAnalysis, error) {
	sources := make([]*domain.RepoMetrics, 0, len(repos))
	forks := 0
	for _, r := range repos {
		if r.IsFork {
			forks++
			continue
		}
		sources = append(sources, r)
	}

	// Each goroutine writes only its own index.
	scored := make([]domain.ScoredRepo, len(sources))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i, r := range sources {
		eg.Go(func() error {
			commits, err := a.fetcher.FetchCommitCount(egCtx, owner, r.Name)
			if err != nil {
				return err
			}
			m := *r
			m.CommitCount = commits
			scored[i] = domain.NewScoredRepo(&m)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return domain.AggregateAnalysis{}, err
	}
	a.logger.Debug("Usecase: scored repositories", "owner", owner, "sources", len(sources), "forks", forks)

	agg := domain.Aggregate(scored, forks, a.now(), a.activeWindow)

	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i := range agg.TopRepositories {
		top := &agg.TopRepositories[i]
		eg.Go(func() error {
			n, err := a.fetcher.FetchContributorCount(egCtx, owner, top.Name)
			if err != nil {
				return err
			}
			top.ContributorsCount = n
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return domain.AggregateAnalysis{}, err
	}
	return agg, nil
}

// upstream classifies err as an upstream failure unless it is already classified.
func upstream(err error, format string, args ...any) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(apperr.KindUpstream, err, format, args...)
}
