// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// RepoMetrics holds the raw upstream metrics for a single repository.
// CommitCount is the sampled count of one commit page, not the full history.
type RepoMetrics struct {
	Owner       string
	Name        string
	Description string
	StarCount   int
	ForkCount   int
	CommitCount int
	Language    string
	IsFork      bool
	IsArchived  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScoreBreakdown holds the three weighted sub-scores and their clamped total.
type ScoreBreakdown struct {
	StarScore            float64 `json:"starScore"`
	CommitFrequencyScore float64 `json:"commitFrequencyScore"`
	ForkScore            float64 `json:"forkScore"`
	TotalScore           float64 `json:"-"`
}

// ScoredRepo is a repository together with its score, as listed in topRepositories.
type ScoredRepo struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	Stars             int            `json:"stars"`
	Forks             int            `json:"forks"`
	Commits           int            `json:"commits"`
	Language          string         `json:"language"`
	IsFork            bool           `json:"isFork"`
	IsArchived        bool           `json:"isArchived"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	ContributorsCount int            `json:"contributorsCount"`
	Score             float64        `json:"score"`
	Details           ScoreBreakdown `json:"details"`
}

// NewScoredRepo scores m and copies its metrics into a ScoredRepo.
func NewScoredRepo(m *RepoMetrics) ScoredRepo {
	breakdown := CalculateScore(m.StarCount, m.ForkCount, m.CommitCount)
	return ScoredRepo{
		Name:        m.Name,
		Description: m.Description,
		Stars:       m.StarCount,
		Forks:       m.ForkCount,
		Commits:     m.CommitCount,
		Language:    m.Language,
		IsFork:      m.IsFork,
		IsArchived:  m.IsArchived,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Score:       breakdown.TotalScore,
		Details:     breakdown,
	}
}

// UserProfile is the subset of a GitHub user account the analysis reports on.
type UserProfile struct {
	Login       string
	Name        string
	Bio         string
	Email       string
	Followers   int
	Following   int
	PublicRepos int
	CreatedAt   time.Time
}

// OrgProfile is the subset of a GitHub organization the analysis reports on.
type OrgProfile struct {
	Login       string
	Name        string
	Description string
	Email       string
	Blog        string
	Location    string
	Followers   int
	CreatedAt   time.Time
}

// SocialAccount is a social profile linked from a GitHub user account.
type SocialAccount struct {
	Provider    string `json:"provider"`
	URL         string `json:"url"`
	DisplayName string `json:"displayName"`
}
