package domain

import "time"

// RepoReport is the response of a single repository analysis.
type RepoReport struct {
	RepoName   string        `json:"repoName"`
	Owner      string        `json:"owner"`
	TotalScore float64       `json:"totalScore"`
	Details    RepoScoreInfo `json:"details"`
}

// RepoScoreInfo carries the raw inputs next to the sub-scores derived from them.
type RepoScoreInfo struct {
	Stars                int     `json:"stars"`
	Forks                int     `json:"forks"`
	Commits              int     `json:"commits"`
	StarScore            float64 `json:"starScore"`
	CommitFrequencyScore float64 `json:"commitFrequencyScore"`
	ForkScore            float64 `json:"forkScore"`
}

// ActivitySummary is the aggregate part shared by user and organization analyses.
type ActivitySummary struct {
	Score            float64  `json:"score"`
	ActivityRate     int      `json:"activityRate"`
	TotalRepos       int      `json:"totalRepos"`
	TotalSourceRepos int      `json:"totalSourceRepos"`
	TotalForkRepos   int      `json:"totalForkRepos"`
	ActiveRepos      int      `json:"activeRepos"`
	TopLanguages     []string `json:"topLanguages"`
}

// NewActivitySummary projects an AggregateAnalysis onto its response shape.
func NewActivitySummary(agg AggregateAnalysis) ActivitySummary {
	return ActivitySummary{
		Score:            agg.AverageScore,
		ActivityRate:     agg.ActivityRate,
		TotalRepos:       agg.TotalRepos,
		TotalSourceRepos: agg.TotalSourceRepos,
		TotalForkRepos:   agg.TotalForkRepos,
		ActiveRepos:      agg.ActiveRepoCount,
		TopLanguages:     agg.TopLanguages,
	}
}

// UserReport is the response of a user analysis.
type UserReport struct {
	Analysis UserAnalysis `json:"analysis"`
	RawData  UserRawData  `json:"raw_data"`
}

// UserAnalysis holds the aggregate score plus simple profile checks.
type UserAnalysis struct {
	ActivitySummary
	FollowersBiggerThanOne bool `json:"followersBiggerThanOne"`
	SourcePublicRepos      bool `json:"sourcePublicRepos"`
	HasSocialAccounts      bool `json:"hasSocialAccounts"`
	HasPublicEmail         bool `json:"hasPublicEmail"`
	LastCommitInLastMonth  bool `json:"lastCommitInLastMonth"`
}

type UserRawData struct {
	Username        string          `json:"username"`
	Name            string          `json:"name"`
	Bio             string          `json:"bio"`
	PublicRepos     int             `json:"publicRepos"`
	Followers       int             `json:"followers"`
	Following       int             `json:"following"`
	CreatedAt       time.Time       `json:"createdAt"`
	SocialAccounts  []SocialAccount `json:"socialAccounts"`
	UserEmail       string          `json:"userEmail"`
	LastCommitTime  *time.Time      `json:"lastCommitTime"`
	TopLanguages    []string        `json:"topLanguages"`
	TopRepositories []ScoredRepo    `json:"topRepositories"`
	AverageScore    float64         `json:"averageScore"`
}

// OrgReport is the response of an organization analysis.
type OrgReport struct {
	Analysis ActivitySummary `json:"analysis"`
	RawData  OrgRawData      `json:"raw_data"`
}

type OrgRawData struct {
	OrganizationName string       `json:"organizationName"`
	DisplayName      string       `json:"displayName"`
	Description      string       `json:"description"`
	Blog             string       `json:"blog"`
	Location         string       `json:"location"`
	Email            string       `json:"email"`
	Followers        int          `json:"followers"`
	CreatedAt        time.Time    `json:"createdAt"`
	PublicRepos      int          `json:"publicRepos"`
	AverageScore     float64      `json:"averageScore"`
	TopRepositories  []ScoredRepo `json:"topRepositories"`
}

// URLReport wraps the analysis selected by URL dispatch.
type URLReport struct {
	Type EntityKind `json:"type"`
	Data any        `json:"data"`
}
