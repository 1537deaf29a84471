package domain

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
)

// Score weights and saturation points.
const (
	MaxStarScore   = 70.0
	MaxCommitScore = 15.0
	MaxForkScore   = 15.0
	MaxTotalScore  = 100.0

	starSaturation   = 100.0
	forkSaturation   = 50.0
	commitsPerPoint  = 10.0
	maxTopRepos      = 10
	defaultActiveAge = 30 * 24 * time.Hour
)

// CalculateScore maps raw repository counts to a bounded score breakdown.
// commits is the sampled commit count of a single capped page.
func CalculateScore(stars, forks, commits int) ScoreBreakdown {
	starScore := round2(clamp(float64(stars)/starSaturation*MaxStarScore, 0, MaxStarScore))
	commitScore := round2(clamp(float64(commits)/commitsPerPoint, 0, MaxCommitScore))
	forkScore := round2(clamp(float64(forks)/forkSaturation*MaxForkScore, 0, MaxForkScore))

	return ScoreBreakdown{
		StarScore:            starScore,
		CommitFrequencyScore: commitScore,
		ForkScore:            forkScore,
		TotalScore:           round2(math.Min(starScore+commitScore+forkScore, MaxTotalScore)),
	}
}

// AggregateAnalysis summarizes the scored source repositories of a user or organization.
type AggregateAnalysis struct {
	AverageScore     float64
	ActivityRate     int
	TotalRepos       int
	TotalSourceRepos int
	TotalForkRepos   int
	ActiveRepoCount  int
	TopLanguages     []string
	TopRepositories  []ScoredRepo
}

// Aggregate summarizes sources, the scored non-fork repositories of an owner,
// alongside forkCount forks that were excluded from scoring. A repository is
// active when it was updated within activeWindow of now; a zero window means 30 days.
func Aggregate(sources []ScoredRepo, forkCount int, now time.Time, activeWindow time.Duration) AggregateAnalysis {
	if activeWindow <= 0 {
		activeWindow = defaultActiveAge
	}

	scores := make(stats.Float64Data, 0, len(sources))
	active := 0
	for _, r := range sources {
		scores = append(scores, r.Score)
		if now.Sub(r.UpdatedAt) <= activeWindow {
			active++
		}
	}

	// Mean fails only on empty input, which scores as 0.
	average, err := stats.Mean(scores)
	if err != nil {
		average = 0
	}

	activityRate := 0
	if len(sources) > 0 {
		activityRate = int(math.Round(float64(active) / float64(len(sources)) * 100))
	}

	return AggregateAnalysis{
		AverageScore:     round2(average),
		ActivityRate:     activityRate,
		TotalRepos:       len(sources),
		TotalSourceRepos: len(sources),
		TotalForkRepos:   forkCount,
		ActiveRepoCount:  active,
		TopLanguages:     topLanguages(sources),
		TopRepositories:  topRepositories(sources, maxTopRepos),
	}
}

// topRepositories returns at most n repositories ordered by score, highest first.
func topRepositories(repos []ScoredRepo, n int) []ScoredRepo {
	sorted := make([]ScoredRepo, len(repos))
	copy(sorted, repos)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Name < sorted[j].Name
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// topLanguages returns the distinct languages of repos, most used first.
func topLanguages(repos []ScoredRepo) []string {
	counts := make(map[string]int)
	for _, r := range repos {
		if r.Language != "" {
			counts[r.Language]++
		}
	}
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return 0
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
