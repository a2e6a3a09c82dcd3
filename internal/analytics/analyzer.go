// Package analytics computes the deterministic statistics block that
// accompanies every traditional-mode summary.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/processing"
)

const (
	maxCommentsPerPost = 10
	highlyUpvotedScore = 10
	topBrandLimit      = 10
	keywordLimit       = 10
	keywordMinLength   = 4
	recentWindowDays   = 30
	oldThresholdDays   = 365
	stalenessThreshold = 30.0
)

// Age buckets, aligned with the recency step function.
var ageBuckets = []struct {
	label   string
	maxDays float64
}{
	{"0-30d", 30},
	{"31-90d", 90},
	{"91-365d", 365},
	{"1-2y", 730},
	{"2y+", math.Inf(1)},
}

// RecencyCoefficient maps a post age in days onto the recency step function.
func RecencyCoefficient(ageDays float64) float64 {
	switch {
	case ageDays <= 30:
		return 1.0
	case ageDays <= 90:
		return 0.8
	case ageDays <= 365:
		return 0.6
	case ageDays <= 730:
		return 0.4
	default:
		return 0.1
	}
}

// Analyzer is safe for concurrent use; it holds only compiled patterns and
// a clock.
type Analyzer struct {
	patterns *PatternSet
	now      func() time.Time
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithClock fixes the reference time used for post ages.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New builds an Analyzer. A nil pattern set selects the defaults.
func New(patterns *PatternSet, opts ...Option) *Analyzer {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	a := &Analyzer{patterns: patterns, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze computes the full report. It never fails; an empty input produces
// a zeroed report with every section present.
func (a *Analyzer) Analyze(posts []models.ResolvedPost, query string) models.AnalysisReport {
	now := a.now()

	var (
		scores        []float64
		commentCounts []float64
		ratios        []float64
		ages          []float64
		commentScores []float64
		texts         []string
	)
	for _, p := range posts {
		scores = append(scores, float64(p.Score))
		commentCounts = append(commentCounts, float64(p.NumComments))
		ratios = append(ratios, p.UpvoteRatio)
		ages = append(ages, ageDays(p, now))
		texts = append(texts, p.Title+" "+p.Body)

		for i, c := range p.Comments {
			if i >= maxCommentsPerPost {
				break
			}
			commentScores = append(commentScores, float64(c.Score))
			texts = append(texts, c.Body)
		}
	}
	corpus := strings.Join(texts, "\n")

	return models.AnalysisReport{
		PostMetrics:         postMetrics(posts, scores, commentCounts, ratios, ages),
		EngagementAnalysis:  engagement(scores, commentCounts, commentScores),
		ContentAnalysis:     a.content(corpus, query),
		TemporalAnalysis:    temporal(posts, ages),
		CommunityAnalysis:   community(posts),
		SentimentIndicators: a.sentiment(corpus),
	}
}

func postMetrics(posts []models.ResolvedPost, scores, commentCounts, ratios, ages []float64) models.PostMetrics {
	m := models.PostMetrics{TotalPosts: len(posts)}
	if len(posts) == 0 {
		return m
	}
	for _, p := range posts {
		m.TotalUpvotes += p.Score
		m.TotalComments += p.NumComments
		if p.Score > m.MaxScore {
			m.MaxScore = p.Score
		}
	}
	m.AvgScore = round1(mean(scores))
	m.MedianScore = round1(median(scores))
	m.AvgComments = round1(mean(commentCounts))
	m.MedianComments = round1(median(commentCounts))
	m.AvgUpvoteRatio = round2(mean(ratios))
	m.AvgPostAgeDays = round1(mean(ages))
	return m
}

func engagement(scores, commentCounts, commentScores []float64) models.EngagementMetrics {
	e := models.EngagementMetrics{TotalCommentsAnalyzed: len(commentScores)}
	if len(commentScores) > 0 {
		e.AvgCommentScore = round1(mean(commentScores))
		e.MedianCommentScore = round1(median(commentScores))
	}
	for _, s := range commentScores {
		if s >= highlyUpvotedScore {
			e.HighlyUpvotedComments++
		}
	}
	if upvotes := sum(scores); upvotes > 0 {
		e.EngagementRate = round2(sum(commentCounts) / upvotes * 100)
	}
	if len(commentCounts) > 0 {
		e.CommentsPerPost = round1(mean(commentCounts))
	}
	return e
}

func (a *Analyzer) content(corpus, query string) models.ContentMetrics {
	c := models.ContentMetrics{TopBrands: []models.BrandCount{}, TopKeywords: []string{}}

	counts := make(map[string]int)
	for _, re := range a.patterns.brandRes {
		for _, m := range re.FindAllStringSubmatch(corpus, -1) {
			counts[strings.ToLower(m[1])]++
			c.TotalBrandMentions++
		}
	}
	c.UniqueBrands = len(counts)
	for brand, n := range counts {
		c.TopBrands = append(c.TopBrands, models.BrandCount{Brand: brand, Count: n})
	}
	sort.Slice(c.TopBrands, func(i, j int) bool {
		if c.TopBrands[i].Count == c.TopBrands[j].Count {
			return c.TopBrands[i].Brand < c.TopBrands[j].Brand
		}
		return c.TopBrands[i].Count > c.TopBrands[j].Count
	})
	if len(c.TopBrands) > topBrandLimit {
		c.TopBrands = c.TopBrands[:topBrandLimit]
	}

	var prices []float64
	for _, re := range a.patterns.priceRes {
		for _, m := range re.FindAllStringSubmatch(corpus, -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if v >= a.patterns.PriceMin && v <= a.patterns.PriceMax {
				prices = append(prices, v)
			}
		}
	}
	if len(prices) > 0 {
		lo, hi := minMax(prices)
		c.PriceAnalysis = &models.PriceAnalysis{
			PricesFound: len(prices),
			AvgPrice:    round2(mean(prices)),
			MedianPrice: round2(median(prices)),
			MinPrice:    lo,
			MaxPrice:    hi,
			PriceRange:  fmt.Sprintf("$%.2f - $%.2f", lo, hi),
		}
	}

	if kw := processing.ExtractKeywords(corpus, keywordLimit, keywordMinLength, processing.QueryTerms(query, 0)...); kw != nil {
		c.TopKeywords = kw
	}
	return c
}

func temporal(posts []models.ResolvedPost, ages []float64) models.TemporalMetrics {
	t := models.TemporalMetrics{
		AgeDistribution: make(map[string]int, len(ageBuckets)),
		PostRecencyData: []models.PostRecency{},
	}
	for _, b := range ageBuckets {
		t.AgeDistribution[b.label] = 0
	}
	if len(posts) == 0 {
		return t
	}

	var recentScores []float64
	var weighted, weights float64
	for i, p := range posts {
		age := ages[i]
		coef := RecencyCoefficient(age)

		if age <= recentWindowDays {
			t.RecentPosts30d++
			recentScores = append(recentScores, float64(p.Score))
		}
		if age > oldThresholdDays {
			t.OldPosts1y++
		}
		for _, b := range ageBuckets {
			if age <= b.maxDays {
				t.AgeDistribution[b.label]++
				break
			}
		}

		// Posts with no upvotes still count with a floor weight of 1.
		w := math.Max(float64(p.Score), 1)
		weighted += w * coef
		weights += w

		t.PostRecencyData = append(t.PostRecencyData, models.PostRecency{
			Title:              p.Title,
			AgeDays:            int(age),
			Score:              p.Score,
			RecencyCoefficient: coef,
		})
	}

	if len(recentScores) > 0 {
		t.AvgRecentScore = round1(mean(recentScores))
	}
	t.FreshnessScore = round1(float64(t.RecentPosts30d) / float64(len(posts)) * 100)
	if weights > 0 {
		t.RecencyWeightedFreshness = round1(weighted / weights * 100)
	}
	t.DataAgeWarning = t.RecencyWeightedFreshness < stalenessThreshold
	return t
}

func community(posts []models.ResolvedPost) models.CommunityMetrics {
	c := models.CommunityMetrics{
		SubredditsInvolved:    []string{},
		SubredditDistribution: map[string]int{},
	}
	for _, p := range posts {
		if p.Subreddit == "" {
			continue
		}
		if _, ok := c.SubredditDistribution[p.Subreddit]; !ok {
			c.SubredditsInvolved = append(c.SubredditsInvolved, p.Subreddit)
		}
		c.SubredditDistribution[p.Subreddit]++
	}
	for _, sub := range c.SubredditsInvolved {
		if n := c.SubredditDistribution[sub]; n > c.PrimaryCount {
			c.PrimarySubreddit, c.PrimaryCount = sub, n
		}
	}
	c.CommunityDiversity = len(c.SubredditsInvolved)
	return c
}

func (a *Analyzer) sentiment(corpus string) models.SentimentMetrics {
	s := models.SentimentMetrics{OverallSentiment: models.SentimentNeutral}
	if a.patterns.posRe != nil {
		s.PositiveWordCount = len(a.patterns.posRe.FindAllStringIndex(corpus, -1))
	}
	if a.patterns.negRe != nil {
		s.NegativeWordCount = len(a.patterns.negRe.FindAllStringIndex(corpus, -1))
	}
	s.SentimentRatio = round2(float64(s.PositiveWordCount) / float64(max(s.NegativeWordCount, 1)))
	switch {
	case s.PositiveWordCount > s.NegativeWordCount:
		s.OverallSentiment = models.SentimentPositive
	case s.NegativeWordCount > s.PositiveWordCount:
		s.OverallSentiment = models.SentimentNegative
	}
	return s
}

func ageDays(p models.ResolvedPost, now time.Time) float64 {
	if p.CreatedAt.IsZero() || now.Before(p.CreatedAt) {
		return 0
	}
	return now.Sub(p.CreatedAt).Hours() / 24
}
