package models

// AnalysisReport is the deterministic statistics block computed over the
// resolved posts of one request.
type AnalysisReport struct {
	PostMetrics         PostMetrics       `json:"post_metrics"`
	EngagementAnalysis  EngagementMetrics `json:"engagement_analysis"`
	ContentAnalysis     ContentMetrics    `json:"content_analysis"`
	TemporalAnalysis    TemporalMetrics   `json:"temporal_analysis"`
	CommunityAnalysis   CommunityMetrics  `json:"community_analysis"`
	SentimentIndicators SentimentMetrics  `json:"sentiment_indicators"`
}

type PostMetrics struct {
	TotalPosts     int     `json:"total_posts"`
	AvgScore       float64 `json:"avg_score"`
	MedianScore    float64 `json:"median_score"`
	MaxScore       int     `json:"max_score"`
	TotalUpvotes   int     `json:"total_upvotes"`
	AvgComments    float64 `json:"avg_comments"`
	MedianComments float64 `json:"median_comments"`
	TotalComments  int     `json:"total_comments"`
	AvgUpvoteRatio float64 `json:"avg_upvote_ratio"`
	AvgPostAgeDays float64 `json:"avg_post_age_days"`
}

type EngagementMetrics struct {
	TotalCommentsAnalyzed int     `json:"total_comments_analyzed"`
	AvgCommentScore       float64 `json:"avg_comment_score"`
	MedianCommentScore    float64 `json:"median_comment_score"`
	HighlyUpvotedComments int     `json:"highly_upvoted_comments"`
	EngagementRate        float64 `json:"engagement_rate"`
	CommentsPerPost       float64 `json:"comments_per_post"`
}

type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

type PriceAnalysis struct {
	PricesFound int     `json:"prices_found"`
	AvgPrice    float64 `json:"avg_price"`
	MedianPrice float64 `json:"median_price"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	PriceRange  string  `json:"price_range"`
}

type ContentMetrics struct {
	TopBrands          []BrandCount   `json:"top_brands"`
	TotalBrandMentions int            `json:"total_brand_mentions"`
	UniqueBrands       int            `json:"unique_brands"`
	PriceAnalysis      *PriceAnalysis `json:"price_analysis,omitempty"`
	TopKeywords        []string       `json:"top_keywords"`
}

// PostRecency is one row of the per-post recency table.
type PostRecency struct {
	Title              string  `json:"title"`
	AgeDays            int     `json:"age_days"`
	Score              int     `json:"score"`
	RecencyCoefficient float64 `json:"recency_coefficient"`
}

type TemporalMetrics struct {
	RecentPosts30d           int            `json:"recent_posts_30d"`
	OldPosts1y               int            `json:"old_posts_1y_plus"`
	AvgRecentScore           float64        `json:"avg_recent_score"`
	FreshnessScore           float64        `json:"freshness_score"`
	RecencyWeightedFreshness float64        `json:"recency_weighted_freshness"`
	AgeDistribution          map[string]int `json:"age_distribution"`
	PostRecencyData          []PostRecency  `json:"post_recency_data"`
	DataAgeWarning           bool           `json:"data_age_warning"`
}

type CommunityMetrics struct {
	SubredditsInvolved    []string       `json:"subreddits_involved"`
	SubredditDistribution map[string]int `json:"subreddit_distribution"`
	PrimarySubreddit      string         `json:"primary_subreddit"`
	PrimaryCount          int            `json:"primary_subreddit_posts"`
	CommunityDiversity    int            `json:"community_diversity"`
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

type SentimentMetrics struct {
	PositiveWordCount int     `json:"positive_word_count"`
	NegativeWordCount int     `json:"negative_word_count"`
	SentimentRatio    float64 `json:"sentiment_ratio"`
	OverallSentiment  string  `json:"overall_sentiment"`
}
