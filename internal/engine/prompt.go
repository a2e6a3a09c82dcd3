package engine

import (
	"fmt"
	"strings"

	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/processing"
)

const truncationNote = "...\n[Text truncated to stay within API limits]"

// RawContent renders the posts and their top comments as the plain-text
// corpus handed to the summarizer, capped at budget bytes.
func RawContent(posts []models.ResolvedPost, budget int) string {
	var b strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&b, "Title: %s (%d upvotes, %d comments, %.0f%% upvoted)\n", p.Title, p.Score, p.NumComments, p.UpvoteRatio*100)
		if p.Body != "" {
			fmt.Fprintf(&b, "Post: %s\n", p.Body)
		}
		b.WriteString("Top Comments:\n")
		for _, c := range p.Comments {
			fmt.Fprintf(&b, "Comment (%d upvotes): %s\n", c.Score, c.Body)
		}
		b.WriteString("\n\n")
	}

	text := b.String()
	if budget > 0 && len(text) > budget {
		text = processing.Truncate(text, budget) + truncationNote
	}
	return text
}

// SummaryPrompt builds the traditional-mode prompt: statistics first, then
// instructions, the link enhancement request and the raw content.
func SummaryPrompt(query string, r models.AnalysisReport, raw string) string {
	pm, ea, ca := r.PostMetrics, r.EngagementAnalysis, r.ContentAnalysis
	ta, cm, si := r.TemporalAnalysis, r.CommunityAnalysis, r.SentimentIndicators

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following Reddit data about '%s' and write a thorough summary and evaluation.\n\n", query)

	b.WriteString("=== DATA ANALYSIS ===\n")
	b.WriteString("Post Metrics:\n")
	fmt.Fprintf(&b, "- Total posts analyzed: %d\n", pm.TotalPosts)
	fmt.Fprintf(&b, "- Average upvotes: %v (median: %v)\n", pm.AvgScore, pm.MedianScore)
	fmt.Fprintf(&b, "- Total engagement: %d upvotes, %d comments\n", pm.TotalUpvotes, pm.TotalComments)
	fmt.Fprintf(&b, "- Average upvote ratio: %.0f%%\n\n", pm.AvgUpvoteRatio*100)

	b.WriteString("Engagement Analysis:\n")
	fmt.Fprintf(&b, "- Comments analyzed: %d\n", ea.TotalCommentsAnalyzed)
	fmt.Fprintf(&b, "- Highly upvoted comments (10+ upvotes): %d\n", ea.HighlyUpvotedComments)
	fmt.Fprintf(&b, "- Engagement rate: %v%% (comments per upvote)\n\n", ea.EngagementRate)

	b.WriteString("Content Analysis:\n")
	fmt.Fprintf(&b, "- Brands mentioned: %d unique brands, %d total mentions\n", ca.UniqueBrands, ca.TotalBrandMentions)
	top := make([]string, 0, 5)
	for i, bc := range ca.TopBrands {
		if i == 5 {
			break
		}
		top = append(top, fmt.Sprintf("%s (%dx)", bc.Brand, bc.Count))
	}
	fmt.Fprintf(&b, "- Top brands: %s\n", strings.Join(top, ", "))
	if pa := ca.PriceAnalysis; pa != nil {
		fmt.Fprintf(&b, "- Price analysis: %d prices found, avg $%v, range %s\n\n", pa.PricesFound, pa.AvgPrice, pa.PriceRange)
	} else {
		b.WriteString("- No clear pricing information found\n\n")
	}

	b.WriteString("Community & Freshness:\n")
	fmt.Fprintf(&b, "- Communities: %s\n", strings.Join(cm.SubredditsInvolved, ", "))
	fmt.Fprintf(&b, "- Content freshness: %v%% recent (within 30 days)\n", ta.FreshnessScore)
	fmt.Fprintf(&b, "- Recency-weighted relevance: %v%%\n", ta.RecencyWeightedFreshness)
	fmt.Fprintf(&b, "- Overall sentiment: %s (positive/negative ratio: %v)\n\n", si.OverallSentiment, si.SentimentRatio)

	if ta.DataAgeWarning {
		b.WriteString("DATA FRESHNESS WARNING: most content is outdated (low recency score). ")
		b.WriteString("Recommendations may not reflect the current market or community state. Take data age into account.\n\n")
	}

	b.WriteString("=== INSTRUCTIONS ===\n")
	b.WriteString("Using this analysis and the raw content below, provide:\n\n")
	b.WriteString("1. **SUMMARY**: main findings and recommendations with confidence levels\n")
	b.WriteString("2. **TOP RECOMMENDATIONS**: specific products or brands with community consensus\n")
	b.WriteString("3. **PRICE INSIGHTS**: cost analysis and value recommendations\n")
	b.WriteString("4. **COMMUNITY CONSENSUS**: what the Reddit community agrees on\n")
	b.WriteString("5. **RELIABILITY ASSESSMENT**: how trustworthy this data is given the engagement metrics\n\n")
	if ta.DataAgeWarning {
		b.WriteString("IMPORTANT: include the data age limitations in the reliability assessment; older posts may not reflect current conditions.\n\n")
	}
	b.WriteString("Give extra weight to highly upvoted and recent content, to brands mentioned consistently across sources, ")
	b.WriteString("and to price points the community validates.\n\n")

	b.WriteString("After the analysis, add structured data for link enhancement as a JSON block at the very end:\n\n")
	b.WriteString("=== LINK ENHANCEMENT DATA ===\n")
	b.WriteString("```json\n")
	b.WriteString("{\n")
	b.WriteString("  \"reddit_links\": [\"key Reddit URLs from the analysis\"],\n")
	b.WriteString("  \"search_terms\": [\"concrete product names, models, brands or services that deserve external links\"]\n")
	b.WriteString("}\n")
	b.WriteString("```\n\n")

	b.WriteString("=== RAW CONTENT ===\n")
	b.WriteString(raw)
	b.WriteString("\nBase your insights on both the quantitative analysis and the content itself, then add the JSON block.")
	return b.String()
}
