// Package jobs carries asynchronous research requests over Kafka and turns
// finished responses into archive documents.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/thread-scout/internal/models"
	"github.com/DeafMist/thread-scout/internal/processing"
	"github.com/DeafMist/thread-scout/internal/reddit"
)

// Job is one queued research request.
type Job struct {
	ID          string       `json:"id"`
	RequestID   string       `json:"request_id"`
	Query       models.Query `json:"query"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// NewJob stamps q with a fresh id. The query is normalized and validated
// so that only runnable jobs are ever queued.
func NewJob(requestID string, q models.Query, now time.Time) (Job, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return Job{}, err
	}
	return Job{ID: uuid.NewString(), RequestID: requestID, Query: q, SubmittedAt: now.UTC()}, nil
}

// Decode parses a queued job.
func Decode(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if strings.TrimSpace(j.ID) == "" {
		return Job{}, errors.New("decode job: missing id")
	}
	j.Query = j.Query.Normalize()
	if err := j.Query.Validate(); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", j.ID, err)
	}
	return j, nil
}

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher enqueues jobs.
type Publisher struct {
	w MessageWriter
}

// NewPublisher builds a publisher for topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{w: w}
}

// Publish writes job keyed by its id.
func (p *Publisher) Publish(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(job.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "request_id", Value: []byte(job.RequestID)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

// Close releases the underlying writer when it supports closing.
func (p *Publisher) Close() error {
	if c, ok := p.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// BuildReport projects a finished response onto an archive document. The id
// depends only on the job, so a redelivered job overwrites its own report.
func BuildReport(job Job, resp *models.SearchResponse, now time.Time) models.ReportDocument {
	doc := models.ReportDocument{
		ID:         processing.BuildReportID(job.Query.Text, resp.SearchMode, job.SubmittedAt),
		RequestID:  job.RequestID,
		Query:      job.Query.Text,
		SearchMode: resp.SearchMode,
		Model:      resp.Model,
		Headline:   processing.Headline(resp.Summary, 12),
		Summary:    resp.Summary,
		Timestamp:  now.UTC(),
	}

	if a := resp.Analysis; a != nil {
		doc.Subreddits = a.CommunityAnalysis.SubredditsInvolved
		doc.Keywords = a.ContentAnalysis.TopKeywords
		doc.TotalPosts = a.PostMetrics.TotalPosts
		doc.Sentiment = a.SentimentIndicators.OverallSentiment
		doc.Freshness = a.TemporalAnalysis.RecencyWeightedFreshness
	}
	for _, s := range resp.Sources {
		doc.SourceURLs = append(doc.SourceURLs, s.URL)
	}

	if resp.AgentSummary != nil {
		doc.TotalPosts = resp.AgentSummary.TotalRedditPosts
		doc.SourceURLs = append(doc.SourceURLs, resp.RedditURLs...)
		seen := map[string]bool{}
		for _, u := range resp.RedditURLs {
			if sub, _, ok := reddit.ParseThread(u); ok && !seen[sub] {
				seen[sub] = true
				doc.Subreddits = append(doc.Subreddits, sub)
			}
		}
	}

	if len(doc.Keywords) == 0 {
		doc.Keywords = processing.ExtractKeywords(resp.Summary, 10, 4, strings.Fields(job.Query.Text)...)
	}
	return doc
}
