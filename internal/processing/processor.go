package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var urlRegex = regexp.MustCompile(`https?://[^\s)\]"'<>]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "by": {}, "a": {}, "an": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"what": {}, "how": {}, "where": {}, "when": {}, "why": {}, "who": {},
	"this": {}, "that": {}, "they": {}, "them": {}, "you": {}, "your": {}, "from": {},
	"just": {}, "like": {}, "about": {}, "than": {}, "then": {}, "there": {}, "their": {},
	"it's": {}, "its": {}, "not": {}, "can": {}, "get": {}, "any": {},
}

// ExtractURLs extracts all HTTP(S) URLs from the input text.
func ExtractURLs(input string) []string {
	if input == "" {
		return nil
	}
	matches := urlRegex.FindAllString(input, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	for _, url := range matches {
		url = strings.TrimRight(url, ".,;:")
		if _, ok := seen[url]; !ok {
			seen[url] = struct{}{}
			urls = append(urls, url)
		}
	}
	return urls
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	decoded = strings.TrimSpace(decoded)
	return decoded
}

// IsStopword reports whether the lower-cased token is a stop-word.
func IsStopword(token string) bool {
	_, ok := stopwords[strings.ToLower(token)]
	return ok
}

// ExtractKeywords returns the most frequent words that are not stop-words,
// skipping any word listed in exclude.
func ExtractKeywords(text string, limit, minLen int, exclude ...string) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, word := range exclude {
		skip[strings.ToLower(word)] = struct{}{}
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		if _, excluded := skip[token]; excluded {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// QueryTerms splits a query into search terms in their original order,
// dropping stop-words and tokens shorter than three characters.
func QueryTerms(query string, limit int) []string {
	clean := strings.ToLower(CleanText(query))
	var out []string
	seen := make(map[string]struct{})
	for _, token := range strings.Fields(clean) {
		if utf8.RuneCountInString(token) <= 2 || IsStopword(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// BuildReportID hashes the stable fields of a finished request to form a
// deterministic archive id.
func BuildReportID(query, mode string, ts time.Time) string {
	s := sha1.Sum([]byte(query + "|" + mode + "|" + ts.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(s[:])
}

// Headline creates a short title from the first sentence or first N words of text.
// Markdown emphasis and headings are dropped. Returns empty string if text is empty.
func Headline(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	plain := strings.NewReplacer("*", "", "#", "", "`", "").Replace(RemoveURLs(text))

	sentenceEnd := strings.IndexAny(plain, ".!?\n")
	var firstSentence string
	if sentenceEnd > 0 {
		firstSentence = strings.TrimSpace(plain[:sentenceEnd])
	} else {
		firstSentence = plain
	}

	words := strings.Fields(firstSentence)
	if len(words) == 0 {
		return ""
	}

	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
		return strings.Join(words, " ") + "..."
	}

	return strings.Join(words, " ")
}
