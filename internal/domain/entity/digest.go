package entity

import "time"

// Language is a supported summary/digest output language.
type Language string

const (
	LanguageChinese Language = "zh"
	LanguageEnglish Language = "en"
)

// DigestStatus is the outcome of a daily-digest generation attempt.
type DigestStatus string

const (
	DigestStatusOK     DigestStatus = "ok"
	DigestStatusFailed DigestStatus = "failed"
)

// DailySummary is a per-feed, per-day, per-language digest of that day's
// articles. Unique on (FeedID, SummaryDate, Language); a re-run for an
// existing key is a no-op that returns the existing row.
type DailySummary struct {
	ID                 int64
	FeedID             string
	SummaryDate        time.Time
	Language           Language
	SummaryTitle       string
	SummaryContent     string
	ArticleCount       int
	ArticleIDs         []int64
	LLMProvider        string
	LLMModel           string
	GenerationCostTokens int
	Status             DigestStatus
	CreatedAt          time.Time
}

// HotTopicCategory is one of the fixed classification tags a unified hot
// topic may carry.
type HotTopicCategory string

const (
	CategoryTechnology    HotTopicCategory = "technology"
	CategoryFinance       HotTopicCategory = "finance"
	CategoryEntertainment HotTopicCategory = "entertainment"
	CategorySports        HotTopicCategory = "sports"
	CategoryPolitics      HotTopicCategory = "politics"
	CategorySociety       HotTopicCategory = "society"
	CategoryScience       HotTopicCategory = "science"
	CategoryHealth        HotTopicCategory = "health"
	CategoryEducation     HotTopicCategory = "education"
	CategoryMilitary      HotTopicCategory = "military"
	CategoryWorld         HotTopicCategory = "world"
	CategoryGaming        HotTopicCategory = "gaming"
	CategoryAutomobile    HotTopicCategory = "automobile"
	CategoryLifestyle     HotTopicCategory = "lifestyle"
	CategoryCulture       HotTopicCategory = "culture"
	CategoryOther         HotTopicCategory = "other"
)

// UnifiedHotTopic is a clustered group of per-platform raw topics for a
// single date.
type UnifiedHotTopic struct {
	ID                int64
	TopicDate         time.Time
	UnifiedTitle      string
	UnifiedSummary    string
	Keywords          []string
	Category          HotTopicCategory
	RelatedTopicHashes []string
	SourcePlatforms   []string
	TopicCount        int
	RepresentativeURL string
	CreatedAt         time.Time
}

// RawHotTopic is one platform's unclustered hot-topic row, the aggregator's
// input.
type RawHotTopic struct {
	ID          int64
	Platform    string
	Title       string
	Description string
	URL         string
	Status      string
	TopicDate   time.Time
}
