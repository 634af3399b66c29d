package models

import "time"

const (
	ProjectDraft      = "draft"
	ProjectProcessing = "processing"
	ProjectComplete   = "complete"
	ProjectError      = "error"
)

type Project struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Date        string   `json:"date"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	Status      string   `json:"status" validate:"oneof=draft processing complete error"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type Summary struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

type QuizQuestion struct {
	ID            string   `json:"id" validate:"required"`
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer" validate:"gte=0"`
	Explanation   string   `json:"explanation"`
}

type QuizSet struct {
	Questions []QuizQuestion `json:"questions" validate:"dive"`
}

type ImageItem struct {
	ID          string `json:"id" validate:"required"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type ImageSet struct {
	Items []ImageItem `json:"items" validate:"dive"`
}

type Slide struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Content   string `json:"content"`
	Order     int    `json:"order"`
}

type SlideDeck struct {
	Slides []Slide `json:"slides" validate:"dive"`
}

type Reference struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type ReferenceList struct {
	References []Reference `json:"references" validate:"dive"`
}

type Prompts struct {
	Summary string `json:"summary,omitempty"`
	Images  string `json:"images,omitempty"`
	PPT     string `json:"ppt,omitempty"`
	Custom  string `json:"custom,omitempty"`
}

type InputFile struct {
	Filename     string `json:"filename" validate:"required"`
	OriginalName string `json:"originalName,omitempty"`
	MIME         string `json:"mime,omitempty"`
	Size         *int64 `json:"size,omitempty"`
	UploadedAt   string `json:"uploadedAt,omitempty"`
}

type Inputs struct {
	URLs    []string    `json:"urls"`
	Prompts Prompts     `json:"prompts"`
	Files   []InputFile `json:"files" validate:"dive"`
}

type GenerationConfig struct {
	WebSearchEnabled bool   `json:"webSearchEnabled"`
	GeneratePPT      bool   `json:"generatePPT"`
	AutoImages       bool   `json:"autoImages"`
	ImageStyle       string `json:"imageStyle" validate:"oneof=academic flat realistic wireframe"`
	Language         string `json:"language" validate:"oneof=zh en"`
	SummaryLevel     string `json:"summaryLevel" validate:"oneof=chapter global both"`
	QuizCount        int    `json:"quizCount" validate:"gte=0,lte=100"`
}

// DefaultGenerationConfig is the baseline a start request is decoded over, so omitted keys keep these values.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		ImageStyle:   "flat",
		Language:     "zh",
		SummaryLevel: "global",
		QuizCount:    10,
	}
}

var PublishPlatforms = []string{"xiaohongshu", "wechat_mp", "bilibili", "douyin"}

type PublishSection struct {
	Heading string `json:"heading,omitempty"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type PublishImage struct {
	Path string `json:"path" validate:"required"`
	Alt  string `json:"alt,omitempty"`
}

type PublishManifest struct {
	Platform    string           `json:"platform" validate:"oneof=xiaohongshu wechat_mp bilibili douyin"`
	Title       string           `json:"title" validate:"required"`
	Cover       string           `json:"cover,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Sections    []PublishSection `json:"sections,omitempty"`
	Images      []PublishImage   `json:"images,omitempty" validate:"dive"`
	Tags        []string         `json:"tags,omitempty"`
	ScheduledAt string           `json:"scheduledAt,omitempty"`
	POI         string           `json:"poi,omitempty"`
	Status      string           `json:"status,omitempty" validate:"omitempty,oneof=draft ready published"`
}

// ParsedDocument is the text extracted from a project's inputs by the parsing stage.
type ParsedDocument struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

type Chunk struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ChunkIndex is written by the indexing stage and read by every generating stage after it.
type ChunkIndex struct {
	Chunks []Chunk `json:"chunks"`
}

type Step string

const (
	StepIdle     Step = "idle"
	StepParsing  Step = "parsing"
	StepIndexing Step = "indexing"
	StepSummary  Step = "summary"
	StepQuiz     Step = "quiz"
	StepImages   Step = "images"
	StepPPT      Step = "ppt"
	StepComplete Step = "complete"
)

const (
	JobIdle     = "idle"
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

type HistoryEntry struct {
	Step      Step      `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

type JobStatus struct {
	Step      Step           `json:"step"`
	Percent   int            `json:"percent"`
	Status    string         `json:"status"`
	LastError string         `json:"lastError,omitempty"`
	RunID     string         `json:"runId,omitempty"`
	Stages    []Step         `json:"stages,omitempty"`
	History   []HistoryEntry `json:"history"`
}

// Terminal reports whether the job reached complete or error.
func (s JobStatus) Terminal() bool {
	return s.Status == JobComplete || s.Status == JobError
}

// IdleStatus is what a project reports before any start.
func IdleStatus() JobStatus {
	return JobStatus{Step: StepIdle, Percent: 0, Status: JobIdle, History: []HistoryEntry{}}
}
