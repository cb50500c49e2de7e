// Package model holds the records exchanged between the cache, the remote API
// and the sync engine, together with the failure taxonomy shared by all of them.
package model

import "time"

type GoalType string

const (
	GoalLanguage GoalType = "language"
	GoalIndustry GoalType = "industry"
)

func (g GoalType) Valid() bool {
	return g == GoalLanguage || g == GoalIndustry
}

type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

type QuizType string

const (
	QuizMCQ       QuizType = "mcq"
	QuizFillBlank QuizType = "fill_blank"
	QuizSituation QuizType = "situation"
)

func (q QuizType) Valid() bool {
	switch q {
	case QuizMCQ, QuizFillBlank, QuizSituation:
		return true
	}
	return false
}

// ContentRecord is the content of one day for one owner.
// (OwnerID, Date) identifies it in the cache.
type ContentRecord struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"user_id"`
	Date           Date      `json:"date"`
	Word           string    `json:"word"`
	Meaning        string    `json:"meaning"`
	ExamplesTarget []string  `json:"examples_target"`
	ExamplesBase   []string  `json:"examples_base,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	// CachedAt is stamped by the cache on insertion and drives eviction.
	CachedAt time.Time `json:"-"`
}

// ProfileRecord is the learning profile of an owner. One per owner.
type ProfileRecord struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"user_id"`
	GoalType       GoalType  `json:"goal_type"`
	TargetLang     *string   `json:"target_lang,omitempty"`
	BaseLang       *string   `json:"base_lang,omitempty"`
	Level          Level     `json:"level"`
	IndustrySector *string   `json:"industry_sector,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProfileUpdate is the body of a profile upsert.
type ProfileUpdate struct {
	GoalType       GoalType `json:"goal_type"`
	TargetLang     *string  `json:"target_lang,omitempty"`
	BaseLang       *string  `json:"base_lang,omitempty"`
	Level          Level    `json:"level"`
	IndustrySector *string  `json:"industry_sector,omitempty"`
}

type PlanItem struct {
	Date        Date     `json:"date"`
	ContentIDs  []string `json:"content_ids"`
	IsReviewDay bool     `json:"is_review_day"`
}

// WeeklyPlan is the study plan for the week starting at WeekStart.
type WeeklyPlan struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"user_id"`
	WeekStart Date       `json:"week_start"`
	Items     []PlanItem `json:"plan"`
	CreatedAt time.Time  `json:"created_at"`
}

type QuizSubmission struct {
	ContentID  string   `json:"content_id"`
	QuizType   QuizType `json:"quiz_type"`
	UserAnswer string   `json:"user_answer"`
}

type QuizLog struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"user_id"`
	ContentID     string    `json:"content_id"`
	QuizType      QuizType  `json:"quiz_type"`
	Question      string    `json:"question"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer string    `json:"correct_answer"`
	UserAnswer    string    `json:"user_answer"`
	IsCorrect     bool      `json:"is_correct"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryPage is one page of the remote content history.
type HistoryPage struct {
	Content []ContentRecord `json:"content"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}
