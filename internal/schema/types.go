package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindAccount  Kind = "account"
	KindSurvey   Kind = "survey"
	KindResponse Kind = "response"
)

type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

var Roles = []Role{RoleOwner, RoleManager, RoleMember}

type QuestionType string

const (
	QuestionMultipleChoiceSingle QuestionType = "multipleChoiceSingle"
	QuestionMultipleChoiceMulti  QuestionType = "multipleChoiceMulti"
	QuestionOpenText             QuestionType = "openText"
	QuestionRating               QuestionType = "rating"
	QuestionNPS                  QuestionType = "nps"
	QuestionCTA                  QuestionType = "cta"
	QuestionConsent              QuestionType = "consent"
)

var QuestionTypes = []QuestionType{
	QuestionMultipleChoiceSingle,
	QuestionMultipleChoiceMulti,
	QuestionOpenText,
	QuestionRating,
	QuestionNPS,
	QuestionCTA,
	QuestionConsent,
}

// HasChoices reports whether answers to this question type pick from a choice list.
func (t QuestionType) HasChoices() bool {
	return t == QuestionMultipleChoiceSingle || t == QuestionMultipleChoiceMulti
}

var SurveyStatuses = []string{"draft", "inProgress", "completed"}

var SurveyTypes = []string{"link", "web", "app"}

// Account is a target-system user. Key is the provisional key assigned at generation time.
type Account struct {
	Key   string `json:"key" yaml:"key"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  Role   `json:"role" yaml:"role"`
}

type Choice struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

type Question struct {
	ID         string       `json:"id" yaml:"id"`
	Type       QuestionType `json:"type" yaml:"type"`
	Headline   string       `json:"headline" yaml:"headline"`
	Subheader  string       `json:"subheader,omitempty" yaml:"subheader,omitempty"`
	Required   bool         `json:"required" yaml:"required"`
	Choices    []Choice     `json:"choices,omitempty" yaml:"choices,omitempty"`
	Scale      string       `json:"scale,omitempty" yaml:"scale,omitempty"`
	Range      int          `json:"range,omitempty" yaml:"range,omitempty"`
	LowerLabel string       `json:"lowerLabel,omitempty" yaml:"lowerLabel,omitempty"`
	UpperLabel string       `json:"upperLabel,omitempty" yaml:"upperLabel,omitempty"`
}

// Survey is owned by the account whose provisional key is OwnerKey.
type Survey struct {
	Key         string     `json:"key" yaml:"key"`
	OwnerKey    string     `json:"ownerKey" yaml:"ownerKey"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      string     `json:"status" yaml:"status"`
	Type        string     `json:"type" yaml:"type"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// Question returns the question with the given id.
func (s *Survey) Question(id string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// Answer values are a string, a number (float64 after decoding) or a list of strings.
type Answer struct {
	QuestionID string `json:"questionId" yaml:"questionId"`
	Value      any    `json:"value" yaml:"value"`
}

// UnmarshalJSON restores list answers as []string so records read back from
// an artifact compare equal to the ones written.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var aux struct {
		QuestionID string `json:"questionId"`
		Value      any    `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, ok := normalizeValue(aux.Value)
	if !ok {
		return fmt.Errorf("answer to %q has unsupported value %v", aux.QuestionID, aux.Value)
	}
	a.QuestionID = aux.QuestionID
	a.Value = v
	return nil
}

type Response struct {
	Key             string    `json:"key" yaml:"key"`
	SurveyKey       string    `json:"surveyKey" yaml:"surveyKey"`
	RespondentEmail string    `json:"respondentEmail,omitempty" yaml:"respondentEmail,omitempty"`
	Finished        bool      `json:"finished" yaml:"finished"`
	SubmittedAt     time.Time `json:"submittedAt" yaml:"submittedAt"`
	Answers         []Answer  `json:"answers" yaml:"answers"`
}

// Batch is one generation run's worth of entities.
type Batch struct {
	Accounts  []Account
	Surveys   []Survey
	Responses []Response
}
