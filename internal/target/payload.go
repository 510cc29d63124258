package target

import (
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
)

type AccountPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type Card struct {
	Enabled   bool   `json:"enabled"`
	Headline  string `json:"headline,omitempty"`
	Subheader string `json:"subheader,omitempty"`
}

type SurveyPayload struct {
	EnvironmentID string            `json:"environmentId,omitempty"`
	CreatedBy     string            `json:"createdBy,omitempty"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Status        string            `json:"status"`
	Questions     []schema.Question `json:"questions"`
	WelcomeCard   Card              `json:"welcomeCard"`
	ThankYouCard  Card              `json:"thankYouCard"`
}

type ResponsePayload struct {
	SurveyID  string         `json:"surveyId"`
	Finished  bool           `json:"finished"`
	Data      map[string]any `json:"data"`
	CreatedAt string         `json:"createdAt,omitempty"`
}

func NewAccountPayload(a schema.Account) AccountPayload {
	return AccountPayload{Email: a.Email, Name: a.Name, Role: string(a.Role)}
}

// NewSurveyPayload maps a survey onto the management API shape. ownerID is
// the target-side ID of the survey's owner.
func NewSurveyPayload(s schema.Survey, ownerID string) SurveyPayload {
	return SurveyPayload{
		CreatedBy: ownerID,
		Name:      s.Title,
		Type:      s.Type,
		Status:    s.Status,
		Questions: s.Questions,
		WelcomeCard: Card{
			Enabled:   s.Description != "",
			Headline:  s.Title,
			Subheader: s.Description,
		},
		ThankYouCard: Card{
			Enabled:   true,
			Headline:  "Thank you!",
			Subheader: "We appreciate your feedback.",
		},
	}
}

// NewResponsePayload keys answers by question id, as the client API expects.
func NewResponsePayload(r schema.Response, surveyID string) ResponsePayload {
	data := make(map[string]any, len(r.Answers))
	for _, a := range r.Answers {
		data[a.QuestionID] = a.Value
	}
	p := ResponsePayload{SurveyID: surveyID, Finished: r.Finished, Data: data}
	if !r.SubmittedAt.IsZero() {
		p.CreatedAt = r.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return p
}
