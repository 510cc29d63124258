package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
)

const systemPrompt = `You generate realistic synthetic test data for a survey platform.
Reply with exactly one JSON object and nothing else: no prose, no markdown fences, no comments.
Use only the fields described. Never invent extra keys.`

const accountSchema = `Account object:
  "name":  string, full human name (required)
  "email": string, a valid email address unique to this person (required)
  "role":  one of %s`

const surveySchema = `Survey object:
  "title":       string (required)
  "description": string
  "status":      one of %s
  "type":        one of %s
  "questions":   array of 3 to 6 question objects (required, at least one)

Question object:
  "id":         short unique id within the survey, e.g. "q1" (required)
  "type":       one of %s (required)
  "headline":   the question text (required)
  "subheader":  optional helper text
  "required":   boolean
  "choices":    array of {"id": string, "label": string}; required and non-empty for multipleChoiceSingle and multipleChoiceMulti, omitted otherwise
  "range":      integer 3..10, only for rating (default 5)
  "scale":      "number", "star" or "smiley", only for rating
  "lowerLabel": optional label for the low end of rating and nps
  "upperLabel": optional label for the high end of rating and nps`

const responseSchema = `Response object:
  "finished":    boolean
  "submittedAt": RFC3339 timestamp
  "answers":     array of {"questionId": string, "value": ...} (required, at least one)

Answer values by question type:
  multipleChoiceSingle: one choice id as a string
  multipleChoiceMulti:  array of choice ids
  openText:             free text string
  rating:               integer from 1 to the question's range
  nps:                  integer from 0 to 10
  cta:                  "clicked" or "dismissed"
  consent:              "accepted" or "dismissed"
Every question with "required": true must be answered.`

var exemplarSurvey = schema.Survey{
	Title:       "Quarterly pulse check",
	Description: "A short check-in on how the team is doing.",
	Status:      "inProgress",
	Type:        "link",
	Questions: []schema.Question{
		{ID: "q1", Type: schema.QuestionRating, Headline: "How would you rate this quarter?", Required: true, Range: 5, Scale: "star"},
		{ID: "q2", Type: schema.QuestionMultipleChoiceSingle, Headline: "Which area needs the most attention?", Required: true,
			Choices: []schema.Choice{{ID: "c1", Label: "Tooling"}, {ID: "c2", Label: "Process"}, {ID: "c3", Label: "Communication"}}},
		{ID: "q3", Type: schema.QuestionOpenText, Headline: "Anything else we should know?"},
	},
}

// prompt is one fully built inference request.
type prompt struct {
	system string
	user   string
}

func (p *exemplarPool) accountPrompt() prompt {
	examples := []schema.Account{p.account(), p.account()}
	var b strings.Builder
	fmt.Fprintf(&b, accountSchema, quoted(rolesAsStrings()))
	b.WriteString("\n\nExamples of the expected shape (do not reuse these people):\n")
	for _, ex := range examples {
		b.WriteString(mustJSON(map[string]any{"name": ex.Name, "email": ex.Email, "role": ex.Role}))
		b.WriteString("\n")
	}
	b.WriteString("\nGenerate one new account.")
	return prompt{system: systemPrompt, user: b.String()}
}

func (p *exemplarPool) surveyPrompt() prompt {
	var b strings.Builder
	fmt.Fprintf(&b, surveySchema, quoted(schema.SurveyStatuses), quoted(schema.SurveyTypes), quoted(questionTypesAsStrings()))
	b.WriteString("\n\nExample of the expected shape:\n")
	b.WriteString(mustJSON(surveyPayload(exemplarSurvey)))
	fmt.Fprintf(&b, "\n\nGenerate one new survey about %s. Mix question types.", p.topic())
	return prompt{system: systemPrompt, user: b.String()}
}

func (p *exemplarPool) responsePrompt(s schema.Survey) prompt {
	var b strings.Builder
	b.WriteString(responseSchema)
	b.WriteString("\n\nSurvey being answered:\n")
	b.WriteString(mustJSON(surveyPayload(s)))
	fmt.Fprintf(&b, "\n\nGenerate one response from this respondent: %s.", p.persona())
	b.WriteString(" Use only the question ids and choice ids listed above.")
	return prompt{system: systemPrompt, user: b.String()}
}

// surveyPayload strips generator bookkeeping so the model only sees content fields.
func surveyPayload(s schema.Survey) map[string]any {
	return map[string]any{
		"title":       s.Title,
		"description": s.Description,
		"status":      s.Status,
		"type":        s.Type,
		"questions":   s.Questions,
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("generator: cannot encode prompt exemplar: %v", err))
	}
	return string(data)
}

func quoted(items []string) string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = `"` + s + `"`
	}
	return strings.Join(out, ", ")
}

func rolesAsStrings() []string {
	out := make([]string, len(schema.Roles))
	for i, r := range schema.Roles {
		out[i] = string(r)
	}
	return out
}

func questionTypesAsStrings() []string {
	out := make([]string, len(schema.QuestionTypes))
	for i, t := range schema.QuestionTypes {
		out[i] = string(t)
	}
	return out
}
