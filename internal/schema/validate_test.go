package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestValidateAccount(t *testing.T) {
	t.Run("well formed with extra fields", func(t *testing.T) {
		acc, err := ValidateAccount(decode(t, `{"name":"Ada Lovelace","email":"ada@acme.io","role":"Manager","department":"R&D"}`))
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", acc.Name)
		assert.Equal(t, "ada@acme.io", acc.Email)
		assert.Equal(t, RoleManager, acc.Role)
	})

	t.Run("role defaults to member", func(t *testing.T) {
		acc, err := ValidateAccount(decode(t, `{"name":"Bo","email":"bo@acme.io"}`))
		require.NoError(t, err)
		assert.Equal(t, RoleMember, acc.Role)
	})

	cases := map[string]struct {
		raw   string
		field string
	}{
		"missing name":  {`{"email":"x@acme.io"}`, "name"},
		"empty name":    {`{"name":"  ","email":"x@acme.io"}`, "name"},
		"bad email":     {`{"name":"X","email":"not-an-email"}`, "email"},
		"email type":    {`{"name":"X","email":42}`, "email"},
		"unknown role":  {`{"name":"X","email":"x@acme.io","role":"admin"}`, "role"},
		"not an object": {`["x"]`, "(record)"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateAccount(decode(t, tc.raw))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, KindAccount, verr.Kind)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

const surveyJSON = `{
  "title": "Onboarding feedback",
  "description": "How was your first week?",
  "questions": [
    {"id":"q1","type":"rating","headline":"How satisfied are you?","range":"5","lowerLabel":"Not at all","upperLabel":"Very"},
    {"id":"q2","type":"multipleChoiceSingle","headline":"Team?","choices":[{"id":"c1","label":"Sales"},{"id":"c2","label":"Support"}]},
    {"id":"q3","type":"multipleChoiceMulti","headline":"Tools?","choices":[{"id":"t1","label":"Slack"},{"id":"t2","label":"Jira"}]},
    {"id":"q4","type":"nps","headline":"Recommend us?"},
    {"id":"q5","type":"OPENTEXT","headline":"Anything else?","required":false}
  ]
}`

func TestValidateSurvey(t *testing.T) {
	s, err := ValidateSurvey(decode(t, surveyJSON))
	require.NoError(t, err)

	assert.Equal(t, "inProgress", s.Status)
	assert.Equal(t, "link", s.Type)
	require.Len(t, s.Questions, 5)
	assert.Equal(t, 5, s.Questions[0].Range)
	assert.Equal(t, "number", s.Questions[0].Scale)
	assert.Len(t, s.Questions[1].Choices, 2)
	assert.Equal(t, 10, s.Questions[3].Range)
	assert.Equal(t, QuestionOpenText, s.Questions[4].Type)
	assert.False(t, s.Questions[4].Required)
	assert.True(t, s.Questions[0].Required)
}

func TestValidateSurveyRejects(t *testing.T) {
	cases := map[string]struct {
		raw   string
		field string
	}{
		"no questions":      {`{"title":"T","questions":[]}`, "questions"},
		"unknown type":      {`{"title":"T","questions":[{"id":"q1","type":"slider","headline":"H"}]}`, "questions[0].type"},
		"choices missing":   {`{"title":"T","questions":[{"id":"q1","type":"multipleChoiceSingle","headline":"H"}]}`, "questions[0].choices"},
		"choices empty":     {`{"title":"T","questions":[{"id":"q1","type":"multipleChoiceMulti","headline":"H","choices":[]}]}`, "questions[0].choices"},
		"choice label":      {`{"title":"T","questions":[{"id":"q1","type":"multipleChoiceMulti","headline":"H","choices":[{"id":"a"}]}]}`, "questions[0].choices[0].label"},
		"duplicate ids":     {`{"title":"T","questions":[{"id":"q1","type":"openText","headline":"H"},{"id":"q1","type":"openText","headline":"H2"}]}`, "questions[1].id"},
		"rating range":      {`{"title":"T","questions":[{"id":"q1","type":"rating","headline":"H","range":42}]}`, "questions[0].range"},
		"nps range":         {`{"title":"T","questions":[{"id":"q1","type":"nps","headline":"H","range":5}]}`, "questions[0].range"},
		"bad status":        {`{"title":"T","status":"archived","questions":[{"id":"q1","type":"openText","headline":"H"}]}`, "status"},
		"missing title":     {`{"questions":[{"id":"q1","type":"openText","headline":"H"}]}`, "title"},
		"required not bool": {`{"title":"T","questions":[{"id":"q1","type":"openText","headline":"H","required":"maybe"}]}`, "questions[0].required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateSurvey(decode(t, tc.raw))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, verr.Field)
			assert.NotEmpty(t, verr.Error())
		})
	}
}

func TestValidateResponse(t *testing.T) {
	survey, err := ValidateSurvey(decode(t, surveyJSON))
	require.NoError(t, err)

	t.Run("normalizes labels and numbers", func(t *testing.T) {
		r, err := ValidateResponse(decode(t, `{
			"submittedAt":"2026-03-01T10:00:00Z",
			"answers":[
				{"questionId":"q1","value":4},
				{"questionId":"q2","value":"support"},
				{"questionId":"q3","value":["t1","Jira"]},
				{"questionId":"q4","value":"9"}
			]}`), &survey)
		require.NoError(t, err)
		assert.True(t, r.Finished)
		assert.Equal(t, 2026, r.SubmittedAt.Year())
		require.Len(t, r.Answers, 4)
		assert.Equal(t, 4.0, r.Answers[0].Value)
		assert.Equal(t, "c2", r.Answers[1].Value)
		assert.Equal(t, []string{"t1", "t2"}, r.Answers[2].Value)
		assert.Equal(t, 9.0, r.Answers[3].Value)
	})

	cases := map[string]string{
		"unknown question":  `{"answers":[{"questionId":"zz","value":"x"}]}`,
		"rating too high":   `{"answers":[{"questionId":"q1","value":6},{"questionId":"q2","value":"c1"},{"questionId":"q3","value":["t1"]},{"questionId":"q4","value":3}]}`,
		"unknown choice":    `{"answers":[{"questionId":"q1","value":2},{"questionId":"q2","value":"Marketing"},{"questionId":"q3","value":["t1"]},{"questionId":"q4","value":3}]}`,
		"required missing":  `{"answers":[{"questionId":"q1","value":2}]}`,
		"answered twice":    `{"answers":[{"questionId":"q1","value":2},{"questionId":"q1","value":3}]}`,
		"no answers":        `{"answers":[]}`,
		"bad timestamp":     `{"submittedAt":"yesterday","answers":[{"questionId":"q1","value":2}]}`,
		"object value":      `{"answers":[{"questionId":"q1","value":{"score":2}}]}`,
		"fractional rating": `{"answers":[{"questionId":"q1","value":2.5},{"questionId":"q2","value":"c1"},{"questionId":"q3","value":["t1"]},{"questionId":"q4","value":3}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateResponse(decode(t, raw), &survey)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, KindResponse, verr.Kind)
		})
	}
}

func TestValidateDispatch(t *testing.T) {
	rec, err := Validate(decode(t, `{"name":"A","email":"a@b.co"}`), KindAccount)
	require.NoError(t, err)
	assert.IsType(t, Account{}, rec)

	_, err = Validate(decode(t, `{}`), Kind("widget"))
	assert.Error(t, err)
}

func TestCheckReferences(t *testing.T) {
	b := Batch{
		Accounts: []Account{{Key: "a1"}, {Key: "a2"}},
		Surveys: []Survey{
			{Key: "s1", OwnerKey: "a1"},
			{Key: "s2", OwnerKey: "ghost"},
			{Key: "s3", OwnerKey: "a2"},
		},
		Responses: []Response{
			{Key: "r1", SurveyKey: "s1"},
			{Key: "r2", SurveyKey: "s2"},
			{Key: "r3", SurveyKey: "s3"},
			{Key: "r4", SurveyKey: "nope"},
		},
	}

	out, errs := CheckReferences(b)

	require.Len(t, out.Surveys, 2)
	require.Len(t, out.Responses, 2)
	require.Len(t, errs, 3)

	dropped := map[string]string{}
	for _, e := range errs {
		dropped[e.Key] = e.Field
	}
	assert.Equal(t, map[string]string{"s2": "ownerKey", "r2": "surveyKey", "r4": "surveyKey"}, dropped)

	owners := map[string]bool{}
	for _, a := range out.Accounts {
		owners[a.Key] = true
	}
	for _, s := range out.Surveys {
		assert.True(t, owners[s.OwnerKey], "survey %s has dangling owner", s.Key)
	}
}

func TestAnswerJSONRoundTrip(t *testing.T) {
	in := []Answer{
		{QuestionID: "q1", Value: 3.0},
		{QuestionID: "q2", Value: "c1"},
		{QuestionID: "q3", Value: []string{"a", "b"}},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Answer
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
