package schema

import (
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// Validate checks one decoded record (the result of json.Unmarshal into any)
// against the shape for kind and returns the typed record. Unknown fields are
// dropped. Responses are only checked for shape here; use ValidateResponse to
// also check the answers against their survey.
func Validate(raw any, kind Kind) (any, error) {
	switch kind {
	case KindAccount:
		return ValidateAccount(raw)
	case KindSurvey:
		return ValidateSurvey(raw)
	case KindResponse:
		return ValidateResponse(raw, nil)
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

func ValidateAccount(raw any) (Account, error) {
	obj, err := asObject(KindAccount, "", raw)
	if err != nil {
		return Account{}, err
	}

	var acc Account
	if acc.Name, err = obj.str("name", true); err != nil {
		return Account{}, err
	}
	if acc.Email, err = obj.email("email", true); err != nil {
		return Account{}, err
	}

	role, err := obj.str("role", false)
	if err != nil {
		return Account{}, err
	}
	if role == "" {
		acc.Role = RoleMember
	} else {
		acc.Role = Role(strings.ToLower(role))
		if !oneOf(string(acc.Role), rolesAsStrings()) {
			return Account{}, invalid(KindAccount, "role", role, "must be one of %s", strings.Join(rolesAsStrings(), ", "))
		}
	}
	return acc, nil
}

func ValidateSurvey(raw any) (Survey, error) {
	obj, err := asObject(KindSurvey, "", raw)
	if err != nil {
		return Survey{}, err
	}

	var s Survey
	if s.Title, err = obj.str("title", true); err != nil {
		return Survey{}, err
	}
	if s.Description, err = obj.str("description", false); err != nil {
		return Survey{}, err
	}
	if s.Status, err = obj.enum("status", "inProgress", SurveyStatuses); err != nil {
		return Survey{}, err
	}
	if s.Type, err = obj.enum("type", "link", SurveyTypes); err != nil {
		return Survey{}, err
	}

	items, err := obj.list("questions", true)
	if err != nil {
		return Survey{}, err
	}
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		q, err := validateQuestion(item, fmt.Sprintf("questions[%d]", i))
		if err != nil {
			return Survey{}, err
		}
		if seen[q.ID] {
			return Survey{}, invalid(KindSurvey, fmt.Sprintf("questions[%d].id", i), q.ID, "duplicate question id")
		}
		seen[q.ID] = true
		s.Questions = append(s.Questions, q)
	}
	return s, nil
}

func validateQuestion(raw any, field string) (Question, error) {
	obj, err := asObject(KindSurvey, field, raw)
	if err != nil {
		return Question{}, err
	}

	var q Question
	if q.ID, err = obj.str("id", true); err != nil {
		return Question{}, err
	}
	typ, err := obj.str("type", true)
	if err != nil {
		return Question{}, err
	}
	q.Type, err = lookupQuestionType(typ)
	if err != nil {
		return Question{}, invalid(KindSurvey, obj.path("type"), typ, "%s", err.Error())
	}
	if q.Headline, err = obj.str("headline", true); err != nil {
		return Question{}, err
	}
	if q.Subheader, err = obj.str("subheader", false); err != nil {
		return Question{}, err
	}
	if q.Required, err = obj.boolean("required", true); err != nil {
		return Question{}, err
	}

	switch q.Type {
	case QuestionMultipleChoiceSingle, QuestionMultipleChoiceMulti:
		items, err := obj.list("choices", true)
		if err != nil {
			return Question{}, err
		}
		ids := make(map[string]bool, len(items))
		for i, item := range items {
			cobj, err := asObject(KindSurvey, obj.path(fmt.Sprintf("choices[%d]", i)), item)
			if err != nil {
				return Question{}, err
			}
			var c Choice
			if c.ID, err = cobj.str("id", true); err != nil {
				return Question{}, err
			}
			if c.Label, err = cobj.str("label", true); err != nil {
				return Question{}, err
			}
			if ids[c.ID] {
				return Question{}, invalid(KindSurvey, cobj.path("id"), c.ID, "duplicate choice id")
			}
			ids[c.ID] = true
			q.Choices = append(q.Choices, c)
		}

	case QuestionRating:
		n, ok, err := obj.integer("range")
		if err != nil {
			return Question{}, err
		}
		if !ok {
			n = 5
		}
		if n < 3 || n > 10 {
			return Question{}, invalid(KindSurvey, obj.path("range"), n, "must be between 3 and 10")
		}
		q.Range = n
		if q.Scale, err = obj.enum("scale", "number", []string{"number", "smiley", "star"}); err != nil {
			return Question{}, err
		}

	case QuestionNPS:
		n, ok, err := obj.integer("range")
		if err != nil {
			return Question{}, err
		}
		if ok && n != 10 {
			return Question{}, invalid(KindSurvey, obj.path("range"), n, "nps range is always 10")
		}
		q.Range = 10
	}

	if q.Type == QuestionRating || q.Type == QuestionNPS {
		if q.LowerLabel, err = obj.str("lowerLabel", false); err != nil {
			return Question{}, err
		}
		if q.UpperLabel, err = obj.str("upperLabel", false); err != nil {
			return Question{}, err
		}
	}
	return q, nil
}

// ValidateResponse checks a response's shape and, when survey is non-nil,
// its answers against the survey's questions.
func ValidateResponse(raw any, survey *Survey) (Response, error) {
	obj, err := asObject(KindResponse, "", raw)
	if err != nil {
		return Response{}, err
	}

	var r Response
	if r.RespondentEmail, err = obj.email("respondentEmail", false); err != nil {
		return Response{}, err
	}
	if r.Finished, err = obj.boolean("finished", true); err != nil {
		return Response{}, err
	}
	if r.SubmittedAt, err = obj.timestamp("submittedAt"); err != nil {
		return Response{}, err
	}

	items, err := obj.list("answers", true)
	if err != nil {
		return Response{}, err
	}
	for i, item := range items {
		aobj, err := asObject(KindResponse, fmt.Sprintf("answers[%d]", i), item)
		if err != nil {
			return Response{}, err
		}
		var a Answer
		if a.QuestionID, err = aobj.str("questionId", true); err != nil {
			return Response{}, err
		}
		v, ok := aobj.m["value"]
		if !ok || v == nil {
			return Response{}, invalid(KindResponse, aobj.path("value"), nil, "is required")
		}
		if a.Value, ok = normalizeValue(v); !ok {
			return Response{}, invalid(KindResponse, aobj.path("value"), v, "expected a string, number or list of strings")
		}
		r.Answers = append(r.Answers, a)
	}

	if survey != nil {
		if r.Answers, err = ValidateAnswers(survey, r.Answers); err != nil {
			return Response{}, err
		}
	}
	return r, nil
}

// ValidateAnswers checks answers against the survey's questions and returns
// them normalized: choice labels are mapped to choice ids and numeric answers
// are checked against the question's range.
func ValidateAnswers(survey *Survey, answers []Answer) ([]Answer, error) {
	out := make([]Answer, 0, len(answers))
	answered := make(map[string]bool, len(answers))

	for i, a := range answers {
		field := fmt.Sprintf("answers[%d]", i)
		q, ok := survey.Question(a.QuestionID)
		if !ok {
			return nil, invalid(KindResponse, field+".questionId", a.QuestionID, "no such question in survey")
		}
		if answered[a.QuestionID] {
			return nil, invalid(KindResponse, field+".questionId", a.QuestionID, "question answered twice")
		}
		answered[a.QuestionID] = true

		v, err := checkAnswer(q, a.Value, field+".value")
		if err != nil {
			return nil, err
		}
		out = append(out, Answer{QuestionID: a.QuestionID, Value: v})
	}

	for _, q := range survey.Questions {
		if q.Required && !answered[q.ID] {
			return nil, invalid(KindResponse, "answers", nil, "required question %q not answered", q.ID)
		}
	}
	return out, nil
}

func checkAnswer(q *Question, value any, field string) (any, error) {
	switch q.Type {
	case QuestionMultipleChoiceSingle:
		s, ok := value.(string)
		if !ok {
			return nil, invalid(KindResponse, field, value, "expected a single choice id")
		}
		id, ok := matchChoice(q, s)
		if !ok {
			return nil, invalid(KindResponse, field, value, "not a choice of question %q", q.ID)
		}
		return id, nil

	case QuestionMultipleChoiceMulti:
		var picked []string
		switch v := value.(type) {
		case string:
			picked = []string{v}
		case []string:
			picked = v
		default:
			return nil, invalid(KindResponse, field, value, "expected a list of choice ids")
		}
		if len(picked) == 0 {
			return nil, invalid(KindResponse, field, value, "at least one choice must be picked")
		}
		ids := make([]string, 0, len(picked))
		for _, p := range picked {
			id, ok := matchChoice(q, p)
			if !ok {
				return nil, invalid(KindResponse, field, value, "%q is not a choice of question %q", p, q.ID)
			}
			ids = append(ids, id)
		}
		return ids, nil

	case QuestionRating, QuestionNPS:
		n, ok := value.(float64)
		if !ok {
			if s, isStr := value.(string); isStr {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				n, ok = f, err == nil
			}
		}
		if !ok || n != math.Trunc(n) {
			return nil, invalid(KindResponse, field, value, "expected an integer score")
		}
		low := 1.0
		if q.Type == QuestionNPS {
			low = 0
		}
		if n < low || n > float64(q.Range) {
			return nil, invalid(KindResponse, field, value, "score must be between %d and %d", int(low), q.Range)
		}
		return n, nil

	default:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, invalid(KindResponse, field, value, "expected non-empty text")
		}
		return strings.TrimSpace(s), nil
	}
}

func matchChoice(q *Question, s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range q.Choices {
		if c.ID == s {
			return c.ID, true
		}
	}
	for _, c := range q.Choices {
		if strings.EqualFold(c.Label, s) {
			return c.ID, true
		}
	}
	return "", false
}

// CheckReferences drops surveys whose owner is not an account of the batch and
// responses whose survey is not a (kept) survey of the batch. Every dropped
// record is reported with its provisional key.
func CheckReferences(b Batch) (Batch, []*ValidationError) {
	var errs []*ValidationError
	out := Batch{Accounts: b.Accounts}

	accounts := make(map[string]bool, len(b.Accounts))
	for _, a := range b.Accounts {
		accounts[a.Key] = true
	}

	surveys := make(map[string]bool, len(b.Surveys))
	for _, s := range b.Surveys {
		if !accounts[s.OwnerKey] {
			e := invalid(KindSurvey, "ownerKey", s.OwnerKey, "owner is not an account of this batch")
			e.Key = s.Key
			errs = append(errs, e)
			continue
		}
		if surveys[s.Key] {
			e := invalid(KindSurvey, "key", s.Key, "duplicate provisional key")
			e.Key = s.Key
			errs = append(errs, e)
			continue
		}
		surveys[s.Key] = true
		out.Surveys = append(out.Surveys, s)
	}

	for _, r := range b.Responses {
		if !surveys[r.SurveyKey] {
			e := invalid(KindResponse, "surveyKey", r.SurveyKey, "survey is not part of this batch")
			e.Key = r.Key
			errs = append(errs, e)
			continue
		}
		out.Responses = append(out.Responses, r)
	}
	return out, errs
}

// normalizeValue accepts the answer value shapes that survive a JSON round trip.
func normalizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case string, float64:
		return val, true
	case int:
		return float64(val), true
	case bool:
		return strconv.FormatBool(val), true
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func lookupQuestionType(s string) (QuestionType, error) {
	for _, t := range QuestionTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	names := make([]string, len(QuestionTypes))
	for i, t := range QuestionTypes {
		names[i] = string(t)
	}
	return "", fmt.Errorf("must be one of %s", strings.Join(names, ", "))
}

func rolesAsStrings() []string {
	out := make([]string, len(Roles))
	for i, r := range Roles {
		out[i] = string(r)
	}
	return out
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

type object struct {
	kind   Kind
	prefix string
	m      map[string]any
}

func asObject(kind Kind, field string, raw any) (object, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		name := field
		if name == "" {
			name = "(record)"
		}
		return object{}, invalid(kind, name, raw, "expected an object")
	}
	return object{kind: kind, prefix: field, m: m}, nil
}

func (o object) path(name string) string {
	if o.prefix == "" {
		return name
	}
	return o.prefix + "." + name
}

func (o object) str(name string, required bool) (string, error) {
	v, ok := o.m[name]
	if !ok || v == nil {
		if required {
			return "", invalid(o.kind, o.path(name), nil, "is required")
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(o.kind, o.path(name), v, "expected a string")
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", invalid(o.kind, o.path(name), v, "must not be empty")
	}
	return s, nil
}

func (o object) email(name string, required bool) (string, error) {
	s, err := o.str(name, required)
	if err != nil || s == "" {
		return s, err
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@"):], ".") {
		return "", invalid(o.kind, o.path(name), s, "not a valid email address")
	}
	return strings.ToLower(s), nil
}

func (o object) enum(name, def string, allowed []string) (string, error) {
	s, err := o.str(name, false)
	if err != nil {
		return "", err
	}
	if s == "" {
		return def, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, s) {
			return a, nil
		}
	}
	return "", invalid(o.kind, o.path(name), s, "must be one of %s", strings.Join(allowed, ", "))
}

func (o object) boolean(name string, def bool) (bool, error) {
	v, ok := o.m[name]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err == nil {
			return parsed, nil
		}
	}
	return false, invalid(o.kind, o.path(name), v, "expected a boolean")
}

func (o object) integer(name string) (int, bool, error) {
	v, ok := o.m[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			return int(n), true, nil
		}
	case int:
		return n, true, nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err == nil {
			return parsed, true, nil
		}
	}
	return 0, false, invalid(o.kind, o.path(name), v, "expected an integer")
}

func (o object) list(name string, required bool) ([]any, error) {
	v, ok := o.m[name]
	if !ok || v == nil {
		if required {
			return nil, invalid(o.kind, o.path(name), nil, "is required")
		}
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, invalid(o.kind, o.path(name), v, "expected a list")
	}
	if required && len(items) == 0 {
		return nil, invalid(o.kind, o.path(name), v, "must not be empty")
	}
	return items, nil
}

func (o object) timestamp(name string) (time.Time, error) {
	s, err := o.str(name, false)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid(o.kind, o.path(name), s, "expected an RFC3339 timestamp")
}
