package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/artifact"
	"github.com/Lumos-Labs-HQ/formseed/internal/llm"
	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrGenerationUnavailable is returned when the first inference call of a run
// fails. Nothing is written in that case.
var ErrGenerationUnavailable = errors.New("generation backend unavailable")

// Counts is what a run is asked to produce.
type Counts struct {
	Accounts           int `json:"accounts" yaml:"accounts"`
	Surveys            int `json:"surveys" yaml:"surveys"`
	ResponsesPerSurvey int `json:"responsesPerSurvey" yaml:"responsesPerSurvey"`
}

// Tally counts records per kind.
type Tally struct {
	Accounts  int `json:"accounts" yaml:"accounts"`
	Surveys   int `json:"surveys" yaml:"surveys"`
	Responses int `json:"responses" yaml:"responses"`
}

func (t *Tally) add(kind schema.Kind, n int) {
	switch kind {
	case schema.KindAccount:
		t.Accounts += n
	case schema.KindSurvey:
		t.Surveys += n
	case schema.KindResponse:
		t.Responses += n
	}
}

// Rejection records why the index-th requested record of a kind was dropped.
type Rejection struct {
	Kind   schema.Kind `json:"kind" yaml:"kind"`
	Index  int         `json:"index" yaml:"index"`
	Reason string      `json:"reason" yaml:"reason"`
}

type Result struct {
	Requested  Tally        `json:"requested" yaml:"requested"`
	Accepted   Tally        `json:"accepted" yaml:"accepted"`
	Rejected   Tally        `json:"rejected" yaml:"rejected"`
	Repaired   int          `json:"repaired" yaml:"repaired"`
	Rejections []Rejection  `json:"rejections" yaml:"rejections"`
	Batch      schema.Batch `json:"-" yaml:"-"`
}

type Options struct {
	Concurrency int
	MaxRepairs  int
	// RandomSeed fixes the exemplar rotation. Zero picks a time-based seed.
	RandomSeed int64
	Now        func() time.Time
}

type Generator struct {
	client llm.Client
	store  *artifact.Store
	opts   Options
	logger *zap.Logger
}

func New(client llm.Client, store *artifact.Store, opts Options, logger *zap.Logger) *Generator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxRepairs < 0 {
		opts.MaxRepairs = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, store: store, opts: opts, logger: logger}
}

// Generate produces a batch, validates it and persists all three collections.
// Individual bad records are rejected with a reason; the run only fails when
// the backend is unreachable, the context ends, or the artifacts cannot be written.
func (g *Generator) Generate(ctx context.Context, counts Counts) (*Result, error) {
	if counts.Accounts < 0 || counts.Surveys < 0 || counts.ResponsesPerSurvey < 0 {
		return nil, fmt.Errorf("counts cannot be negative: %+v", counts)
	}

	r := &run{
		g:    g,
		pool: newExemplarPool(g.opts.RandomSeed),
		now:  g.opts.Now(),
		result: &Result{
			Requested: Tally{
				Accounts:  counts.Accounts,
				Surveys:   counts.Surveys,
				Responses: counts.Surveys * counts.ResponsesPerSurvey,
			},
		},
	}

	g.logger.Info("generation started",
		zap.String("backend", g.client.Name()),
		zap.Int("accounts", counts.Accounts),
		zap.Int("surveys", counts.Surveys),
		zap.Int("responses_per_survey", counts.ResponsesPerSurvey))

	accounts, err := r.accounts(ctx, counts.Accounts)
	if err != nil {
		return nil, err
	}
	surveys, surveyIdx, err := r.surveys(ctx, counts.Surveys, accounts)
	if err != nil {
		return nil, err
	}
	responses, err := r.responses(ctx, surveys, surveyIdx, counts.Surveys, counts.ResponsesPerSurvey, accounts)
	if err != nil {
		return nil, err
	}

	batch, refErrs := schema.CheckReferences(schema.Batch{Accounts: accounts, Surveys: surveys, Responses: responses})
	for _, e := range refErrs {
		r.result.Accepted.add(e.Kind, -1)
		r.reject(e.Kind, r.indexOf[e.Key], e.Error())
	}

	if err := g.store.WriteAll(batch); err != nil {
		return nil, fmt.Errorf("failed to write artifacts: %w", err)
	}

	r.result.Batch = batch
	g.logger.Info("generation finished",
		zap.Int("accounts", r.result.Accepted.Accounts),
		zap.Int("surveys", r.result.Accepted.Surveys),
		zap.Int("responses", r.result.Accepted.Responses),
		zap.Int("rejected", len(r.result.Rejections)),
		zap.String("dir", g.store.Dir()))
	return r.result, nil
}

// run holds the state of one Generate call.
type run struct {
	g       *Generator
	pool    *exemplarPool
	now     time.Time
	probed  bool
	result  *Result
	indexOf map[string]int
}

type task struct {
	index  int
	prompt prompt
	// marker is a field every record of the kind carries; used to unwrap
	// records the model nested inside another object.
	marker   string
	validate func(raw any) (any, error)
}

type outcome struct {
	record   any
	repaired bool
	reason   string
}

func (r *run) reject(kind schema.Kind, index int, reason string) {
	r.result.Rejected.add(kind, 1)
	r.result.Rejections = append(r.result.Rejections, Rejection{Kind: kind, Index: index, Reason: reason})
	r.g.logger.Warn("record rejected",
		zap.String("kind", string(kind)),
		zap.Int("index", index),
		zap.String("reason", reason))
}

// keyed assigns a fresh provisional key and remembers the requested index it came from.
func (r *run) keyed(index int) string {
	if r.indexOf == nil {
		r.indexOf = make(map[string]int)
	}
	key := uuid.NewString()
	r.indexOf[key] = index
	return key
}

func (r *run) accounts(ctx context.Context, n int) ([]schema.Account, error) {
	tasks := make([]task, n)
	for i := range tasks {
		tasks[i] = task{
			index:  i,
			prompt: r.pool.accountPrompt(),
			marker: "email",
			validate: func(raw any) (any, error) {
				return schema.ValidateAccount(raw)
			},
		}
	}

	outcomes, err := r.runTier(ctx, schema.KindAccount, tasks)
	if err != nil {
		return nil, err
	}

	var accounts []schema.Account
	seen := make(map[string]bool, n)
	for i, out := range outcomes {
		if out.reason != "" {
			r.reject(schema.KindAccount, i, out.reason)
			continue
		}
		acc := out.record.(schema.Account)
		if seen[acc.Email] {
			r.reject(schema.KindAccount, i, fmt.Sprintf("account.email: duplicate email within batch (got %q)", acc.Email))
			continue
		}
		seen[acc.Email] = true
		acc.Key = r.keyed(i)
		accounts = append(accounts, acc)
		r.result.Accepted.Accounts++
	}
	return accounts, nil
}

// surveys returns the accepted surveys and, parallel to them, the requested
// index each one came from.
func (r *run) surveys(ctx context.Context, n int, owners []schema.Account) ([]schema.Survey, []int, error) {
	if n > 0 && len(owners) == 0 {
		for i := 0; i < n; i++ {
			r.reject(schema.KindSurvey, i, "survey.ownerKey: no accepted account to own the survey")
		}
		return nil, nil, nil
	}

	tasks := make([]task, n)
	for i := range tasks {
		tasks[i] = task{
			index:  i,
			prompt: r.pool.surveyPrompt(),
			marker: "questions",
			validate: func(raw any) (any, error) {
				return schema.ValidateSurvey(raw)
			},
		}
	}

	outcomes, err := r.runTier(ctx, schema.KindSurvey, tasks)
	if err != nil {
		return nil, nil, err
	}

	var surveys []schema.Survey
	var indexes []int
	for i, out := range outcomes {
		if out.reason != "" {
			r.reject(schema.KindSurvey, i, out.reason)
			continue
		}
		s := out.record.(schema.Survey)
		s.Key = r.keyed(i)
		s.OwnerKey = owners[len(surveys)%len(owners)].Key
		surveys = append(surveys, s)
		indexes = append(indexes, i)
		r.result.Accepted.Surveys++
	}
	return surveys, indexes, nil
}

func (r *run) responses(ctx context.Context, surveys []schema.Survey, surveyIdx []int, requested, perSurvey int, respondents []schema.Account) ([]schema.Response, error) {
	if perSurvey == 0 {
		return nil, nil
	}

	accepted := make(map[int]bool, len(surveyIdx))
	for _, i := range surveyIdx {
		accepted[i] = true
	}
	for i := 0; i < requested; i++ {
		if accepted[i] {
			continue
		}
		for j := 0; j < perSurvey; j++ {
			r.reject(schema.KindResponse, i*perSurvey+j, fmt.Sprintf("response.surveyKey: survey %d was not accepted", i))
		}
	}

	type meta struct {
		survey      *schema.Survey
		submittedAt time.Time
		respondent  string
	}
	var tasks []task
	var metas []meta
	for si := range surveys {
		s := &surveys[si]
		for j := 0; j < perSurvey; j++ {
			m := meta{survey: s, submittedAt: r.pool.timestamp(r.now)}
			if len(respondents) > 0 {
				m.respondent = respondents[len(metas)%len(respondents)].Email
			}
			metas = append(metas, m)
			tasks = append(tasks, task{
				index:  surveyIdx[si]*perSurvey + j,
				prompt: r.pool.responsePrompt(*s),
				marker: "answers",
				validate: func(raw any) (any, error) {
					return schema.ValidateResponse(raw, s)
				},
			})
		}
	}

	outcomes, err := r.runTier(ctx, schema.KindResponse, tasks)
	if err != nil {
		return nil, err
	}

	var responses []schema.Response
	for i, out := range outcomes {
		if out.reason != "" {
			r.reject(schema.KindResponse, tasks[i].index, out.reason)
			continue
		}
		resp := out.record.(schema.Response)
		resp.Key = r.keyed(tasks[i].index)
		resp.SurveyKey = metas[i].survey.Key
		if resp.SubmittedAt.IsZero() {
			resp.SubmittedAt = metas[i].submittedAt
		}
		if resp.RespondentEmail == "" {
			resp.RespondentEmail = metas[i].respondent
		}
		responses = append(responses, resp)
		r.result.Accepted.Responses++
	}
	return responses, nil
}

// runTier executes tasks on a bounded worker pool and returns one outcome per
// task, in task order. The first inference call of a run is issued alone so an
// unreachable backend fails the run before any other work starts.
func (r *run) runTier(ctx context.Context, kind schema.Kind, tasks []task) ([]outcome, error) {
	outcomes := make([]outcome, len(tasks))
	if len(tasks) == 0 {
		return outcomes, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generation of %ss interrupted: %w", kind, err)
	}

	start := 0
	if !r.probed {
		r.probed = true
		out, err := r.produce(ctx, tasks[0], true)
		if err != nil {
			return nil, err
		}
		outcomes[0] = out
		start = 1
	}

	var eg errgroup.Group
	eg.SetLimit(r.g.opts.Concurrency)
	for i := start; i < len(tasks); i++ {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			outcomes[i], _ = r.produce(ctx, tasks[i], false)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generation of %ss interrupted: %w", kind, err)
	}

	for _, out := range outcomes {
		if out.repaired {
			r.result.Repaired++
		}
	}
	return outcomes, nil
}

// produce asks the backend for one record and validates it. Backend errors
// are only returned for the probe call; otherwise they become a reject reason.
func (r *run) produce(ctx context.Context, t task, probe bool) (outcome, error) {
	log := r.g.logger.With(zap.Int("index", t.index))

	text, err := r.g.client.Complete(ctx, t.prompt.system, t.prompt.user)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		if probe {
			return outcome{}, fmt.Errorf("%w: %s: %v", ErrGenerationUnavailable, r.g.client.Name(), err)
		}
		return outcome{reason: "inference failed: " + err.Error()}, nil
	}

	budget := r.g.opts.MaxRepairs
	raw, used, err := decodeOutput(text, budget)
	if err != nil && used < budget {
		used++
		log.Debug("retrying prompt after unparseable output", zap.Error(err))
		text, cerr := r.g.client.Complete(ctx, t.prompt.system, t.prompt.user)
		if cerr != nil {
			return outcome{reason: "inference failed on retry: " + cerr.Error()}, nil
		}
		var n int
		raw, n, err = decodeOutput(text, budget-used)
		used += n
	}
	if err != nil {
		return outcome{reason: "unparseable output: " + truncate(err.Error(), 120)}, nil
	}

	record, err := t.validate(unwrapRecord(raw, t.marker))
	if err != nil {
		return outcome{reason: err.Error(), repaired: used > 0}, nil
	}
	if used > 0 {
		log.Debug("record repaired", zap.Int("repairs", used))
	}
	return outcome{record: record, repaired: used > 0}, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
