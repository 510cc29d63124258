package seeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/artifact"
	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
	"github.com/Lumos-Labs-HQ/formseed/internal/target"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Seeder loads generated artifacts into the target, parents before children.
// Seeding is not idempotent: running it twice creates every entity twice.
type Seeder struct {
	store     *artifact.Store
	creator   target.Creator
	submitter target.Submitter
	graph     *DependencyGraph
	opts      Options
	logger    *zap.Logger
}

func NewSeeder(store *artifact.Store, creator target.Creator, submitter target.Submitter, opts Options, logger *zap.Logger) *Seeder {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	graph := NewDependencyGraph()
	graph.AddKind(schema.KindAccount)
	graph.AddKind(schema.KindSurvey, schema.KindAccount)
	graph.AddKind(schema.KindResponse, schema.KindSurvey)

	return &Seeder{
		store:     store,
		creator:   creator,
		submitter: submitter,
		graph:     graph,
		opts:      opts,
		logger:    logger,
	}
}

// item is one entity waiting to be sent. parent is the provisional key the
// entity references, empty for roots.
type item struct {
	kind   schema.Kind
	key    string
	parent string
	send   func(ctx context.Context, parentID string) (string, error)
}

// Seed reads the artifacts and sends them tier by tier. Each tier finishes
// completely before the next one starts. The report is returned even when the
// context is cancelled part way, together with the context's error.
func (s *Seeder) Seed(ctx context.Context) (*Report, error) {
	batch, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}

	tiers, err := s.graph.Tiers()
	if err != nil {
		return nil, fmt.Errorf("failed to build seeding order: %w", err)
	}

	report := newReport(s.graph.GetOrder())
	report.StartedAt = time.Now().UTC()
	ids := make(map[string]string, len(batch.Accounts)+len(batch.Surveys))

	s.logger.Info("seeding started",
		zap.Int("accounts", len(batch.Accounts)),
		zap.Int("surveys", len(batch.Surveys)),
		zap.Int("responses", len(batch.Responses)),
		zap.Int("concurrency", s.opts.Concurrency))

	for _, tier := range tiers {
		var items []item
		for _, kind := range tier {
			items = append(items, s.items(kind, batch)...)
		}

		outcomes := s.runTier(ctx, items, ids)

		for _, o := range outcomes {
			if o.Status == StatusCreated {
				ids[o.Key] = o.TargetID
			}
			report.record(o)
		}
		s.logger.Info("tier finished",
			zap.Any("kinds", tier),
			zap.Int("entities", len(items)))
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("seeding finished",
		zap.Any("created", report.Created),
		zap.Any("failed", report.Failed),
		zap.Any("skipped", report.Skipped),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("seeding interrupted: %w", err)
	}
	return report, nil
}

func (s *Seeder) items(kind schema.Kind, b schema.Batch) []item {
	var items []item
	switch kind {
	case schema.KindAccount:
		for _, a := range b.Accounts {
			items = append(items, item{
				kind: kind,
				key:  a.Key,
				send: func(ctx context.Context, _ string) (string, error) {
					return s.creator.CreateAccount(ctx, target.NewAccountPayload(a))
				},
			})
		}
	case schema.KindSurvey:
		for _, sv := range b.Surveys {
			items = append(items, item{
				kind:   kind,
				key:    sv.Key,
				parent: sv.OwnerKey,
				send: func(ctx context.Context, ownerID string) (string, error) {
					return s.creator.CreateSurvey(ctx, target.NewSurveyPayload(sv, ownerID))
				},
			})
		}
	case schema.KindResponse:
		for _, r := range b.Responses {
			items = append(items, item{
				kind:   kind,
				key:    r.Key,
				parent: r.SurveyKey,
				send: func(ctx context.Context, surveyID string) (string, error) {
					return s.submitter.SubmitResponse(ctx, surveyID, target.NewResponsePayload(r, surveyID))
				},
			})
		}
	}
	return items
}

// runTier sends a tier's items on a bounded pool. Items whose parent has no
// target ID are skipped without a call, cancelled or not. Once ctx is
// cancelled no new call starts; calls already started run to completion.
func (s *Seeder) runTier(ctx context.Context, items []item, ids map[string]string) []Outcome {
	outcomes := make([]Outcome, len(items))

	var eg errgroup.Group
	eg.SetLimit(s.opts.Concurrency)
	for i, it := range items {
		parentID := ""
		if it.parent != "" {
			id, ok := ids[it.parent]
			if !ok {
				outcomes[i] = skipped(it, ReasonUnresolvedReference, fmt.Sprintf("referenced entity %s was not created", it.parent))
				s.logger.Debug("entity skipped",
					zap.String("kind", string(it.kind)),
					zap.String("key", it.key),
					zap.String("parent", it.parent))
				continue
			}
			parentID = id
		}

		if ctx.Err() != nil {
			outcomes[i] = skipped(it, ReasonCancelled, "seeding was cancelled before this entity was sent")
			continue
		}

		eg.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = skipped(it, ReasonCancelled, "seeding was cancelled before this entity was sent")
				return nil
			}
			outcomes[i] = s.send(ctx, it, parentID)
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

// send performs one entity's calls, retrying transient failures with
// exponential backoff. The calls themselves ignore cancellation of ctx and are
// bounded by the HTTP client timeout; ctx only stops further retries.
func (s *Seeder) send(ctx context.Context, it item, parentID string) Outcome {
	out := Outcome{Kind: it.kind, Key: it.key}
	callCtx := context.WithoutCancel(ctx)
	log := s.logger.With(zap.String("kind", string(it.kind)), zap.String("key", it.key))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff

	var lastErr error
	id, err := backoff.Retry(ctx, func() (string, error) {
		if out.Attempts > 0 && ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		out.Attempts++
		id, err := it.send(callCtx, parentID)
		if err != nil {
			lastErr = err
			if !target.IsTransient(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return id, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Debug("retrying after transient failure", zap.Error(err), zap.Duration("wait", wait))
		}),
	)

	if err == nil {
		out.Status = StatusCreated
		out.TargetID = id
		log.Debug("entity created", zap.String("target_id", id), zap.Int("attempts", out.Attempts))
		return out
	}

	if out.Attempts == 0 {
		return skipped(it, ReasonCancelled, "seeding was cancelled before this entity was sent")
	}
	if lastErr == nil {
		lastErr = err
	}
	out.Status = StatusFailed
	out.Detail = lastErr.Error()
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		out.Reason = ReasonCancelled
	case target.IsTransient(lastErr):
		out.Reason = ReasonExhausted
	default:
		out.Reason = ReasonRejected
	}
	var terr *target.Error
	if errors.As(lastErr, &terr) {
		out.HTTPStatus = terr.Status
		out.Body = terr.Body
	}
	log.Warn("entity failed",
		zap.String("reason", out.Reason),
		zap.Int("status", out.HTTPStatus),
		zap.Int("attempts", out.Attempts),
		zap.Error(lastErr))
	return out
}

func skipped(it item, reason, detail string) Outcome {
	return Outcome{Kind: it.kind, Key: it.key, Status: StatusSkipped, Reason: reason, Detail: detail}
}
