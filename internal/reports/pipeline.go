package reports

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/civic-reports/internal/fraud"
	"github.com/richxcame/civic-reports/internal/verification"
	"github.com/richxcame/civic-reports/pkg/eventbus"
	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/uber/h3-go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultSideEffectTimeout bounds each notification, reward and publish call.
	DefaultSideEffectTimeout = 15 * time.Second

	geoCellResolution = 9
	eventSource       = "reports-service"
)

// Verifier classifies submitted media. It never fails; failures come back
// as a fail-closed result.
type Verifier interface {
	Verify(ctx context.Context, image []byte, mimeType, category string) verification.Result
}

// Records is the report record store.
type Records interface {
	Insert(ctx context.Context, report *Report) (*Report, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
}

// Notifier tells a submitter about the outcome of their report.
type Notifier interface {
	Send(ctx context.Context, contact string, reportID uuid.UUID, status string) (string, error)
}

// RewardHook awards reputation for a stored report.
type RewardHook interface {
	Reward(ctx context.Context, userID, reportID uuid.UUID, status string) error
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Pipeline turns submissions into stored, verified reports.
type Pipeline struct {
	verifier Verifier
	media    MediaStore
	records  Records
	policy   Policy

	notifier Notifier
	rewards  RewardHook
	events   EventPublisher

	maxMediaBytes     int
	sideEffectTimeout time.Duration
	now               func() time.Time
	evidenceFrom      func(media []byte) *fraud.Point

	wg sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier sends a confirmation to submitters that left a contact.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRewardHook awards reputation to identified submitters.
func WithRewardHook(h RewardHook) Option {
	return func(p *Pipeline) { p.rewards = h }
}

// WithEventPublisher publishes a report.submitted event per stored report.
func WithEventPublisher(e EventPublisher) Option {
	return func(p *Pipeline) { p.events = e }
}

// WithMaxMediaBytes overrides DefaultMaxMediaBytes.
func WithMaxMediaBytes(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxMediaBytes = n
		}
	}
}

// WithSideEffectTimeout overrides DefaultSideEffectTimeout.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.sideEffectTimeout = d
		}
	}
}

// NewPipeline creates a report pipeline.
func NewPipeline(verifier Verifier, media MediaStore, records Records, policy Policy, opts ...Option) *Pipeline {
	p := &Pipeline{
		verifier:          verifier,
		media:             media,
		records:           records,
		policy:            policy,
		maxMediaBytes:     DefaultMaxMediaBytes,
		sideEffectTimeout: DefaultSideEffectTimeout,
		now:               time.Now,
		evidenceFrom:      fraud.EvidenceFromImage,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit validates, scores, stores and persists a submission. Once the
// report is persisted it is returned; notification, reward and event
// publication run afterwards and never fail the submission.
func (p *Pipeline) Submit(ctx context.Context, sub *Submission) (*Report, error) {
	ctx, span := otel.Tracer("reports").Start(ctx, "reports.Submit")
	defer span.End()

	in, err := validateSubmission(sub, p.maxMediaBytes)
	if err != nil {
		submissionsTotal.WithLabelValues("invalid_input").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("report.category", in.category))

	log := logger.WithContext(ctx).With(zap.String("category", in.category))

	verdict, fraudScore := p.score(ctx, sub, in)
	fraudScores.Observe(fraudScore)
	if verdict.Failed() {
		log.Warn("content verification failed closed", zap.String("reason", verdict.Error))
	}

	started := time.Now()
	mediaURL, err := p.media.Upload(ctx, sub.Media, sub.MediaType)
	stageDuration.WithLabelValues("upload").Observe(time.Since(started).Seconds())
	if err != nil {
		submissionsTotal.WithLabelValues("storage_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "media upload failed")
		log.Error("media upload failed", zap.Error(err))
		return nil, &StorageError{Err: err}
	}

	status := p.policy.Resolve(verdict, fraudScore)

	report := &Report{
		ID:               uuid.New(),
		SubmitterID:      sub.SubmitterID,
		Category:         in.category,
		Description:      sub.Description,
		Location:         in.location,
		GeoCell:          geoCell(in.location),
		Status:           status,
		Severity:         verdict.Severity,
		MediaURLs:        []string{mediaURL},
		Confidence:       verdict.Confidence,
		FraudScore:       fraudScore,
		VerificationNote: verdict.Description,
		SubmittedAt:      sub.SubmittedAt,
	}
	if report.SubmittedAt.IsZero() {
		report.SubmittedAt = p.now().UTC()
	}

	started = time.Now()
	saved, err := p.records.Insert(ctx, report)
	stageDuration.WithLabelValues("persist").Observe(time.Since(started).Seconds())
	if err != nil {
		submissionsTotal.WithLabelValues("persistence_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		log.Error("failed to persist report", zap.String("report_id", report.ID.String()), zap.Error(err))
		p.discardMedia(ctx, mediaURL)
		return nil, &PersistenceError{Op: "insert report", Err: err}
	}

	submissionsTotal.WithLabelValues(string(saved.Status)).Inc()
	span.SetAttributes(
		attribute.String("report.id", saved.ID.String()),
		attribute.String("report.status", string(saved.Status)),
		attribute.Float64("report.fraud_score", saved.FraudScore),
	)
	log.Info("report accepted",
		zap.String("report_id", saved.ID.String()),
		zap.String("status", string(saved.Status)),
		zap.Float64("fraud_score", saved.FraudScore),
		zap.Float64("confidence", saved.Confidence),
	)

	p.afterCommit(ctx, saved, in.contact)
	return saved, nil
}

// Get returns a stored report.
func (p *Pipeline) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	report, err := p.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Wait blocks until all in-flight side effects have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// score runs verification and fraud scoring concurrently and joins both.
func (p *Pipeline) score(ctx context.Context, sub *Submission, in validated) (verification.Result, float64) {
	var (
		verdict    verification.Result
		fraudScore float64
	)

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		verdict = p.verifier.Verify(gctx, sub.Media, sub.MediaType, in.category)
		return nil
	})
	g.Go(func() error {
		fraudScore = fraud.Score(in.location.Point(), p.evidence(gctx, sub.Media))
		return nil
	})
	_ = g.Wait()
	stageDuration.WithLabelValues("scoring").Observe(time.Since(started).Seconds())

	return verdict, fraudScore
}

// evidence reads the position recorded in the media itself. A panicking
// extractor counts as no evidence.
func (p *Pipeline) evidence(ctx context.Context, media []byte) (point *fraud.Point) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithContext(ctx).Warn("evidence extraction panicked", zap.Any("panic", r))
			point = nil
		}
	}()
	return p.evidenceFrom(media)
}

func (p *Pipeline) discardMedia(ctx context.Context, ref string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.sideEffectTimeout)
	defer cancel()
	if err := p.media.Delete(ctx, ref); err != nil {
		logger.WithContext(ctx).Warn("failed to discard orphaned media", zap.String("ref", ref), zap.Error(err))
	}
}

// afterCommit starts the post-persistence side effects. They are detached
// from the caller's cancellation: the report is already durable.
func (p *Pipeline) afterCommit(ctx context.Context, report *Report, contact string) {
	detached := context.WithoutCancel(ctx)

	if contact != "" && p.notifier != nil {
		p.spawn(detached, "notify", report, func(ctx context.Context) error {
			deliveryID, err := p.notifier.Send(ctx, contact, report.ID, string(report.Status))
			if err != nil {
				return err
			}
			logger.WithContext(ctx).Info("submitter notified",
				zap.String("report_id", report.ID.String()), zap.String("delivery_id", deliveryID))
			return nil
		})
	}

	if report.SubmitterID != nil && p.rewards != nil {
		userID := *report.SubmitterID
		p.spawn(detached, "reward", report, func(ctx context.Context) error {
			return p.rewards.Reward(ctx, userID, report.ID, string(report.Status))
		})
	}

	if p.events != nil {
		p.spawn(detached, "publish", report, func(ctx context.Context) error {
			event, err := eventbus.NewEvent(eventbus.TypeReportSubmitted, eventSource, submittedData(report))
			if err != nil {
				return err
			}
			return p.events.Publish(ctx, eventbus.SubjectReportSubmitted, event)
		})
	}
}

func (p *Pipeline) spawn(ctx context.Context, effect string, report *Report, fn func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, p.sideEffectTimeout)
		defer cancel()

		log := logger.WithContext(ctx).With(
			zap.String("side_effect", effect),
			zap.String("report_id", report.ID.String()),
		)

		defer func() {
			if r := recover(); r != nil {
				sideEffectFailures.WithLabelValues(effect).Inc()
				log.Error("side effect panicked", zap.Any("panic", r))
			}
		}()

		if err := fn(ctx); err != nil {
			sideEffectFailures.WithLabelValues(effect).Inc()
			log.Warn("side effect failed", zap.Error(err))
		}
	}()
}

func submittedData(r *Report) eventbus.ReportSubmittedData {
	return eventbus.ReportSubmittedData{
		ReportID:    r.ID,
		SubmitterID: r.SubmitterID,
		Category:    r.Category,
		Status:      string(r.Status),
		Severity:    r.Severity,
		Confidence:  r.Confidence,
		FraudScore:  r.FraudScore,
		GeoCell:     r.GeoCell,
		CreatedAt:   r.CreatedAt,
	}
}

func geoCell(loc Location) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(loc.Latitude, loc.Longitude), geoCellResolution)
	if err != nil {
		return ""
	}
	return cell.String()
}
