package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/stats"
	"taskboard/pkg/metrics"
	"taskboard/pkg/mq"
	"taskboard/pkg/trace"
)

const dateLayout = "2006-01-02"

// Publisher emits domain events. *mq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type View string

const (
	ViewAll       View = "all"
	ViewToday     View = "today"
	ViewImportant View = "important"
	ViewRemaining View = "remaining"
)

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewToday, ViewImportant, ViewRemaining:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown view %q", model.ErrValidation, s)
}

// ParseDay parses a YYYY-MM-DD calendar day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrValidation)
	}
	return d, nil
}

// Filter narrows a listing. On, when set, keeps tasks dated that calendar day.
type Filter struct {
	View View
	On   *time.Time
}

// Input carries the client-supplied fields of a task. Owner and timestamps
// are never taken from the client.
type Input struct {
	ID          int64
	Title       string
	Date        *time.Time
	Status      model.Status
	Important   bool
	Notes       string
	Links       []model.Link
	Attachments []model.Attachment
}

// Summary is the dashboard figures for one user.
type Summary struct {
	Stats  stats.Stats    `json:"stats"`
	Series []stats.Bucket `json:"series"`
}

type Service struct {
	repo      repository.TaskRepository
	publisher Publisher
	logger    *zap.Logger

	// set when events are written to the outbox with the task
	txEvents repository.TransactionalTaskRepository

	now   func() time.Time
	newID func() string
}

// NewService builds the task service. publisher may be nil, in which case no
// events are emitted.
func NewService(repo repository.TaskRepository, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// List returns the caller's tasks in store order.
func (s *Service) List(ctx context.Context, userID string, f Filter) ([]model.Task, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.On != nil && !sameDay(t.Date, *f.On) {
			continue
		}
		switch f.View {
		case ViewToday:
			if !sameDay(t.Date, now) {
				continue
			}
		case ViewImportant:
			if !t.Important {
				continue
			}
		case ViewRemaining:
			if t.Status == model.StatusCompleted {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// build turns client input into a task owned by userID, applying defaults.
func (s *Service) build(in Input, userID string, now time.Time) *model.Task {
	t := &model.Task{
		ID:          in.ID,
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Status:      in.Status,
		Important:   in.Important,
		Notes:       in.Notes,
		Links:       append([]model.Link(nil), in.Links...),
		Attachments: append([]model.Attachment(nil), in.Attachments...),
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = model.StatusNotStarted
	}
	if in.Date != nil {
		t.Date = *in.Date
	} else {
		t.Date = now
	}
	for i := range t.Links {
		if t.Links[i].ID == "" {
			t.Links[i].ID = s.newID()
		}
	}
	for i := range t.Attachments {
		if t.Attachments[i].ID == "" {
			t.Attachments[i].ID = s.newID()
		}
	}
	return t
}

// WithTransactionalEvents makes every task write record its event in the
// same transaction, replacing the after-write publisher.
func (s *Service) WithTransactionalEvents(repo repository.TransactionalTaskRepository) *Service {
	s.repo = repo
	s.txEvents = repo
	return s
}

// Create stores a new task for userID. Any owner in the input is ignored.
func (s *Service) Create(ctx context.Context, userID string, in Input) (task *model.Task, err error) {
	defer func() { metrics.IncrementTaskMutation("create", err) }()

	now := s.now()
	t := s.build(in, userID, now)
	t.ID = 0
	t.CreatedAt = now
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if s.txEvents != nil {
		err = s.txEvents.InsertWithEvent(ctx, t, s.event(ctx, mq.RoutingTaskCreated))
	} else {
		err = s.repo.Insert(ctx, t)
	}
	if err != nil {
		s.logger.Error("Failed to create task", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}

	s.publish(ctx, mq.RoutingTaskCreated, t)
	return t, nil
}

// Update replaces the caller's task in.ID with in. Fields left empty take
// their creation defaults; CreatedAt is preserved.
func (s *Service) Update(ctx context.Context, userID string, in Input) (task *model.Task, err error) {
	defer func() { metrics.IncrementTaskMutation("update", err) }()

	if in.ID <= 0 {
		return nil, fmt.Errorf("%w: task id is required", model.ErrValidation)
	}
	now := s.now()
	t := s.build(in, userID, now)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, in.ID, userID)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = current.CreatedAt
	if err := s.update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(ctx, mq.RoutingTaskUpdated, t)
	return t, nil
}

// ToggleImportant flips the important flag on the caller's task.
func (s *Service) ToggleImportant(ctx context.Context, userID string, id int64) (task *model.Task, err error) {
	defer func() { metrics.IncrementTaskMutation("toggle_important", err) }()

	t, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	t.Important = !t.Important
	t.UpdatedAt = s.now()
	if err := s.update(ctx, t); err != nil {
		return nil, err
	}

	s.publish(ctx, mq.RoutingTaskUpdated, t)
	return t, nil
}

// Delete removes the caller's task together with its links and attachments.
func (s *Service) Delete(ctx context.Context, userID string, id int64) (err error) {
	defer func() { metrics.IncrementTaskMutation("delete", err) }()

	if s.txEvents != nil {
		err = s.txEvents.DeleteWithEvent(ctx, id, userID, s.event(ctx, mq.RoutingTaskDeleted))
	} else {
		err = s.repo.Delete(ctx, id, userID)
	}
	if err != nil {
		return err
	}
	s.publish(ctx, mq.RoutingTaskDeleted, &model.Task{ID: id, UserID: userID})
	return nil
}

// Summarize computes status counts and a completed-per-period series over
// all of the caller's tasks.
func (s *Service) Summarize(ctx context.Context, userID string, g stats.Granularity, windows int) (*Summary, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	series, err := stats.WindowedSeries(tasks, g, windows, s.now())
	if err != nil {
		return nil, err
	}
	return &Summary{Stats: stats.Compute(tasks), Series: series}, nil
}

func (s *Service) update(ctx context.Context, t *model.Task) error {
	if s.txEvents != nil {
		return s.txEvents.UpdateWithEvent(ctx, t, s.event(ctx, mq.RoutingTaskUpdated))
	}
	return s.repo.Update(ctx, t)
}

func (s *Service) payload(ctx context.Context, t *model.Task) mq.TaskEventPayload {
	return mq.TaskEventPayload{
		TaskID:     t.ID,
		UserID:     t.UserID,
		Status:     string(t.Status),
		Important:  t.Important,
		OccurredAt: s.now(),
		TraceID:    trace.FromContext(ctx),
	}
}

func (s *Service) event(ctx context.Context, routingKey string) repository.EventFunc {
	return func(t *model.Task) repository.Event {
		return repository.Event{RoutingKey: routingKey, Payload: s.payload(ctx, t)}
	}
}

// publish never fails the caller; the store write already happened.
// With transactional events the outbox row is already committed.
func (s *Service) publish(ctx context.Context, routingKey string, t *model.Task) {
	if s.publisher == nil || s.txEvents != nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, s.payload(ctx, t)); err != nil {
		s.logger.Warn("Failed to publish task event",
			zap.Error(err),
			zap.String("routing_key", routingKey),
			zap.Int64("task_id", t.ID),
		)
	}
}
