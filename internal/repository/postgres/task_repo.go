package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/pkg/metrics"
	"taskboard/pkg/outbox"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrPersistence, op, err)
}

var _ repository.TransactionalTaskRepository = (*TaskRepository)(nil)

// enqueue writes ev's event into the outbox inside tx. A nil ev is a no-op.
func enqueue(ctx context.Context, tx pgx.Tx, ev repository.EventFunc, t *model.Task) error {
	if ev == nil {
		return nil
	}
	e := ev(t)
	if err := outbox.Enqueue(ctx, tx, e.RoutingKey, e.Payload); err != nil {
		return persistence("enqueue "+e.RoutingKey, err)
	}
	return nil
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	return r.insert(ctx, t, nil)
}

// InsertWithEvent inserts t and its event in one transaction.
func (r *TaskRepository) InsertWithEvent(ctx context.Context, t *model.Task, ev repository.EventFunc) error {
	return r.insert(ctx, t, ev)
}

func (r *TaskRepository) insert(ctx context.Context, t *model.Task, ev repository.EventFunc) error {
	defer metrics.RecordStoreOperation("insert_task", backendName, time.Now())
	r.logger.Debug("Inserting task",
		zap.String("user_id", t.UserID),
		zap.String("status", string(t.Status)),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return persistence("begin insert", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO tasks (user_id, title, date, status, important, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	var id int64
	err = tx.QueryRow(ctx, query,
		t.UserID,
		t.Title,
		t.Date,
		string(t.Status),
		t.Important,
		t.Notes,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to insert task", zap.Error(err), zap.String("user_id", t.UserID))
		return persistence("insert task", err)
	}
	if err := insertChildren(ctx, tx, id, t); err != nil {
		return err
	}
	stored := *t
	stored.ID = id
	if err := enqueue(ctx, tx, ev, &stored); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistence("commit insert", err)
	}

	t.ID = id
	r.logger.Info("Task inserted successfully",
		zap.Int64("task_id", id),
		zap.String("user_id", t.UserID),
	)
	return nil
}

func insertChildren(ctx context.Context, tx pgx.Tx, taskID int64, t *model.Task) error {
	batch := &pgx.Batch{}
	for i, l := range t.Links {
		batch.Queue(`INSERT INTO task_links (task_id, position, id, title, url) VALUES ($1, $2, $3, $4, $5)`,
			taskID, i, l.ID, l.Title, l.URL)
	}
	for i, a := range t.Attachments {
		batch.Queue(`INSERT INTO task_attachments (task_id, position, id, type, name, url) VALUES ($1, $2, $3, $4, $5, $6)`,
			taskID, i, a.ID, string(a.Type), a.Name, a.URL)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return persistence("insert links/attachments", err)
	}
	return nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	defer metrics.RecordStoreOperation("list_tasks", backendName, time.Now())
	r.logger.Debug("Listing tasks for user", zap.String("user_id", userID))
	query := `
        SELECT id, user_id, title, date, status, important, notes, created_at, updated_at
        FROM tasks
        WHERE user_id = $1
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err), zap.String("user_id", userID))
		return nil, persistence("list tasks", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanTasks(rows pgx.Rows) ([]model.Task, error) {
	defer rows.Close()
	tasks := []model.Task{}
	for rows.Next() {
		var (
			t      model.Task
			status string
		)
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Title,
			&t.Date,
			&status,
			&t.Important,
			&t.Notes,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, persistence("scan task", err)
		}
		t.Status = model.Status(status)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("iterate tasks", err)
	}
	return tasks, nil
}

// loadChildren fills links and attachments in two queries for the whole page.
func (r *TaskRepository) loadChildren(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]int64, len(tasks))
	index := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		index[t.ID] = i
	}

	linkRows, err := r.db.Query(ctx,
		`SELECT task_id, id, title, url FROM task_links WHERE task_id = ANY($1) ORDER BY task_id, position`, ids)
	if err != nil {
		return persistence("list links", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var (
			taskID int64
			l      model.Link
		)
		if err := linkRows.Scan(&taskID, &l.ID, &l.Title, &l.URL); err != nil {
			return persistence("scan link", err)
		}
		i := index[taskID]
		tasks[i].Links = append(tasks[i].Links, l)
	}
	if err := linkRows.Err(); err != nil {
		return persistence("iterate links", err)
	}

	attRows, err := r.db.Query(ctx,
		`SELECT task_id, id, type, name, url FROM task_attachments WHERE task_id = ANY($1) ORDER BY task_id, position`, ids)
	if err != nil {
		return persistence("list attachments", err)
	}
	defer attRows.Close()
	for attRows.Next() {
		var (
			taskID int64
			a      model.Attachment
			typ    string
		)
		if err := attRows.Scan(&taskID, &a.ID, &typ, &a.Name, &a.URL); err != nil {
			return persistence("scan attachment", err)
		}
		a.Type = model.AttachmentType(typ)
		i := index[taskID]
		tasks[i].Attachments = append(tasks[i].Attachments, a)
	}
	if err := attRows.Err(); err != nil {
		return persistence("iterate attachments", err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id int64, userID string) (*model.Task, error) {
	defer metrics.RecordStoreOperation("get_task", backendName, time.Now())
	query := `
        SELECT id, user_id, title, date, status, important, notes, created_at, updated_at
        FROM tasks
        WHERE id = $1 AND user_id = $2
    `
	rows, err := r.db.Query(ctx, query, id, userID)
	if err != nil {
		return nil, persistence("get task", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, model.ErrNotFound
	}
	if err := r.loadChildren(ctx, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// Update replaces the row and its children in one transaction.
func (r *TaskRepository) Update(ctx context.Context, t *model.Task) error {
	return r.update(ctx, t, nil)
}

// UpdateWithEvent is Update plus the event in the same transaction.
func (r *TaskRepository) UpdateWithEvent(ctx context.Context, t *model.Task, ev repository.EventFunc) error {
	return r.update(ctx, t, ev)
}

func (r *TaskRepository) update(ctx context.Context, t *model.Task, ev repository.EventFunc) error {
	defer metrics.RecordStoreOperation("update_task", backendName, time.Now())
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return persistence("begin update", err)
	}
	defer tx.Rollback(ctx)

	query := `
        UPDATE tasks
        SET title = $3, date = $4, status = $5, important = $6, notes = $7,
            created_at = $8, updated_at = $9
        WHERE id = $1 AND user_id = $2
    `
	result, err := tx.Exec(ctx, query,
		t.ID, t.UserID, t.Title, t.Date, string(t.Status), t.Important, t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Error(err), zap.Int64("task_id", t.ID))
		return persistence("update task", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM task_links WHERE task_id = $1`, t.ID); err != nil {
		return persistence("replace links", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM task_attachments WHERE task_id = $1`, t.ID); err != nil {
		return persistence("replace attachments", err)
	}
	if err := insertChildren(ctx, tx, t.ID, t); err != nil {
		return err
	}
	if err := enqueue(ctx, tx, ev, t); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistence("commit update", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int64, userID string) error {
	return r.delete(ctx, id, userID, nil)
}

// DeleteWithEvent deletes the task and records its event in one transaction.
func (r *TaskRepository) DeleteWithEvent(ctx context.Context, id int64, userID string, ev repository.EventFunc) error {
	return r.delete(ctx, id, userID, ev)
}

func (r *TaskRepository) delete(ctx context.Context, id int64, userID string, ev repository.EventFunc) error {
	defer metrics.RecordStoreOperation("delete_task", backendName, time.Now())
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return persistence("begin delete", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete task", zap.Error(err), zap.Int64("task_id", id))
		return persistence("delete task", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	if err := enqueue(ctx, tx, ev, &model.Task{ID: id, UserID: userID}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistence("commit delete", err)
	}
	r.logger.Info("Task deleted", zap.Int64("task_id", id), zap.String("user_id", userID))
	return nil
}
