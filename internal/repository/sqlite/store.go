package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/pkg/metrics"
)

const backendName = "sqlite"

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type taskRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"index;not null"`
	Title       string `gorm:"not null"`
	Date        time.Time
	Status      string
	Important   bool `gorm:"default:false"`
	Notes       string
	Links       []linkRow       `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Attachments []attachmentRow `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (taskRow) TableName() string { return "tasks" }

type linkRow struct {
	PK       uint  `gorm:"primaryKey"`
	TaskID   int64 `gorm:"index"`
	Position int
	RefID    string
	Title    string
	URL      string
}

func (linkRow) TableName() string { return "task_links" }

type attachmentRow struct {
	PK       uint  `gorm:"primaryKey"`
	TaskID   int64 `gorm:"index"`
	Position int
	RefID    string
	Type     string
	Name     string
	URL      string
}

func (attachmentRow) TableName() string { return "task_attachments" }

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// Open opens a SQLite database and runs migrations.
func Open(dsn string, zlog *zap.Logger) (*Store, error) {
	if dsn == "" {
		dsn = "taskboard.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(withForeignKeys(dsn)), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer; a single connection queues writers instead of
	// failing them with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &taskRow{}, &linkRow{}, &attachmentRow{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	zlog.Info("SQLite store ready", zap.String("dsn", dsn))
	return &Store{db: db, logger: zlog}, nil
}

// withForeignKeys turns on cascade deletes, which SQLite leaves off per connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *Store) Users() repository.UserRepository { return &userRepo{db: s.db} }
func (s *Store) Tasks() repository.TaskRepository { return &taskRepo{db: s.db} }
func (s *Store) Backend() string                  { return backendName }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrPersistence, op, err)
}

type userRepo struct {
	db *gorm.DB
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	defer metrics.RecordStoreOperation("create_user", backendName, time.Now())
	row := userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateEmail
		}
		return persistence("create user", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint")
}

func (r *userRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, persistence("find user", err)
	}
	return &model.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer metrics.RecordStoreOperation("find_user", backendName, time.Now())
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	defer metrics.RecordStoreOperation("find_user", backendName, time.Now())
	return r.findOne(ctx, "id = ?", id)
}

func (r *userRepo) CountUsers(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&userRow{}).Count(&n).Error; err != nil {
		return 0, persistence("count users", err)
	}
	return int(n), nil
}

type taskRepo struct {
	db *gorm.DB
}

func toRow(t *model.Task) taskRow {
	row := taskRow{
		ID:        t.ID,
		UserID:    t.UserID,
		Title:     t.Title,
		Date:      t.Date,
		Status:    string(t.Status),
		Important: t.Important,
		Notes:     t.Notes,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for i, l := range t.Links {
		row.Links = append(row.Links, linkRow{TaskID: t.ID, Position: i, RefID: l.ID, Title: l.Title, URL: l.URL})
	}
	for i, a := range t.Attachments {
		row.Attachments = append(row.Attachments, attachmentRow{
			TaskID: t.ID, Position: i, RefID: a.ID, Type: string(a.Type), Name: a.Name, URL: a.URL,
		})
	}
	return row
}

func (row taskRow) toModel() model.Task {
	t := model.Task{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Date:      row.Date,
		Status:    model.Status(row.Status),
		Important: row.Important,
		Notes:     row.Notes,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, l := range row.Links {
		t.Links = append(t.Links, model.Link{ID: l.RefID, Title: l.Title, URL: l.URL})
	}
	for _, a := range row.Attachments {
		t.Attachments = append(t.Attachments, model.Attachment{
			ID: a.RefID, Type: model.AttachmentType(a.Type), Name: a.Name, URL: a.URL,
		})
	}
	return t
}

func (r *taskRepo) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

func (r *taskRepo) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	defer metrics.RecordStoreOperation("list_tasks", backendName, time.Now())
	var rows []taskRow
	if err := r.withChildren(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, persistence("list tasks", err)
	}
	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toModel())
	}
	return tasks, nil
}

func (r *taskRepo) Insert(ctx context.Context, t *model.Task) error {
	defer metrics.RecordStoreOperation("insert_task", backendName, time.Now())
	row := toRow(t)
	row.ID = 0
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistence("insert task", err)
	}
	t.ID = row.ID
	return nil
}

func (r *taskRepo) Get(ctx context.Context, id int64, userID string) (*model.Task, error) {
	defer metrics.RecordStoreOperation("get_task", backendName, time.Now())
	var row taskRow
	err := r.withChildren(ctx).Where("user_id = ? AND id = ?", userID, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, persistence("get task", err)
	}
	t := row.toModel()
	return &t, nil
}

func (r *taskRepo) Update(ctx context.Context, t *model.Task) error {
	defer metrics.RecordStoreOperation("update_task", backendName, time.Now())
	row := toRow(t)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&taskRow{}).
			Where("user_id = ? AND id = ?", t.UserID, t.ID).
			Updates(map[string]any{
				"title":      row.Title,
				"date":       row.Date,
				"status":     row.Status,
				"important":  row.Important,
				"notes":      row.Notes,
				"created_at": row.CreatedAt,
				"updated_at": row.UpdatedAt,
			})
		if res.Error != nil {
			return persistence("update task", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		if err := tx.Where("task_id = ?", t.ID).Delete(&linkRow{}).Error; err != nil {
			return persistence("replace links", err)
		}
		if err := tx.Where("task_id = ?", t.ID).Delete(&attachmentRow{}).Error; err != nil {
			return persistence("replace attachments", err)
		}
		if len(row.Links) > 0 {
			if err := tx.Create(&row.Links).Error; err != nil {
				return persistence("replace links", err)
			}
		}
		if len(row.Attachments) > 0 {
			if err := tx.Create(&row.Attachments).Error; err != nil {
				return persistence("replace attachments", err)
			}
		}
		return nil
	})
}

func (r *taskRepo) Delete(ctx context.Context, id int64, userID string) error {
	defer metrics.RecordStoreOperation("delete_task", backendName, time.Now())
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, id).Delete(&taskRow{})
		if res.Error != nil {
			return persistence("delete task", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		// explicit cleanup in case foreign keys are disabled on this connection
		if err := tx.Where("task_id = ?", id).Delete(&linkRow{}).Error; err != nil {
			return persistence("delete links", err)
		}
		if err := tx.Where("task_id = ?", id).Delete(&attachmentRow{}).Error; err != nil {
			return persistence("delete attachments", err)
		}
		return nil
	})
}
