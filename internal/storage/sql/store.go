package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
//
// 每个所有者一行 tracker_states，加上按 position 排序的 tracked_emails 行。
type Store struct {
	db         *gorm.DB
	driverName string // "mysql" or "postgres"
}

// trackerRow 所有者级别的元数据
type trackerRow struct {
	Owner       string     `gorm:"primaryKey;type:varchar(255)"`
	NextSweepAt *time.Time `gorm:"index"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false"` // 由状态提交时间决定
}

func (trackerRow) TableName() string { return "tracker_states" }

// emailRow 单条跟踪邮件，Position 保持创建顺序
type emailRow struct {
	Owner    string `gorm:"type:varchar(255);index:idx_owner_position,priority:1;not null"`
	Position int    `gorm:"index:idx_owner_position,priority:2;not null"`
	domain.TrackedEmail
}

func (emailRow) TableName() string { return "tracked_emails" }

// NewStore 创建SQL数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	var dialector gorm.Dialector
	switch driverName {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres", "postgresql":
		driverName = "postgres"
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	store, err := NewStoreWithDialector(dialector)
	if err != nil {
		return nil, err
	}
	store.driverName = driverName

	// 设置连接池参数
	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return store, nil
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	return openStore(dialector, true)
}

func openStore(dialector gorm.Dialector, autoMigrate bool) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db, driverName: dialector.Name()}

	if !autoMigrate {
		return store, nil
	}

	// 自动执行数据库迁移
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate 执行数据库迁移（使用GORM AutoMigrate）
func (s *Store) migrate() error {
	return s.db.AutoMigrate(&trackerRow{}, &emailRow{})
}

// LoadState 读取所有者状态，邮件按 position 升序
func (s *Store) LoadState(ctx context.Context, owner string) (*domain.TrackerState, error) {
	db := s.db.WithContext(ctx)

	var tracker trackerRow
	if err := db.Where("owner = ?", owner).First(&tracker).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load tracker state: %w", err)
	}

	var rows []emailRow
	if err := db.Where("owner = ?", owner).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load tracked emails: %w", err)
	}

	return fromRows(tracker, rows), nil
}

// SaveState 在单个事务内整体替换所有者的邮件集合
func (s *Store) SaveState(ctx context.Context, owner string, state *domain.TrackerState) error {
	tracker, rows := toRows(owner, state)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&tracker).Error; err != nil {
			return err
		}
		if err := tx.Where("owner = ?", owner).Delete(&emailRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save tracker state: %w", err)
	}
	return nil
}

// ListOwners 返回所有已持久化的所有者
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.WithContext(ctx).Model(&trackerRow{}).Order("owner ASC").Pluck("owner", &owners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("database connection unavailable: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// DriverName 返回当前数据库类型
func (s *Store) DriverName() string {
	return s.driverName
}

func toRows(owner string, state *domain.TrackerState) (trackerRow, []emailRow) {
	tracker := trackerRow{
		Owner:       owner,
		NextSweepAt: state.NextSweepAt,
		UpdatedAt:   state.UpdatedAt,
	}
	rows := make([]emailRow, len(state.Emails))
	for i, email := range state.Emails {
		rows[i] = emailRow{Owner: owner, Position: i, TrackedEmail: email.Clone()}
	}
	return tracker, rows
}

func fromRows(tracker trackerRow, rows []emailRow) *domain.TrackerState {
	state := domain.NewTrackerState()
	state.NextSweepAt = tracker.NextSweepAt
	state.UpdatedAt = tracker.UpdatedAt
	for _, row := range rows {
		email := row.TrackedEmail
		email.SentAt = email.SentAt.UTC()
		state.Emails = append(state.Emails, email)
	}
	return state
}
