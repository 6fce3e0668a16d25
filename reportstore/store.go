package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/pitchsim/config"
	"github.com/BaSui01/pitchsim/types"
)

// ErrNotFound 按 session 查询不到报告
var ErrNotFound = errors.New("report not found")

// Recorder 存储操作耗时指标回调。internal/metrics.Collector 实现该接口。
type Recorder interface {
	RecordReportStoreOp(operation string, duration time.Duration)
}

// reportRecord 数据库行。摘要列用于过滤,Payload 保存完整 JSON 报告。
type reportRecord struct {
	ID              uint   `gorm:"primaryKey"`
	SessionID       string `gorm:"uniqueIndex;size:64;not null"`
	Persona         string `gorm:"index;size:32;not null"`
	FinalStatus     string `gorm:"index;size:32;not null"`
	FinalSalesState string `gorm:"size:32"`
	TotalTurns      int
	AverageScore    float64
	Payload         []byte
	CreatedAt       time.Time
}

func (reportRecord) TableName() string { return "simulation_reports" }

// ListFilter 列表查询条件。零值字段不参与过滤。
type ListFilter struct {
	Persona string
	Status  types.RunStatus
	Limit   int
	Offset  int
}

// Store gorm 持久化实现
type Store struct {
	db       *gorm.DB
	logger   *zap.Logger
	recorder Recorder
}

// Open 按配置建立数据库连接。
// 支持 postgres / mysql / sqlite(纯 Go 驱动,适合本地与测试)。
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if logger != nil {
		logger.Info("database connected", zap.String("driver", cfg.Driver))
	}
	return db, nil
}

// StoreOption 存储可选配置
type StoreOption func(*Store)

// WithRecorder 接入指标采集
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) { s.recorder = r }
}

// New 构造存储并迁移表结构
func New(db *gorm.DB, logger *zap.Logger, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&reportRecord{}); err != nil {
		return nil, fmt.Errorf("migrate report schema: %w", err)
	}
	s := &Store{db: db, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save 写入一份报告。同一 session 重复保存会更新原记录。
func (s *Store) Save(ctx context.Context, report *types.SimulationReport) error {
	if report == nil || report.SessionID == "" {
		return fmt.Errorf("report with session id is required")
	}
	defer s.observe("save", time.Now())

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	record := reportRecord{
		SessionID:       report.SessionID,
		Persona:         report.CustomerPersonality,
		FinalStatus:     string(report.FinalStatus),
		FinalSalesState: string(report.FinalSalesState),
		TotalTurns:      report.TotalTurns,
		AverageScore:    report.AverageScore,
		Payload:         payload,
	}

	err = s.db.WithContext(ctx).
		Where("session_id = ?", report.SessionID).
		Assign(map[string]any{
			"persona":           record.Persona,
			"final_status":      record.FinalStatus,
			"final_sales_state": record.FinalSalesState,
			"total_turns":       record.TotalTurns,
			"average_score":     record.AverageScore,
			"payload":           record.Payload,
		}).
		FirstOrCreate(&reportRecord{}, reportRecord{SessionID: report.SessionID}).Error
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.SessionID, err)
	}
	return nil
}

// Get 按 session 取回完整报告
func (s *Store) Get(ctx context.Context, sessionID string) (*types.SimulationReport, error) {
	defer s.observe("get", time.Now())

	var record reportRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", sessionID, err)
	}

	var report types.SimulationReport
	if err := json.Unmarshal(record.Payload, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", sessionID, err)
	}
	return &report, nil
}

// List 按条件列出报告,新记录在前
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*types.SimulationReport, error) {
	defer s.observe("list", time.Now())

	q := s.db.WithContext(ctx).Model(&reportRecord{}).Order("created_at DESC, id DESC")
	if filter.Persona != "" {
		q = q.Where("persona = ?", filter.Persona)
	}
	if filter.Status != "" {
		q = q.Where("final_status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var records []reportRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	reports := make([]*types.SimulationReport, 0, len(records))
	for _, rec := range records {
		var report types.SimulationReport
		if err := json.Unmarshal(rec.Payload, &report); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", rec.SessionID, err)
		}
		reports = append(reports, &report)
	}
	return reports, nil
}

// Delete 删除一份报告;不存在时返回 ErrNotFound
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	defer s.observe("delete", time.Now())

	res := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&reportRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete report %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

func (s *Store) observe(operation string, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordReportStoreOp(operation, time.Since(start))
	}
}
