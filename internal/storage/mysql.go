package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/storage/models"
	"talent-rank-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("talent-rank-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// ErrRecordNotFound 属于正常业务路径，不作为错误上报
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordErrorWithInfo(span, db.Error, tracing.ErrorTypeDB,
					attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())))
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.JobPosting{},
		&models.CandidateProfile{},
		&models.MatchScoreCache{},
		&models.GroundTruth{},
		&models.BenchmarkResult{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetJobPostingByID 通过 JobID 获取岗位记录
func (m *MySQL) GetJobPostingByID(ctx context.Context, jobID string) (*models.JobPosting, error) {
	var job models.JobPosting
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListActiveCandidateProfiles 返回状态为ACTIVE的候选人画像，供预打分阶段遍历
func (m *MySQL) ListActiveCandidateProfiles(ctx context.Context) ([]models.CandidateProfile, error) {
	var profiles []models.CandidateProfile
	if err := m.db.WithContext(ctx).Where("status = ?", "ACTIVE").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("查询候选人画像失败: %w", err)
	}
	return profiles, nil
}

// GetCandidateProfilesByIDs 按ID批量获取候选人画像
func (m *MySQL) GetCandidateProfilesByIDs(ctx context.Context, candidateIDs []string) ([]models.CandidateProfile, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	var profiles []models.CandidateProfile
	if err := m.db.WithContext(ctx).Where("candidate_id IN ?", candidateIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("批量查询候选人画像失败: %w", err)
	}
	return profiles, nil
}

// GetScoreCacheEntries 批量获取某岗位下若干候选人的分数缓存，按候选人ID索引
func (m *MySQL) GetScoreCacheEntries(ctx context.Context, jobID string, candidateIDs []string) (map[string]*models.MatchScoreCache, error) {
	result := make(map[string]*models.MatchScoreCache, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return result, nil
	}

	var entries []models.MatchScoreCache
	err := m.db.WithContext(ctx).
		Where("job_id = ? AND candidate_id IN ?", jobID, candidateIDs).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("批量查询分数缓存失败: %w", err)
	}

	for i := range entries {
		result[entries[i].CandidateID] = &entries[i]
	}
	return result, nil
}

// UpsertScoreCache 写入/更新分数缓存的指定字段
// 依赖 (job_id, candidate_id) 唯一索引，冲突时只更新给定字段，
// 保证并发写入不会产生重复行，也不会覆盖其它阶段写入的分数
func (m *MySQL) UpsertScoreCache(ctx context.Context, entry *models.MatchScoreCache, updateColumns []string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertScoreCache",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT_ON_DUPLICATE"),
		attribute.String("db.sql.table", "match_score_cache"),
		attribute.String("job.id", entry.JobID),
		attribute.String("candidate.id", entry.CandidateID),
	)

	if len(updateColumns) == 0 {
		err := fmt.Errorf("updateColumns不能为空")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// updated_at 总是随写入刷新，TTL从这里起算
	columns := append(append([]string{}, updateColumns...), "updated_at")

	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(entry).Error

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetGroundTruth 获取岗位的人工标注基准真值，缺失返回 gorm.ErrRecordNotFound
func (m *MySQL) GetGroundTruth(ctx context.Context, jobID string) (*models.GroundTruth, error) {
	var gt models.GroundTruth
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&gt).Error; err != nil {
		return nil, err
	}
	return &gt, nil
}

// InsertBenchmarkResult 追加一条评测结果，该表只增不改
func (m *MySQL) InsertBenchmarkResult(ctx context.Context, result *models.BenchmarkResult) error {
	return m.db.WithContext(ctx).Create(result).Error
}
