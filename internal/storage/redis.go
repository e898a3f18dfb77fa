package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"talent-rank-go/internal/config"
	"talent-rank-go/internal/constants"
	"talent-rank-go/internal/tracing"
	"talent-rank-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound 键不存在
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("talent-rank-go/storage/redis")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetJobVector 从 Redis HASH 中获取岗位内容向量和模型版本
// 该缓存由上游画像抽取服务写入，排名侧只读取
func (r *Redis) GetJobVector(ctx context.Context, jobID string) ([]float64, string, error) {
	if r.Client == nil {
		return nil, "", fmt.Errorf("redis client is not initialized")
	}

	cacheKey := fmt.Sprintf(constants.KeyJobPostingVector, jobID)

	vals, err := r.Client.HMGet(ctx, cacheKey, "vector", "model_version").Result()
	if err != nil {
		return nil, "", err
	}

	if len(vals) < 2 || vals[0] == nil {
		return nil, "", fmt.Errorf("未找到岗位向量缓存，jobID=%s: %w", jobID, ErrNotFound)
	}
	vectorJSON, ok := vals[0].(string)
	if !ok || vectorJSON == "" {
		return nil, "", fmt.Errorf("向量缓存格式错误")
	}
	var vector []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, "", fmt.Errorf("反序列化向量失败: %w", err)
	}

	modelVersion, _ := vals[1].(string)
	return vector, modelVersion, nil
}

// CacheRankResults 将完整的、排序后的排名结果缓存到Redis的ZSET中
// 缓存的是黄金结果集，分页读取全部走这份缓存，保证翻页间排序一致
func (r *Redis) CacheRankResults(ctx context.Context, jobID string, results []types.RankedCandidate, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if len(results) == 0 {
		return nil // 不缓存空结果
	}

	sessionKey := fmt.Sprintf(constants.KeyRankSession, jobID)

	pipe := r.Client.Pipeline()

	// 先删除旧的key，确保缓存是最新的
	pipe.Del(ctx, sessionKey)

	// 使用倒序排名作为分数，ZREVRANGE 即按原始排名取出
	members := make([]redis.Z, len(results))
	for i, res := range results {
		members[i] = redis.Z{
			Score:  float64(len(results) - i),
			Member: res.CandidateID,
		}
	}

	pipe.ZAdd(ctx, sessionKey, members...)
	pipe.Expire(ctx, sessionKey, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedRankResults 从Redis ZSET中获取分页的排名结果
func (r *Redis) GetCachedRankResults(ctx context.Context, jobID string, cursor, limit int64) (candidateIDs []string, totalCount int64, err error) {
	sessionKey := fmt.Sprintf(constants.KeyRankSession, jobID)

	ctx, span := redisTracer.Start(ctx, "GetCachedRankResults", trace.WithAttributes(
		semconv.DBSystemRedis,
		attribute.String("redis.key", tracing.SafeRedisKey(sessionKey)),
		attribute.Int64("redis.cursor", cursor),
		attribute.Int64("redis.limit", limit),
	))
	defer span.End()

	pipe := r.Client.Pipeline()
	countCmd := pipe.ZCard(ctx, sessionKey)
	rangeCmd := pipe.ZRevRange(ctx, sessionKey, cursor, cursor+limit-1)
	_, err = pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, 0, err
	}

	candidateIDs, err = rangeCmd.Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, 0, fmt.Errorf("failed to get ranked candidate IDs: %w", err)
	}

	totalCount, err = countCmd.Result()
	if err != nil {
		return candidateIDs, 0, err
	}

	return candidateIDs, totalCount, nil
}

// AcquireLock 尝试获取一个分布式锁
// 同一岗位的并发排名请求只有持锁者执行流水线，其余等待缓存
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	// 如果key存在且值匹配，则删除key
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil
}
