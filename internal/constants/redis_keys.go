package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// RankModulePrefix 排名模块
	RankModulePrefix = "rank"
	// JobModulePrefix 岗位模块
	JobModulePrefix = "job"

	// EntitySession 排名会话实体
	EntitySession = "session"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityVector 向量实体
	EntityVector = "vector"

	// KeyRankSession 黄金排名结果集缓存 (ZSET)
	// 格式: app:rank:session:{jobID}
	KeyRankSession = AppPrefix + ":" + RankModulePrefix + ":" + EntitySession + ":%s"

	// KeyRankLock 排名流水线分布式锁 (STRING)
	// 格式: app:rank:lock:{jobID}
	KeyRankLock = AppPrefix + ":" + RankModulePrefix + ":" + EntityLock + ":%s"

	// KeyJobPostingVector JD向量缓存 (HASH)，由上游画像抽取服务写入
	// 格式: app:job:vector:{jobID}
	KeyJobPostingVector = AppPrefix + ":" + JobModulePrefix + ":" + EntityVector + ":%s"
)
