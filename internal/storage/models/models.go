package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// JobPosting 岗位主表
// 结构化属性（行业、技能）与各属性Embedding以JSON列存储；
// 岗位创建后除重新向量化外视为不可变
type JobPosting struct {
	JobID             string         `gorm:"type:char(36);primaryKey"`
	JobText           string         `gorm:"type:text;not null"`
	Title             string         `gorm:"type:varchar(255)"`
	Location          string         `gorm:"type:varchar(255)"`
	IndustriesJSON    datatypes.JSON `gorm:"type:json"`
	HardSkillsJSON    datatypes.JSON `gorm:"type:json"`
	TitleEmbedding    datatypes.JSON `gorm:"type:json"` // 可空，缺失表示无信号
	LocationEmbedding datatypes.JSON `gorm:"type:json"`
	IndustryEmbedding datatypes.JSON `gorm:"type:json"`
	SkillsEmbedding   datatypes.JSON `gorm:"type:json"`
	Status            string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_job_postings_status"`
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (JobPosting) TableName() string {
	return "job_postings"
}

// CandidateProfile 候选人画像表
// 由外部的画像抽取服务写入，排名流水线只读；
// ResumeText 为空时可通过 ResumeTextPathOSS 从对象存储取回解析文本
type CandidateProfile struct {
	CandidateID           string         `gorm:"type:char(36);primaryKey"`
	ResumeText            string         `gorm:"type:text"`
	ResumeTextPathOSS     string         `gorm:"type:varchar(1024)"`
	Title                 string         `gorm:"type:varchar(255)"`
	Location              string         `gorm:"type:varchar(255)"`
	WillingToRelocate     bool           `gorm:"default:false"`
	IndustriesJSON        datatypes.JSON `gorm:"type:json"`
	RelatedIndustriesJSON datatypes.JSON `gorm:"type:json"` // 次要相关行业
	HardSkillsJSON        datatypes.JSON `gorm:"type:json"`
	TitleEmbedding        datatypes.JSON `gorm:"type:json"`
	LocationEmbedding     datatypes.JSON `gorm:"type:json"`
	IndustryEmbedding     datatypes.JSON `gorm:"type:json"`
	SkillsEmbedding       datatypes.JSON `gorm:"type:json"`
	Status                string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_candidate_profiles_status"`
	CreatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (CandidateProfile) TableName() string {
	return "candidate_profiles"
}

// MatchScoreCache 岗位-候选人分数缓存表
// (job_id, candidate_id) 唯一约束保证并发写入走upsert而不会产生重复行；
// 四个分数字段可独立为空，新鲜度在读取时按字段的TTL计算
type MatchScoreCache struct {
	CacheID         uint64    `gorm:"primaryKey;autoIncrement"`
	JobID           string    `gorm:"type:char(36);not null;uniqueIndex:idx_msc_job_candidate_unique,priority:1"`
	CandidateID     string    `gorm:"type:char(36);not null;uniqueIndex:idx_msc_job_candidate_unique,priority:2"`
	PreScore        *float64  `gorm:"type:double"`
	NeuralRankScore *float64  `gorm:"type:double"`
	LLMScore        *float64  `gorm:"type:double"`
	FinalScore      *float64  `gorm:"type:double;index:idx_msc_job_final_score,priority:2"`
	Explanation     string    `gorm:"type:text"`
	UpdatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job       *JobPosting       `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Candidate *CandidateProfile `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (MatchScoreCache) TableName() string {
	return "match_score_cache"
}

// GroundTruth 人工标注的基准真值表，每个岗位一条
// 仅供评测模块使用，排名流水线绝不读取
type GroundTruth struct {
	JobID                 string         `gorm:"type:char(36);primaryKey"`
	RelevantCandidateJSON datatypes.JSON `gorm:"type:json;not null"` // 候选人ID数组
	CuratedBy             string         `gorm:"type:varchar(255)"`
	CreatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job *JobPosting `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (GroundTruth) TableName() string {
	return "ground_truths"
}

// BenchmarkResult 基准评测结果表，只追加不修改
// 每行对应一次 (岗位, 算法版本, 运行时间) 的评测
type BenchmarkResult struct {
	RunID            string    `gorm:"type:char(36);primaryKey"`
	JobID            string    `gorm:"type:char(36);not null;index:idx_br_job_id"`
	AlgorithmVersion string    `gorm:"type:varchar(100);not null;index:idx_br_algorithm_version"`
	PrecisionAt5     float64   `gorm:"type:double"`
	PrecisionAt10    float64   `gorm:"type:double"`
	RecallAt5        float64   `gorm:"type:double"`
	RecallAt10       float64   `gorm:"type:double"`
	NDCGAt5          float64   `gorm:"type:double"`
	NDCGAt10         float64   `gorm:"type:double"`
	MRR              float64   `gorm:"type:double"`
	PoolSize         int       `gorm:"type:int"`
	NeuralSize       int       `gorm:"type:int"`
	LLMSize          int       `gorm:"type:int"`
	FinalSize        int       `gorm:"type:int"`
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Job *JobPosting `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (BenchmarkResult) TableName() string {
	return "benchmark_results"
}

// StringsToJSON 将字符串切片序列化为 datatypes.JSON
func StringsToJSON(items []string) (datatypes.JSON, error) {
	bytes, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToStrings 将JSON列反序列化为字符串切片，列为空时返回nil
func JSONToStrings(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FloatsToJSON 将Embedding向量序列化为 datatypes.JSON
func FloatsToJSON(vector []float64) (datatypes.JSON, error) {
	if vector == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(vector)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToFloats 将JSON列反序列化为Embedding向量，列为空时返回nil
func JSONToFloats(data datatypes.JSON) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, err
	}
	return vector, nil
}
