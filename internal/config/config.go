package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	CORSOrigins []string         `json:"cors_origins"`
	Database    DatabaseConfig   `json:"database"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Upload      UploadConfig     `json:"upload"`
	Ingest      IngestConfig     `json:"ingest"`
	AI          AIConfig         `json:"ai"`
	Vector      VectorConfig     `json:"vector"`
	Archive     ArchiveConfig    `json:"archive"`
	Cleanup     CleanupConfig    `json:"cleanup"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type UploadConfig struct {
	Dir          string `json:"dir"`
	MaxSizeMB    int64  `json:"max_size_mb"`
	MaxBulkFiles int    `json:"max_bulk_files"`
	RateLimitMS  int    `json:"rate_limit_ms"`
}

// IngestConfig tunes the per-document pipeline. Auto-rename and duplicate
// checking default on; the fields are phrased as disables so the JSON zero
// value keeps the defaults.
type IngestConfig struct {
	ChunkSize          int  `json:"chunk_size"`
	ChunkOverlap       int  `json:"chunk_overlap"`
	DisableAutoRename  bool `json:"disable_auto_rename"`
	SkipDuplicateCheck bool `json:"skip_duplicate_check"`
	RenameAttempts     uint `json:"rename_attempts"`
	RenameDelayMS      int  `json:"rename_delay_ms"`
	MaxFilenameLen     int  `json:"max_filename_len"`
}

type AIConfig struct {
	Provider    string      `json:"provider"`
	EmbedModel  string      `json:"embed_model"`
	Data        interface{} `json:"data"`
	CacheSize   int         `json:"cache_size"`
	CacheTTLMin int         `json:"cache_ttl_min"`
}

type VectorConfig struct {
	EmbedBatch   int `json:"embed_batch"`
	EmbedWorkers int `json:"embed_workers"`
	SearchTopK   int `json:"search_top_k"`
}

type ArchiveConfig struct {
	Enable    bool   `json:"enable"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

type CleanupConfig struct {
	BulkJobMaxAgeHours int    `json:"bulk_job_max_age_hours"`
	Schedule           string `json:"schedule"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Upload.Dir == "" {
		return nil, fmt.Errorf("upload.dir is required")
	}
	if cfg.Upload.MaxSizeMB == 0 {
		cfg.Upload.MaxSizeMB = 50
	}
	if cfg.Upload.MaxBulkFiles == 0 {
		cfg.Upload.MaxBulkFiles = 20
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return nil, fmt.Errorf("ingest.chunk_overlap must be smaller than ingest.chunk_size")
	}
	if cfg.Ingest.RenameAttempts == 0 {
		cfg.Ingest.RenameAttempts = 3
	}
	if cfg.Ingest.RenameDelayMS == 0 {
		cfg.Ingest.RenameDelayMS = 50
	}
	if cfg.Ingest.MaxFilenameLen == 0 {
		cfg.Ingest.MaxFilenameLen = 80
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-004"
	}
	if cfg.AI.CacheSize == 0 {
		cfg.AI.CacheSize = 2048
	}
	if cfg.AI.CacheTTLMin == 0 {
		cfg.AI.CacheTTLMin = 60
	}
	if cfg.Vector.EmbedBatch == 0 {
		cfg.Vector.EmbedBatch = 16
	}
	if cfg.Vector.EmbedWorkers == 0 {
		cfg.Vector.EmbedWorkers = 4
	}
	if cfg.Vector.SearchTopK == 0 {
		cfg.Vector.SearchTopK = 10
	}
	if cfg.Archive.Enable {
		if cfg.Archive.Bucket == "" || cfg.Archive.SecretID == "" || cfg.Archive.SecretKey == "" {
			return nil, fmt.Errorf("archive bucket/secret_id/secret_key are required when archive is enabled")
		}
		if cfg.Archive.Region == "" {
			cfg.Archive.Region = "us-east-1"
		}
	}
	if cfg.Cleanup.BulkJobMaxAgeHours == 0 {
		cfg.Cleanup.BulkJobMaxAgeHours = 24
	}
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = "*/30 * * * *"
	}
	return &cfg, nil
}
