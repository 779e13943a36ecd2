package config

import (
	"time"

	"github.com/c2h5oh/datasize"
)

// AppConfig 应用配置结构
type AppConfig struct {
	Server      ServerConfig   `koanf:"server"`
	GRPC        GRPCConfig     `koanf:"grpc"`
	Upload      UploadConfig   `koanf:"upload"`
	Database    DatabaseConfig `koanf:"database"`
	Redis       RedisConfig    `koanf:"redis"`
	Log         LogConfig      `koanf:"log"`
	JWT         JWTConfig      `koanf:"jwt"`
	FrontendURL string         `koanf:"frontend_url"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port" validate:"min=1,max=65535"`
	Mode         string        `koanf:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type GRPCConfig struct {
	Port int `koanf:"port" validate:"min=0,max=65535"` // 0 表示不启动
}

// UploadConfig 分块上传相关配置
type UploadConfig struct {
	TargetDir string `koanf:"target_dir" validate:"required"`
	FileField string `koanf:"file_field"`
	// 单个请求体上限，支持 8MB、512KB 这样的写法
	MaxChunkSize datasize.ByteSize `koanf:"max_chunk_size"`
	StrictParams bool              `koanf:"strict_params"`
	StagedWrites bool              `koanf:"staged_writes"`
	Lock         string            `koanf:"lock" validate:"oneof=none local redis"`
	LockExpiry   int               `koanf:"lock_expiry"`  // 秒
	LockTimeout  int               `koanf:"lock_timeout"` // 秒
	VerifyChunks bool              `koanf:"verify_chunks"`
	SessionTTL   int               `koanf:"session_ttl"` // 秒
	RequireAuth  bool              `koanf:"require_auth"`
	// 上传完成后写入文件表，需要启用数据库
	RegisterFiles bool `koanf:"register_files"`
}

func (u UploadConfig) LockExpiryDuration() time.Duration {
	return time.Duration(u.LockExpiry) * time.Second
}

func (u UploadConfig) LockTimeoutDuration() time.Duration {
	return time.Duration(u.LockTimeout) * time.Second
}

func (u UploadConfig) SessionTTLDuration() time.Duration {
	return time.Duration(u.SessionTTL) * time.Second
}

type DatabaseConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Driver       string `koanf:"driver"`
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	Database     string `koanf:"database"`
	SSLMode      bool   `koanf:"sslmode"`
	LogLevel     string `koanf:"log_level"` // 数据库日志级别
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	MaxLifetime  int    `koanf:"max_lifetime"` // 秒
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`
}

type LogConfig struct {
	Level      string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `koanf:"format" validate:"omitempty,oneof=json text"`
	Output     string `koanf:"output" validate:"omitempty,oneof=stdout file both"`
	Path       string `koanf:"path"`        // 日志文件路径
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // 保留的旧文件个数
	MaxAge     int    `koanf:"max_age"`     // 天
}

type JWTConfig struct {
	Secret     string `koanf:"secret"`
	ExpireTime int    `koanf:"expire_time"` // 小时
}
