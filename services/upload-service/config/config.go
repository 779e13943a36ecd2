// config/config.go - 配置管理文件
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	Conf *AppConfig
	once sync.Once
	k    *koanf.Koanf
)

// Load 加载配置文件
func Load(configPath string) error {
	var err error
	once.Do(func() {
		// 首先加载 .env 文件到环境变量
		envPath := os.Getenv("APP_ENV_FILE")
		if envPath == "" {
			envPath = ".env"
		}
		if loadErr := godotenv.Load(envPath); loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
			log.Printf("警告: 无法加载 .env 文件: %v", loadErr)
		}

		k = koanf.New(".")
		Conf, err = parse(k, configPath)
	})

	return err
}

// parse 依次加载配置文件、环境变量并解析到结构体
func parse(k *koanf.Koanf, configPath string) (*AppConfig, error) {
	// 1. 加载配置文件
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("加载配置文件失败: %w", err)
	}

	// 2. 加载标准环境变量（APP_ 前缀）
	// 例如：APP_UPLOAD_TARGET_DIR -> upload.target_dir
	if err := k.Load(env.Provider("APP_", ".", envKey), nil); err != nil {
		log.Printf("加载环境变量失败: %v", err)
	}

	// 3. 加载简化的环境变量名
	loadCustomEnvVars(k)

	// 4. 解析到结构体
	conf := &AppConfig{}
	if err := k.Unmarshal("", conf); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 5. 默认值和时间单位
	setDefaults(conf)

	// 6. 验证必需配置
	if err := validateConfig(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// 没有上级节点的配置项
var topLevelKeys = map[string]bool{
	"frontend_url": true,
}

// envKey 只把第一个下划线当作层级分隔，字段名里的下划线保留
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))
	if topLevelKeys[key] {
		return key
	}
	return strings.Replace(key, "_", ".", 1)
}

// loadCustomEnvVars 加载自定义环境变量名（简化命名）
func loadCustomEnvVars(k *koanf.Koanf) {
	short := map[string]string{
		// 上传
		"UPLOAD_DIR":  "upload.target_dir",
		"UPLOAD_LOCK": "upload.lock",
		// 数据库配置
		"DB_HOST":     "database.host",
		"DB_PORT":     "database.port",
		"DB_USERNAME": "database.username",
		"DB_PASSWORD": "database.password",
		// Redis 配置
		"REDIS_HOST":     "redis.host",
		"REDIS_PORT":     "redis.port",
		"REDIS_PASSWORD": "redis.password",
		// JWT 配置
		"JWT_SECRET":      "jwt.secret",
		"JWT_EXPIRE_TIME": "jwt.expire_time",
		// 日志级别
		"LOG_LEVEL": "log.level",
		// 前端 URL（用于 CORS）
		"FRONTEND_URL": "frontend_url",
	}
	for envName, key := range short {
		if v := os.Getenv(envName); v != "" {
			_ = k.Set(key, v)
		}
	}

	if v := os.Getenv("DB_SSLMODE"); v != "" {
		_ = k.Set("database.sslmode", v == "true")
	}
}

func setDefaults(conf *AppConfig) {
	if conf.Server.Port == 0 {
		conf.Server.Port = 8082
	}
	if conf.Server.ReadTimeout == 0 {
		conf.Server.ReadTimeout = 60
	}
	if conf.Server.WriteTimeout == 0 {
		conf.Server.WriteTimeout = 60
	}
	conf.Server.ReadTimeout = conf.Server.ReadTimeout * time.Second
	conf.Server.WriteTimeout = conf.Server.WriteTimeout * time.Second

	u := &conf.Upload
	if u.FileField == "" {
		u.FileField = "file"
	}
	if u.MaxChunkSize == 0 {
		u.MaxChunkSize = 16 * datasize.MB
	}
	if u.Lock == "" {
		u.Lock = "local"
	}
	if u.LockExpiry == 0 {
		u.LockExpiry = 60
	}
	if u.LockTimeout == 0 {
		u.LockTimeout = 10
	}
	if u.SessionTTL == 0 {
		u.SessionTTL = 7200
	}
}

var validate = validator.New()

// validateConfig 验证配置的有效性
func validateConfig(conf *AppConfig) error {
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	if conf.Upload.Lock == "redis" && !conf.Redis.Enabled {
		return errors.New("upload.lock=redis 需要启用 redis")
	}
	if conf.Upload.RegisterFiles && !conf.Database.Enabled {
		return errors.New("upload.register_files 需要启用 database")
	}
	if conf.Upload.RequireAuth && conf.JWT.Secret == "" {
		return errors.New("upload.require_auth 需要设置 jwt.secret，请设置 JWT_SECRET 环境变量")
	}

	if conf.Database.Enabled && conf.Database.Password == "" {
		log.Println("⚠️  Warning: database.password is empty, please set DB_PASSWORD environment variable")
	}
	return nil
}

// MustLoad 加载配置，失败则 panic
func MustLoad(configPath string) {
	if err := Load(configPath); err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
}

// GetString 获取字符串配置
func GetString(key string) string {
	if k == nil {
		log.Fatal("配置未初始化")
	}
	return k.String(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	if k == nil {
		log.Fatal("配置未初始化")
	}
	return k.Int(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	if k == nil {
		log.Fatal("配置未初始化")
	}
	return k.Bool(key)
}

// Reload 重新加载配置
func Reload(configPath string) error {
	if k == nil {
		return fmt.Errorf("配置未初始化")
	}

	conf, err := parse(k, configPath)
	if err != nil {
		return err
	}
	Conf = conf
	return nil
}
