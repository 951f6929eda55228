package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 服务进程配置：默认值 → .env/环境变量 → 命令行参数（在 main 中覆盖）
type Config struct {
	Addr      string
	MapPath   string
	StaticDir string
	LogFile   string
	LogLevel  string
	TickRate  int    // 每秒 Tick 次数
	Codec     string // json 或 msgpack
	QueueSize int    // 每个房间的入站事件队列容量
}

func DefaultConfig() Config {
	return Config{
		Addr:      ":5000",
		MapPath:   "maps/map.tmx",
		StaticDir: "public",
		LogFile:   "snowfight.log",
		LogLevel:  "info",
		TickRate:  30,
		Codec:     CodecJSON,
		QueueSize: 256,
	}
}

// LoadConfig 读取可选的 .env 文件后用环境变量覆盖默认值；文件不存在不算错误
func LoadConfig(envFile string) (Config, error) {
	cfg := DefaultConfig()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	str := map[string]*string{
		"SNOWFIGHT_ADDR":       &cfg.Addr,
		"SNOWFIGHT_MAP":        &cfg.MapPath,
		"SNOWFIGHT_STATIC_DIR": &cfg.StaticDir,
		"SNOWFIGHT_LOG_FILE":   &cfg.LogFile,
		"SNOWFIGHT_LOG_LEVEL":  &cfg.LogLevel,
		"SNOWFIGHT_CODEC":      &cfg.Codec,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	// 兼容原部署方式的 PORT
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SNOWFIGHT_ADDR") == "" {
		cfg.Addr = ":" + port
	}

	ints := map[string]*int{
		"SNOWFIGHT_TICK_RATE":  &cfg.TickRate,
		"SNOWFIGHT_QUEUE_SIZE": &cfg.QueueSize,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c Config) Validate() error {
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("tick rate %d out of range (1..1000)", c.TickRate)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if _, err := NewCodec(c.Codec); err != nil {
		return err
	}
	return nil
}
