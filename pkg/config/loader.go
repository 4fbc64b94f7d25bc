package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvInfo chat_service 設定 from .env
type EnvInfo struct {
	// ChatService service name, also the yaml file name
	ChatService string
	// ChatServicePort listen port, overrides yaml
	ChatServicePort string
	// ChatServiceYAMLPath directory of <ChatService>.yaml
	ChatServiceYAMLPath string
	ChatServiceLogPath  string

	// JWTSecret shared HMAC secret with the identity provider
	JWTSecret string

	Redis RedisSentinel
}

// RedisSentinel sentinel discovery from REDIS_MASTER_NAME / REDIS_SENTINEL*_IP / REDIS_SENTINEL*_PORT,
// REDIS_ADDR is the single node fallback when no sentinel is set
type RedisSentinel struct {
	MasterName string
	Addrs      []string
	Addr       string
}

// EnvConfig 集合服務設定
var (
	EnvConfig = initEnv()
	envConfig EnvInfo
	once      sync.Once
	env       string
)

func initEnv() EnvInfo {
	once.Do(func() {
		path, err := GetPath(".env", 5)
		if err != nil {
			log.Printf("Warning: Could not get .env path: %v", err)
		} else if err := godotenv.Load(path); err != nil {
			log.Printf("Warning: Could not load .env file: %v", err)
		}

		env = os.Getenv("ENV")

		envConfig = EnvInfo{
			ChatService:         getenvDefault("CHAT_SERVICE", "chat_service"),
			ChatServicePort:     os.Getenv("CHAT_SERVICE_PORT"),
			ChatServiceYAMLPath: getenvDefault("CHAT_SERVICE_YAML", "./config"),
			ChatServiceLogPath:  getenvDefault("CHAT_SERVICE_LOG", "./logs"),
			JWTSecret:           os.Getenv("JWT_SECRET"),
			Redis:               parseSentinel(os.Environ()),
		}
	})

	return envConfig
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// IsProduction check run env
func IsProduction() bool {
	return env == "production"
}

// LoadConfig read <configPath>/<serviceName>.yaml, ${VAR} placeholders are expanded from the environment
func LoadConfig[T any](serviceName string, configPath string) (T, error) {
	var cfg T

	v := viper.New()
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 自動讀取環境變數
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", serviceName, err)
	}

	rawConfig, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
	}

	// 替換 ${} 占位符為環境變數的值, 再解析一次
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(rawConfig)))); err != nil {
		return cfg, fmt.Errorf("read expanded config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// parseSentinel collect every REDIS_SENTINEL<n>_IP with a matching _PORT
func parseSentinel(environ []string) RedisSentinel {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	s := RedisSentinel{MasterName: vars["REDIS_MASTER_NAME"], Addr: vars["REDIS_ADDR"]}
	if s.MasterName == "" {
		s.MasterName = "mymaster"
	}
	if s.Addr == "" {
		s.Addr = "localhost:6379"
	}
	for k, ip := range vars {
		if !strings.HasPrefix(k, "REDIS_SENTINEL") || !strings.HasSuffix(k, "_IP") {
			continue
		}
		if port := vars[strings.TrimSuffix(k, "_IP")+"_PORT"]; port != "" {
			s.Addrs = append(s.Addrs, ip+":"+port)
		}
	}
	sort.Strings(s.Addrs)
	return s
}

// GetPath walk up at most maxCount parent dirs looking for fileName
func GetPath(fileName string, maxCount int) (string, error) {
	path := "./" + fileName

	for i := 0; i < maxCount; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = "../" + path
	}
	return "", errors.New(fileName + " can't find path")
}
