package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port       string           `mapstructure:"port"`
	MongoSQL   DatabaseConfig   `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig   `mapstructure:"pg"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	History    HistoryConfig    `mapstructure:"history"`
	Attachment AttachmentConfig `mapstructure:"attachment"`

	// KeyCacheTTL conversation key cache ttl in redis
	KeyCacheTTL time.Duration `mapstructure:"key_cache_ttl"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MinIOConfig definition object storage setting
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// HistoryConfig definition message history paging
type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// AttachmentConfig definition attachment upload policy
type AttachmentConfig struct {
	MaxSize      int64         `mapstructure:"max_size"`
	AllowedTypes []string      `mapstructure:"allowed_types"`
	UploadExpiry time.Duration `mapstructure:"upload_expiry"`
}

// WithDefaults fill zero values with the service defaults
func (c Chat) WithDefaults() Chat {
	if c.History.DefaultLimit <= 0 {
		c.History.DefaultLimit = 50
	}
	if c.History.MaxLimit <= 0 {
		c.History.MaxLimit = 200
	}
	if c.Attachment.MaxSize <= 0 {
		c.Attachment.MaxSize = 10 * 1024 * 1024
	}
	if len(c.Attachment.AllowedTypes) == 0 {
		c.Attachment.AllowedTypes = []string{"image/", "video/", "audio/", "application/pdf", "text/"}
	}
	if c.Attachment.UploadExpiry <= 0 {
		c.Attachment.UploadExpiry = 300 * time.Second
	}
	if c.KeyCacheTTL <= 0 {
		c.KeyCacheTTL = 10 * time.Minute
	}
	return c
}
