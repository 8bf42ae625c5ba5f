// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package config loads AuthCore settings from flags, a YAML file and the
// environment.
package config

import (
	"net/mail"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/logging"
	"github.com/authcore/authcore/internal/notify"
	"github.com/authcore/authcore/internal/store"
)

// Notification backends.
const (
	NotifyLog   = "log"
	NotifyQueue = "queue"
	NotifyKafka = "kafka"
)

// Reset message senders. The log sender is for development only.
const (
	SenderLog  = "log"
	SenderSMTP = "smtp"
)

// Config is the full process configuration.
type Config struct {
	DatabaseURL string         `koanf:"database_url"`
	Database    DatabaseConfig `koanf:"database"`
	Auth        AuthConfig     `koanf:"auth"`
	Log         LogConfig      `koanf:"log"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Notify      NotifyConfig   `koanf:"notify"`
	Sweep       SweepConfig    `koanf:"sweep"`
}

// DatabaseConfig tunes the connection pool.
type DatabaseConfig struct {
	MaxConns int32 `koanf:"max_conns"`
	MinConns int32 `koanf:"min_conns"`
}

// AuthConfig holds token and hashing policy.
type AuthConfig struct {
	SecretKey             string        `koanf:"secret_key"`
	Algorithm             string        `koanf:"algorithm"`
	AccessTTL             time.Duration `koanf:"access_ttl"`
	RefreshTTL            time.Duration `koanf:"refresh_ttl"`
	ResetTTL              time.Duration `koanf:"reset_ttl"`
	ResetTokenBytes       int           `koanf:"reset_token_bytes"`
	RevokeSessionsOnReset bool          `koanf:"revoke_sessions_on_reset"`
	Argon2                Argon2Config  `koanf:"argon2"`
	MaxConcurrentHashes   int           `koanf:"max_concurrent_hashes"`
}

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// LogConfig selects log output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig locates the observability server. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// NotifyConfig selects how reset tokens are delivered. Backend decides
// where requests go after RequestReset; Sender decides how the final hop
// reaches the user.
type NotifyConfig struct {
	Backend    string      `koanf:"backend"`
	Sender     string      `koanf:"sender"`
	LogTokens  bool        `koanf:"log_tokens"`
	QueueSize  int         `koanf:"queue_size"`
	Workers    int         `koanf:"workers"`
	MaxRetries uint64      `koanf:"max_retries"`
	Kafka      KafkaConfig `koanf:"kafka"`
	SMTP       SMTPConfig  `koanf:"smtp"`
}

// SMTPConfig locates the mail relay used by the smtp sender.
type SMTPConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	TLS      string        `koanf:"tls"`
	ResetURL string        `koanf:"reset_url"`
	Timeout  time.Duration `koanf:"timeout"`
}

// KafkaConfig locates the notification topic.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

// SweepConfig controls the expired-record sweeper.
type SweepConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	policy := auth.DefaultConfig()
	params := auth.DefaultArgon2Params()
	return Config{
		Auth: AuthConfig{
			Algorithm:             "HS256",
			AccessTTL:             policy.AccessTTL,
			RefreshTTL:            policy.RefreshTTL,
			ResetTTL:              policy.ResetTTL,
			ResetTokenBytes:       policy.ResetTokenBytes,
			RevokeSessionsOnReset: policy.RevokeSessionsOnReset,
			Argon2: Argon2Config{
				Time:      params.Time,
				MemoryKiB: params.MemoryKiB,
				Threads:   params.Threads,
			},
			MaxConcurrentHashes: 8,
		},
		Log:     LogConfig{Format: "json", Level: "info"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Notify: NotifyConfig{
			Backend:    NotifyLog,
			Sender:     SenderLog,
			QueueSize:  256,
			Workers:    2,
			MaxRetries: 5,
			Kafka:      KafkaConfig{Topic: "password-reset-request", GroupID: "authcore-mailer"},
			SMTP:       SMTPConfig{Port: 587, TLS: string(notify.TLSStartTLS), Timeout: 10 * time.Second},
		},
		Sweep: SweepConfig{Interval: 10 * time.Minute},
	}
}

// Validate checks everything a service needs to start. Every failure carries
// code CONFIG_INVALID and the offending key. The database URL is checked
// separately by RequireDatabase since not every command uses it.
func (c Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return oops.Code("CONFIG_INVALID").With("key", "auth.secret_key").Errorf("secret key is required (AUTHCORE_SECRET_KEY)")
	}
	if len(c.Auth.SecretKey) < auth.MinSecretBytes {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.secret_key").
			Errorf("secret key must be at least %d bytes", auth.MinSecretBytes)
	}
	if !slices.Contains(auth.SupportedAlgorithms(), c.Auth.Algorithm) {
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.algorithm").
			With("algorithm", c.Auth.Algorithm).
			Errorf("algorithm must be one of %v", auth.SupportedAlgorithms())
	}
	if err := c.Auth.Policy().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth").Errorf("invalid auth policy: %v", err)
	}
	if err := c.Auth.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.argon2").Errorf("invalid argon2 parameters: %v", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Errorf("invalid log level: %v", err)
	}
	switch c.Notify.Backend {
	case NotifyLog:
	case NotifyQueue:
		if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
			return oops.Code("CONFIG_INVALID").With("key", "notify").Errorf("queue size and workers must be positive")
		}
	case NotifyKafka:
		if len(c.Notify.Kafka.Brokers) == 0 {
			return oops.Code("CONFIG_INVALID").With("key", "notify.kafka.brokers").Errorf("kafka backend needs at least one broker")
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "notify.backend").
			Errorf("notify backend must be %q, %q or %q, got %q", NotifyLog, NotifyQueue, NotifyKafka, c.Notify.Backend)
	}
	if err := c.Notify.validateSender(); err != nil {
		return err
	}
	if c.Sweep.Interval <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "sweep.interval").Errorf("sweep interval must be positive")
	}
	return nil
}

func (n NotifyConfig) validateSender() error {
	switch n.Sender {
	case SenderLog:
		return nil
	case SenderSMTP:
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "notify.sender").
			Errorf("notify sender must be %q or %q, got %q", SenderLog, SenderSMTP, n.Sender)
	}
	s := n.SMTP
	if s.Host == "" {
		return oops.Code("CONFIG_INVALID").With("key", "notify.smtp.host").Errorf("smtp sender needs a host")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return oops.Code("CONFIG_INVALID").With("key", "notify.smtp.port").Errorf("smtp port out of range: %d", s.Port)
	}
	if s.From == "" {
		return oops.Code("CONFIG_INVALID").With("key", "notify.smtp.from").Errorf("smtp sender needs a from address")
	}
	if _, err := mail.ParseAddress(s.From); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "notify.smtp.from").Errorf("invalid from address: %v", err)
	}
	if !slices.Contains(notify.TLSModes(), notify.TLSMode(s.TLS)) {
		return oops.Code("CONFIG_INVALID").
			With("key", "notify.smtp.tls").
			Errorf("smtp tls must be one of %v, got %q", notify.TLSModes(), s.TLS)
	}
	return nil
}

// RequireDatabase checks a database URL was supplied.
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "database_url").Errorf("database URL is required (DATABASE_URL)")
	}
	return nil
}

// Policy returns the immutable lifecycle policy.
func (a AuthConfig) Policy() auth.Config {
	return auth.Config{
		AccessTTL:             a.AccessTTL,
		RefreshTTL:            a.RefreshTTL,
		ResetTTL:              a.ResetTTL,
		ResetTokenBytes:       a.ResetTokenBytes,
		RevokeSessionsOnReset: a.RevokeSessionsOnReset,
	}
}

// Argon2Params returns the hashing parameters, keeping the default salt and
// key lengths.
func (a AuthConfig) Argon2Params() auth.Argon2Params {
	params := auth.DefaultArgon2Params()
	params.Time = a.Argon2.Time
	params.MemoryKiB = a.Argon2.MemoryKiB
	params.Threads = a.Argon2.Threads
	return params
}

// PoolConfig returns the store pool settings.
func (d DatabaseConfig) PoolConfig() store.PoolConfig {
	return store.PoolConfig{MaxConns: d.MaxConns, MinConns: d.MinConns}
}

// SenderConfig returns the settings for notify.NewSMTPSender.
func (s SMTPConfig) SenderConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     s.From,
		TLS:      notify.TLSMode(s.TLS),
		ResetURL: s.ResetURL,
		Timeout:  s.Timeout,
	}
}
