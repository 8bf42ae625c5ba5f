// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// envKeys maps environment variables onto config keys. Later entries win.
var envKeys = []struct {
	env string
	key string
}{
	{"DATABASE_URL", "database_url"},
	{"AUTHCORE_DATABASE_URL", "database_url"},
	{"AUTHCORE_SECRET_KEY", "auth.secret_key"},
	{"AUTHCORE_LOG_LEVEL", "log.level"},
	{"AUTHCORE_LOG_FORMAT", "log.format"},
	{"AUTHCORE_NOTIFY_BACKEND", "notify.backend"},
	{"AUTHCORE_NOTIFY_SENDER", "notify.sender"},
	{"AUTHCORE_KAFKA_BROKERS", "notify.kafka.brokers"},
	{"AUTHCORE_SMTP_HOST", "notify.smtp.host"},
	{"AUTHCORE_SMTP_PORT", "notify.smtp.port"},
	{"AUTHCORE_SMTP_USERNAME", "notify.smtp.username"},
	{"AUTHCORE_SMTP_PASSWORD", "notify.smtp.password"},
	{"AUTHCORE_SMTP_FROM", "notify.smtp.from"},
	{"AUTHCORE_RESET_URL", "notify.smtp.reset_url"},
	{"AUTHCORE_METRICS_ADDR", "metrics.addr"},
}

// EnvNames lists every environment variable Load reads.
func EnvNames() []string {
	names := make([]string, len(envKeys))
	for i, e := range envKeys {
		names[i] = e.env
	}
	return names
}

// environ renders the set, non-empty variables of envKeys in table order so
// the env provider applies later entries last.
func environ(lookupEnv LookupEnv) []string {
	var vars []string
	for _, e := range envKeys {
		if v, ok := lookupEnv(e.env); ok && v != "" {
			vars = append(vars, e.env+"="+v)
		}
	}
	return vars
}

func envTransform(name, value string) (string, any) {
	for _, e := range envKeys {
		if e.env == name {
			return e.key, envValue(e.key, value)
		}
	}
	return "", nil
}

// flagKeys maps flag names onto config keys. Flags not listed are ignored.
var flagKeys = map[string]string{
	"database-url":  "database_url",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"metrics-addr":  "metrics.addr",
	"notify":        "notify.backend",
	"sender":        "notify.sender",
	"kafka-brokers": "notify.kafka.brokers",
	"kafka-topic":   "notify.kafka.topic",
	"algorithm":     "auth.algorithm",
}

// Load builds a Config from Default, then the YAML file at path (skipped
// when path is empty), then the environment, then any flags changed on
// flags. Flag defaults are never applied; Default is authoritative.
func Load(flags *pflag.FlagSet, path string, lookupEnv LookupEnv) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			code := "CONFIG_LOAD_FAILED"
			if errors.Is(err, fs.ErrNotExist) {
				code = "CONFIG_NOT_FOUND"
			}
			return Config{}, oops.Code(code).With("source", "file").With("path", path).Wrap(err)
		}
	}

	if lookupEnv != nil {
		provider := env.Provider(".", env.Opt{
			TransformFunc: envTransform,
			EnvironFunc:   func() []string { return environ(lookupEnv) },
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return cfg, nil
}

func envValue(key, v string) any {
	if key == "notify.kafka.brokers" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		return brokers
	}
	return v
}
