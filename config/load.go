package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/zero-day-ai/semgate/semerr"
)

// EnvPrefix prefixes environment overrides: mapper.fuzzy_threshold is read
// from SEMGATE_MAPPER_FUZZY_THRESHOLD.
const EnvPrefix = "SEMGATE"

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, semerr.Configuration(op, fmt.Errorf("read config file: %w", err)).
				WithContext(map[string]any{"path": path})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, semerr.Configuration(op, fmt.Errorf("unmarshal config: %w", err))
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("mapper.fuzzy_threshold", d.Mapper.FuzzyThreshold)
	v.SetDefault("mapper.escalation_confidence_threshold", d.Mapper.EscalationThreshold)
	v.SetDefault("mapper.approval_confidence_threshold", d.Mapper.ApprovalThreshold)

	v.SetDefault("gates.history_limit", d.Gates.HistoryLimit)
	v.SetDefault("gates.rule_timeout", d.Gates.RuleTimeout)
	v.SetDefault("gates.result_ttl", d.Gates.ResultTTL)
	v.SetDefault("gates.parallelism", d.Gates.Parallelism)

	v.SetDefault("memory.backend", d.Memory.Backend)
	v.SetDefault("memory.redis_url", d.Memory.RedisURL)
	v.SetDefault("memory.key_prefix", d.Memory.KeyPrefix)
	v.SetDefault("memory.timeout", d.Memory.Timeout)

	v.SetDefault("graphs.builtin", d.Graphs.Builtin)
	v.SetDefault("graphs.dir", d.Graphs.Dir)
	v.SetDefault("graphs.etcd_endpoints", d.Graphs.EtcdEndpoints)
	v.SetDefault("graphs.etcd_namespace", d.Graphs.EtcdNamespace)
	v.SetDefault("graphs.debounce", d.Graphs.Debounce)

	v.SetDefault("rules.defaults", d.Rules.Defaults)
	v.SetDefault("rules.files", d.Rules.Files)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("serve.port", d.Serve.Port)
	v.SetDefault("serve.metrics_port", d.Serve.MetricsPort)
}

var validate = newValidator()

// newValidator reports fields by their mapstructure keys.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	const op = "config.Validate"
	if cfg == nil {
		return semerr.Configuration(op, errors.New("configuration is nil"))
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return semerr.Configuration(op, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return semerr.Configuration(op, errors.New(strings.Join(msgs, "; ")))
}

func formatFieldError(fe validator.FieldError) string {
	path := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required_if", "required_with":
		return fmt.Sprintf("%s is required", path)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", path, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (got: %v)", path, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", path, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be below %s (got: %v)", path, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", path, fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s (got: %v)", path, snake(fe.Param()), fe.Value())
	default:
		return fmt.Sprintf("%s failed validation %q (got: %v)", path, fe.Tag(), fe.Value())
	}
}

// fieldPath turns "Config.mapper.fuzzy_threshold" into "mapper.fuzzy_threshold".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}
	out := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		out = append(out, snake(p))
	}
	return strings.Join(out, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
