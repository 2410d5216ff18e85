package config

import (
	"fmt"
	"strings"
	"time"

	"maintflow/bizerror"
	"maintflow/client/es"
	"maintflow/domain"
	"maintflow/domain/state"
	"maintflow/domain/threshold"
	"maintflow/notify/mail"
	"maintflow/persistence"
	"maintflow/session"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "MAINTFLOW"

const (
	StoreMysql  = "mysql"
	StoreMemory = "memory"

	TransportSMTP = "smtp"
	TransportLog  = "log"
)

type Config struct {
	Server        ServerConfig               `mapstructure:"server"`
	Log           LogConfig                  `mapstructure:"log"`
	Store         StoreConfig                `mapstructure:"store"`
	Database      persistence.DatabaseConfig `mapstructure:"database" validate:"-"`
	SMTP          mail.Config                `mapstructure:"smtp" validate:"-"`
	Notify        NotifyConfig               `mapstructure:"notify"`
	Dispatch      DispatchConfig             `mapstructure:"dispatch"`
	Auth          AuthConfig                 `mapstructure:"auth"`
	Tracing       TracingConfig              `mapstructure:"tracing"`
	Elasticsearch es.Config                  `mapstructure:"elasticsearch"`

	// Recipients replaces the compiled-in recipient tables when not empty.
	Recipients []threshold.Table `mapstructure:"recipients" validate:"-"`
	Approvers  []ApproverRule    `mapstructure:"approvers" validate:"dive"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" validate:"min=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=mysql memory"`
}

type NotifyConfig struct {
	Transport      string `mapstructure:"transport" validate:"required,oneof=smtp log"`
	Locale         string `mapstructure:"locale" validate:"required"`
	LinkBaseURL    string `mapstructure:"linkBaseURL" validate:"omitempty,url"`
	CurrencySymbol string `mapstructure:"currencySymbol"`
}

type DispatchConfig struct {
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=10"`
	SendTimeout time.Duration `mapstructure:"sendTimeout" validate:"min=0"`
}

type AuthConfig struct {
	Tokens []session.StaticToken `mapstructure:"tokens" validate:"dive"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"serviceName"`
}

// ApproverRule limits who may move entities of Kind into State.
type ApproverRule struct {
	Kind  domain.Kind  `mapstructure:"kind" validate:"required"`
	State domain.State `mapstructure:"state" validate:"required"`
	Roles []string     `mapstructure:"roles" validate:"required,min=1"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdownTimeout", 3*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("store.backend", StoreMysql)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.args", "")
	v.SetDefault("database.maxOpenConns", 20)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 30*time.Minute)
	v.SetDefault("database.connectRetries", 5)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.fromName", "Maintflow")
	v.SetDefault("smtp.tlsPolicy", "mandatory")
	v.SetDefault("smtp.ssl", false)
	v.SetDefault("smtp.timeout", 10*time.Second)
	v.SetDefault("smtp.ratePerSecond", 5)
	v.SetDefault("smtp.burst", 5)
	v.SetDefault("notify.transport", TransportLog)
	v.SetDefault("notify.locale", "es-CO")
	v.SetDefault("notify.linkBaseURL", "http://localhost:8080")
	v.SetDefault("notify.currencySymbol", "$")
	v.SetDefault("dispatch.concurrency", 10)
	v.SetDefault("dispatch.sendTimeout", 5*time.Second)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "maintflow")
	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index", "maintflow-transitions")
}

// Load reads the optional YAML file at path, overlays MAINTFLOW_* environment variables and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("elasticsearch.addresses")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Store.Backend == StoreMysql {
		if err := validate.Struct(&c.Database); err != nil {
			return err
		}
	}
	if c.Notify.Transport == TransportSMTP {
		if err := validate.Struct(&c.SMTP); err != nil {
			return err
		}
	}
	for _, t := range c.Recipients {
		for _, r := range t.Ranges {
			for i := range r.Recipients {
				if err := validate.Struct(&r.Recipients[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Machines returns the compiled-in state machines with the configured approver restrictions applied.
func (c *Config) Machines() ([]*state.StateMachine, error) {
	machines := state.DefaultMachines()
	for _, rule := range c.Approvers {
		found := false
		for _, m := range machines {
			if m.Kind == rule.Kind {
				if err := m.Restrict(rule.State, rule.Roles...); err != nil {
					return nil, err
				}
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("approver rule for unknown kind %q: %w", rule.Kind, bizerror.ErrUnknownKind)
		}
	}
	return machines, nil
}

func (c *Config) Tables() []threshold.Table {
	if len(c.Recipients) == 0 {
		return threshold.DefaultTables()
	}
	return c.Recipients
}
