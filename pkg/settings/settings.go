// Package settings holds the runtime configuration of the career agent and
// its binding to flags, environment and config files through viper.
package settings

import (
	"strings"
	"time"

	"github.com/go-go-golems/careertwin/pkg/notify"
	"github.com/huandu/go-clone"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CAREERTWIN"

type OpenAISettings struct {
	APIKey        string        `yaml:"api_key,omitempty"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxToolRounds int           `yaml:"max_tool_rounds"`
}

type EvaluatorSettings struct {
	APIKey     string        `yaml:"api_key,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// AllowLocal lets BaseURL point at http or private network hosts.
	AllowLocal bool          `yaml:"allow_local"`
}

// Enabled reports whether a credential for the judge model is present.
func (e EvaluatorSettings) Enabled() bool {
	return strings.TrimSpace(e.APIKey) != ""
}

type NotifySettings struct {
	PushoverToken string        `yaml:"pushover_token,omitempty"`
	PushoverUser  string        `yaml:"pushover_user,omitempty"`
	PushoverURL   string        `yaml:"pushover_url,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
}

func (n NotifySettings) Pushover() notify.PushoverSettings {
	return notify.PushoverSettings{
		Token:   n.PushoverToken,
		User:    n.PushoverUser,
		URL:     n.PushoverURL,
		Timeout: n.Timeout,
	}
}

type PersonaSettings struct {
	Path string `yaml:"path"`
}

type ServerSettings struct {
	Addr string `yaml:"addr"`
}

type Settings struct {
	OpenAI    OpenAISettings    `yaml:"openai"`
	Evaluator EvaluatorSettings `yaml:"evaluator"`
	Notify    NotifySettings    `yaml:"notify"`
	Persona   PersonaSettings   `yaml:"persona"`
	Server    ServerSettings    `yaml:"server"`
}

func NewSettings() *Settings {
	return &Settings{
		OpenAI: OpenAISettings{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			Timeout:       60 * time.Second,
			MaxToolRounds: 10,
		},
		Evaluator: EvaluatorSettings{
			BaseURL:    "https://api.anthropic.com",
			Model:      "claude-3-7-sonnet-latest",
			MaxTokens:  300,
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		Notify: NotifySettings{
			PushoverURL: notify.DefaultPushoverURL,
			Timeout:     notify.DefaultPushoverTimeout,
		},
		Persona: PersonaSettings{
			Path: "me",
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// AddFlags registers every configuration flag on fs.
func AddFlags(fs *pflag.FlagSet) error {
	sections, err := LoadSections()
	if err != nil {
		return err
	}
	for _, s := range sections {
		if err := s.AddFlags(fs); err != nil {
			return err
		}
	}
	return nil
}

// BindViper installs defaults and environment bindings for every key.
func BindViper(v *viper.Viper) error {
	sections, err := LoadSections()
	if err != nil {
		return err
	}
	for _, s := range sections {
		if err := s.Bind(v, EnvPrefix); err != nil {
			return err
		}
	}
	return nil
}

// FromViper reads the settings from v. Keys v does not know keep their
// defaults.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := NewSettings()

	setString(v, "openai-api-key", &s.OpenAI.APIKey)
	setString(v, "openai-base-url", &s.OpenAI.BaseURL)
	setString(v, "openai-model", &s.OpenAI.Model)
	setDuration(v, "generator-timeout", &s.OpenAI.Timeout)
	setInt(v, "max-tool-rounds", &s.OpenAI.MaxToolRounds)

	setString(v, "anthropic-api-key", &s.Evaluator.APIKey)
	setString(v, "anthropic-base-url", &s.Evaluator.BaseURL)
	setString(v, "evaluator-model", &s.Evaluator.Model)
	setInt(v, "evaluator-max-tokens", &s.Evaluator.MaxTokens)
	setDuration(v, "evaluator-timeout", &s.Evaluator.Timeout)
	setInt(v, "max-retries", &s.Evaluator.MaxRetries)
	setBool(v, "anthropic-allow-local", &s.Evaluator.AllowLocal)

	setString(v, "pushover-token", &s.Notify.PushoverToken)
	setString(v, "pushover-user", &s.Notify.PushoverUser)
	setString(v, "pushover-url", &s.Notify.PushoverURL)
	setDuration(v, "notify-timeout", &s.Notify.Timeout)

	setString(v, "persona", &s.Persona.Path)
	setString(v, "addr", &s.Server.Addr)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings needed by every command. The OpenAI key is
// checked separately by commands that call the model.
func (s *Settings) Validate() error {
	if s.OpenAI.Model == "" {
		return errors.New("openai-model cannot be empty")
	}
	if s.OpenAI.MaxToolRounds <= 0 {
		return errors.Errorf("max-tool-rounds must be positive, got %d", s.OpenAI.MaxToolRounds)
	}
	if s.OpenAI.Timeout < 0 || s.Evaluator.Timeout < 0 || s.Notify.Timeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if s.Evaluator.MaxRetries < 0 {
		return errors.Errorf("max-retries cannot be negative, got %d", s.Evaluator.MaxRetries)
	}
	if s.Evaluator.Enabled() && s.Evaluator.Model == "" {
		return errors.New("evaluator-model cannot be empty when an anthropic key is set")
	}
	if s.Evaluator.MaxTokens <= 0 {
		return errors.Errorf("evaluator-max-tokens must be positive, got %d", s.Evaluator.MaxTokens)
	}
	if s.Persona.Path == "" {
		return errors.New("persona cannot be empty")
	}
	if s.Server.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	return nil
}

var ErrMissingOpenAIKey = errors.New("no OpenAI API key configured (set OPENAI_API_KEY or --openai-api-key)")

func (s *Settings) RequireOpenAI() error {
	if strings.TrimSpace(s.OpenAI.APIKey) == "" {
		return ErrMissingOpenAIKey
	}
	return nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

func envName(prefix, key string) string {
	return prefix + "_" + strcase.ToScreamingSnake(key)
}
