package settings

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, BindViper(v))
	return v
}

func TestFromViperDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PUSHOVER_TOKEN", "")
	t.Setenv("PUSHOVER_USER", "")

	s, err := FromViper(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, NewSettings(), s)
	assert.Equal(t, "gpt-4o-mini", s.OpenAI.Model)
	assert.Equal(t, 60*time.Second, s.OpenAI.Timeout)
	assert.Equal(t, 10, s.OpenAI.MaxToolRounds)
	assert.Equal(t, 2, s.Evaluator.MaxRetries)
	assert.Equal(t, 300, s.Evaluator.MaxTokens)
	assert.Equal(t, 10*time.Second, s.Notify.Timeout)
	assert.False(t, s.Evaluator.Enabled())
	assert.ErrorIs(t, s.RequireOpenAI(), ErrMissingOpenAIKey)
}

func TestFromViperWellKnownEnvFallbacks(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("PUSHOVER_TOKEN", "tok")
	t.Setenv("PUSHOVER_USER", "usr")

	s, err := FromViper(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-plain", s.OpenAI.APIKey)
	assert.True(t, s.Evaluator.Enabled())
	assert.True(t, s.Notify.Pushover().Configured())
	assert.NoError(t, s.RequireOpenAI())
}

func TestFromViperPrefixedEnvWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	t.Setenv("CAREERTWIN_OPENAI_API_KEY", "sk-prefixed")
	t.Setenv("CAREERTWIN_MAX_RETRIES", "1")
	t.Setenv("CAREERTWIN_EVALUATOR_TIMEOUT", "5s")

	s, err := FromViper(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-prefixed", s.OpenAI.APIKey)
	assert.Equal(t, 1, s.Evaluator.MaxRetries)
	assert.Equal(t, 5*time.Second, s.Evaluator.Timeout)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, AddFlags(fs))
	require.NoError(t, fs.Parse([]string{"--max-retries", "0", "--openai-model", "gpt-4o", "--persona", "/srv/jane"}))

	v := newViper(t)
	require.NoError(t, v.BindPFlags(fs))

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Evaluator.MaxRetries)
	assert.Equal(t, "gpt-4o", s.OpenAI.Model)
	assert.Equal(t, "/srv/jane", s.Persona.Path)

	f := fs.Lookup("generator-timeout")
	require.NotNil(t, f)
	assert.Equal(t, "1m0s", f.DefValue)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"empty model", func(s *Settings) { s.OpenAI.Model = "" }},
		{"zero tool rounds", func(s *Settings) { s.OpenAI.MaxToolRounds = 0 }},
		{"negative retries", func(s *Settings) { s.Evaluator.MaxRetries = -1 }},
		{"negative timeout", func(s *Settings) { s.Notify.Timeout = -time.Second }},
		{"no persona", func(s *Settings) { s.Persona.Path = "" }},
		{"no addr", func(s *Settings) { s.Server.Addr = "" }},
		{"zero max tokens", func(s *Settings) { s.Evaluator.MaxTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
	assert.NoError(t, NewSettings().Validate())
}

func TestCloneDoesNotAlias(t *testing.T) {
	s := NewSettings()
	c := s.Clone()
	c.OpenAI.Model = "other"
	assert.Equal(t, "gpt-4o-mini", s.OpenAI.Model)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "CAREERTWIN_OPENAI_API_KEY", envName(EnvPrefix, "openai-api-key"))
	assert.Equal(t, "CAREERTWIN_ADDR", envName(EnvPrefix, "addr"))
}

func TestDurationDefaultAcceptsSeconds(t *testing.T) {
	section := &Section{
		Name: "test",
		Flags: []Flag{
			{Name: "slow-timeout", Type: "duration", Default: 60},
			{Name: "fast-timeout", Type: "duration", Default: "250ms"},
			{Name: "no-timeout", Type: "duration"},
		},
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, section.AddFlags(fs))

	slow, err := fs.GetDuration("slow-timeout")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, slow)

	fast, err := fs.GetDuration("fast-timeout")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, fast)

	none, err := fs.GetDuration("no-timeout")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), none)
}

func TestDurationDefaultRejectsOtherTypes(t *testing.T) {
	section := &Section{Flags: []Flag{{Name: "bad-timeout", Type: "duration", Default: 1.5}}}
	err := section.AddFlags(pflag.NewFlagSet("test", pflag.ContinueOnError))
	assert.Error(t, err)
}

func TestServerAddrHasItsOwnSection(t *testing.T) {
	sections, err := LoadSections()
	require.NoError(t, err)

	owners := map[string]string{}
	for _, s := range sections {
		for _, f := range s.Flags {
			owners[f.Name] = s.Name
		}
	}
	assert.Equal(t, "server", owners["addr"])
	assert.Equal(t, "persona", owners["persona"])

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, AddFlags(fs))
	require.NoError(t, fs.Parse([]string{"--addr", "127.0.0.1:9000"}))
	v := newViper(t)
	require.NoError(t, v.BindPFlags(fs))

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", s.Server.Addr)
	assert.Equal(t, "me", s.Persona.Path)
}

func TestAnthropicAllowLocal(t *testing.T) {
	assert.False(t, NewSettings().Evaluator.AllowLocal)

	t.Setenv("CAREERTWIN_ANTHROPIC_ALLOW_LOCAL", "true")
	s, err := FromViper(newViper(t))
	require.NoError(t, err)
	assert.True(t, s.Evaluator.AllowLocal)
}
