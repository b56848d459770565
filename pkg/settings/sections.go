package settings

import (
	"embed"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed flags/*.yaml
var flagsFS embed.FS

// Flag describes one configuration parameter. Env lists well-known variables
// consulted after the prefixed one.
type Flag struct {
	Name    string      `yaml:"name"`
	Type    string      `yaml:"type"`
	Help    string      `yaml:"help"`
	Default interface{} `yaml:"default,omitempty"`
	Env     []string    `yaml:"env,omitempty"`
}

// Section groups flags of one concern.
type Section struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Flags       []Flag `yaml:"flags"`
}

var sectionFiles = []string{
	"flags/openai.yaml",
	"flags/evaluator.yaml",
	"flags/notify.yaml",
	"flags/persona.yaml",
	"flags/server.yaml",
}

func LoadSections() ([]*Section, error) {
	ret := make([]*Section, 0, len(sectionFiles))
	for _, f := range sectionFiles {
		b, err := flagsFS.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %s", f)
		}
		s := &Section{}
		if err := yaml.Unmarshal(b, s); err != nil {
			return nil, errors.Wrapf(err, "could not parse %s", f)
		}
		ret = append(ret, s)
	}
	return ret, nil
}

// AddFlags registers the section's flags on fs.
func (s *Section) AddFlags(fs *pflag.FlagSet) error {
	for _, f := range s.Flags {
		if fs.Lookup(f.Name) != nil {
			continue
		}
		switch f.Type {
		case "string":
			def, _ := f.Default.(string)
			fs.String(f.Name, def, f.Help)
		case "int":
			def, _ := f.Default.(int)
			fs.Int(f.Name, def, f.Help)
		case "bool":
			def, _ := f.Default.(bool)
			fs.Bool(f.Name, def, f.Help)
		case "duration":
			def, err := parseDuration(f.Default)
			if err != nil {
				return errors.Wrapf(err, "flag %s", f.Name)
			}
			fs.Duration(f.Name, def, f.Help)
		default:
			return errors.Errorf("flag %s: unsupported type %q", f.Name, f.Type)
		}
	}
	return nil
}

// Bind sets the section's defaults on v and binds each key to its prefixed
// environment variable followed by the well-known fallbacks.
func (s *Section) Bind(v *viper.Viper, envPrefix string) error {
	for _, f := range s.Flags {
		if f.Default != nil {
			v.SetDefault(f.Name, f.Default)
		}
		names := []string{f.Name, envName(envPrefix, f.Name)}
		names = append(names, f.Env...)
		if err := v.BindEnv(names...); err != nil {
			return errors.Wrapf(err, "could not bind env for %s", f.Name)
		}
	}
	return nil
}

func parseDuration(v interface{}) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		return time.ParseDuration(d)
	case int:
		return time.Duration(d) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration %v", v)
	}
}
