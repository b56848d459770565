package persona

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const ManifestFileName = "persona.yaml"

// Manifest names the persona and points at its documents. Relative paths are
// resolved against the manifest's directory.
type Manifest struct {
	Name        string `yaml:"name"`
	SummaryFile string `yaml:"summary_file"`
	ProfileFile string `yaml:"profile_file,omitempty"`
	ResumeFile  string `yaml:"resume_file,omitempty"`

	dir string
}

// LoadManifest reads a manifest file, or the persona.yaml inside a directory.
func LoadManifest(path string) (*Manifest, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open persona %s", path)
	}
	if fi.IsDir() {
		path = filepath.Join(path, ManifestFileName)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read persona manifest")
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, errors.Wrapf(err, "could not parse persona manifest %s", path)
	}
	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid persona manifest %s", path)
	}
	return m, nil
}

func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("name is required")
	}
	if m.SummaryFile == "" {
		return errors.New("summary_file is required")
	}
	return nil
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}
