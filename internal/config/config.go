package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the data-entry project export.
const (
	DefaultURL        = "https://ncanda.sri.com/redcap/api/"
	DefaultTokenFile  = "~/.server_config/redcap-dataentry-token"
	DefaultOutputPath = "baseline_1yr_cases.csv"
	DefaultFormat     = FormatCSV
	DefaultTimeout    = 60 * time.Second
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Event names for the two study timepoints.
const (
	EventBaseline = "baseline_visit_arm_1"
	EventYear1    = "1y_visit_arm_1"
)

// Config is the complete export configuration.
type Config struct {
	REDCap  REDCap  `yaml:"redcap"`
	Query   Query   `yaml:"query"`
	Output  Output  `yaml:"output"`
	History History `yaml:"history"`
}

// REDCap describes how to reach the project API.
type REDCap struct {
	URL                string        `yaml:"url"`
	TokenFile          string        `yaml:"token_file"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// Query is the record export request sent to REDCap.
type Query struct {
	Fields []string `yaml:"fields"`
	Forms  []string `yaml:"forms"`
	Events []string `yaml:"events"`
}

// Output controls where the filtered cases are written.
type Output struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// History points at the optional run ledger. An empty Database disables it.
type History struct {
	Database string `yaml:"database"`
}

// Default returns the configuration the export has always used, with
// certificate verification enabled.
func Default() *Config {
	return &Config{
		REDCap: REDCap{
			URL:       DefaultURL,
			TokenFile: DefaultTokenFile,
			Timeout:   DefaultTimeout,
		},
		Query: Query{
			Fields: []string{"study_id", "exclude", "visit_ignore___yes", "mri_missing"},
			Forms:  []string{"mr_session_report", "visit_date", "demographics"},
			Events: []string{EventBaseline, EventYear1},
		},
		Output: Output{
			Path:   DefaultOutputPath,
			Format: DefaultFormat,
		},
	}
}

// Load builds a configuration from the defaults, the YAML file at path (if
// path is non-empty) and the environment. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML document at path into cfg. Keys absent from the
// file keep their current values; lists present in the file replace the
// current list.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ErrEmptyToken is returned by ReadToken when the token file holds only
// whitespace.
var ErrEmptyToken = errors.New("token file is empty")

// ReadToken returns the API token stored at path with surrounding
// whitespace removed. A leading "~/" is expanded to the user's home
// directory. Filesystem errors are returned wrapped, so errors.Is(err,
// fs.ErrNotExist) still works for a missing file.
func ReadToken(path string) (string, error) {
	resolved, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%s: %w", resolved, ErrEmptyToken)
	}
	return token, nil
}

// ExpandHome replaces a leading "~" path element with the user's home
// directory. Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
