// Package config resolves the run configuration from defaults, an optional
// HCL or YAML file, .env files and DIABENCH_* environment variables, in
// increasing order of precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DIABENCH_"

// Config holds everything the pipeline needs besides the data itself.
type Config struct {
	DataPath   string  `yaml:"data_path" validate:"required"`
	OutputDir  string  `yaml:"output_dir" validate:"required"`
	Seed       int64   `yaml:"seed"`
	TestSize   float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	CVFolds    int     `yaml:"cv_folds" validate:"gte=2"`
	NJobs      int     `yaml:"n_jobs" validate:"gte=-1"`
	LogLevel   string  `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat  string  `yaml:"log_format" validate:"oneof=json console"`
	ExportXLSX bool    `yaml:"export_xlsx"`
	Charts     bool    `yaml:"charts"`
	NoColor    bool    `yaml:"no_color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataPath:   "diabetesTotall.csv",
		OutputDir:  "out",
		Seed:       42,
		TestSize:   0.3,
		CVFolds:    5,
		NJobs:      -1,
		LogLevel:   "info",
		LogFormat:  "console",
		ExportXLSX: true,
		Charts:     true,
	}
}

// fileConfig is the on-disk shape; nil fields keep the lower-precedence value.
type fileConfig struct {
	DataPath   *string  `hcl:"data_path,optional" yaml:"data_path"`
	OutputDir  *string  `hcl:"output_dir,optional" yaml:"output_dir"`
	Seed       *int64   `hcl:"seed,optional" yaml:"seed"`
	TestSize   *float64 `hcl:"test_size,optional" yaml:"test_size"`
	CVFolds    *int     `hcl:"cv_folds,optional" yaml:"cv_folds"`
	NJobs      *int     `hcl:"n_jobs,optional" yaml:"n_jobs"`
	LogLevel   *string  `hcl:"log_level,optional" yaml:"log_level"`
	LogFormat  *string  `hcl:"log_format,optional" yaml:"log_format"`
	ExportXLSX *bool    `hcl:"export_xlsx,optional" yaml:"export_xlsx"`
	Charts     *bool    `hcl:"charts,optional" yaml:"charts"`
	NoColor    *bool    `hcl:"no_color,optional" yaml:"no_color"`
}

func (f *fileConfig) apply(c *Config) {
	if f.DataPath != nil {
		c.DataPath = *f.DataPath
	}
	if f.OutputDir != nil {
		c.OutputDir = *f.OutputDir
	}
	if f.Seed != nil {
		c.Seed = *f.Seed
	}
	if f.TestSize != nil {
		c.TestSize = *f.TestSize
	}
	if f.CVFolds != nil {
		c.CVFolds = *f.CVFolds
	}
	if f.NJobs != nil {
		c.NJobs = *f.NJobs
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogFormat != nil {
		c.LogFormat = *f.LogFormat
	}
	if f.ExportXLSX != nil {
		c.ExportXLSX = *f.ExportXLSX
	}
	if f.Charts != nil {
		c.Charts = *f.Charts
	}
	if f.NoColor != nil {
		c.NoColor = *f.NoColor
	}
}

// Load resolves the configuration. path may be empty; otherwise it must be
// a .hcl, .yaml or .yml file. envFiles are loaded with godotenv when they
// exist and never override variables already set in the environment.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return cfg, err
		}
		fc.apply(&cfg)
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			return cfg, errors.Wrapf(err, "load %s", envFile)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func readFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, errors.Newf("parse %s: %s", path, diags.Error())
		}
		if diags := gohcl.DecodeBody(file.Body, nil, fc); diags.HasErrors() {
			return nil, errors.Newf("decode %s: %s", path, diags.Error())
		}
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(fc); err != nil {
			return nil, errors.Wrapf(err, "decode %s", path)
		}
	default:
		return nil, errors.NewValueError("config.Load", fmt.Sprintf("unsupported config file type %q (want .hcl, .yaml or .yml)", ext))
	}
	return fc, nil
}

// applyEnv overrides fields from DIABENCH_<YAML_NAME> variables.
func applyEnv(c *Config) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		key := EnvPrefix + strings.ToUpper(name)
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return errors.NewValidationError(key, "must be an integer", raw)
			}
			field.SetInt(n)
		case reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return errors.NewValidationError(key, "must be a number", raw)
			}
			field.SetFloat(f)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return errors.NewValidationError(key, "must be a boolean", raw)
			}
			field.SetBool(b)
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.Split(f.Tag.Get("yaml"), ",")[0]
	})
	return v
}

// Validate checks value ranges; the first violation is returned as a
// ValidationError named after the config key.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return errors.NewValidationError(fe.Field(), "violates "+rule, fe.Value())
	}
	return errors.Wrap(err, "validate config")
}

// WorkbookPath is the XLSX export target, or "" when export is disabled.
func (c Config) WorkbookPath() string {
	if !c.ExportXLSX {
		return ""
	}
	return filepath.Join(c.OutputDir, "resultados.xlsx")
}

// LogLevelValue parses LogLevel.
func (c Config) LogLevelValue() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// Fields returns the configuration as logger key-value pairs.
func (c Config) Fields() []any {
	return []any{
		log.PathKey, c.DataPath,
		log.OutputDirKey, c.OutputDir,
		log.RandomSeedKey, c.Seed,
		log.TestSizeKey, c.TestSize,
		log.CVFoldsKey, c.CVFolds,
		log.NJobsKey, c.NJobs,
	}
}
