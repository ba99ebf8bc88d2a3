package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone data for hosts without a system database

	"github.com/hashicorp/go-multierror"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/xitongsys/parquet-go/parquet"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

// DefaultPath is the config file read by the command.
const DefaultPath = "dl.yaml"

// ErrMissingCredentials is returned when an S3 location is configured
// without an access key pair.
var ErrMissingCredentials = errors.New("missing AWS credentials")

// Config holds all configuration for the ETL job.
// Values come from dl.yaml; environment variables override them.
type Config struct {
	AWS AWSConfig `yaml:"aws"`

	// Input and output locations. s3a:// and s3n:// are read as s3://.
	InputData  string `yaml:"input_data" env:"INPUT_DATA" env-default:"s3a://udacity-dend/"`
	OutputData string `yaml:"output_data" env:"OUTPUT_DATA" env-default:"s3a://project4-dend/"`

	// Timezone renders event timestamps as local wall clock time.
	Timezone string `yaml:"timezone" env:"ETL_TIMEZONE" env-default:"America/Los_Angeles"`

	// Workers bounds parallel reads and uploads. 0 means 2 x NumCPU.
	Workers     int    `yaml:"workers" env:"ETL_WORKERS" env-default:"0"`
	TempDir     string `yaml:"temp_dir" env:"ETL_TEMP_DIR" env-default:""`
	Compression string `yaml:"compression" env:"ETL_COMPRESSION" env-default:"SNAPPY"`
	StatsPath   string `yaml:"stats_path" env:"ETL_STATS_PATH" env-default:"etl_stats.json"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// SkipPreflight disables the output write check done before reading.
	SkipPreflight bool          `yaml:"skip_preflight" env:"ETL_SKIP_PREFLIGHT" env-default:"false"`
	JobTimeout    time.Duration `yaml:"job_timeout" env:"ETL_JOB_TIMEOUT" env-default:"6h"`
}

// AWSConfig holds the S3 connection settings.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-west-2"`
	// Endpoint is set for S3 compatible stores such as MinIO.
	Endpoint       string `yaml:"endpoint" env:"AWS_ENDPOINT" env-default:""`
	ForcePathStyle bool   `yaml:"force_path_style" env:"AWS_S3_FORCE_PATH_STYLE" env-default:"false"`
}

// Load reads path with environment variable overrides. A missing file is
// not an error; the environment and defaults are used alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	input, err := storage.ParsePath(c.InputData)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("input_data: %w", err))
	}
	output, err := storage.ParsePath(c.OutputData)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("output_data: %w", err))
	}
	if input.Kind() == storage.KindS3 || output.Kind() == storage.KindS3 {
		if c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == "" {
			result = multierror.Append(result, fmt.Errorf("%w: access_key_id and secret_access_key are required for s3 locations", ErrMissingCredentials))
		}
		if c.AWS.Region == "" {
			result = multierror.Append(result, errors.New("aws.region is required for s3 locations"))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		result = multierror.Append(result, fmt.Errorf("timezone: %w", err))
	}
	if c.Workers < 0 {
		result = multierror.Append(result, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := c.CompressionCodec(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.Level(); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}
	if c.JobTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("job_timeout must be positive, got %s", c.JobTimeout))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// InputPath is the parsed input location.
func (c *Config) InputPath() (storage.Path, error) {
	return storage.ParsePath(c.InputData)
}

// OutputPath is the parsed output location.
func (c *Config) OutputPath() (storage.Path, error) {
	return storage.ParsePath(c.OutputData)
}

// UsesS3 reports whether either location lives in S3.
func (c *Config) UsesS3() bool {
	in, _ := c.InputPath()
	out, _ := c.OutputPath()
	return in.Kind() == storage.KindS3 || out.Kind() == storage.KindS3
}

// Level parses log_level. An empty value means info.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// CompressionCodec parses the Parquet compression name, e.g. SNAPPY or GZIP.
func (c *Config) CompressionCodec() (parquet.CompressionCodec, error) {
	codec, err := parquet.CompressionCodecFromString(strings.ToUpper(c.Compression))
	if err != nil {
		return 0, fmt.Errorf("compression: %w", err)
	}
	return codec, nil
}

func (c *Config) S3Config() storage.S3Config {
	return storage.S3Config{
		Region:          c.AWS.Region,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Endpoint:        c.AWS.Endpoint,
		ForcePathStyle:  c.AWS.ForcePathStyle,
	}
}

// LogFields describes the configuration for logging, with secrets masked.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("input_data", c.InputData),
		zap.String("output_data", c.OutputData),
		zap.String("aws_region", c.AWS.Region),
		zap.String("aws_endpoint", c.AWS.Endpoint),
		zap.String("aws_access_key_id", mask(c.AWS.AccessKeyID)),
		zap.String("aws_secret_access_key", mask(c.AWS.SecretAccessKey)),
		zap.String("timezone", c.Timezone),
		zap.Int("workers", c.Workers),
		zap.String("compression", c.Compression),
		zap.Duration("job_timeout", c.JobTimeout),
	}
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
