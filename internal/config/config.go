package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultInfrastructureRanges are the Cloudflare edge networks. Addresses inside them
// are shared by unrelated users and never count as evidence.
var DefaultInfrastructureRanges = []string{
	"173.245.48.0/20",
	"103.21.244.0/22",
	"103.22.200.0/22",
	"103.31.4.0/22",
	"141.101.64.0/18",
	"108.162.192.0/18",
	"190.93.240.0/20",
	"188.114.96.0/20",
	"197.234.240.0/22",
	"198.41.128.0/17",
	"162.158.0.0/15",
	"104.16.0.0/13",
	"104.24.0.0/14",
	"172.64.0.0/13",
	"131.0.72.0/22",
}

// Config is the full configuration of a scan.
type Config struct {
	Input     InputConfig     `koanf:"input" yaml:"input"`
	Output    OutputConfig    `koanf:"output" yaml:"output"`
	Detection DetectionConfig `koanf:"detection" yaml:"detection"`
	Lookup    LookupConfig    `koanf:"lookup" yaml:"lookup"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
}

// InputConfig names the three CTFd exports.
type InputConfig struct {
	TrackingFile string `koanf:"tracking_file" yaml:"tracking_file" validate:"required"`
	UsersFile    string `koanf:"users_file" yaml:"users_file" validate:"required"`
	TeamsFile    string `koanf:"teams_file" yaml:"teams_file" validate:"required"`
}

// OutputConfig controls the report and the terminal table.
type OutputConfig struct {
	ReportFile string `koanf:"report_file" yaml:"report_file" validate:"required"`

	// Timestamped prefixes the report file name with the run's task id.
	Timestamped bool `koanf:"timestamped" yaml:"timestamped"`

	// BOM writes a UTF-8 byte order mark so spreadsheet tools detect the encoding.
	BOM   bool `koanf:"bom" yaml:"bom"`
	Table bool `koanf:"table" yaml:"table"`
}

// DetectionConfig tunes shared-IP detection.
type DetectionConfig struct {
	InfrastructureRanges []string `koanf:"infrastructure_ranges" yaml:"infrastructure_ranges" validate:"dive,cidr"`

	// DistinctUnknownTeams counts every user without a team as a team of its own
	// instead of collapsing them all into "Unknown".
	DistinctUnknownTeams bool `koanf:"distinct_unknown_teams" yaml:"distinct_unknown_teams"`

	// MinIPsPerSegment is the number of flagged addresses a /24 (or /64) needs
	// before it is reported in the segment rollup. 0 disables the rollup.
	MinIPsPerSegment int `koanf:"min_ips_per_segment" yaml:"min_ips_per_segment" validate:"min=0"`
}

// LookupConfig configures the ISP lookup service.
type LookupConfig struct {
	Enabled bool          `koanf:"enabled" yaml:"enabled"`
	BaseURL string        `koanf:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout" validate:"min=0"`

	// Interval is the minimum spacing between two requests. ip-api.com allows
	// 45 requests a minute on the free tier.
	Interval        time.Duration `koanf:"interval" yaml:"interval" validate:"min=0"`
	Retries         int           `koanf:"retries" yaml:"retries" validate:"min=0,max=10"`
	RetryDelay      time.Duration `koanf:"retry_delay" yaml:"retry_delay" validate:"min=0"`
	BreakerFailures int           `koanf:"breaker_failures" yaml:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" yaml:"breaker_timeout" validate:"min=0"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" yaml:"format" validate:"omitempty,oneof=json console auto"`
}

// Default returns the configuration used when neither a file nor env vars set a value.
func Default() *Config {
	ranges := make([]string, len(DefaultInfrastructureRanges))
	copy(ranges, DefaultInfrastructureRanges)
	return &Config{
		Input: InputConfig{
			TrackingFile: "tracking.csv",
			UsersFile:    "users.csv",
			TeamsFile:    "teams.csv",
		},
		Output: OutputConfig{
			ReportFile: "shared_ips_results.csv",
			Table:      true,
		},
		Detection: DetectionConfig{
			InfrastructureRanges: ranges,
			MinIPsPerSegment:     3,
		},
		Lookup: LookupConfig{
			Enabled:         true,
			BaseURL:         "http://ip-api.com",
			Timeout:         5 * time.Second,
			Interval:        time.Second,
			Retries:         2,
			RetryDelay:      3 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// MinLookupInterval is the lowest request spacing the public lookup service tolerates.
const MinLookupInterval = time.Second

// Validate checks field constraints and the cross-field rules validator tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Lookup.Enabled && c.Lookup.BaseURL == "" {
		return errors.New("invalid config: lookup.base_url is required while lookup is enabled")
	}
	if c.Lookup.Enabled && c.Lookup.Interval < MinLookupInterval {
		return fmt.Errorf("invalid config: lookup.interval %s is below the %s minimum", c.Lookup.Interval, MinLookupInterval)
	}

	return nil
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create default config: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(defaultHeader); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return enc.Close()
}

const defaultHeader = `# ctfd-ip-scan configuration
#
# input:      CSV exports (tracking: ip,user_id / users: id,name,team_id / teams: id,name|oauth_id|email)
# detection:  infrastructure_ranges are skipped before the team check (Cloudflare edges by default)
# lookup:     ISP enrichment through ip-api.com; interval must stay >= 1s while enabled
# Every key can be overridden with IPSCAN_<SECTION>_<KEY>, e.g. IPSCAN_LOOKUP_ENABLED=false
`
