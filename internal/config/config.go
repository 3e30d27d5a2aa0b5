// Package config loads pipeline settings from flags, environment, .env files
// and an optional YAML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. COMMENT_MAP_DATA_DIR
const EnvPrefix = "COMMENT_MAP"

// Default endpoints
const (
	DefaultBLMBaseURL      = "https://eplanning.blm.gov"
	DefaultBLMLocationURL  = "https://eplanning.blm.gov/arcgisfed/rest/services/Proj_Loc_FO/BLM_ePlan_Proj_Loc/MapServer/4/query"
	DefaultSOPABaseURL     = "https://www.fs.usda.gov/sopa/"
	DefaultDistrictsURL    = "https://apps.fs.usda.gov/arcx/rest/services/EDW/EDW_RangerDistricts_01/MapServer/0"
	DefaultDistrictsTTL    = 7 * 24 * time.Hour
	DefaultRequestsPerSec  = 1.0
	DefaultRequestTimeout  = 30 * time.Second
	DefaultNoticeWindowDay = 30
)

// Config holds the resolved pipeline configuration
type Config struct {
	ConfigFile string

	State   string
	DataDir string
	WebDir  string
	AsOf    time.Time

	UserAgent   string
	HTTPTimeout time.Duration
	HTTPRate    float64
	HTTPBurst   int

	BLM  BLMConfig
	USFS USFSConfig

	LogLevel  string
	LogFormat string

	MetricsTextfile string
	ArchivePath     string
	ManifestPath    string
}

// BLMConfig holds ePlanning settings
type BLMConfig struct {
	BaseURL     string
	LocationURL string
	Tabs        []string
}

// USFSConfig holds SOPA and ranger district settings
type USFSConfig struct {
	SOPABaseURL      string
	SOPACycle        string
	ScanPDF          bool
	DistrictsURL     string
	DistrictsFile    string
	DistrictCacheTTL time.Duration
	Aliases          map[string]string
	NoticeWindowDays int
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("state", "CO")
	v.SetDefault("data_dir", "data")
	v.SetDefault("web_dir", "web")
	v.SetDefault("as_of", "")
	v.SetDefault("user_agent", "")
	v.SetDefault("http.timeout", DefaultRequestTimeout)
	v.SetDefault("http.rate", DefaultRequestsPerSec)
	v.SetDefault("http.burst", 1)
	v.SetDefault("blm.base_url", DefaultBLMBaseURL)
	v.SetDefault("blm.location_url", DefaultBLMLocationURL)
	v.SetDefault("blm.tabs", []string{"510", "570", "565"})
	v.SetDefault("usfs.sopa_base_url", DefaultSOPABaseURL)
	v.SetDefault("usfs.sopa_cycle", "")
	v.SetDefault("usfs.scan_pdf", true)
	v.SetDefault("usfs.districts_url", DefaultDistrictsURL)
	v.SetDefault("usfs.districts_file", "")
	v.SetDefault("usfs.district_cache_ttl", DefaultDistrictsTTL)
	v.SetDefault("usfs.aliases", map[string]string{
		"bears ears ranger district": "hahns peak/bears ears ranger district",
	})
	v.SetDefault("usfs.notice_window_days", DefaultNoticeWindowDay)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("archive.path", "")
	v.SetDefault("manifest", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configuration in order of precedence:
// 1. Command-line flags (bound by the caller)
// 2. Environment variables (COMMENT_MAP_*)
// 3. .env and .env.local
// 4. Config file (explicit path, or .comment-map.yaml in cwd or home)
// 5. Defaults
func Load(v *viper.Viper, configFile string) (*Config, error) {
	loadEnvFiles()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(".comment-map")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	return FromViper(v)
}

// FromViper resolves a Config from an already-populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ConfigFile:  v.ConfigFileUsed(),
		State:       strings.ToUpper(strings.TrimSpace(v.GetString("state"))),
		DataDir:     expandHome(v.GetString("data_dir")),
		WebDir:      expandHome(v.GetString("web_dir")),
		UserAgent:   v.GetString("user_agent"),
		HTTPTimeout: v.GetDuration("http.timeout"),
		HTTPRate:    v.GetFloat64("http.rate"),
		HTTPBurst:   v.GetInt("http.burst"),
		BLM: BLMConfig{
			BaseURL:     strings.TrimRight(v.GetString("blm.base_url"), "/"),
			LocationURL: v.GetString("blm.location_url"),
			Tabs:        v.GetStringSlice("blm.tabs"),
		},
		USFS: USFSConfig{
			SOPABaseURL:      v.GetString("usfs.sopa_base_url"),
			SOPACycle:        v.GetString("usfs.sopa_cycle"),
			ScanPDF:          v.GetBool("usfs.scan_pdf"),
			DistrictsURL:     v.GetString("usfs.districts_url"),
			DistrictsFile:    v.GetString("usfs.districts_file"),
			DistrictCacheTTL: v.GetDuration("usfs.district_cache_ttl"),
			Aliases:          v.GetStringMapString("usfs.aliases"),
			NoticeWindowDays: v.GetInt("usfs.notice_window_days"),
		},
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		MetricsTextfile: v.GetString("metrics.textfile"),
		ArchivePath:     v.GetString("archive.path"),
		ManifestPath:    v.GetString("manifest"),
	}

	if asOf := strings.TrimSpace(v.GetString("as_of")); asOf != "" {
		t, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid as_of %q (want YYYY-MM-DD): %w", asOf, err)
		}
		cfg.AsOf = t
	}

	if cfg.State == "" {
		return nil, fmt.Errorf("state is required")
	}
	if cfg.HTTPRate <= 0 {
		return nil, fmt.Errorf("http.rate must be positive, got %v", cfg.HTTPRate)
	}
	if cfg.HTTPBurst < 1 {
		cfg.HTTPBurst = 1
	}
	if cfg.USFS.SOPACycle != "" {
		if _, err := time.Parse("2006-01", cfg.USFS.SOPACycle); err != nil {
			return nil, fmt.Errorf("invalid usfs.sopa_cycle %q (want YYYY-MM): %w", cfg.USFS.SOPACycle, err)
		}
	}

	return cfg, nil
}

// Now returns the reference date for status classification: as_of when set,
// otherwise the current time.
func (c *Config) Now() time.Time {
	if !c.AsOf.IsZero() {
		return c.AsOf
	}
	return time.Now().UTC()
}

// Cycle returns the SOPA report cycle (YYYY-MM), defaulting to the month of Now
func (c *Config) Cycle() string {
	if c.USFS.SOPACycle != "" {
		return c.USFS.SOPACycle
	}
	return c.Now().Format("2006-01")
}

// Path joins elem under the data directory
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// loadEnvFiles loads .env then .env.local; neither is required.
// godotenv.Load never overrides variables already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func expandHome(dir string) string {
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[2:])
		}
	}
	return dir
}
