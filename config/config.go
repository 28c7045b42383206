package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/angas/imbalance-go/hours"
	"github.com/angas/imbalance-go/logging"
	"github.com/angas/imbalance-go/opendata"
	"github.com/angas/imbalance-go/openmeteo"
)

type AppConfigPriceSource struct {
	// Open-data records endpoint, prompted for when empty and stdin is a terminal.
	URL        string  `mapstructure:"url" validate:"omitempty,url"`
	Q          *string `mapstructure:"q"`
	Rows       *int    `mapstructure:"rows" validate:"omitempty,min=1"`
	Start      *int    `mapstructure:"start" validate:"omitempty,min=0"`
	Facet      *string `mapstructure:"facet"`
	PriceField *string `mapstructure:"price_field"` // Dotted path of the price, default: fields.imbalanceprice
	TimeField  *string `mapstructure:"time_field"`  // Dotted path of the timestamp, default: fields.datetime
}

func (s AppConfigPriceSource) GetQuery() opendata.Query {
	q := opendata.DefaultQuery()
	if s.Q != nil {
		q.Q = *s.Q
	}
	if s.Rows != nil {
		q.Rows = *s.Rows
	}
	if s.Start != nil {
		q.Start = *s.Start
	}
	if s.Facet != nil {
		q.Facet = *s.Facet
	}
	return q
}

func (s AppConfigPriceSource) GetSchema() opendata.Schema {
	schema := opendata.DefaultSchema()
	if s.PriceField != nil {
		schema.PriceField = *s.PriceField
	}
	if s.TimeField != nil {
		schema.TimeField = *s.TimeField
	}
	return schema
}

type AppConfigIntervalSource struct {
	// Page holding the interval price table, prompted for when empty.
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

type AppConfigWeatherSource struct {
	// If not assigned, the Open-Meteo archive API is used.
	URL       *string `mapstructure:"url" validate:"omitempty,url"`
	Latitude  float64 `mapstructure:"latitude" validate:"latitude"`   // WGS84
	Longitude float64 `mapstructure:"longitude" validate:"longitude"` // WGS84
	StartDate string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
}

func (w AppConfigWeatherSource) GetURL() string {
	if w.URL == nil {
		return openmeteo.BASE_URL
	}
	return *w.URL
}

func (w AppConfigWeatherSource) GetRequest() openmeteo.Request {
	return openmeteo.Request{
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
		StartDate: w.StartDate,
		EndDate:   w.EndDate,
	}
}

type AppConfigSources struct {
	ImbalanceJSON AppConfigPriceSource    `mapstructure:"imbalance_json"`
	ImbalanceHTML AppConfigIntervalSource `mapstructure:"imbalance_html"`
	Weather       AppConfigWeatherSource  `mapstructure:"weather"`
}

type AppConfigNormalize struct {
	// Calendar day interval labels are anchored to, "YYYY-MM-DD"
	ReferenceDate string `mapstructure:"reference_date" validate:"required,datetime=2006-01-02"`
	// Timezone of naive timestamps and interval labels, default: UTC
	Timezone *string `mapstructure:"timezone"`
}

func (n AppConfigNormalize) GetTimezone() string {
	if n.Timezone == nil {
		return "UTC"
	}
	return *n.Timezone
}

func (n AppConfigNormalize) GetLocation() (*time.Location, error) {
	return hours.LoadLocation(n.GetTimezone())
}

func (n AppConfigNormalize) GetReferenceDate() (hours.Date, error) {
	loc, err := n.GetLocation()
	if err != nil {
		return hours.Date{}, err
	}
	return hours.ParseDate(n.ReferenceDate, loc)
}

type AppConfigOutput struct {
	Dir string `mapstructure:"dir" validate:"required"`
	// If assigned, report templates are read from <www_dir>/templates and reloaded on change.
	WwwDir *string `mapstructure:"www_dir"`
}

type AppConfigAnalysis struct {
	HistogramBins *int `mapstructure:"histogram_bins" validate:"omitempty,min=1"`
}

func (a AppConfigAnalysis) GetHistogramBins() int {
	if a.HistogramBins == nil {
		return 50
	}
	return *a.HistogramBins
}

type AppConfigDatabase struct {
	Path string `mapstructure:"path" validate:"required"`
	// How many days runs should be kept in the journal before they get purged
	RunRetentionDays *int `mapstructure:"run_retention_days"`
	// How many days backup files should be kept before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetRunRetentionDays() int {
	if d.RunRetentionDays == nil {
		return 90
	}
	return *d.RunRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigSchedule struct {
	// Cron expression for the pipeline, empty runs once and exits
	RunAt string `mapstructure:"run_at"`
	// Cron expression for journal maintenance, default: "15 3 * * *"
	MaintenanceAt *string `mapstructure:"maintenance_at"`
}

func (s AppConfigSchedule) GetMaintenanceAt() string {
	if s.MaintenanceAt == nil {
		return "15 3 * * *"
	}
	return *s.MaintenanceAt
}

type AppConfigMqtt struct {
	// Publishing is disabled when no host is assigned
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic" validate:"required_with=Host"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

type AppConfigHttp struct {
	// Timeout of a single source request, default: 30s
	Timeout *time.Duration `mapstructure:"timeout"`
}

func (h AppConfigHttp) GetTimeout() time.Duration {
	if h.Timeout == nil {
		return 30 * time.Second
	}
	return *h.Timeout
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Sources   AppConfigSources   `mapstructure:"sources"`
	Normalize AppConfigNormalize `mapstructure:"normalize"`
	Output    AppConfigOutput    `mapstructure:"output"`
	Analysis  AppConfigAnalysis  `mapstructure:"analysis"`
	Database  AppConfigDatabase  `mapstructure:"database"`
	Schedule  AppConfigSchedule  `mapstructure:"schedule"`
	Mqtt      AppConfigMqtt      `mapstructure:"mqtt"`
	Http      AppConfigHttp      `mapstructure:"http"`
	Logging   AppConfigLogging   `mapstructure:"logging"`
}

var validate = validator.New()

// Loader reads the configuration from a YAML file, environment variables
// (SOURCES_WEATHER_LATITUDE overrides sources.weather.latitude) and an
// optional .env file in the working directory.
type Loader struct {
	v *viper.Viper
}

func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return &Loader{v: v}
}

// Keys known to viper up front can be set from the environment alone.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.imbalance_json.url", "")
	v.SetDefault("sources.imbalance_html.url", "")
	v.SetDefault("sources.weather.latitude", 52.52)
	v.SetDefault("sources.weather.longitude", 13.41)
	v.SetDefault("sources.weather.start_date", "2024-01-01")
	v.SetDefault("sources.weather.end_date", "2024-07-31")
	v.SetDefault("normalize.reference_date", "2024-01-01")
	v.SetDefault("output.dir", "output")
	v.SetDefault("database.path", "imbalance.db")
	v.SetDefault("schedule.run_at", "")
	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "")
}

func (l *Loader) Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		slog.Default().Warn("no config file found, using defaults and environment")
	}

	var c AppConfig
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Normalize.GetLocation(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &c, nil
}

// Watch calls onChange with the reloaded configuration each time the config
// file is written. Invalid edits are logged and ignored.
func (l *Loader) Watch(onChange func(*AppConfig)) {
	logger := slog.Default().With("module", "config")
	l.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		c, err := l.Load()
		if err != nil {
			logger.Error("config reload failed, keeping previous", slog.Any("error", err))
			return
		}
		onChange(c)
	})
	l.v.WatchConfig()
}

// Load is a shorthand for NewLoader(path).Load().
func Load(path string) (*AppConfig, error) {
	return NewLoader(path).Load()
}
