package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string           `yaml:"port"`
	Environment    string           `yaml:"environment"`
	AllowedOrigins []string         `yaml:"allowed_origins"`
	JWTSecret      string           `yaml:"jwt_secret"`
	AuthRequired   bool             `yaml:"auth_required"`
	Logging        LoggingConfig    `yaml:"logging"`
	Redis          RedisConfig      `yaml:"redis"`
	Storage        StorageConfig    `yaml:"storage"`
	Render         RenderConfig     `yaml:"render"`
	Pipeline       PipelineConfig   `yaml:"pipeline"`
	Transcriber    ServiceConfig    `yaml:"transcriber"`
	Summarizer     SummarizerConfig `yaml:"summarizer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	Backend string        `yaml:"backend"` // disk | http
	Dir     string        `yaml:"dir"`
	URL     string        `yaml:"url"`
	Bucket  string        `yaml:"bucket"`
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
}

// RenderConfig is the compositing policy applied by /render.
type RenderConfig struct {
	IntroPath    string   `yaml:"intro_path"`
	OutroPath    string   `yaml:"outro_path"`
	Order        []string `yaml:"order"`
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
	FPS          int      `yaml:"fps"`
	SampleRate   int      `yaml:"sample_rate"`
	DisableUpmix bool     `yaml:"disable_upmix"` // keep the recording's own channel layout
	VideoCodec   string   `yaml:"video_codec"`
	Preset       string   `yaml:"preset"`
	CRF          int      `yaml:"crf"`
	AudioCodec   string   `yaml:"audio_codec"`
	AudioBitrate string   `yaml:"audio_bitrate"`
}

type PipelineConfig struct {
	FFmpegPath        string `yaml:"ffmpeg_path"`
	TempDir           string `yaml:"temp_dir"`
	OutputDir         string `yaml:"output_dir"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	DiagnosticLines   int    `yaml:"diagnostic_lines"`
}

type ServiceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SummarizerConfig struct {
	Backend        string        `yaml:"backend"` // hf | gemini
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	GeminiAPIKey   string        `yaml:"gemini_api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	FastModel      string        `yaml:"fast_model"`
	MergeModel     string        `yaml:"merge_model"`
	FastMaxLength  int           `yaml:"fast_max_length"`
	FastMinLength  int           `yaml:"fast_min_length"`
	MergeMaxLength int           `yaml:"merge_max_length"`
	MergeMinLength int           `yaml:"merge_min_length"`
	ChunkChars     int           `yaml:"chunk_chars"`
	ExcerptChars   int           `yaml:"excerpt_chars"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseBackoff    time.Duration `yaml:"base_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Load builds the configuration from an optional YAML file (CONFIG_FILE)
// and then applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AuthRequired = getEnvBool("AUTH_REQUIRED", cfg.AuthRequired)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnv("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Dir = getEnv("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.URL = getEnv("STORAGE_URL", cfg.Storage.URL)
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Key = getEnv("STORAGE_KEY", cfg.Storage.Key)
	cfg.Storage.Timeout = getEnvDuration("STORAGE_TIMEOUT", cfg.Storage.Timeout)

	cfg.Render.IntroPath = getEnv("INTRO_PATH", cfg.Render.IntroPath)
	cfg.Render.OutroPath = getEnv("OUTRO_PATH", cfg.Render.OutroPath)

	cfg.Pipeline.FFmpegPath = getEnv("FFMPEG_PATH", cfg.Pipeline.FFmpegPath)
	cfg.Pipeline.TempDir = getEnv("TEMP_DIR", cfg.Pipeline.TempDir)
	cfg.Pipeline.OutputDir = getEnv("OUTPUT_DIR", cfg.Pipeline.OutputDir)
	cfg.Pipeline.MaxConcurrentJobs = getEnvInt("MAX_CONCURRENT_JOBS", cfg.Pipeline.MaxConcurrentJobs)

	cfg.Transcriber.URL = getEnv("TRANSCRIBER_URL", cfg.Transcriber.URL)
	cfg.Transcriber.Timeout = getEnvDuration("TRANSCRIBER_TIMEOUT", cfg.Transcriber.Timeout)

	cfg.Summarizer.Backend = getEnv("SUMMARIZER_BACKEND", cfg.Summarizer.Backend)
	cfg.Summarizer.URL = getEnv("SUMMARIZER_URL", cfg.Summarizer.URL)
	cfg.Summarizer.Token = getEnv("SUMMARIZER_TOKEN", cfg.Summarizer.Token)
	cfg.Summarizer.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.Summarizer.GeminiAPIKey)
	cfg.Summarizer.Timeout = getEnvDuration("SUMMARIZER_TIMEOUT", cfg.Summarizer.Timeout)
	cfg.Summarizer.FastModel = getEnv("SUMMARIZER_FAST_MODEL", cfg.Summarizer.FastModel)
	cfg.Summarizer.MergeModel = getEnv("SUMMARIZER_MERGE_MODEL", cfg.Summarizer.MergeModel)
	cfg.Summarizer.ChunkChars = getEnvInt("SUMMARY_CHUNK_CHARS", cfg.Summarizer.ChunkChars)
	cfg.Summarizer.MaxAttempts = getEnvInt("SUMMARY_MAX_ATTEMPTS", cfg.Summarizer.MaxAttempts)
}

// Validate fills in defaults and rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "change-me-in-production"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "disk"
	}
	switch c.Storage.Backend {
	case "disk":
		if c.Storage.Dir == "" {
			c.Storage.Dir = "data/uploads"
		}
	case "http":
		if c.Storage.URL == "" {
			return fmt.Errorf("storage.url is required for the http storage backend")
		}
		if c.Storage.Bucket == "" {
			c.Storage.Bucket = "recordings"
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Timeout == 0 {
		c.Storage.Timeout = 2 * time.Minute
	}

	if c.Render.IntroPath == "" {
		c.Render.IntroPath = "assets/intro.mp4"
	}
	if c.Render.OutroPath == "" {
		c.Render.OutroPath = "assets/outro.mp4"
	}
	if len(c.Render.Order) == 0 {
		c.Render.Order = []string{"intro", "recording", "outro"}
	}
	for _, seg := range c.Render.Order {
		if seg != "intro" && seg != "recording" && seg != "outro" {
			return fmt.Errorf("render.order: unknown segment %q", seg)
		}
	}
	if c.Render.Width == 0 {
		c.Render.Width = 1280
	}
	if c.Render.Height == 0 {
		c.Render.Height = 720
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = 30
	}
	if c.Render.SampleRate == 0 {
		c.Render.SampleRate = 48000
	}
	if c.Render.VideoCodec == "" {
		c.Render.VideoCodec = "libx264"
	}
	if c.Render.Preset == "" {
		c.Render.Preset = "veryfast"
	}
	if c.Render.CRF == 0 {
		c.Render.CRF = 23
	}
	if c.Render.AudioCodec == "" {
		c.Render.AudioCodec = "aac"
	}
	if c.Render.AudioBitrate == "" {
		c.Render.AudioBitrate = "192k"
	}

	if c.Pipeline.FFmpegPath == "" {
		c.Pipeline.FFmpegPath = "ffmpeg"
	}
	if c.Pipeline.TempDir == "" {
		c.Pipeline.TempDir = os.TempDir()
	}
	if c.Pipeline.OutputDir == "" {
		c.Pipeline.OutputDir = "data/output"
	}
	if c.Pipeline.MaxConcurrentJobs < 0 {
		return fmt.Errorf("pipeline.max_concurrent_jobs must not be negative")
	}
	if c.Pipeline.DiagnosticLines == 0 {
		c.Pipeline.DiagnosticLines = 50
	}

	if c.Transcriber.URL == "" {
		c.Transcriber.URL = "http://localhost:5001/transcribe"
	}
	if c.Transcriber.Timeout == 0 {
		c.Transcriber.Timeout = 10 * time.Minute
	}

	return c.Summarizer.validate()
}

func (s *SummarizerConfig) validate() error {
	if s.Backend == "" {
		s.Backend = "hf"
	}
	switch s.Backend {
	case "hf":
		if s.URL == "" {
			s.URL = "https://api-inference.huggingface.co/models"
		}
		if s.FastModel == "" {
			s.FastModel = "sshleifer/distilbart-cnn-12-6"
		}
		if s.MergeModel == "" {
			s.MergeModel = "facebook/bart-large-cnn"
		}
	case "gemini":
		if s.GeminiAPIKey == "" {
			return fmt.Errorf("summarizer.gemini_api_key is required for the gemini backend")
		}
		if s.FastModel == "" {
			s.FastModel = "gemini-2.5-flash"
		}
		if s.MergeModel == "" {
			s.MergeModel = "gemini-2.5-pro"
		}
	default:
		return fmt.Errorf("unknown summarizer backend %q", s.Backend)
	}

	if s.Timeout == 0 {
		s.Timeout = 60 * time.Second
	}
	if s.FastMaxLength == 0 {
		s.FastMaxLength = 130
	}
	if s.FastMinLength == 0 {
		s.FastMinLength = 30
	}
	if s.MergeMaxLength == 0 {
		s.MergeMaxLength = 300
	}
	if s.MergeMinLength == 0 {
		s.MergeMinLength = 80
	}
	if s.ChunkChars == 0 {
		s.ChunkChars = 1200
	}
	if s.ChunkChars < 100 {
		return fmt.Errorf("summarizer.chunk_chars must be at least 100")
	}
	if s.ExcerptChars == 0 {
		s.ExcerptChars = 300
	}
	if s.ExcerptChars < 0 {
		return fmt.Errorf("summarizer.excerpt_chars must not be negative")
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = 3
	}
	if s.BaseBackoff == 0 {
		s.BaseBackoff = 500 * time.Millisecond
	}
	if s.MaxBackoff == 0 {
		s.MaxBackoff = 8 * time.Second
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
