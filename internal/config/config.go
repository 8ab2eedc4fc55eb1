package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// AWS / S3
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3BucketName       string

	// Public URL resolution for uploaded artifacts
	CustomDomain             string // takes precedence over CloudFront
	CloudFrontDomain         string
	CloudFrontDistributionID string // empty disables cache invalidation

	// Base URL for feed self-links
	PublicURL string

	// Scheduling
	PollingIntervalMinutes int // minutes between poll_sources jobs (default: 60)
	JobTimeoutMinutes      int // minutes before a processing job is considered stale (default: 30)

	// External tools
	YtDlpPath   string
	FFmpegPath  string
	FFprobePath string

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/podcastarr.db
	UploadDir    string // $CONFIG_DIR/uploads

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("POLLING_INTERVAL_MINUTES", 60)
	viper.SetDefault("JOB_TIMEOUT_MINUTES", 30)
	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("FFPROBE_PATH", "ffprobe")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PUBLIC_URL", "http://localhost:8080")
	viper.SetDefault("LOG_LEVEL", "info")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "podcastarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config and upload directories if they don't exist
	uploadDir := filepath.Join(configDir, "uploads")
	for _, dir := range []string{configDir, uploadDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	config := &Config{
		// AWS / S3
		AWSRegion:          viper.GetString("AWS_REGION"),
		AWSAccessKeyID:     viper.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: viper.GetString("AWS_SECRET_ACCESS_KEY"),
		S3BucketName:       viper.GetString("S3_BUCKET_NAME"),

		CustomDomain:             viper.GetString("CUSTOM_DOMAIN"),
		CloudFrontDomain:         viper.GetString("CLOUDFRONT_DOMAIN"),
		CloudFrontDistributionID: viper.GetString("CLOUDFRONT_DISTRIBUTION_ID"),

		PublicURL: viper.GetString("PUBLIC_URL"),

		// Scheduling
		PollingIntervalMinutes: viper.GetInt("POLLING_INTERVAL_MINUTES"),
		JobTimeoutMinutes:      viper.GetInt("JOB_TIMEOUT_MINUTES"),

		// External tools
		YtDlpPath:   viper.GetString("YTDLP_PATH"),
		FFmpegPath:  viper.GetString("FFMPEG_PATH"),
		FFprobePath: viper.GetString("FFPROBE_PATH"),

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		DatabaseFile: filepath.Join(configDir, "podcastarr.db"),
		UploadDir:    uploadDir,

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	// Validate required fields
	if config.S3BucketName == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME is required")
	}
	if config.AWSAccessKeyID == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID is required")
	}
	if config.AWSSecretAccessKey == "" {
		return nil, fmt.Errorf("AWS_SECRET_ACCESS_KEY is required")
	}

	return config, nil
}
