package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/diread/diread/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultStorageProvider = "local"
	defaultStoragePath     = "./uploads"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the diread service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Token lifetimes, zero means service defaults
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	// Book file storage: "local" or "s3"
	StorageProvider string
	StoragePath     string
	S3Bucket        string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string

	// Max accepted book upload size in bytes, zero means service default
	MaxFileSize int64

	// Outgoing mail, empty host switches the mailer to log-only mode
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	// Deep link the password reset token is appended to
	FrontendURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		StorageProvider: defaultStorageProvider,
		StoragePath:     defaultStoragePath,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if v, err := strconv.Atoi(value); err == nil {
				*o = v
			}
		}
	}
	setInt64 := func(o *int64) func(value string) {
		return func(value string) {
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				*o = v
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if v, err := time.ParseDuration(value); err == nil {
				*o = v
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"SECRET_KEY":       setString(&c.SecretKey),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"ENVIRONMENT":      setString(&c.Environment),
		"ACCESS_TOKEN_TTL": setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTTL),
		"RESET_TOKEN_TTL":  setDuration(&c.ResetTTL),
		"STORAGE_PROVIDER": setString(&c.StorageProvider),
		"STORAGE_PATH":     setString(&c.StoragePath),
		"S3_BUCKET":        setString(&c.S3Bucket),
		"S3_REGION":        setString(&c.S3Region),
		"S3_ACCESS_KEY":    setString(&c.S3AccessKey),
		"S3_SECRET_KEY":    setString(&c.S3SecretKey),
		"S3_ENDPOINT":      setString(&c.S3Endpoint),
		"MAX_FILE_SIZE":    setInt64(&c.MaxFileSize),
		"SMTP_HOST":        setString(&c.SMTPHost),
		"SMTP_PORT":        setInt(&c.SMTPPort),
		"SMTP_USERNAME":    setString(&c.SMTPUsername),
		"SMTP_PASSWORD":    setString(&c.SMTPPassword),
		"MAIL_FROM":        setString(&c.MailFrom),
		"MAIL_FROM_NAME":   setString(&c.MailFromName),
		"FRONTEND_URL":     setString(&c.FrontendURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("diread", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.StorageProvider, "storage", c.StorageProvider, "Book file storage provider (local, s3)")
	fs.StringVar(&c.StoragePath, "storage-path", c.StoragePath, "Directory for the local storage provider")

	return fs.Parse(args)
}
