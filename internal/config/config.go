package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment.
type Config struct {
	logLevel         string
	logFile          string
	tempDir          string
	threads          int
	timeout          time.Duration
	s3Region         string
	s3Endpoint       string
	insecureHostKeys bool
}

// New loads an optional .env file and reads FETCHOPUS_* variables.
func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	logLevel := os.Getenv("FETCHOPUS_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	threads, err := strconv.Atoi(os.Getenv("FETCHOPUS_THREADS"))
	if err != nil || threads <= 0 {
		threads = 4
	}

	timeout, err := time.ParseDuration(os.Getenv("FETCHOPUS_TIMEOUT"))
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	insecure, _ := strconv.ParseBool(os.Getenv("FETCHOPUS_INSECURE_HOSTKEY"))

	return &Config{
		logLevel:         logLevel,
		logFile:          os.Getenv("FETCHOPUS_LOG_FILE"),
		tempDir:          os.Getenv("FETCHOPUS_TEMP_DIR"),
		threads:          threads,
		timeout:          timeout,
		s3Region:         os.Getenv("FETCHOPUS_S3_REGION"),
		s3Endpoint:       os.Getenv("FETCHOPUS_S3_ENDPOINT"),
		insecureHostKeys: insecure,
	}
}

func (c *Config) LogLevel() string       { return c.logLevel }
func (c *Config) LogFile() string        { return c.logFile }
func (c *Config) TempDir() string        { return c.tempDir }
func (c *Config) Threads() int           { return c.threads }
func (c *Config) Timeout() time.Duration { return c.timeout }
func (c *Config) S3Region() string       { return c.s3Region }
func (c *Config) S3Endpoint() string     { return c.s3Endpoint }
func (c *Config) InsecureHostKeys() bool { return c.insecureHostKeys }
