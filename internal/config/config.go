package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Config holds every setting spec §6 lists under "Environment", plus the
// HTTP-transport ambient settings the teacher's own Config carried.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// MaxSize is the clamp bound of spec §4.5 step 2 ("typically 1920").
	MaxSize     int
	JPEGQuality int

	CacheRoot       string // ${XDG_CACHE_HOME}/<app-id>, spec §6 cache layout
	ImageCacheBytes int64
	ThumbCacheBytes int64
	FailCacheBytes  int64
	ImageCacheTTL   time.Duration
	ThumbCacheTTL   time.Duration
	FailCacheTTL    time.Duration
	// ImagePerEntryCap rejects inputs larger than this in A-image (spec
	// §4.1: "default ≈ capacity/8").
	ImagePerEntryCap int64

	MaxDownloads   int64
	MaxExtractions int64

	MaxIdle time.Duration

	LastfmAPIRoot string
	UbuntuAPIRoot string
	APIKey        string

	CredentialsCacheSize int

	// S3 settings select S3Extractor over LocalExtractor for local-kind
	// requests when S3Bucket is non-empty (spec §9's local-files source is
	// silent on the backing store; object storage is a deployment choice).
	S3Region    string
	S3Bucket    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Load reads configuration from the environment, with defaults matching
// spec §6/§9 where the spec names one (extraction cap, idle window) and the
// teacher's own getEnv/getEnvInt idiom otherwise.
func Load() *Config {
	cacheRoot := getEnv("XDG_CACHE_HOME", defaultCacheHome())
	appCacheRoot := filepath.Join(cacheRoot, "thumbnailerd")

	imageCapacity := int64(getEnvInt("IMAGE_CACHE_BYTES", 512<<20))
	thumbCapacity := int64(getEnvInt("THUMB_CACHE_BYTES", 256<<20))
	failCapacity := int64(getEnvInt("FAIL_CACHE_BYTES", 8<<20))

	return &Config{
		Port:              getEnv("PORT", "8080"),
		ReadTimeout:       getEnvDurationSeconds("HTTP_READ_TIMEOUT_SECONDS", 5),
		ReadHeaderTimeout: getEnvDurationSeconds("HTTP_READ_HEADER_TIMEOUT_SECONDS", 2),
		WriteTimeout:      getEnvDurationSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 30),
		IdleTimeout:       getEnvDurationSeconds("HTTP_IDLE_TIMEOUT_SECONDS", 120),
		MaxHeaderBytes:    getEnvInt("HTTP_MAX_HEADER_BYTES", 1<<20),

		MaxSize:     getEnvInt("THUMBNAILER_MAX_SIZE", 1920),
		JPEGQuality: getEnvInt("THUMBNAILER_JPEG_QUALITY", 90),

		CacheRoot:        appCacheRoot,
		ImageCacheBytes:  imageCapacity,
		ThumbCacheBytes:  thumbCapacity,
		FailCacheBytes:   failCapacity,
		ImageCacheTTL:    getEnvDurationSeconds("IMAGE_CACHE_TTL_SECONDS", 30*24*3600),
		ThumbCacheTTL:    getEnvDurationSeconds("THUMB_CACHE_TTL_SECONDS", 30*24*3600),
		FailCacheTTL:     getEnvDurationSeconds("FAIL_CACHE_TTL_SECONDS", 3600),
		ImagePerEntryCap: getEnvInt64("IMAGE_PER_ENTRY_CAP_BYTES", imageCapacity/8),

		MaxDownloads:   int64(getEnvInt("THUMBNAILER_MAX_DOWNLOADS", 2)),
		MaxExtractions: int64(getEnvInt("THUMBNAILER_MAX_EXTRACTIONS", defaultExtractionLimit())),

		MaxIdle: getEnvDurationMillis("THUMBNAILER_MAX_IDLE", 30000),

		LastfmAPIRoot: getEnv("THUMBNAILER_LASTFM_APIROOT", "https://ws.audioscrobbler.com/2.0/album/art"),
		UbuntuAPIRoot: getEnv("THUMBNAILER_UBUNTU_APIROOT", "https://dash.ubuntu.com/musicproxy/v1/artist-art"),
		APIKey:        getEnv("THUMBNAILER_API_KEY", ""),

		CredentialsCacheSize: getEnvInt("CREDENTIALS_CACHE_SIZE", 1024),

		S3Region:    getEnv("THUMBNAILER_S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("THUMBNAILER_S3_BUCKET", ""),
		S3Endpoint:  getEnv("THUMBNAILER_S3_ENDPOINT", ""),
		S3AccessKey: getEnv("THUMBNAILER_S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("THUMBNAILER_S3_SECRET_KEY", ""),
	}
}

// defaultExtractionLimit mirrors spec §4.2's "default = hardware_concurrency,
// overridable, clamped to ≥1"; spec §9 additionally caps constrained
// hardware at 2, which operators apply via THUMBNAILER_MAX_EXTRACTIONS
// rather than a hard-coded architecture branch.
func defaultExtractionLimit() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

func defaultCacheHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cache"
	}
	return filepath.Join(home, ".cache")
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}

func getEnvDurationSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func getEnvDurationMillis(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMillis)) * time.Millisecond
}
