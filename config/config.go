package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Renderer names accepted by RENDERER.
const (
	RendererChromedp    = "chromedp"
	RendererBrowserless = "browserless"
	RendererNone        = "none"
)

// Config represents the application configuration
type Config struct {
	// Server
	Port          string
	Environment   string
	CORSOrigin    string
	StaticDir     string
	PublicBaseURL string

	// LLM (OpenAI-compatible)
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	VisionModel    string
	ImageModel     string
	LLMTemperature float32
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	// Search API (Google Custom Search)
	GoogleAPIKey     string
	GoogleCX         string
	SearchEndpoint   string
	SearchTimeout    time.Duration
	SearchInterval   time.Duration
	MaxSearchResults int
	MaxSearchPages   int

	// Visual search API
	VisualSearchKey     string
	VisualSearchURL     string
	VisualSearchCountry string

	// Object storage
	AWSBucket    string
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	AWSEndpoint  string

	// Page fetching
	Renderer         string
	ChromeDBAddr     string
	FetchConcurrency int
	MaxPages         int
	RenderTimeout    time.Duration
	SettleDelay      time.Duration
	ScrollCycles     int
	ScrollDelay      time.Duration
	PlainTimeout     time.Duration

	// Extraction
	ExtractWorkers int
	TargetProducts int
	MaxHTMLChars   int

	// Aggregation
	OutOfStockRatio      float64
	MinInStockForCapping int

	// Uploads
	MaxUploadBytes int64

	// Cache configuration
	MemcacheAddr string
	CacheSize    int
	BlockTime    time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		Port:          getEnv("PORT", "8000"),
		Environment:   getEnv("DEALSCOUT_ENVIRONMENT", "development"),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
		StaticDir:     getEnv("STATIC_DIR", "static"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:8000"),

		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		VisionModel:    getEnv("OPENAI_VISION_MODEL", "gpt-4.1-mini"),
		ImageModel:     getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		LLMTemperature: float32(getFloat("LLM_TEMPERATURE", 0.1)),
		LLMMaxTokens:   getInt("LLM_MAX_TOKENS", 800),
		LLMTimeout:     getSeconds("LLM_TIMEOUT_SECONDS", 30),

		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		GoogleCX:         os.Getenv("GOOGLE_CX"),
		SearchEndpoint:   getEnv("SEARCH_ENDPOINT", "https://www.googleapis.com/customsearch/v1"),
		SearchTimeout:    getSeconds("SEARCH_TIMEOUT_SECONDS", 5),
		SearchInterval:   getMillis("SEARCH_INTERVAL_MS", 300),
		MaxSearchResults: getInt("MAX_SEARCH_RESULTS", 30),
		MaxSearchPages:   getInt("MAX_SEARCH_PAGES", 3),

		VisualSearchKey:     os.Getenv("SEARCH_API_KEY"),
		VisualSearchURL:     getEnv("VISUAL_SEARCH_URL", "https://www.searchapi.io/api/v1/search"),
		VisualSearchCountry: getEnv("VISUAL_SEARCH_COUNTRY", "in"),

		AWSBucket:    os.Getenv("AWS_BUCKET_NAME"),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSEndpoint:  os.Getenv("AWS_ENDPOINT_URL"),

		Renderer:         strings.ToLower(getEnv("RENDERER", RendererChromedp)),
		ChromeDBAddr:     os.Getenv("CHROMEDB_ADDR"),
		FetchConcurrency: getInt("FETCH_CONCURRENCY", 8),
		MaxPages:         getInt("MAX_PAGES", 25),
		RenderTimeout:    getSeconds("RENDER_TIMEOUT_SECONDS", 10),
		SettleDelay:      getMillis("SETTLE_DELAY_MS", 1000),
		ScrollCycles:     getInt("SCROLL_CYCLES", 2),
		ScrollDelay:      getMillis("SCROLL_DELAY_MS", 300),
		PlainTimeout:     getSeconds("PLAIN_FETCH_TIMEOUT_SECONDS", 5),

		ExtractWorkers: getInt("EXTRACT_WORKERS", 8),
		TargetProducts: getInt("TARGET_PRODUCTS", 20),
		MaxHTMLChars:   getInt("MAX_HTML_CHARS", 60000),

		OutOfStockRatio:      getFloat("OUT_OF_STOCK_RATIO", 0.2),
		MinInStockForCapping: getInt("MIN_IN_STOCK_FOR_CAPPING", 5),

		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 5*1024*1024)),

		MemcacheAddr: os.Getenv("MEMCACHE_ADDR"),
		CacheSize:    getInt("CACHE_SIZE", 1024),
		BlockTime:    getSeconds("BLOCK_TIME_SECONDS", 300),

		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "scrape_results"),
		RedisStreamCount:     getInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getInt("REDIS_STREAM_MAX_LENGTH", 1000),
	}
}

// IsProduction reports whether the service runs with the production posture.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	switch c.Renderer {
	case RendererChromedp, RendererNone:
	case RendererBrowserless:
		if c.ChromeDBAddr == "" {
			return fmt.Errorf("renderer %q requires CHROMEDB_ADDR", c.Renderer)
		}
	default:
		return fmt.Errorf("renderer must be %s, %s or %s", RendererChromedp, RendererBrowserless, RendererNone)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("fetch concurrency must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.ExtractWorkers <= 0 {
		return fmt.Errorf("extract workers must be positive")
	}
	if c.TargetProducts <= 0 {
		return fmt.Errorf("target products must be positive")
	}
	if c.MaxSearchResults <= 0 {
		return fmt.Errorf("max search results must be positive")
	}
	if c.MaxSearchPages <= 0 || c.MaxSearchPages > 10 {
		return fmt.Errorf("max search pages must be between 1 and 10")
	}
	if c.RenderTimeout <= 0 || c.PlainTimeout <= 0 || c.SearchTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.ScrollCycles < 0 {
		return fmt.Errorf("scroll cycles cannot be negative")
	}
	if c.MaxHTMLChars <= 0 {
		return fmt.Errorf("max html chars must be positive")
	}
	if c.OutOfStockRatio < 0 || c.OutOfStockRatio > 1 {
		return fmt.Errorf("out of stock ratio must be between 0 and 1")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.RedisAddr != "" && c.RedisStreamCount <= 0 {
		return fmt.Errorf("redis stream count must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}

func getMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Millisecond
}
