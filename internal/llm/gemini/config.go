package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config for the Gemini client.
type Config struct {
	APIKey         string        // if empty, falls back to env GEMINI_API_KEY
	BaseURL        string        // default https://generativelanguage.googleapis.com/v1beta
	Model          string        // fast tier, e.g. "gemini-2.5-flash"
	ReasoningModel string        // dispute drafting tier, e.g. "gemini-2.5-pro"
	Timeout        time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.ReasoningModel == "" {
		cfg.ReasoningModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
