package configuration

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type ServiceConfig struct {
	BaseURL   string `json:"baseUrl"`
	SocketURL string `json:"socketUrl,omitempty"`
}

type ClientConfig struct {
	PageSize      int `json:"pageSize"`
	TypingQuietMs int `json:"typingQuietMs"`
}

type Config struct {
	Env           string        `json:"env"`
	Communication ServiceConfig `json:"communication"`
	Auth          ServiceConfig `json:"auth"`
	Client        ClientConfig  `json:"client"`
}

// DefaultConfig targets a locally running devserver.
func DefaultConfig() Config {
	return Config{
		Env: "dev",
		Communication: ServiceConfig{
			BaseURL:   "http://localhost:8090",
			SocketURL: "ws://localhost:8090/socket",
		},
		Auth: ServiceConfig{
			BaseURL: "http://localhost:8090",
		},
		Client: ClientConfig{
			PageSize:      20,
			TypingQuietMs: 1000,
		},
	}
}

// LoadConfig reads a JSON config file and applies environment overrides. A
// missing file is not an error: defaults plus environment cover local use.
// A .env file in the working directory is honored when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	config := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(raw, &config); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(&config)
	if config.Client.PageSize < 1 {
		config.Client.PageSize = 20
	}
	if config.Client.TypingQuietMs < 1 {
		config.Client.TypingQuietMs = 1000
	}
	return &config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		config.Env = v
	}
	if v := os.Getenv("COMMUNICATION_BASE_URL"); v != "" {
		config.Communication.BaseURL = v
	}
	if v := os.Getenv("COMMUNICATION_SOCKET_URL"); v != "" {
		config.Communication.SocketURL = v
	}
	if v := os.Getenv("AUTH_BASE_URL"); v != "" {
		config.Auth.BaseURL = v
	}
	if v := os.Getenv("CHAT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Client.PageSize = n
		}
	}
}
