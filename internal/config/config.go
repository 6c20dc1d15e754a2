package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	NLU      NLUConfig
	Catalog  CatalogConfig
	Dialogue DialogueConfig
	Feedback FeedbackConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	nlu, err := loadNLUConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalogConfig()
	if err != nil {
		return nil, err
	}

	dlg, err := loadDialogueConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		NLU:      nlu,
		Catalog:  catalog,
		Dialogue: dlg,
		Feedback: FeedbackConfig{
			DBPath: getEnvOrDefault("FEEDBACK_DB_PATH", "data/feedback.db"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// NLUConfig 描述意图识别相关配置。
type NLUConfig struct {
	CorpusPath string
	ModelPath  string
	// Threshold is the minimum confidence before an intent is acted on;
	// below it the orchestrator falls back to a clarification reply.
	Threshold float64
	// AnswerSeed, when non-nil, makes answer template selection
	// reproducible. Production leaves it unset.
	AnswerSeed *int64
}

func loadNLUConfig() (NLUConfig, error) {
	threshold := 0.55
	if override, err := parseOptionalFloatEnv("NLU_CONFIDENCE_THRESHOLD"); err != nil {
		return NLUConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 1 {
			return NLUConfig{}, fmt.Errorf("NLU_CONFIDENCE_THRESHOLD must be within [0,1], got %v", *override)
		}
		threshold = *override
	}

	var seed *int64
	if raw := strings.TrimSpace(os.Getenv("NLU_ANSWER_SEED")); raw != "" {
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return NLUConfig{}, fmt.Errorf("invalid NLU_ANSWER_SEED value %q: %w", raw, err)
		}
		seed = &val
	}

	return NLUConfig{
		CorpusPath: getEnvOrDefault("NLU_CORPUS_PATH", "configs/corpus.yaml"),
		ModelPath:  getEnvOrDefault("NLU_MODEL_PATH", "data/intent-model.json"),
		Threshold:  threshold,
		AnswerSeed: seed,
	}, nil
}

// CatalogConfig 描述外部影视目录服务配置。
type CatalogConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c CatalogConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadCatalogConfig() (CatalogConfig, error) {
	timeout := 8 * time.Second
	if override, err := parseOptionalIntEnv("CATALOG_TIMEOUT_SECONDS"); err != nil {
		return CatalogConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return CatalogConfig{}, fmt.Errorf("CATALOG_TIMEOUT_SECONDS must be positive, got %d", *override)
		}
		timeout = time.Duration(*override) * time.Second
	}

	return CatalogConfig{
		BaseURL: getEnvOrDefault("CATALOG_BASE_URL", "https://api.themoviedb.org/3"),
		APIKey:  strings.TrimSpace(os.Getenv("CATALOG_API_KEY")),
		Timeout: timeout,
	}, nil
}

// DialogueConfig 描述会话编排配置。
type DialogueConfig struct {
	// RevealChunkRunes is how many runes of the bot reply are appended per
	// tick while the reply is being revealed.
	RevealChunkRunes int
	// RevealInterval is the pause between reveal ticks. Zero reveals the
	// whole reply in one step.
	RevealInterval time.Duration
}

func loadDialogueConfig() (DialogueConfig, error) {
	chunk := 3
	if override, err := parseOptionalIntEnv("REVEAL_CHUNK_RUNES"); err != nil {
		return DialogueConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return DialogueConfig{}, fmt.Errorf("REVEAL_CHUNK_RUNES must be positive, got %d", *override)
		}
		chunk = *override
	}

	interval := 40 * time.Millisecond
	if override, err := parseOptionalIntEnv("REVEAL_INTERVAL_MS"); err != nil {
		return DialogueConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return DialogueConfig{}, fmt.Errorf("REVEAL_INTERVAL_MS must not be negative, got %d", *override)
		}
		interval = time.Duration(*override) * time.Millisecond
	}

	return DialogueConfig{RevealChunkRunes: chunk, RevealInterval: interval}, nil
}

// FeedbackConfig 描述点赞/点踩存储配置。
type FeedbackConfig struct {
	DBPath string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
