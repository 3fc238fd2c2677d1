package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chatx/chatx-go/internal/logger"
	"gopkg.in/yaml.v3"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		if idx := strings.LastIndex(parent, "/"); idx <= 0 {
			return
		} else {
			dir = parent[:idx]
			if dir == "" {
				dir = "/"
			}
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// Config содержит настройки клиента ChatX.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// APIBaseURL — адрес бэкенда, включая /api/v1.
	APIBaseURL string `yaml:"api_base_url"`
	// WSPath — путь push-канала относительно APIBaseURL.
	WSPath string `yaml:"ws_path"`

	// HTTP
	HTTPTimeout time.Duration `yaml:"-"`

	// Push-канал
	ReconnectDelay time.Duration `yaml:"-"`

	// Периодичность фонового health-опроса.
	HealthInterval time.Duration `yaml:"-"`

	// CredentialFile — файл с bearer-токеном сессии (пустой — только память).
	CredentialFile string `yaml:"credential_file"`

	// Поиск пользователей
	UsersPageLimit int `yaml:"users_page_limit"`

	// Логирование
	LogLevel string `yaml:"log_level"`
}

// yamlConfig — промежуточная структура для парсинга YAML (таймауты в единицах).
type yamlConfig struct {
	APIBaseURL       string `yaml:"api_base_url"`
	WSPath           string `yaml:"ws_path"`
	HTTPTimeoutSec   int    `yaml:"http_timeout"`
	ReconnectDelayMS int    `yaml:"reconnect_delay_ms"`
	HealthIntervalS  int    `yaml:"health_interval"`
	CredentialFile   string `yaml:"credential_file"`
	UsersPageLimit   int    `yaml:"users_page_limit"`
	LogLevel         string `yaml:"log_level"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		APIBaseURL:       "http://localhost:8080/api/v1",
		WSPath:           "/ws",
		HTTPTimeoutSec:   15,
		ReconnectDelayMS: 2200,
		HealthIntervalS:  30,
		CredentialFile:   defaultCredentialFile(),
		UsersPageLimit:   20,
		LogLevel:         "info",
	}

	// CONFIG_PATH → config/chatx.yaml
	paths := []string{os.Getenv("CONFIG_PATH"), "config/chatx.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cfg := &Config{
		APIBaseURL:     strings.TrimRight(envStr("CHATX_API_URL", yc.APIBaseURL), "/"),
		WSPath:         envStr("CHATX_WS_PATH", yc.WSPath),
		HTTPTimeout:    time.Duration(envInt("CHATX_HTTP_TIMEOUT", yc.HTTPTimeoutSec)) * time.Second,
		ReconnectDelay: time.Duration(envInt("CHATX_RECONNECT_DELAY_MS", yc.ReconnectDelayMS)) * time.Millisecond,
		HealthInterval: time.Duration(envInt("CHATX_HEALTH_INTERVAL", yc.HealthIntervalS)) * time.Second,
		CredentialFile: envStr("CHATX_CREDENTIAL_FILE", yc.CredentialFile),
		UsersPageLimit: envInt("CHATX_USERS_PAGE_LIMIT", yc.UsersPageLimit),
		LogLevel:       envStr("LOG_LEVEL", yc.LogLevel),
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2200 * time.Millisecond
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 30 * time.Second
	}
	if cfg.UsersPageLimit <= 0 {
		cfg.UsersPageLimit = 20
	}

	return cfg
}

// defaultCredentialFile возвращает путь токена в пользовательском конфиге
// (~/.config/chatx/credential на Linux).
func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatx", "credential")
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
