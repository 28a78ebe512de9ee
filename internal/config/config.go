package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application parameters.
type Config struct {
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type RabbitMQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	UseTLS   bool
}

// URL renders a postgres connection URL for pgx and golang-migrate.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// Load reads the simple two-level YAML config (sections `database:` and
// `rabbitmq:`), then applies environment overrides. A `.env` file in the
// working directory is loaded first if present; secrets usually live there.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	cfg.Database.Port = 5432
	cfg.Database.SSLMode = "disable"
	cfg.RabbitMQ.Port = 5672
	cfg.RabbitMQ.VHost = "/"

	scanner := bufio.NewScanner(file)
	var section string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			section = strings.TrimSuffix(line, ":")
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		switch section {
		case "database":
			switch key {
			case "host":
				cfg.Database.Host = value
			case "port":
				cfg.Database.Port = atoi(value, 5432)
			case "user":
				cfg.Database.User = value
			case "password":
				cfg.Database.Password = value
			case "database":
				cfg.Database.Database = value
			case "sslmode":
				if value != "" {
					cfg.Database.SSLMode = value
				}
			}
		case "rabbitmq":
			switch key {
			case "host":
				cfg.RabbitMQ.Host = value
			case "port":
				cfg.RabbitMQ.Port = atoi(value, 5672)
			case "user":
				cfg.RabbitMQ.User = value
			case "password":
				cfg.RabbitMQ.Password = value
			case "vhost":
				if value != "" {
					cfg.RabbitMQ.VHost = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(cfg)

	if cfg.Database.Host == "" || cfg.Database.User == "" || cfg.Database.Database == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.RabbitMQ.Host == "" || cfg.RabbitMQ.User == "" {
		return nil, fmt.Errorf("rabbitmq config incomplete")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Database.Port = atoi(v, cfg.Database.Port)
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("RABBITMQ_HOST"); v != "" {
		cfg.RabbitMQ.Host = v
	}
	if v := os.Getenv("RABBITMQ_PORT"); v != "" {
		cfg.RabbitMQ.Port = atoi(v, cfg.RabbitMQ.Port)
	}
	if v := os.Getenv("RABBITMQ_USER"); v != "" {
		cfg.RabbitMQ.User = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		cfg.RabbitMQ.Password = v
	}
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// FindConfig probes the usual config locations.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
