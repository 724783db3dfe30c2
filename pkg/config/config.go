package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config representa a estrutura completa do config.yaml
type Config struct {
	App struct {
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Log LogConfig `yaml:"log"`

	Browser BrowserConfig `yaml:"browser"`

	Turnstile TurnstileConfig `yaml:"turnstile"`

	// Infraestrutura Compartilhada
	Nats struct {
		URL     string `yaml:"url"`
		Stream  string `yaml:"stream"`
		Subject string `yaml:"subject"`
		Durable string `yaml:"durable"`
	} `yaml:"nats"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	// Histórico de renovações
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Discord struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"discord"`

	Metrics struct {
		Port string `yaml:"port"`
	} `yaml:"metrics"`

	Scheduler struct {
		Interval int `yaml:"interval_seconds"`
	} `yaml:"scheduler"`

	Sites []SiteConfig `yaml:"sites"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "console" ou "json"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type BrowserConfig struct {
	Bin         string `yaml:"bin"`
	Headless    bool   `yaml:"headless"`
	StateDir    string `yaml:"state_dir"`
	MonitorPort string `yaml:"monitor_port"`
	Proxy       struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"proxy"`
}

type TurnstileConfig struct {
	SolveDelayEnabled *bool `yaml:"solve_delay_enabled"`
	SolveDelaySeconds int   `yaml:"solve_delay_seconds"`
	MaxAttempts       int   `yaml:"max_attempts"`
	Visual            bool  `yaml:"visual"`
	DwellMinMs        int   `yaml:"dwell_min_ms"`
	DwellMaxMs        int   `yaml:"dwell_max_ms"`
}

// SolveDelay devolve o atraso configurado antes de cada tentativa.
func (t TurnstileConfig) SolveDelay() time.Duration {
	return time.Duration(t.SolveDelaySeconds) * time.Second
}

func (t TurnstileConfig) DelayEnabled() bool {
	return t.SolveDelayEnabled == nil || *t.SolveDelayEnabled
}

// SiteConfig diz de quanto em quanto tempo um site precisa ser renovado.
type SiteConfig struct {
	Name     string   `yaml:"name"`
	Enabled  *bool    `yaml:"enabled"`
	Interval Interval `yaml:"interval"`
}

func (s SiteConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type Interval struct {
	Value int    `yaml:"value"`
	Unit  string `yaml:"unit"` // "minute", "hour" ou "day"
}

// UnitDuration converte a unidade do intervalo.
func (i Interval) UnitDuration() (time.Duration, error) {
	switch i.Unit {
	case "minute", "minutes":
		return time.Minute, nil
	case "hour", "hours":
		return time.Hour, nil
	case "day", "days", "":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unidade de intervalo desconhecida: %q", i.Unit)
	}
}

// ApplyDefaults preenche o que não veio no YAML.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "renewal"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 14
	}
	if c.Browser.StateDir == "" {
		c.Browser.StateDir = os.TempDir()
	}
	if c.Turnstile.SolveDelaySeconds == 0 {
		c.Turnstile.SolveDelaySeconds = 5
	}
	if c.Turnstile.MaxAttempts == 0 {
		c.Turnstile.MaxAttempts = 3
	}
	if c.Turnstile.DwellMinMs == 0 {
		c.Turnstile.DwellMinMs = 4
	}
	if c.Turnstile.DwellMaxMs == 0 {
		c.Turnstile.DwellMaxMs = 36
	}
	if c.Nats.URL == "" {
		c.Nats.URL = "nats://localhost:4222"
	}
	if c.Nats.Stream == "" {
		c.Nats.Stream = "RENEW"
	}
	if c.Nats.Subject == "" {
		c.Nats.Subject = "jobs.renew"
	}
	if c.Nats.Durable == "" {
		c.Nats.Durable = "renewer-worker-group"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 3600
	}
}

// Load lê e decodifica o arquivo em path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("erro abrindo config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("erro ao decodificar YAML: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate confere os intervalos dos sites.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		if s.Name == "" {
			return fmt.Errorf("site sem nome na config")
		}
		if seen[s.Name] {
			return fmt.Errorf("site duplicado na config: %s", s.Name)
		}
		seen[s.Name] = true
		if s.Interval.Value <= 0 {
			return fmt.Errorf("site %s: intervalo deve ser positivo", s.Name)
		}
		if _, err := s.Interval.UnitDuration(); err != nil {
			return fmt.Errorf("site %s: %w", s.Name, err)
		}
	}
	if c.Turnstile.DwellMinMs > c.Turnstile.DwellMaxMs {
		return fmt.Errorf("turnstile: dwell_min_ms maior que dwell_max_ms")
	}
	return nil
}

// FindPath procura o config.yaml nos lugares de costume.
func FindPath() string {
	// 1. Tenta pegar via Variável de Ambiente (Docker/Prod)
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	// 2. Se não tiver, tenta achar "subindo" pastas (Local Dev)
	for _, candidate := range []string{
		"config.yaml",
		"config/config.yaml",
		"../../config/config.yaml",
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "config/config.yaml"
}

// LoadConfig carrega a config encontrada por FindPath e encerra o processo
// se não conseguir.
func LoadConfig() *Config {
	configPath := FindPath()

	absPath, _ := filepath.Abs(configPath)
	log.Printf("Carregando config de: %s", absPath)

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Erro fatal lendo config: %v", err)
	}
	return cfg
}
