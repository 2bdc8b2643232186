package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		TTL string `yaml:"ttl"`
	} `yaml:"bank"`
	Quiz struct {
		Window      string  `yaml:"window"`       // answer window per question, e.g. "30s"
		Delay       string  `yaml:"delay"`        // pause between questions
		Points      int     `yaml:"points"`       // base points per question
		Floor       float64 `yaml:"floor"`        // minimum score fraction for a correct answer
		Decay       string  `yaml:"decay"`        // "linear" or "exponential"
		HintPenalty float64 `yaml:"hint_penalty"` // score fraction lost per revealed hint
		Shuffle     bool    `yaml:"shuffle"`
		TeamA       string  `yaml:"team_a"`
		TeamB       string  `yaml:"team_b"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
