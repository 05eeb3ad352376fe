package app

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/postbot/core/config"
	coredatabase "github.com/m3rciful/postbot/core/database"
)

const defaultGroupsFile = "config.json"

// DialogueConfig tunes the posting wizard.
type DialogueConfig struct {
	// GroupsFile is the groups and topics catalog.
	GroupsFile string `yaml:"groups_file" envconfig:"GROUPS_FILE"`
	// SessionTTL evicts abandoned dialogues; zero keeps them forever.
	SessionTTL    time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
	// OperatorIDs restricts the bot to these users when not empty.
	OperatorIDs []int64 `yaml:"operator_ids" envconfig:"OPERATOR_IDS"`
	// SenderWorkers is the reply queue concurrency. One worker keeps replies ordered.
	SenderWorkers int `yaml:"sender_workers" envconfig:"SENDER_WORKERS"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Dialogue DialogueConfig      `yaml:"dialogue"`
}

// CoreConfig exposes the shared part to core/cmd.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads the YAML file at path with environment overrides and
// validates every section.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Dialogue.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (d *DialogueConfig) normalize() error {
	if d.GroupsFile == "" {
		d.GroupsFile = defaultGroupsFile
	}
	if d.SessionTTL < 0 {
		return fmt.Errorf("dialogue.session_ttl must be >= 0")
	}
	if d.SweepInterval < 0 {
		return fmt.Errorf("dialogue.sweep_interval must be >= 0")
	}
	if d.SessionTTL > 0 && d.SweepInterval == 0 {
		d.SweepInterval = d.SessionTTL / 2
	}
	if d.SenderWorkers <= 0 {
		d.SenderWorkers = 1
	}
	return nil
}
