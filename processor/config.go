// ABOUTME: Per-user pass-through processor configuration
// ABOUTME: Parsed from the passThroughProcessors user setting
package processor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/callbridge/models"
)

// SettingKey is the user setting holding the processor list.
const SettingKey = "passThroughProcessors"

// Stages at which processors run.
const (
	StageBefore = "before"
	StageAfter  = "after"
)

// Config describes one external processor.
type Config struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	URL      string            `json:"url"`
	Stage    string            `json:"stage"`
	Async    bool              `json:"async,omitempty"`
	Disabled bool              `json:"disabled,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func (c Config) mode() string {
	if c.Async {
		return "async"
	}
	return "sync"
}

// ParseConfigs reads the processor list of user. The setting may hold a JSON
// string or an already decoded array. Entries without a URL or with an unknown
// stage are skipped.
func ParseConfigs(user *models.User) ([]Config, error) {
	s, ok := user.Setting(SettingKey)
	if !ok || s.Value == nil {
		return nil, nil
	}

	var raw []byte
	switch v := s.Value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		raw = []byte(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", SettingKey, err)
		}
		raw = data
	}

	var parsed []Config
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", SettingKey, err)
	}

	configs := parsed[:0]
	for _, c := range parsed {
		c.Stage = strings.ToLower(strings.TrimSpace(c.Stage))
		if c.URL == "" || c.Disabled {
			continue
		}
		if c.Stage != StageBefore && c.Stage != StageAfter {
			continue
		}
		if c.ID == "" {
			c.ID = c.URL
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// ForStage filters configs down to those running at stage.
func ForStage(configs []Config, stage string) []Config {
	var out []Config
	for _, c := range configs {
		if c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}
