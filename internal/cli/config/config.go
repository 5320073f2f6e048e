// Package config stores CLI connection profiles in .artizen/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const dirName = ".artizen"

type Config struct {
	Version       int               `json:"version"`
	DefaultServer string            `json:"default_server"`
	Servers       map[string]Server `json:"servers"`
	Preferences   map[string]string `json:"preferences,omitempty"`
}

// Server is one connection profile. ProductionURL is optional; when set the
// CLI falls back to it if LocalURL does not answer.
type Server struct {
	LocalURL      string `json:"local_url"`
	ProductionURL string `json:"production_url,omitempty"`
	Token         string `json:"token,omitempty"`
	Email         string `json:"email,omitempty"`
	ConnectedAt   string `json:"connected_at"`
}

// Path returns the nearest .artizen/config.json walking up from the working
// directory, or the one under the home directory.
func Path() (string, error) {
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for {
			candidate := filepath.Join(dir, dirName, "config.json")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName, "config.json"), nil
}

func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{
				Version:       1,
				DefaultServer: "main",
				Servers:       map[string]Server{},
				Preferences: map[string]string{
					"default_format": "table",
					"poll_interval":  "5s",
				},
			}, nil
		}
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Servers == nil {
		c.Servers = map[string]Server{}
	}
	if c.DefaultServer == "" {
		c.DefaultServer = "main"
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return &c, nil
}

func Save(c *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, append(b, '\n'), 0o600)
}

func (c *Config) SetDefault(localURL, productionURL string) {
	if c.Servers == nil {
		c.Servers = map[string]Server{}
	}
	prev := c.Servers["main"]
	c.Servers["main"] = Server{
		LocalURL:      localURL,
		ProductionURL: productionURL,
		Token:         prev.Token,
		Email:         prev.Email,
		ConnectedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	c.DefaultServer = "main"
}

// SetIdentity records the signed-in user on the default server.
func (c *Config) SetIdentity(email, token string) error {
	s, ok := c.Default()
	if !ok {
		return errors.New("no server configured")
	}
	s.Email = email
	s.Token = token
	c.Servers[c.DefaultServer] = s
	return nil
}

func (c *Config) ClearIdentity() {
	if s, ok := c.Default(); ok {
		s.Email = ""
		s.Token = ""
		c.Servers[c.DefaultServer] = s
	}
}

func (c *Config) ClearDefault() {
	delete(c.Servers, c.DefaultServer)
}

func (c *Config) Default() (Server, bool) {
	s, ok := c.Servers[c.DefaultServer]
	return s, ok
}

func (c *Config) PollInterval() time.Duration {
	if d, err := time.ParseDuration(c.Preferences["poll_interval"]); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}
