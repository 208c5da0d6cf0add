package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	// host:port of the server to connect to.
	Address string "Address"
	SSL     bool   "SSL"

	// Server password, if any.
	Password string "Password,omitempty"
}

type TrackingConfig struct {
	// How long to wait between two member list refreshes of a channel whose
	// member list the server did not confirm yet.
	RefreshInterval time.Duration "RefreshInterval"

	// Log every lock taken on the tracked state. Very noisy, needs -v.
	TraceLocks bool "TraceLocks,omitempty"
}

type ReportConfig struct {
	// How often to log a summary of the tracked channels. 0 disables it.
	Interval time.Duration "Interval"

	// host:port to serve Prometheus metrics on at /metrics. Empty disables it.
	MetricsAddress string "MetricsAddress,omitempty"
}

type Config struct {
	// The nickname to use.
	Nick string "Nick"

	// The ident (username) to use.
	Ident string "Ident"

	// The real name to use.
	Name string "Name,omitempty"

	// The channels to join and track.
	Channels []string "Channels"

	// The server to connect to.
	Server ServerConfig "Server"

	Tracking TrackingConfig "Tracking"
	Report   ReportConfig   "Report"
}

func Load(configPath string) (c Config, err error) {
	logger.Debug("Reading from %v...", configPath)
	contents, err := os.ReadFile(configPath)
	if err != nil {
		return
	}

	logger.Debug("Parsing configuration...")
	c = defaultConfiguration
	err = yaml.Unmarshal(contents, &c)
	return
}

func (c Config) Save(configPath string) error {
	contents, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, contents, 0640)
}

// Validate checks the configuration and fills in defaults for values left
// empty.
func (c *Config) Validate() error {
	if c.Nick == "" {
		return errors.New("You need to set a nickname in the configuration.")
	}
	if strings.ContainsAny(c.Nick, "!@ ") {
		return fmt.Errorf("%q is not a valid nickname.", c.Nick)
	}
	if c.Ident == "" {
		return errors.New("You need to set an ident in the configuration.")
	}
	if c.Server.Address == "" {
		return errors.New("You need to set a server address in the configuration.")
	}
	for _, channel := range c.Channels {
		if len(channel) < 2 || !strings.ContainsRune("#&", rune(channel[0])) ||
			strings.ContainsAny(channel, " ,") {
			return fmt.Errorf("%q is not a valid channel name.", channel)
		}
	}

	if c.Tracking.RefreshInterval < 0 {
		return errors.New("Tracking.RefreshInterval must not be negative.")
	}
	if c.Tracking.RefreshInterval == 0 {
		c.Tracking.RefreshInterval = defaultConfiguration.Tracking.RefreshInterval
	}
	if c.Report.Interval < 0 {
		return errors.New("Report.Interval must not be negative.")
	}
	if c.Report.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(c.Report.MetricsAddress); err != nil {
			return fmt.Errorf("Report.MetricsAddress is invalid: %v", err)
		}
	}
	if c.Name == "" {
		c.Name = c.Nick
	}

	return nil
}

// Default configuration
var defaultConfiguration = Config{
	Nick:     "chantrack",
	Ident:    "chantrack",
	Name:     "chantrack",
	Channels: []string{"#chantrack"},
	Server: ServerConfig{
		Address: "",
		SSL:     false,
	},
	Tracking: TrackingConfig{
		RefreshInterval: 5 * time.Second,
	},
	Report: ReportConfig{
		Interval: 5 * time.Minute,
	},
}
