package main

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	// IRC
	"github.com/fluffle/goirc/client"

	// Logs
	"github.com/fluffle/goirc/logging"
	glogging "github.com/fluffle/goirc/logging/glog"

	// Metrics
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Plugins
	dsync "github.com/icedream/chantrack/debug/sync"
	"github.com/icedream/chantrack/irc/actor"
	"github.com/icedream/chantrack/irc/autojoin"
	"github.com/icedream/chantrack/irc/isupport"
	"github.com/icedream/chantrack/irc/mode"
	"github.com/icedream/chantrack/irc/outbound"
	"github.com/icedream/chantrack/irc/report"
	"github.com/icedream/chantrack/irc/tracker"
)

// Program version, build server changes this at compile time to represent
// the `git describe` output of the current commit.
var version = "dev"

// Loaded configuration
var loadedConfiguration = defaultConfiguration

// Command line flags
var configPath = flag.String("config", "config.yml",
	"Path to the configuration file. Configuration file must be in YAML format.")
var generateDefault = flag.Bool("generate", false,
	"Generates a default configuration and saves it at the path given via -config.")

// Logger
var logger glogging.GLogger

// How many outgoing lines may wait for the connection.
const outboundQueueSize = 64

// How long to wait for the server to close the connection after QUIT.
const quitTimeout = 10 * time.Second

// The main program logic.
func main() {
	// Load configuration path from flags
	flag.Parse()

	// Initialize the logger
	logger = glogging.GLogger{}
	logging.SetLogger(logger)

	// Check if we're supposed to generate a default config
	if *generateDefault {
		logger.Debug("Saving default configuration...")
		if err := defaultConfiguration.Save(*configPath); err != nil {
			logger.Error("Failed at saving default configuration: %v", err)
			os.Exit(1)
		}
		logger.Info("Saved default configuration.")
		os.Exit(0)
	}

	// Load configuration from configuration path
	if c, err := Load(*configPath); err != nil {
		logger.Error("Can't load configuration from %v: %v\n", *configPath, err)
		os.Exit(1)
	} else {
		loadedConfiguration = c
	}

	logger.Debug("Loaded configuration will be printed below.")
	logger.Debug("%#v", loadedConfiguration)

	// Validate configuration
	if err := loadedConfiguration.Validate(); err != nil {
		logger.Error("The configuration is invalid: %v\n", err)
		os.Exit(2)
	}

	dsync.SetTrace(loadedConfiguration.Tracking.TraceLocks)

	logger.Info("Initializing chantrack %v...", version)
	conn := client.Client(newClientConfig(loadedConfiguration))

	// Load plugins
	queue := outbound.NewQueue(conn, outboundQueueSize)
	defer queue.Close()
	isupportPlugin := isupport.Register(conn)
	modePlugin := mode.Register(conn, isupportPlugin)
	registry := actor.New(isupportPlugin, queue,
		actor.WithRefreshInterval(loadedConfiguration.Tracking.RefreshInterval))
	trackerPlugin := tracker.Register(conn, registry, isupportPlugin, modePlugin)
	autojoinPlugin := autojoin.Register(conn, isupportPlugin,
		loadedConfiguration.Channels)
	defer autojoinPlugin.Stop()
	logger.Info("Tracking session %v", registry.ID())

	disconnected := make(chan struct{}, 1)
	conn.HandleFunc(client.DISCONNECTED,
		func(*client.Conn, *client.Line) {
			select {
			case disconnected <- struct{}{}:
			default:
			}
		})

	done := make(chan struct{})
	defer close(done)
	go report.New(trackerPlugin, loadedConfiguration.Report.Interval).Run(done)

	if addr := loadedConfiguration.Report.MetricsAddress; addr != "" {
		server := newMetricsServer(addr, trackerPlugin)
		defer server.Close()
		go func() {
			logger.Info("Serving metrics on %v", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	logger.Info("Connecting to %v...", loadedConfiguration.Server.Address)
	if err := conn.Connect(); err != nil {
		logger.Error("Failed to connect: %v", err)
		os.Exit(1)
	}

	select {
	case sig := <-signals:
		logger.Info("Received %v, shutting down.", sig)
		conn.Quit("Shutting down.")
		select {
		case <-disconnected:
		case <-time.After(quitTimeout):
			logger.Warn("Server did not close the connection in time.")
			conn.Close()
		}
	case <-disconnected:
		logger.Warn("Disconnected from server.")
	}
}

func newMetricsServer(addr string, source report.Source) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(report.NewCollector(source))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newClientConfig(c Config) *client.Config {
	cfg := client.NewConfig(c.Nick, c.Ident, c.Name)
	cfg.Version = fmt.Sprintf("chantrack/%v", version)
	cfg.Server = c.Server.Address
	cfg.Pass = c.Server.Password
	cfg.SSL = c.Server.SSL
	if c.Server.SSL {
		host, _, err := net.SplitHostPort(c.Server.Address)
		if err != nil {
			host = c.Server.Address
		}
		cfg.SSLConfig = &tls.Config{ServerName: host}
	}
	cfg.Recover = func(conn *client.Conn, line *client.Line) {
		if err := recover(); err != nil {
			logging.Error("An internal error occurred: %v\n%v",
				err, string(debug.Stack()))
		}
	}
	return cfg
}
