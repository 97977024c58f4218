// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/btckit/btccrawl/internal/version"

	"github.com/decred/go-socks/socks"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogDirname     = "logs"
	defaultLogFilename    = "btccrawl.log"
	defaultDebugLevel     = "info"
	defaultMaxConcurrency = 64
	defaultMaxAttempts    = 3
	defaultConnectTimeout = 10 * time.Second
	defaultPhaseTimeout   = 15 * time.Second
	defaultSessionTimeout = 2 * time.Minute
)

var defaultHomeDir = appDataDir("btccrawl")

// config defines the configuration options for btccrawl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion    bool          `short:"V" long:"version" description:"Display version information and exit"`
	TestNet        bool          `long:"testnet" description:"Crawl the version 3 test network"`
	Seeds          []string      `long:"seed" description:"Seed address (host:port) or DNS seed hostname; may be specified multiple times (default: the network's DNS seeds)"`
	MaxConcurrency int           `long:"maxconcurrent" description:"Maximum number of simultaneous sessions"`
	MaxPeers       int           `long:"maxpeers" description:"Stop after this many peers have been visited (0 = crawl until drained)"`
	MaxAttempts    int           `long:"maxattempts" description:"Attempts per address before it is considered unreachable"`
	ConnectTimeout time.Duration `long:"connecttimeout" description:"Timeout for establishing a connection"`
	PhaseTimeout   time.Duration `long:"phasetimeout" description:"Timeout for each handshake phase"`
	SessionTimeout time.Duration `long:"sessiontimeout" description:"Hard timeout for a whole session"`
	NoGetAddr      bool          `long:"nogetaddr" description:"Only probe liveness, do not harvest addresses"`
	UserAgent      string        `long:"useragent" description:"User agent to advertise to peers"`
	Proxy          string        `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser      string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass      string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	OutFile        string        `short:"o" long:"outfile" description:"Write discovered peer addresses to this file"`
	LogDir         string        `long:"logdir" description:"Directory to log output"`
	NoFileLogging  bool          `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel     string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	// params are the network parameters selected by the network options.
	params *params
}

// appDataDir returns an operating system specific data directory for the
// application.
func appDataDir(appName string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "."
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(homeDir, "AppData", "Local",
			capitalize(appName))
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support",
			capitalize(appName))
	}
	return filepath.Join(homeDir, "."+appName)
}

// capitalize uppercases the first ASCII letter of s.
func capitalize(s string) string {
	if len(s) == 0 || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// loadConfig initializes and parses the config using command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Parse CLI options and overwrite/add any specified options
//
// This function also initializes logging and configures it accordingly.
func loadConfig(appName string) (*config, []string, error) {
	// Default config.
	cfg := config{
		MaxConcurrency: defaultMaxConcurrency,
		MaxAttempts:    defaultMaxAttempts,
		ConnectTimeout: defaultConnectTimeout,
		PhaseTimeout:   defaultPhaseTimeout,
		SessionTimeout: defaultSessionTimeout,
		LogDir:         filepath.Join(defaultHomeDir, defaultLogDirname),
		DebugLevel:     defaultDebugLevel,
	}

	parser := flags.NewNamedParser(appName, flags.Default)
	parser.AddGroup("Options", "", &cfg)
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	if cfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS,
			runtime.GOARCH)
		os.Exit(0)
	}

	// Select network parameters.
	cfg.params = &mainNetParams
	if cfg.TestNet {
		cfg.params = &testNet3Params
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After the log rotation has been initialized,
	// the logger variables may be used.
	if !cfg.NoFileLogging {
		logPath := filepath.Join(cfg.LogDir, cfg.params.name,
			defaultLogFilename)
		initLogRotator(logPath)
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %w", appName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Use the network's DNS seeds when no seeds were given.
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = cfg.params.dnsSeeds
	}

	if cfg.MaxConcurrency <= 0 {
		err := fmt.Errorf("%s: maxconcurrent must be positive", appName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.MaxAttempts <= 0 {
		err := fmt.Errorf("%s: maxattempts must be positive", appName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Validate the proxy address when one was given.
	if cfg.Proxy != "" {
		if _, _, err := net.SplitHostPort(cfg.Proxy); err != nil {
			err := fmt.Errorf("%s: invalid proxy address %q: %w", appName,
				cfg.Proxy, err)
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	return &cfg, remainingArgs, nil
}

// proxyDialer returns the SOCKS5 proxy configured by the options, or nil when
// no proxy is in use.
func (cfg *config) proxyDialer() *socks.Proxy {
	if cfg.Proxy == "" {
		return nil
	}
	return &socks.Proxy{
		Addr:         cfg.Proxy,
		Username:     cfg.ProxyUser,
		Password:     cfg.ProxyPass,
		TorIsolation: false,
	}
}
