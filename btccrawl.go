// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/btckit/btccrawl/crawler"
	"github.com/btckit/btccrawl/internal/version"
	"github.com/btckit/btccrawl/peer"
	"github.com/btckit/btccrawl/wire"
)

var cfg *config

// crawlMain is the real main function for btccrawl.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func crawlMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	tcfg, _, err := loadConfig(appName)
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a context that will be canceled when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	ctx := shutdownListener()
	defer mainLog.Info("Shutdown complete")

	// Show version at startup.
	mainLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	mainLog.Infof("Crawling %s from %d seeds", cfg.params.name,
		len(cfg.Seeds))

	// Route connections and seed resolution through the SOCKS5 proxy when
	// one is configured.
	var dial peer.DialFunc
	var lookup crawler.LookupFunc
	if proxy := cfg.proxyDialer(); proxy != nil {
		mainLog.Infof("Proxying connections through SOCKS5 proxy %s",
			cfg.Proxy)
		dial = proxy.DialContext
		proxyAddr := cfg.Proxy
		lookup = func(host string) ([]net.IP, error) {
			return crawler.TorLookupIP(ctx, host, proxyAddr)
		}
	}

	// Report every discovered address as it is found, to the output file
	// when one is configured and to the log otherwise.
	var outFile *os.File
	if cfg.OutFile != "" {
		outFile, err = os.Create(cfg.OutFile)
		if err != nil {
			mainLog.Errorf("Failed to create output file: %v", err)
			return err
		}
		defer outFile.Close()
	}
	events := make(chan crawler.Event, 256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var w *bufio.Writer
		if outFile != nil {
			w = bufio.NewWriter(outFile)
			defer w.Flush()
		}
		for ev := range events {
			if w != nil {
				fmt.Fprintln(w, ev.Addr.Key())
				continue
			}
			mainLog.Debugf("Discovered %s (via %s)", ev.Addr, ev.Source)
		}
	}()

	c, err := crawler.New(&crawler.Config{
		Seeds:            cfg.Seeds,
		DefaultPort:      cfg.params.defaultPort,
		Net:              cfg.params.net,
		RequiredServices: wire.SFNodeNetwork,
		UserAgent:        cfg.UserAgent,
		DisableGetAddr:   cfg.NoGetAddr,
		MaxConcurrency:   cfg.MaxConcurrency,
		MaxPeers:         cfg.MaxPeers,
		MaxAttempts:      cfg.MaxAttempts,
		ConnectTimeout:   cfg.ConnectTimeout,
		PhaseTimeout:     cfg.PhaseTimeout,
		SessionTimeout:   cfg.SessionTimeout,
		Dial:             dial,
		Lookup:           lookup,
		Events:           events,
	})
	if err != nil {
		mainLog.Errorf("Failed to create crawler: %v", err)
		return err
	}

	summary, err := c.Run(ctx)
	close(events)
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		mainLog.Errorf("Crawl failed: %v", err)
		return err
	}

	mainLog.Infof("Visited %d reachable peers out of %d discovered "+
		"addresses (%d unreachable, %d still queued)", summary.Succeeded,
		summary.Discovered, summary.Failed, summary.Remaining)
	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := crawlMain(); err != nil {
		os.Exit(1)
	}
}
