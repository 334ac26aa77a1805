package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/banshee-data/argus/internal/api"
	"github.com/banshee-data/argus/internal/config"
	"github.com/banshee-data/argus/internal/discovery"
	"github.com/banshee-data/argus/internal/monitoring"
	"github.com/banshee-data/argus/internal/network"
	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/tracking"
	"github.com/banshee-data/argus/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file (defaults are used when empty)")
	listen      = flag.String("listen", "", "UDP listen address, overrides the config file")
	httpListen  = flag.String("http", "", "HTTP monitor address, overrides the config file; \"off\" disables it")
	pcapFile    = flag.String("pcap", "", "Replay a pcap capture instead of listening on UDP")
	pcapPort    = flag.Int("pcap-port", 4210, "Destination UDP port to replay from the capture (0 = all)")
	mdnsName    = flag.String("mdns", "", "Advertise the ingest port over mDNS under this instance name")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *httpListen == "off" {
		empty := ""
		cfg.HTTPListen = &empty
	} else if *httpListen != "" {
		cfg.HTTPListen = httpListen
	}
	if *mdnsName != "" {
		cfg.MDNSInstance = mdnsName
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// advertiseConfig builds the mDNS service description for the listen
// address. ok is false when advertising is disabled.
func advertiseConfig(cfg *config.Config) (discovery.Config, bool, error) {
	instance := cfg.GetMDNSInstance()
	if instance == "" {
		return discovery.Config{}, false, nil
	}
	_, portStr, err := net.SplitHostPort(cfg.GetListen())
	if err != nil {
		return discovery.Config{}, false, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return discovery.Config{}, false, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}
	return discovery.Config{
		Instance: instance,
		Port:     port,
		TXT: []string{
			"version=" + version.Version,
			"layout=" + cfg.GetIMUSampleLayout().String(),
		},
	}, true, nil
}

func newResolver(cfg *config.Config) tracking.KeyResolver {
	if cfg.GetDeviceKeyMode() == config.KeyModeConstant {
		return tracking.ConstantKey(cfg.GetConstantDeviceKey())
	}
	return tracking.AddressKey{}
}

// watchTrackers reports truncated records for every tracker the registry
// creates until ctx is done or the registry is closed.
func watchTrackers(ctx context.Context, wg *sync.WaitGroup, registry *tracking.Registry) {
	id, added := registry.Subscribe()
	defer registry.Unsubscribe(id)

	for {
		select {
		case tr, ok := <-added:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				watchTracker(ctx, tr)
			}()
		case <-ctx.Done():
			return
		}
	}
}

func watchTracker(ctx context.Context, tr *tracking.Tracker) {
	id, entries := tr.Subscribe()
	defer tr.Unsubscribe(id)

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return
			}
			if e.Record.Truncated() {
				monitoring.Warnf("device %s record %d truncated: %d of %d IMU samples, image missing=%t",
					tr.Key(), e.Seq, len(e.Record.Samples), e.Record.Header.IMUSampleCount, e.Record.ImageMissing())
			}
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if path := cfg.GetLogFile(); path != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	log.Printf("starting %s", version.String())

	monitoring.SetWarnRate(cfg.GetWarnRate(), cfg.GetWarnBurst())

	registry := tracking.NewRegistry(tracking.RegistryConfig{
		Resolver:         newResolver(cfg),
		SubscriberBuffer: cfg.GetSubscriberBuffer(),
	})
	defer registry.Close()

	stats := network.NewPacketStats(nil)

	var forwarder *network.PacketForwarder
	if addr := cfg.GetForwardAddr(); addr != "" {
		forwarder, err = network.NewPacketForwarder(addr, stats, cfg.GetStatsInterval())
		if err != nil {
			log.Fatalf("failed to create forwarder: %v", err)
		}
		defer forwarder.Close()
	}

	dispatcher := network.NewDispatcher(network.DispatcherConfig{
		Decoder:   protocol.Decoder{Layout: cfg.GetIMUSampleLayout()},
		Sink:      registry,
		Stats:     stats,
		Forwarder: forwarder,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchTrackers(ctx, &wg, registry)
	}()

	// ingest goroutine: live UDP or pcap replay
	wg.Add(1)
	go func() {
		defer wg.Done()

		if *pcapFile != "" {
			f, err := os.Open(*pcapFile)
			if err != nil {
				log.Printf("failed to open pcap file: %v", err)
				stop()
				return
			}
			defer f.Close()

			res, err := network.Replay(ctx, f, *pcapPort, dispatcher)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("pcap replay failed: %v", err)
			}
			log.Printf("replayed %d datagrams from %d packets into %d trackers",
				res.Datagrams, res.Packets, registry.Len())
			if cfg.GetHTTPListen() == "" {
				stop()
			}
			return
		}

		listener := network.NewListener(network.ListenerConfig{
			Address:     cfg.GetListen(),
			RcvBuf:      cfg.GetRcvBuf(),
			MaxDatagram: cfg.GetMaxDatagram(),
			LogInterval: cfg.GetStatsInterval(),
			Dispatcher:  dispatcher,
		})
		if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("UDP listener failed: %v", err)
			stop()
		}
		log.Print("listener routine terminated")
	}()

	if mcfg, ok, err := advertiseConfig(cfg); err != nil {
		log.Printf("mDNS advertising disabled: %v", err)
	} else if ok && *pcapFile == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := discovery.Advertise(ctx, mcfg); err != nil {
				log.Printf("mDNS advertising failed: %v", err)
			}
		}()
	}

	if addr := cfg.GetHTTPListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			server := api.NewServer(registry, stats)
			mux := server.ServeMux()
			server.AttachAdminRoutes(mux)

			httpServer := &http.Server{
				Addr:    addr,
				Handler: api.LoggingMiddleware(mux),
			}

			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("failed to start HTTP server: %v", err)
					stop()
				}
			}()
			log.Printf("HTTP monitor listening on %s", addr)

			<-ctx.Done()
			log.Println("shutting down HTTP server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				if err := httpServer.Close(); err != nil {
					log.Printf("HTTP server force close error: %v", err)
				}
			}
			log.Printf("HTTP server routine stopped")
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
