//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/malbeclabs/networkd/internal/daemon"
	"github.com/malbeclabs/networkd/internal/ifacedev"
	"github.com/malbeclabs/networkd/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ifaceName            = flag.String("iface", "eth0", "Ethernet interface to bind")
	sockPath             = flag.String("sock-file", "/var/run/networkd/networkd.sock", "path to the networkd control socket")
	staticIP             = flag.String("ip", "", "static IPv4 address (dotted quad)")
	staticNetmask        = flag.String("netmask", "255.255.255.0", "static IPv4 netmask (dotted quad)")
	staticGateway        = flag.String("gateway", "", "static IPv4 default gateway (dotted quad)")
	staticDNS            = flag.String("dns", "", "static IPv4 DNS server (dotted quad)")
	enableVerboseLogging = flag.Bool("v", false, "enables verbose logging")
	metricsEnable        = flag.Bool("metrics-enable", false, "enable prometheus metrics")
	metricsAddr          = flag.String("metrics-addr", "localhost:0", "address to listen on for prometheus metrics")

	// set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	flag.Parse()

	opts := &slog.HandlerOptions{}
	if *enableVerboseLogging {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	cfg, err := staticConfigFromFlags()
	if err != nil {
		slog.Error("invalid static configuration", "error", err)
		os.Exit(1)
	}

	if *metricsEnable {
		buildInfo := promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "networkd_build_info",
				Help: "Build information of networkd",
			},
			[]string{"version", "commit", "date"},
		)
		buildInfo.WithLabelValues(version, commit, date).Set(1)

		go func() {
			listener, err := net.Listen("tcp", *metricsAddr)
			if err != nil {
				slog.Error("failed to start prometheus metrics listener", "error", err)
				os.Exit(1)
			}
			http.Handle("/metrics", promhttp.Handler())
			slog.Info("prometheus metrics server started", "address", listener.Addr().String())
			if err := http.Serve(listener, nil); err != nil {
				log.Printf("prometheus metrics server stopped: %v", err)
			}
		}()
	}

	reopener := ifacedev.NewReopener(logger, *ifaceName)
	dev, err := reopener.EnsureUp(time.Now())
	if err != nil {
		slog.Error("failed to open interface", "iface", *ifaceName, "error", err)
		os.Exit(1)
	}

	d := daemon.New(dev,
		daemon.WithLogger(logger),
		daemon.WithSockPath(*sockPath),
		daemon.WithStaticConfig(cfg),
		daemon.WithReopener(reopener),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("networkd starting", "iface", *ifaceName, "sock", *sockPath, "ip", wire.IPv4String(cfg.IP))
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func staticConfigFromFlags() (daemon.StaticConfig, error) {
	var cfg daemon.StaticConfig
	fields := []struct {
		name string
		val  string
		out  *uint32
	}{
		{"ip", *staticIP, &cfg.IP},
		{"netmask", *staticNetmask, &cfg.Netmask},
		{"gateway", *staticGateway, &cfg.Gateway},
		{"dns", *staticDNS, &cfg.DNSServer},
	}
	for _, f := range fields {
		addr, ok := wire.ParseIPv4String(f.val)
		if !ok {
			return daemon.StaticConfig{}, fmt.Errorf("invalid -%s %q", f.name, f.val)
		}
		*f.out = addr
	}
	return cfg, nil
}
