package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/dnsscience/resolverd/internal/frontend"
	"github.com/dnsscience/resolverd/internal/metrics"
)

// fileConfig is the optional on-disk configuration shape. All fields
// are optional and override DefaultConfig() when present.
type fileConfig struct {
	BindAddr           string  `yaml:"bind_addr"`
	SummaryCSVPath     string  `yaml:"summary_csv_path"`
	StepCSVPath        string  `yaml:"step_csv_path"`
	MetricsCSVPath     string  `yaml:"metrics_csv_path"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
	Workers            int     `yaml:"workers"`
	Stats              *bool   `yaml:"stats"`
	MetricsBindAddr    string  `yaml:"metrics_bind_addr"`
}

var (
	bindAddr        string
	configPath      string
	showStats       bool
	metricsBindAddr string
)

// newFlagSet builds the CLI surface: a bind address override and an
// optional config file, per §6 ("no CLI flags beyond the bind
// address") plus the config/stats knobs this resolver adds on top.
func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("resolverd", flag.ExitOnError)
	fs.StringVar(&bindAddr, "bind", "", "UDP bind address (default :53, or from -config)")
	fs.StringVar(&configPath, "config", "", "optional YAML config file")
	fs.BoolVar(&showStats, "stats", true, "print periodic statistics")
	fs.StringVar(&metricsBindAddr, "metrics-bind", ":9153", "bind address for the /metrics HTTP endpoint")
	return fs
}

func main() {
	fs := newFlagSet()
	fs.Parse(os.Args[1:])
	flagSet := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { flagSet[f.Name] = true })

	fmt.Println("================================================================")
	fmt.Println("                resolverd - iterative DNS resolver             ")
	fmt.Println("================================================================")
	fmt.Println()

	cfg := frontend.DefaultConfig()

	if configPath != "" {
		fc, err := loadFileConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config %s: %v\n", configPath, err)
			os.Exit(1)
		}
		applyFileConfig(&cfg, fc)
		if fc.Stats != nil && !flagSet["stats"] {
			showStats = *fc.Stats
		}
		if fc.MetricsBindAddr != "" && !flagSet["metrics-bind"] {
			metricsBindAddr = fc.MetricsBindAddr
		}
	}
	if bindAddr != "" {
		cfg.BindAddr = bindAddr
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Bind Address:   %s\n", cfg.BindAddr)
	fmt.Printf("  Summary CSV:    %s\n", cfg.SummaryCSVPath)
	fmt.Printf("  Step CSV:       %s\n", cfg.StepCSVPath)
	fmt.Printf("  Metrics CSV:    %s\n", cfg.MetricsCSVPath)
	fmt.Printf("  Metrics HTTP:   %s/metrics\n", metricsBindAddr)
	fmt.Printf("  Rate Limit:     %.1f qps (burst %d)\n", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	fmt.Printf("  Workers:        %d\n", cfg.Workers)
	fmt.Println()

	agg := metrics.New(prometheus.DefaultRegisterer)

	fe, err := frontend.New(cfg, agg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating frontend: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- fe.Serve(ctx)
	}()

	metricsSrv := &http.Server{Addr: metricsBindAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()

	fmt.Println("resolverd started successfully")
	fmt.Println()

	if showStats {
		go printStats(ctx, agg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println()
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "frontend stopped: %v\n", err)
		}
	}

	cancel()
	if err := fe.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing frontend: %v\n", err)
	}
	if err := metricsSrv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing metrics server: %v\n", err)
	}
	fmt.Println("resolverd stopped")
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func applyFileConfig(cfg *frontend.Config, fc fileConfig) {
	if fc.BindAddr != "" {
		cfg.BindAddr = fc.BindAddr
	}
	if fc.SummaryCSVPath != "" {
		cfg.SummaryCSVPath = fc.SummaryCSVPath
	}
	if fc.StepCSVPath != "" {
		cfg.StepCSVPath = fc.StepCSVPath
	}
	if fc.MetricsCSVPath != "" {
		cfg.MetricsCSVPath = fc.MetricsCSVPath
	}
	if fc.RateLimitPerSecond > 0 {
		cfg.RateLimitPerSecond = fc.RateLimitPerSecond
		cfg.RateLimitBurst = fc.RateLimitBurst
	}
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
}

func printStats(ctx context.Context, agg *metrics.Aggregate) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := agg.Snapshot()
			fmt.Printf("----------------------------------------------------------------\n")
			fmt.Printf("Total Queries:   %10d\n", s.TotalQueries)
			fmt.Printf("Success:         %10d\n", s.Successes)
			fmt.Printf("Failed:          %10d\n", s.Failures)
			fmt.Printf("Avg Latency:     %10.2f ms\n", s.AvgLatencyMs)
			fmt.Printf("Throughput:      %10.2f qps\n", s.ThroughputQPS)
			fmt.Printf("Cache Resolved:  %10.1f%%\n", s.CacheHitPct)
			fmt.Printf("----------------------------------------------------------------\n\n")
		}
	}
}
