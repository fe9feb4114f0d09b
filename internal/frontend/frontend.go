// Package frontend implements the UDP dispatcher: it receives client
// datagrams, decodes the question, drives the iterative resolver,
// synthesizes a reply, and logs a summary/step CSV row and a metrics
// update for every query (§4.5).
package frontend

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dnsscience/resolverd/internal/metrics"
	"github.com/dnsscience/resolverd/internal/pool"
	"github.com/dnsscience/resolverd/internal/resolver"
	"github.com/dnsscience/resolverd/internal/wire"
	"github.com/dnsscience/resolverd/internal/worker"
)

// minQuestionLen is a 12-octet header plus at least one octet of
// question; anything shorter is dropped before decoding (scenario S5).
// Longer datagrams whose question does not decode are dropped by
// DecodeQuestion in handle.
const minQuestionLen = 13

// Config configures one Frontend instance.
type Config struct {
	BindAddr string

	SummaryCSVPath string
	StepCSVPath    string
	MetricsCSVPath string

	ResolverConfig resolver.Config

	// RateLimitPerSecond and RateLimitBurst bound per-client query
	// rate. Zero disables rate limiting. Queries over the limit are
	// dropped with no reply, no log rows and no metrics update.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Workers > 0 processes queries concurrently across a bounded pool
	// instead of the default one-query-at-a-time loop (§5).
	Workers int
}

// DefaultConfig returns sane defaults: UDP/53, no rate limiting, and
// single-threaded dispatch.
func DefaultConfig() Config {
	return Config{
		BindAddr:       ":53",
		SummaryCSVPath: "summary.csv",
		StepCSVPath:    "steps.csv",
		MetricsCSVPath: "metrics.csv",
		ResolverConfig: resolver.Config{},
	}
}

// Frontend is the UDP dispatcher.
type Frontend struct {
	cfg      Config
	conn     *net.UDPConn
	resolver *resolver.Resolver
	metrics  *metrics.Aggregate
	pool     *worker.Pool

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	csvMu      sync.Mutex
	summaryCSV *os.File
	stepCSV    *os.File

	wg sync.WaitGroup
}

// New creates a Frontend bound to cfg.BindAddr, opening (and creating
// if absent) the summary and step CSV files with their header rows.
func New(cfg Config, m *metrics.Aggregate) (*Frontend, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("frontend: resolve bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("frontend: listen: %w", err)
	}

	summary, err := openWithHeader(cfg.SummaryCSVPath, "timestamp,client,domain,result_ip,total_time_ms")
	if err != nil {
		conn.Close()
		return nil, err
	}
	step, err := openWithHeader(cfg.StepCSVPath, "timestamp,domain,resolution_mode,dns_server_ip,step,response_type,rtt_ms,total_time_ms,cache_status")
	if err != nil {
		conn.Close()
		summary.Close()
		return nil, err
	}

	f := &Frontend{
		cfg:        cfg,
		conn:       conn,
		resolver:   resolver.New(cfg.ResolverConfig),
		metrics:    m,
		limiters:   make(map[string]*rate.Limiter),
		summaryCSV: summary,
		stepCSV:    step,
	}
	if cfg.Workers > 0 {
		f.pool = worker.NewPool(worker.Config{Workers: cfg.Workers})
	}
	return f, nil
}

func openWithHeader(path, header string) (*os.File, error) {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("frontend: open %s: %w", path, err)
	}
	if os.IsNotExist(statErr) {
		fmt.Fprintln(f, header)
	}
	return f, nil
}

// Serve runs the receive loop until ctx is canceled.
func (f *Frontend) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		f.conn.Close()
	}()

	buf := pool.GetDatagramBuffer()
	defer pool.PutDatagramBuffer(buf)

	for {
		n, clientAddr, err := f.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				f.wg.Wait()
				if f.pool != nil {
					f.pool.Close()
				}
				return nil
			default:
				return fmt.Errorf("frontend: read: %w", err)
			}
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		if f.pool != nil {
			f.wg.Add(1)
			job := worker.JobFunc(func(ctx context.Context) error {
				defer f.wg.Done()
				f.handle(datagram, clientAddr)
				return nil
			})
			if err := f.pool.SubmitAsync(ctx, job); err != nil {
				f.wg.Done()
				f.handle(datagram, clientAddr)
			}
		} else {
			f.handle(datagram, clientAddr)
		}
	}
}

// Close releases the listening socket and CSV file handles.
func (f *Frontend) Close() error {
	f.conn.Close()
	f.summaryCSV.Close()
	f.stepCSV.Close()
	return nil
}

func (f *Frontend) handle(datagram []byte, client *net.UDPAddr) {
	if len(datagram) < minQuestionLen {
		return // scenario S5: silently dropped, no log rows, no metrics
	}

	if !f.allow(client.IP.String()) {
		return
	}

	question, _, err := wire.DecodeQuestion(datagram, 12)
	if err != nil {
		return
	}

	result := f.resolver.Resolve(question.Name)

	now := time.Now()
	clientID := uint16(datagram[0])<<8 | uint16(datagram[1])

	var reply []byte
	resultIP := "FAIL"
	if result.Found {
		var ip4 [4]byte
		if parsed := net.ParseIP(result.IP).To4(); parsed != nil {
			copy(ip4[:], parsed)
		}
		if r, buildErr := wire.BuildSuccessReply(clientID, datagram[12:], question.Name, ip4); buildErr == nil {
			reply = r
			resultIP = result.IP
		} else {
			result.Found = false
		}
	}
	if !result.Found {
		reply = wire.BuildNXDomainReply(datagram)
	}

	f.conn.WriteToUDP(reply, client)

	f.logQuery(now, client.IP.String(), question.Name, resultIP, result)

	if result.Found {
		f.metrics.RecordSuccess(result.TotalMillis, result.FromCache)
	} else {
		f.metrics.RecordFailure()
	}

	if err := f.metrics.WriteCSV(f.cfg.MetricsCSVPath); err != nil {
		fmt.Fprintf(os.Stderr, "frontend: metrics csv: %v\n", err)
	}
}

func (f *Frontend) allow(clientIP string) bool {
	if f.cfg.RateLimitPerSecond <= 0 {
		return true
	}

	f.limiterMu.Lock()
	lim, ok := f.limiters[clientIP]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.cfg.RateLimitPerSecond), f.cfg.RateLimitBurst)
		f.limiters[clientIP] = lim
	}
	f.limiterMu.Unlock()

	return lim.Allow()
}

func (f *Frontend) logQuery(ts time.Time, client, domain, resultIP string, result resolver.Result) {
	f.csvMu.Lock()
	defer f.csvMu.Unlock()

	if _, err := fmt.Fprintf(f.summaryCSV, "%s,%s,%s,%s,%.2f\n",
		ts.Format(time.RFC3339), client, domain, resultIP, result.TotalMillis); err != nil {
		fmt.Fprintf(os.Stderr, "frontend: summary csv: %v\n", err)
	}

	for _, step := range result.Steps {
		rtt := "timeout"
		if !step.RTTTimeout {
			rtt = fmt.Sprintf("%.2f", step.RTTMillis)
		}
		total := "-"
		if step.HasTotal {
			total = fmt.Sprintf("%.2f", step.TotalMillis)
		}
		if _, err := fmt.Fprintf(f.stepCSV, "%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			ts.Format(time.RFC3339), step.Domain, step.Mode, step.Server, step.Stage,
			step.Response, rtt, total, step.CacheStatus); err != nil {
			fmt.Fprintf(os.Stderr, "frontend: step csv: %v\n", err)
		}
	}
}
