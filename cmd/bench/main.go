package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thelabcorner/tracky/internal/payload"
)

// simple latency recorder (microseconds)
type recorder struct {
	mu   sync.Mutex
	durs []int64
}

func (r *recorder) add(d time.Duration) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	r.mu.Lock()
	r.durs = append(r.durs, us)
	r.mu.Unlock()
}

func (r *recorder) percentiles() (p50, p95, p99 time.Duration) {
	r.mu.Lock()
	d := make([]int64, len(r.durs))
	copy(d, r.durs)
	r.mu.Unlock()
	if len(d) == 0 {
		return 0, 0, 0
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
	idx := func(p float64) int {
		i := int(float64(len(d)-1) * p)
		if i < 0 {
			i = 0
		}
		if i >= len(d) {
			i = len(d) - 1
		}
		return i
	}
	return time.Duration(d[idx(0.50)]) * time.Microsecond, time.Duration(d[idx(0.95)]) * time.Microsecond, time.Duration(d[idx(0.99)]) * time.Microsecond
}

// syntheticPayloads builds encoded configurations exercising the codec:
// manual-only lists of varying size so the server never reaches out to
// the network during a bench run.
func syntheticPayloads(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		cfg := payload.Config{DoubleNewline: i%2 == 0}
		for j := 0; j <= i%8; j++ {
			cfg.Manual = append(cfg.Manual, fmt.Sprintf("udp://tracker%02d-%03d.example.org:6969/announce", j, i))
		}
		out = append(out, payload.Encode(cfg))
	}
	return out
}

func main() {
	var (
		target      = flag.String("url", "http://127.0.0.1:8080/trackers", "Target URL (GET). If it contains a {q} placeholder it is replaced with an encoded payload")
		duration    = flag.Duration("duration", 10*time.Second, "Test duration")
		concurrency = flag.Int("c", runtime.NumCPU(), "Number of concurrent workers")
		qps         = flag.Int("qps", 0, "Global approximate queries per second (0 = max possible)")
		payloadFile = flag.String("payloads", "", "Optional file with newline-separated pre-encoded payloads")
		insecure    = flag.Bool("allow-http", true, "Allow plain HTTP (set false to require https)")
		warmup      = flag.Duration("warmup", 0, "Optional warmup period (excluded from stats)")
		timeout     = flag.Duration("timeout", 5*time.Second, "Per request timeout")
	)
	flag.Parse()

	if !*insecure {
		if !strings.HasPrefix(*target, "https://") {
			fmt.Fprintln(os.Stderr, "refusing non-https target (use -allow-http=true to override)")
			os.Exit(1)
		}
	}
	if _, err := url.Parse(*target); err != nil {
		fmt.Fprintln(os.Stderr, "invalid url:", err)
		os.Exit(1)
	}

	var values []string
	if *payloadFile != "" {
		data, err := os.ReadFile(*payloadFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read payloads file:", err)
			os.Exit(1)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			values = append(values, line)
		}
	}
	if len(values) == 0 {
		values = syntheticPayloads(1000)
	}

	transport := &http.Transport{
		MaxIdleConns:        10000,
		MaxIdleConnsPerHost: 10000,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	client := &http.Client{Timeout: *timeout, Transport: transport}

	var (
		start        = time.Now()
		endTime      = start.Add(*duration)
		warmupUntil  = start.Add(*warmup)
		reqCount     int64
		successCount int64
		httpErrorCt  int64 // non-2xx HTTP responses
		netErrCt     int64 // total network-level errors
		timeoutCt    int64
		refusedCt    int64
		otherNetCt   int64
		statusCounts sync.Map // code -> *int64
		rec          recorder
	)

	ctx, cancel := context.WithDeadline(context.Background(), endTime)
	defer cancel()

	var globalTicker *time.Ticker
	if *qps > 0 {
		globalTicker = time.NewTicker(time.Second / time.Duration(*qps))
		defer globalTicker.Stop()
	}

	work := func(id int) {
		for {
			if ctx.Err() != nil {
				return
			}
			if *qps > 0 {
				<-globalTicker.C
			}
			idx := atomic.AddInt64(&reqCount, 1)
			val := values[idx%int64(len(values))]
			u := *target
			switch {
			case strings.Contains(u, "{q}"):
				u = strings.ReplaceAll(u, "{q}", url.QueryEscape(val))
			case strings.Contains(u, "?"):
				if !strings.Contains(u, "data=") {
					u += "&data=" + url.QueryEscape(val)
				}
			default:
				u += "?data=" + url.QueryEscape(val)
			}
			st := time.Now()
			resp, err := client.Get(u)
			lat := time.Since(st)
			if time.Now().After(warmupUntil) {
				rec.add(lat)
			}
			if err != nil {
				classifyNetErr(err, &netErrCt, &timeoutCt, &refusedCt, &otherNetCt)
				continue
			}
			// drain body to allow reuse; small bodies expected
			io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&httpErrorCt, 1)
			}
			v, _ := statusCounts.LoadOrStore(resp.StatusCode, new(int64))
			atomic.AddInt64(v.(*int64), 1)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(i int) { defer wg.Done(); work(i) }(i)
	}
	wg.Wait()

	total := atomic.LoadInt64(&reqCount)
	ok := atomic.LoadInt64(&successCount)
	httpErr := atomic.LoadInt64(&httpErrorCt)
	netErr := atomic.LoadInt64(&netErrCt)
	toErr := atomic.LoadInt64(&timeoutCt)
	refErr := atomic.LoadInt64(&refusedCt)
	othNet := atomic.LoadInt64(&otherNetCt)
	elapsed := time.Since(start)
	p50, p95, p99 := rec.percentiles()
	avgRPS := float64(total) / elapsed.Seconds()

	fmt.Println("=== Benchmark Summary ===")
	fmt.Printf("Target:      %s\n", *target)
	fmt.Printf("Duration:    %s (warmup %s)\n", elapsed.Truncate(time.Millisecond), *warmup)
	fmt.Printf("Workers:     %d\n", *concurrency)
	if *qps > 0 {
		fmt.Printf("QPS cap:     %d\n", *qps)
	}
	fmt.Printf("Requests:    %d (success %d, http_error %d, net_error %d)\n", total, ok, httpErr, netErr)
	fmt.Printf("Throughput:  %.1f req/s\n", avgRPS)
	fmt.Printf("Latency p50: %s  p95: %s  p99: %s\n", p50, p95, p99)
	fmt.Println("Status codes:")
	statusCounts.Range(func(k, v any) bool {
		fmt.Printf("  %d: %d\n", k.(int), atomic.LoadInt64(v.(*int64)))
		return true
	})
	if netErr > 0 {
		fmt.Println("Network errors:")
		fmt.Printf("  timeouts: %d\n", toErr)
		fmt.Printf("  refused:  %d\n", refErr)
		fmt.Printf("  other:    %d\n", othNet)
	}
}

func classifyNetErr(err error, netErrCt, timeoutCt, refusedCt, otherNetCt *int64) {
	atomic.AddInt64(netErrCt, 1)
	if ne, ok := err.(net.Error); ok {
		if ne.Timeout() {
			atomic.AddInt64(timeoutCt, 1)
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		atomic.AddInt64(timeoutCt, 1)
		return
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "No connection could be made") {
		atomic.AddInt64(refusedCt, 1)
		return
	}
	atomic.AddInt64(otherNetCt, 1)
}
