package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrNoBackend is returned when no candidate port answered the health probe.
var ErrNoBackend = errors.New("no backend found")

// Options configures a discovery run.
type Options struct {
	Host         string
	PortStart    int
	PortEnd      int
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// DefaultOptions probes localhost:8001-8010 with a one second timeout per port.
func DefaultOptions() Options {
	return Options{
		Host:         "localhost",
		PortStart:    8001,
		PortEnd:      8010,
		ProbeTimeout: time.Second,
	}
}

// Result is the backend that answered.
type Result struct {
	BaseURL  string
	Port     int
	Attempts int
}

// Discover probes each port in order and returns the first that answers
// GET /api/health with a 2xx status.
func Discover(ctx context.Context, opts Options) (*Result, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = time.Second
	}
	if opts.PortEnd < opts.PortStart {
		return nil, fmt.Errorf("invalid port range %d-%d", opts.PortStart, opts.PortEnd)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempts := 0
	for port := opts.PortStart; port <= opts.PortEnd; port++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++
		baseURL := fmt.Sprintf("http://%s:%d", opts.Host, port)
		if err := probe(ctx, client, baseURL, opts.ProbeTimeout); err != nil {
			logger.Debug("backend probe failed", "url", baseURL, "error", err)
			continue
		}
		logger.Debug("backend found", "url", baseURL)
		return &Result{BaseURL: baseURL, Port: port, Attempts: attempts}, nil
	}

	return nil, fmt.Errorf("%w on %s ports %d-%d", ErrNoBackend, opts.Host, opts.PortStart, opts.PortEnd)
}

func probe(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}
