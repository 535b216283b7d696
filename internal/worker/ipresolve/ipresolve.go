// Package ipresolve discovers the worker's public IP on startup, so
// its worker_ping row carries something more useful than a private
// address for operators diagnosing which host a worker runs on.
// Grounded on the original's external_ip::ConsensusBuilder: query
// several independent HTTP sources, trust whichever answer the most of
// them agree on.
package ipresolve

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// defaultSources mirrors external_ip's http sources set: plain-text
// "what is my IP" endpoints that need no parsing beyond a trim.
var defaultSources = []string{
	"https://api.ipify.org",
	"https://icanhazip.com",
	"https://ifconfig.me/ip",
	"https://checkip.amazonaws.com",
}

// ErrNoConsensus is returned when no source produced a valid IP (every
// one failed or answered with something that does not parse as an IP).
// A single valid answer is enough to win.
var ErrNoConsensus = errors.New("no ip consensus reached")

type Resolver struct {
	client  *resty.Client
	sources []string
}

func New(sources ...string) *Resolver {
	if len(sources) == 0 {
		sources = defaultSources
	}
	return &Resolver{
		client:  resty.New().SetTimeout(5 * time.Second),
		sources: sources,
	}
}

// Resolve queries every source concurrently and returns the IP address
// reported by the largest number of them. Ties break toward the first
// source to report the winning value.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	type answer struct {
		ip  string
		err error
	}

	results := make(chan answer, len(r.sources))
	for _, src := range r.sources {
		src := src
		go func() {
			resp, err := r.client.R().SetContext(ctx).Get(src)
			if err != nil {
				results <- answer{err: err}
				return
			}
			ip := strings.TrimSpace(resp.String())
			if net.ParseIP(ip) == nil {
				results <- answer{err: errors.New("source returned a non-IP response")}
				return
			}
			results <- answer{ip: ip}
		}()
	}

	counts := make(map[string]int)
	order := make([]string, 0, len(r.sources))
	for range r.sources {
		a := <-results
		if a.err != nil {
			continue
		}
		if counts[a.ip] == 0 {
			order = append(order, a.ip)
		}
		counts[a.ip]++
	}

	best := ""
	bestCount := 0
	for _, ip := range order {
		if counts[ip] > bestCount {
			best, bestCount = ip, counts[ip]
		}
	}
	if best == "" {
		return "", ErrNoConsensus
	}
	return best, nil
}
