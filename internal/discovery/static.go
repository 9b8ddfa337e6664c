package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// InfoPath is the peer endpoint answering discovery probes.
const InfoPath = "/discovery"

// Info is the body served at InfoPath.
type Info struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Target is a configured peer address. Port 0 probes FallbackPorts.
type Target struct {
	Address string
	Port    int
	Name    string
}

// Static probes a fixed list of addresses. It backs direct connect.
type Static struct {
	Targets []Target
	Timeout time.Duration
	Client  *http.Client
	// Fallback overrides FallbackPorts when set.
	Fallback []int
}

// Scan probes each target and reports the ones that answer.
func (s *Static) Scan(ctx context.Context, report func(Peer)) error {
	var errs []error
	for _, t := range s.Targets {
		ports := []int{t.Port}
		if t.Port <= 0 {
			ports = s.fallback()
		}
		var lastErr error
		for _, port := range ports {
			info, err := s.Probe(ctx, t.Address, port)
			if err != nil {
				lastErr = err
				continue
			}
			name := info.Name
			if t.Name != "" {
				name = t.Name
			}
			report(Peer{
				ID:          info.ID,
				Address:     t.Address,
				Port:        port,
				DisplayName: name,
				Width:       info.Width,
				Height:      info.Height,
			})
			lastErr = nil
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr != nil {
			errs = append(errs, lastErr)
		}
	}
	return errors.Join(errs...)
}

// Probe fetches the discovery info of one address.
func (s *Static) Probe(ctx context.Context, address string, port int) (Info, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "http://" + net.JoinHostPort(address, strconv.Itoa(port)) + InfoPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Info{}, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Info{}, fmt.Errorf("discovery: %s: status %d", url, resp.StatusCode)
	}
	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Info{}, fmt.Errorf("discovery: %s: %w", url, err)
	}
	return info, nil
}

// fallback returns the ports tried for targets without one.
func (s *Static) fallback() []int {
	if len(s.Fallback) > 0 {
		return s.Fallback
	}
	return FallbackPorts
}
