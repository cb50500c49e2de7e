// Package constraint answers whether a job's execution constraints hold.
package constraint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lexipath/lexisync/internal/scheduler"
)

var (
	ErrNoNetwork  = errors.New("constraint: network unavailable")
	ErrBatteryLow = errors.New("constraint: battery low")
)

// Probe reports whether the network is reachable.
type Probe interface {
	Online(ctx context.Context) error
}

// Monitor reports whether the battery is low.
type Monitor interface {
	Low() (bool, error)
}

// Checker implements scheduler.ConstraintChecker. A nil Probe or Monitor
// treats the matching constraint as always satisfied.
type Checker struct {
	Network Probe
	Battery Monitor
}

func (c *Checker) Check(ctx context.Context, want scheduler.Constraints) error {
	if want.RequiresNetwork && c.Network != nil {
		if err := c.Network.Online(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNoNetwork, err)
		}
	}
	if want.RequiresBatteryNotLow && c.Battery != nil {
		low, err := c.Battery.Low()
		if err != nil {
			// An unreadable battery is treated like a mains-powered host.
			return nil
		}
		if low {
			return ErrBatteryLow
		}
	}
	return nil
}

// DialProbe considers the network up when a TCP connection to Addr succeeds.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

var dialContext = (&net.Dialer{}).DialContext

func (p DialProbe) Online(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
