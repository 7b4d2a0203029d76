// Package popup holds the state behind the extension popup: auth display,
// scan controls, and the running scan counter.
package popup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookmark-cli/internal/auth"
	"github.com/sells-group/bookmark-cli/internal/channel"
	"github.com/sells-group/bookmark-cli/internal/clock"
)

// Status strings shown to the user.
const (
	MsgWrongPage    = "Please go to Twitter Bookmarks page first."
	MsgStartFailed  = "Error: Refresh the page and try again."
	MsgScanning     = "Scanning..."
	MsgStopped      = "Stopped."
	msgScanComplete = "Scan complete: %d bookmarks"

	authConnected    = "Connected"
	authDisconnected = "Not Connected"
)

// CredentialReader exposes the stored identity.
type CredentialReader interface {
	Credentials(ctx context.Context) (auth.Credentials, error)
}

// View is a point-in-time rendering of the popup.
type View struct {
	Authenticated bool   `json:"authenticated"`
	AuthText      string `json:"authText"`
	Scanning      bool   `json:"scanning"`
	Scanned       int    `json:"scanned"`
	Status        string `json:"status,omitempty"`
}

// Controller drives the scraper from the popup context.
type Controller struct {
	bus   *channel.Bus
	creds CredentialReader
	clock clock.Clock
	ttl   time.Duration

	mu       sync.Mutex
	scanning bool
	scanned  int
	status   string
	statusAt time.Time
}

// New creates a Controller. Status messages clear after ttl; a ttl <= 0
// keeps them until replaced.
func New(bus *channel.Bus, creds CredentialReader, clk clock.Clock, ttl time.Duration) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Controller{bus: bus, creds: creds, clock: clk, ttl: ttl}
}

// OnTwitter reports whether tabURL belongs to twitter.com or x.com.
func OnTwitter(tabURL string) bool {
	u, err := url.Parse(tabURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range []string{"twitter.com", "x.com"} {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Start asks the scraper context to begin a scan of the page at tabURL.
func (c *Controller) Start(ctx context.Context, tabURL string) error {
	if !OnTwitter(tabURL) {
		c.setStatus(MsgWrongPage)
		return eris.Errorf("popup: %s is not a twitter page", tabURL)
	}

	// Progress can arrive before the reply, so the counter is reset first.
	c.mu.Lock()
	prevScanning, prevScanned := c.scanning, c.scanned
	c.scanning = true
	c.scanned = 0
	c.mu.Unlock()

	res, err := channel.RequestAs[channel.StartResult](ctx, c.bus, channel.Popup, channel.Scraper, channel.StartScraping{})
	if err == nil && !res.Started {
		err = eris.Errorf("popup: scraper refused to start: %s", res.Error)
	}
	if err != nil {
		zap.L().Warn("popup: start scraping failed", zap.Error(err))
		c.mu.Lock()
		c.scanning, c.scanned = prevScanning, prevScanned
		c.mu.Unlock()
		c.setStatus(MsgStartFailed)
		return err
	}

	c.setStatus(MsgScanning)
	return nil
}

// Stop asks the scraper to stop after its current cycle.
func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.bus.Request(ctx, channel.Popup, channel.Scraper, channel.StopScraping{})

	c.mu.Lock()
	c.scanning = false
	c.mu.Unlock()
	c.setStatus(MsgStopped)
	return err
}

// Handler consumes progress notifications sent to the popup context.
func (c *Controller) Handler() channel.Handler {
	return func(_ context.Context, env channel.Envelope, _ *channel.Responder) channel.Result {
		switch m := env.Msg.(type) {
		case channel.StatsUpdate:
			c.mu.Lock()
			c.scanned += m.Count
			c.mu.Unlock()
		case channel.ScanComplete:
			c.mu.Lock()
			c.scanning = false
			c.mu.Unlock()
			c.setStatus(fmt.Sprintf(msgScanComplete, m.Total))
		}
		return channel.Reply(channel.Ack{OK: true})
	}
}

// View renders the current popup state.
func (c *Controller) View(ctx context.Context) (View, error) {
	v := View{AuthText: authDisconnected}
	if c.creds != nil {
		creds, err := c.creds.Credentials(ctx)
		if err != nil {
			return View{}, err
		}
		if creds.Authenticated() {
			v.Authenticated = true
			v.AuthText = authConnected
			if creds.UserEmail != "" {
				v.AuthText = creds.UserEmail
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	v.Scanning = c.scanning
	v.Scanned = c.scanned
	v.Status = c.currentStatus()
	return v, nil
}

// Status returns the visible status message, or "" once it has expired.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStatus()
}

func (c *Controller) currentStatus() string {
	if c.ttl > 0 && c.clock.Now().Sub(c.statusAt) >= c.ttl {
		return ""
	}
	return c.status
}

func (c *Controller) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.statusAt = c.clock.Now()
	c.mu.Unlock()
}
