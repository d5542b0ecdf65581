package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"contractdesk/internal/layout"
)

// ErrBlockedAddress is returned when an image URL points at loopback,
// private, link-local or otherwise non-public address space.
var ErrBlockedAddress = errors.New("image host is not a public address")

var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// PublicIP reports whether ip is routable on the public internet.
func PublicIP(ip net.IP) bool {
	switch {
	case ip == nil,
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		cgnat.Contains(ip):
		return false
	}
	return true
}

// guardedControl runs after DNS resolution, so redirects and rebinding are
// checked against the address actually dialed.
func guardedControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if !PublicIP(net.ParseIP(host)) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// NewImageClient returns an HTTP client that refuses to connect to
// non-public addresses. Proxies are disabled so the dial check sees the
// real destination.
func NewImageClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout, Control: guardedControl}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// Resolver looks up the addresses of a host.
type Resolver func(ctx context.Context, host string) ([]net.IPAddr, error)

// publicURL reports whether raw is an http(s) URL whose host resolves only
// to public addresses.
func publicURL(ctx context.Context, resolve Resolver, raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return PublicIP(ip)
	}
	addrs, err := resolve(ctx, host)
	if err != nil || len(addrs) == 0 {
		return false
	}
	for _, a := range addrs {
		if !PublicIP(a.IP) {
			return false
		}
	}
	return true
}

// publicImages returns a copy of doc in which every image URL that is not
// public is cleared. doc itself is left untouched.
func publicImages(ctx context.Context, resolve Resolver, doc layout.Document) layout.Document {
	keep := func(raw string) string {
		if raw == "" || publicURL(ctx, resolve, raw) {
			return raw
		}
		return ""
	}
	out := layout.Document{Source: doc.Source, Version: doc.Version, Pages: make([]layout.Page, len(doc.Pages))}
	for i, p := range doc.Pages {
		page := layout.Page{LetterheadURL: keep(p.LetterheadURL), Sections: make([]layout.Section, len(p.Sections))}
		for j, s := range p.Sections {
			if s.Photos != nil {
				photos := make([]layout.Photo, len(s.Photos))
				for k, ph := range s.Photos {
					photos[k] = layout.Photo{URL: keep(ph.URL), Caption: ph.Caption}
				}
				s.Photos = photos
			}
			if s.Signature != nil {
				sig := *s.Signature
				sig.FirstPartySignatureURL = keep(sig.FirstPartySignatureURL)
				sig.SecondPartySignatureURL = keep(sig.SecondPartySignatureURL)
				sig.StampURL = keep(sig.StampURL)
				s.Signature = &sig
			}
			page.Sections[j] = s
		}
		out.Pages[i] = page
	}
	return out
}
