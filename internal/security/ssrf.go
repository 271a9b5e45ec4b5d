package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// LookupIP resolves hostnames for ValidateDownloadURL. Tests may replace it.
var LookupIP = net.LookupIP

// ValidateDownloadURL checks an untrusted link from chat before it is handed to the download tool:
// - http or https only
// - no userinfo, no localhost
// - hosts must not resolve to loopback/private/link-local ranges
// Returns the normalized URL string.
func ValidateDownloadURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url: %q", raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.User != nil {
		return "", errors.New("credentials in url are not allowed")
	}

	host := u.Hostname()
	if host == "" {
		return "", errors.New("empty hostname")
	}
	// Hosts starting with '-' look like tool flags.
	if strings.HasPrefix(host, "-") {
		return "", fmt.Errorf("invalid hostname %q", host)
	}
	if isLocalHostname(host) {
		return "", errors.New("localhost is not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isDisallowedIP(ip) {
			return "", fmt.Errorf("disallowed ip: %s", ip.String())
		}
	} else if ips, err := LookupIP(host); err == nil {
		for _, ip := range ips {
			if isDisallowedIP(ip) {
				return "", fmt.Errorf("host resolves to disallowed ip: %s", ip.String())
			}
		}
	}

	u.Scheme = scheme
	u.Fragment = ""
	return u.String(), nil
}

func isLocalHostname(h string) bool {
	h = strings.ToLower(strings.TrimSuffix(h, "."))
	return h == "localhost" || h == "localhost.localdomain" || strings.HasSuffix(h, ".localhost")
}

func isDisallowedIP(ip net.IP) bool {
	if ip == nil || ip.To16() == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		ip.IsPrivate()
}
