package utils

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

const pingTimeout = 1500 * time.Millisecond

// PingService checks if a service is reachable at the given URL
func PingService(serviceURL string, timeout time.Duration) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Hostname() == "" {
		return fmt.Errorf("invalid URL: missing host in %q", serviceURL)
	}

	port := parsedURL.Port()
	if port == "" {
		switch parsedURL.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}

	return PingAddress(net.JoinHostPort(parsedURL.Hostname(), port), timeout)
}

// PingAddress dials a host:port pair.
func PingAddress(address string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	return nil
}

// PingAuthorizer checks if the Authorizer service is reachable
func PingAuthorizer(authzURL string) error {
	return PingService(authzURL, pingTimeout)
}

// PingBilling checks if the billing service is reachable
func PingBilling(billingURL string) error {
	return PingService(billingURL, pingTimeout)
}
