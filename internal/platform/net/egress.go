// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package net guards outbound requests to hosts handed to us by third parties.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrBlockedDestination is returned for URLs that resolve to loopback, private or link-local
// addresses while the policy forbids them.
var ErrBlockedDestination = errors.New("destination not allowed")

// Resolver looks up host addresses. net.DefaultResolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// EgressPolicy decides which resolved media URLs may be fetched.
type EgressPolicy struct {
	// AllowPrivate permits loopback, RFC 1918 and link-local destinations.
	AllowPrivate bool
	// Resolver defaults to net.DefaultResolver.
	Resolver Resolver
}

// Check validates raw as an http(s) URL without credentials and, unless AllowPrivate is set,
// rejects hosts that resolve to internal addresses. It returns the URL with an ASCII host.
func (p EgressPolicy) Check(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrBlockedDestination, u.Scheme)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: credentials in url", ErrBlockedDestination)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}

	if !p.AllowPrivate {
		ips, err := p.lookup(ctx, host)
		if err != nil {
			return "", err
		}
		for _, ip := range ips {
			if isInternal(ip) {
				return "", fmt.Errorf("%w: %s resolves to %s", ErrBlockedDestination, host, ip)
			}
		}
	}

	u.Scheme = scheme
	u.Host = joinHostPort(host, u.Port())
	return u.String(), nil
}

func (p EgressPolicy) lookup(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	r := p.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// NormalizeHost lowercases host and converts internationalized names to their ASCII form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

func isInternal(ip net.IP) bool {
	return ip == nil ||
		ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
