// Package httpget implements the HTTP/1.0 GET pipeline of spec §4.8: URL
// parse, DNS/ARP/TCP/TLS setup, fixed request-line assembly, case-insensitive
// header parse, content-length/chunked body reads, and bounded redirect
// following, driven as a blocking sequence of stages reported to the
// caller, matching the rest of the daemon's spin-loop blocking style.
package httpget

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedURL is returned by ParseURL for anything outside spec
// §4.8's accepted grammar.
var ErrMalformedURL = errors.New("httpget: malformed url")

// maxHostLen is the host-length cap of spec §4.8.
const maxHostLen = 253

// URL is a parsed GET target.
type URL struct {
	HTTPS bool
	Host  string
	Port  uint16
	Path  string
}

// ParseURL accepts http:// and https:// URLs with an optional :port and a
// default path of "/". Port defaults to 80/443 by scheme.
func ParseURL(raw string) (URL, error) {
	var u URL
	rest := raw
	switch {
	case strings.HasPrefix(rest, "https://"):
		u.HTTPS = true
		rest = rest[len("https://"):]
	case strings.HasPrefix(rest, "http://"):
		rest = rest[len("http://"):]
	default:
		return URL{}, ErrMalformedURL
	}
	if rest == "" {
		return URL{}, ErrMalformedURL
	}

	hostport := rest
	path := "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		hostport = rest[:i]
		path = rest[i:]
	}
	if hostport == "" {
		return URL{}, ErrMalformedURL
	}

	host := hostport
	port := uint16(80)
	if u.HTTPS {
		port = 443
	}
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		host = hostport[:i]
		p, err := strconv.ParseUint(hostport[i+1:], 10, 16)
		if err != nil || host == "" {
			return URL{}, ErrMalformedURL
		}
		port = uint16(p)
	}
	if len(host) == 0 || len(host) > maxHostLen {
		return URL{}, ErrMalformedURL
	}

	u.Host = host
	u.Port = port
	u.Path = path
	return u, nil
}

// resolveRedirect builds the URL a Location header refers to. Relative
// references (a bare path) are resolved against base's scheme/host/port;
// anything else must parse as a complete URL.
func resolveRedirect(base URL, location string) (URL, error) {
	if strings.HasPrefix(location, "/") {
		next := base
		next.Path = location
		return next, nil
	}
	return ParseURL(location)
}

// BuildRequestLine assembles the fixed GET request of spec §4.8.
func BuildRequestLine(u URL) []byte {
	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(u.Path)
	b.WriteString(" HTTP/1.0\r\nHost: ")
	b.WriteString(u.Host)
	b.WriteString("\r\nUser-Agent: yulaos-wget/1\r\nConnection: close\r\n\r\n")
	return []byte(b.String())
}
