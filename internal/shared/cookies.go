// Utilities for importing browser cookies, used by both download backends for
// age-restricted or members-only videos.
package shared

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
)

// CurlHeaders represents parsed headers and cookies from a browser "copy as cURL" command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers and the cookie string.
//
// A cookie passed with -b wins over a "cookie:" header.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie string
	for _, match := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		headers[key] = value
	}

	cookie := headerCookie
	if match := curlCookieRe.FindStringSubmatch(cmd); match != nil {
		cookie = firstGroup(match)
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// Cookies splits the raw cookie string into individual cookies.
func (c *CurlHeaders) Cookies() []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(c.Cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies
}

// WriteCookieFile writes cookies in the Netscape cookies.txt format understood by yt-dlp.
func WriteCookieFile(path, domain string, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return fmt.Errorf("%w: no cookies to write", ErrInvalidInput)
	}

	expires := time.Now().AddDate(1, 0, 0).Unix()
	var buf bytes.Buffer
	buf.WriteString("# Netscape HTTP Cookie File\n")
	for _, c := range cookies {
		fmt.Fprintf(&buf, "%s\tTRUE\t/\tTRUE\t%d\t%s\t%s\n", domain, expires, c.Name, c.Value)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0600)
}

// LoadCookieFile parses a Netscape cookies.txt file. Expired entries are dropped.
func LoadCookieFile(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	now := time.Now()
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || (strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "#HttpOnly_")) {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}

		cookie := &http.Cookie{
			Domain: strings.TrimPrefix(fields[0], "#HttpOnly_"),
			Path:   fields[2],
			Secure: fields[3] == "TRUE",
			Name:   fields[5],
			Value:  fields[6],
		}
		if ts, err := strconv.ParseInt(fields[4], 10, 64); err == nil && ts > 0 {
			cookie.Expires = time.Unix(ts, 0)
			if cookie.Expires.Before(now) {
				continue
			}
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cookie file: %w", err)
	}
	return cookies, nil
}
