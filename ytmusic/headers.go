package ytmusic

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const origin = "https://music.youtube.com"

var ErrNoCredentials = errors.New("headers file has no cookie")

// LoadHeaders reads a JSON object of browser request headers, the format
// produced by copying a logged-in music.youtube.com request.
func LoadHeaders(path string) (http.Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read headers file: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse headers file %s: %w", path, err)
	}

	headers := make(http.Header, len(raw))
	for k, v := range raw {
		headers.Set(k, v)
	}
	if headers.Get("Cookie") == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCredentials)
	}
	return headers, nil
}

// sapisidHash builds the Authorization value YouTube expects for cookie
// sessions: "SAPISIDHASH <ts>_<sha1(ts sapisid origin)>".
func sapisidHash(sapisid string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	sum := sha1.Sum([]byte(ts + " " + sapisid + " " + origin))
	return "SAPISIDHASH " + ts + "_" + hex.EncodeToString(sum[:])
}

func cookieValue(cookieHeader, name string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if found && k == name {
			return v
		}
	}
	return ""
}

// authorize fills in Authorization from the SAPISID cookie unless the headers
// file already carries one.
func authorize(h http.Header, now time.Time) {
	if h.Get("Authorization") != "" {
		return
	}
	cookie := h.Get("Cookie")
	sapisid := cookieValue(cookie, "SAPISID")
	if sapisid == "" {
		sapisid = cookieValue(cookie, "__Secure-3PAPISID")
	}
	if sapisid != "" {
		h.Set("Authorization", sapisidHash(sapisid, now))
	}
}
