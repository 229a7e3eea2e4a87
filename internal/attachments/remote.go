package attachments

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxRemoteBytes caps files pulled from a URL.
const maxRemoteBytes = 10 << 20 // 10 MB

var extByMIME = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
}

var remoteExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".svg": true, ".pdf": true, ".txt": true, ".md": true,
}

// Remote is a file pulled from an http(s) URL or a base64 data URI.
type Remote struct {
	Name        string
	ContentType string
	Data        []byte
}

// FetchRemote downloads rawURL. name overrides the file name derived from
// the URL. Loopback and cloud metadata hosts are refused, and the content
// must match the file extension.
func FetchRemote(ctx context.Context, rawURL, name string) (*Remote, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = download(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = nameFromURL(rawURL, ext)
	}
	name = SanitizeName(name)
	fileExt := strings.ToLower(filepath.Ext(name))
	if !remoteExtensions[fileExt] {
		return nil, fmt.Errorf("unsupported file extension: %q", fileExt)
	}
	if err := checkContent(data, fileExt); err != nil {
		return nil, err
	}
	return &Remote{Name: name, ContentType: http.DetectContentType(data), Data: data}, nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxRemoteBytes {
		return nil, "", fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxRemoteBytes)
	}
	mime, _, _ := strings.Cut(strings.TrimSuffix(meta, ";base64"), ";")
	return data, extByMIME[mime], nil
}

func download(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	if err := checkHost(u.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxRemoteBytes {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxRemoteBytes)
	}
	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, extByMIME[strings.TrimSpace(mime)], nil
}

// checkHost rejects loopback and cloud metadata addresses.
func checkHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // the HTTP client reports DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

func nameFromURL(rawURL, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(rawURL, "data:") {
		if u, err := url.Parse(rawURL); err == nil {
			base := path.Base(u.Path)
			if base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	return uuid.NewString() + ext
}

// checkContent verifies the sniffed content type matches ext.
func checkContent(data []byte, ext string) error {
	switch ext {
	case ".svg":
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	case ".txt", ".md":
		if !strings.HasPrefix(http.DetectContentType(data), "text/") {
			return fmt.Errorf("content does not match extension %s", ext)
		}
		return nil
	}
	detected := http.DetectContentType(data)
	mime, _, _ := strings.Cut(detected, ";")
	got := extByMIME[mime]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
