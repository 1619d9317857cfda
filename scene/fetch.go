package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	_ "golang.org/x/image/webp"
)

// maxImageBytes bounds background downloads.
const maxImageBytes = 32 << 20

var (
	ErrImageTooLarge  = errors.New("background image exceeds size limit")
	ErrBlockedAddress = errors.New("background host resolves to a non-public address")
)

// Fetcher retrieves raw image bytes for a background URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

type httpFetcher struct {
	client *http.Client
	limit  int64
}

// NewHTTPFetcher fetches backgrounds anonymously. No cookies or credentials
// are forwarded, so the decoded pixels are always safe to export.
//
// With a nil client the fetcher refuses to connect to loopback, private,
// link-local and other non-public addresses.
func NewHTTPFetcher(client *http.Client) Fetcher {
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = nil
		tr.DialContext = (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   publicOnly,
		}).DialContext
		client = &http.Client{Timeout: 30 * time.Second, Transport: tr}
	}
	return &httpFetcher{client: client, limit: maxImageBytes}
}

// publicOnly runs after name resolution, so it also covers hostnames that
// resolve to internal addresses.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func (f *httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrImageTooLarge, url, f.limit)
	}
	return data, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, nil
}
