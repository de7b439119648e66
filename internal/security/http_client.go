package security

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/net/publicsuffix"
)

// HTTPClientOptions はAPI用HTTPクライアントの生成オプション。
type HTTPClientOptions struct {
	// Timeout はリクエスト全体のタイムアウト。0の場合はトランスポートの既定値（無制限）。
	Timeout time.Duration
	// BlockPrivateNetworks がtrueの場合、プライベートIP、ループバック、
	// リンクローカルへの接続をsafeurlで拒否する。
	BlockPrivateNetworks bool
	// BaseURL は接続先APIのベースURL。許可ポートの決定に使う。
	BaseURL string
}

// allowedSchemes はAPIのベースURLとして許可されるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はBlockPrivateNetworks有効時に静的検証で拒否するネットワーク範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// NewHTTPClient はAPI呼び出し用のHTTPクライアントを生成する。
// クッキージャーにはpublicsuffixリストを使い、他ドメインへのクッキー送信を防ぐ。
func NewHTTPClient(opts HTTPClientOptions) (*http.Client, error) {
	if err := ValidateBaseURL(opts.BaseURL, opts.BlockPrivateNetworks); err != nil {
		return nil, err
	}

	var client *http.Client
	if opts.BlockPrivateNetworks {
		port, err := portOf(opts.BaseURL)
		if err != nil {
			return nil, err
		}
		builder := safeurl.GetConfigBuilder().
			SetAllowedSchemes(allowedSchemes...).
			SetAllowedPorts(port)
		if opts.Timeout > 0 {
			builder = builder.SetTimeout(opts.Timeout)
		}
		client = safeurl.Client(builder.Build()).Client
	} else {
		client = &http.Client{Timeout: opts.Timeout}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client.Jar = jar

	return client, nil
}

// ValidateBaseURL はベースURLを静的に検証する。
// blockPrivateがtrueの場合はIPリテラルとlocalhostも拒否する。
// DNS解決後の検証はsafeurlのDialerが行う。
func ValidateBaseURL(rawURL string, blockPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("empty base URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in base URL: %s", rawURL)
	}

	if !blockPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// portOf はベースURLのポート番号を返す。省略時はスキームの既定ポート。
func portOf(rawURL string) (int, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid base URL: %w", err)
	}
	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid port %q: %w", p, err)
		}
		return port, nil
	}
	if strings.EqualFold(parsed.Scheme, "https") {
		return 443, nil
	}
	return 80, nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
