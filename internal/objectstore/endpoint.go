package objectstore

import (
	"fmt"
	"net/url"
	"strings"
)

// normaliseEndpoint splits an endpoint given as "host:port" or
// "http(s)://host:port" into the host part minio-go wants and whether TLS is
// used. A bare host is treated as plain HTTP, which is what a local MinIO
// container speaks.
func normaliseEndpoint(raw string) (host string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid endpoint")
	}
	if u.Path != "" && u.Path != "/" {
		return "", false, fmt.Errorf("endpoint must not contain a path")
	}
	return u.Host, u.Scheme == "https", nil
}

// endpointURL returns the endpoint as an absolute URL for the AWS SDK, which
// needs a scheme. A bare host gets https, since hosted S3 APIs (R2, AWS) only
// speak TLS.
func endpointURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	host, secure, err := normaliseEndpoint(raw)
	if err != nil {
		return "", err
	}
	if !strings.Contains(raw, "://") || secure {
		return "https://" + host, nil
	}
	return "http://" + host, nil
}
