package graphsource

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// TLSConfig holds client certificate paths for etcd connections.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// ClientConfig loads the certificates into a tls.Config.
func (c *TLSConfig) ClientConfig() (*tls.Config, error) {
	switch {
	case c.CertFile == "":
		return nil, errors.New("TLS cert file is required when TLS is enabled")
	case c.KeyFile == "":
		return nil, errors.New("TLS key file is required when TLS is enabled")
	case c.CAFile == "":
		return nil, errors.New("TLS CA file is required when TLS is enabled")
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	caData, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, errors.New("parse CA certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
