// Copyright 2024 StreamNative, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package security

import (
	libtls "crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
)

type TLSOptions struct {
	// Enabled turns on TLS for node connections.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// CertFile is the path to the client certificate file.
	CertFile string `mapstructure:"certFile" yaml:"certFile"`
	// KeyFile is the path to the private key file.
	KeyFile string `mapstructure:"keyFile" yaml:"keyFile"`
	// MinVersion is the minimum TLS version supported.
	MinVersion uint16 `mapstructure:"minVersion" yaml:"minVersion"`
	// MaxVersion is the maximum TLS version supported.
	MaxVersion uint16 `mapstructure:"maxVersion" yaml:"maxVersion"`
	// TrustedCaFile is the path to the CA certificate.
	TrustedCaFile string `mapstructure:"trustedCaFile" yaml:"trustedCaFile"`
	// InsecureSkipVerify controls whether it verifies the certificate chain and host name.
	InsecureSkipVerify bool `mapstructure:"insecureSkipVerify" yaml:"insecureSkipVerify"`
	// ServerName is the expected server name (for SNI) used when connecting to the server.
	ServerName string `mapstructure:"serverName" yaml:"serverName"`
}

var (
	ErrInvalidTLSKeyPair = errors.New("tls cert file and key file must be set together")
	ErrInvalidTrustedCa  = errors.New("no certificate found in trusted ca file")
)

func (o *TLSOptions) IsConfigured() bool {
	return o != nil && o.Enabled
}

// MakeClientTLSConf builds the client side TLS configuration. A client
// certificate is only presented when both the cert and key files are set.
func (o *TLSOptions) MakeClientTLSConf() (*libtls.Config, error) {
	if (o.CertFile == "") != (o.KeyFile == "") {
		return nil, ErrInvalidTLSKeyPair
	}

	var minVersion uint16 = libtls.VersionTLS12
	if o.MinVersion != 0 {
		minVersion = o.MinVersion
	}

	//nolint:gosec
	tlsConf := &libtls.Config{
		MinVersion:         minVersion,
		MaxVersion:         o.MaxVersion,
		ServerName:         o.ServerName,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}

	if o.CertFile != "" {
		// validate it first
		if _, err := libtls.LoadX509KeyPair(o.CertFile, o.KeyFile); err != nil {
			return nil, errors.Wrap(err, "failed to load client key pair")
		}
		tlsConf.GetClientCertificate = func(*libtls.CertificateRequestInfo) (*libtls.Certificate, error) {
			c, err := libtls.LoadX509KeyPair(o.CertFile, o.KeyFile)
			return &c, err
		}
	}

	if o.TrustedCaFile != "" {
		certPool, err := o.trustedCertPool()
		if err != nil {
			return nil, err
		}
		tlsConf.RootCAs = certPool
	}
	return tlsConf, nil
}

func (o *TLSOptions) trustedCertPool() (*x509.CertPool, error) {
	bPem, err := os.ReadFile(o.TrustedCaFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read trusted ca file")
	}
	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(bPem) {
		return nil, ErrInvalidTrustedCa
	}
	return certPool, nil
}
