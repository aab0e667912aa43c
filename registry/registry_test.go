package registry

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxInfoValidate(t *testing.T) {
	valid := SandboxInfo{
		ScanID:      "scan-001",
		WorkspaceID: "ws-1",
		AgentID:     "agent-1",
		Endpoint:    "http://10.0.3.7:8080",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(*SandboxInfo)
		wantErr string
	}{
		{"missing scan id", func(i *SandboxInfo) { i.ScanID = "" }, "scan ID is required"},
		{"missing workspace id", func(i *SandboxInfo) { i.WorkspaceID = "" }, "workspace ID is required"},
		{"missing endpoint", func(i *SandboxInfo) { i.Endpoint = "" }, "endpoint is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := valid
			tt.mutate(&info)
			err := info.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuildKey(t *testing.T) {
	c := &Client{namespace: "swarm"}
	assert.Equal(t, "/swarm/sandbox/scan-001/ws-1", c.buildKey("scan-001", "ws-1"))
}

func TestNewClientRequiresEndpoints(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints cannot be empty")
}

func TestNewClientFromEnvUnset(t *testing.T) {
	t.Setenv("SWARM_REGISTRY_ENDPOINTS", "")
	client, err := NewClientFromEnv()
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestClientTLSValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TLSConfig
		wantErr string
	}{
		{"missing cert", TLSConfig{Enabled: true, KeyFile: "k", CAFile: "ca"}, "cert file"},
		{"missing key", TLSConfig{Enabled: true, CertFile: "c", CAFile: "ca"}, "key file"},
		{"missing ca", TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"}, "CA file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clientTLS(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientTLSLoadsCertificates(t *testing.T) {
	certFile, keyFile := writeTestKeyPair(t)

	// Self-signed, so the certificate doubles as its own CA.
	cfg, err := clientTLS(TLSConfig{
		Enabled:  true,
		CertFile: certFile,
		KeyFile:  keyFile,
		CAFile:   certFile,
	})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.NotNil(t, cfg.RootCAs)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestClientTLSRejectsBadCA(t *testing.T) {
	certFile, keyFile := writeTestKeyPair(t)
	badCA := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	_, err := clientTLS(TLSConfig{Enabled: true, CertFile: certFile, KeyFile: keyFile, CAFile: badCA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PEM certificates")
}

// writeTestKeyPair generates a self-signed certificate and key pair on
// disk and returns their paths.
func writeTestKeyPair(t *testing.T) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "registry-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "client.pem")
	keyPath = filepath.Join(dir, "client-key.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))
	return certPath, keyPath
}
