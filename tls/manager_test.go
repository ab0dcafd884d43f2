package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIssuer writes placeholder files the way truststore names them.
type fakeIssuer struct {
	calls int
	hosts [][]string
	err   error
}

func (f *fakeIssuer) issue(caDir, tlsDir string, hosts []string) (string, string, error) {
	f.calls++
	f.hosts = append(f.hosts, hosts)
	if f.err != nil {
		return "", "", f.err
	}
	base := filepath.Join(tlsDir, fmt.Sprintf("%s+%d", hosts[0], len(hosts)-1))
	if err := os.WriteFile(base+".pem", []byte("cert"), 0600); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(base+"-key.pem", []byte("key"), 0600); err != nil {
		return "", "", err
	}
	return base + ".pem", base + "-key.pem", nil
}

func newTestManager(t *testing.T, hosts ...string) (*Manager, *fakeIssuer) {
	t.Helper()
	mgr := NewManager(t.TempDir(), zerolog.Nop())
	issuer := &fakeIssuer{}
	mgr.issue = issuer.issue
	mgr.hosts = func() ([]string, error) { return hosts, nil }
	return mgr, issuer
}

func selfSignedPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestNewManager(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, zerolog.Nop())

	assert.Equal(t, filepath.Join(dir, "tls", "server.crt"), mgr.CertFile())
	assert.Equal(t, filepath.Join(dir, "tls", "server.key"), mgr.KeyFile())
	assert.Equal(t, filepath.Join(dir, "ca", "rootCA.pem"), mgr.CACertFile())
}

func TestHostsChanged(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, os.MkdirAll(mgr.tlsDir, 0700))

	assert.True(t, mgr.hostsChanged([]string{"localhost"}), "no cache yet")

	require.NoError(t, mgr.writeCachedHosts([]string{"localhost", "127.0.0.1"}))

	assert.False(t, mgr.hostsChanged([]string{"localhost", "127.0.0.1"}))
	assert.False(t, mgr.hostsChanged([]string{"127.0.0.1", "localhost"}), "order is ignored")
	assert.True(t, mgr.hostsChanged([]string{"localhost", "127.0.0.1", "192.168.1.1"}))
	assert.True(t, mgr.hostsChanged([]string{"localhost"}))
}

func TestReadWriteCachedHosts(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, os.MkdirAll(mgr.tlsDir, 0700))

	hosts := []string{"localhost", "127.0.0.1", "192.168.1.100"}
	require.NoError(t, mgr.writeCachedHosts(hosts))

	got, err := mgr.readCachedHosts()
	require.NoError(t, err)
	assert.Equal(t, hosts, got)
}

func TestEnsureCertificates_RegeneratesOnHostChange(t *testing.T) {
	mgr, issuer := newTestManager(t, "localhost", "127.0.0.1")

	certFile, keyFile, err := mgr.EnsureCertificates()
	require.NoError(t, err)
	assert.Equal(t, mgr.CertFile(), certFile)
	assert.Equal(t, mgr.KeyFile(), keyFile)
	assert.FileExists(t, certFile)
	assert.FileExists(t, keyFile)
	assert.Equal(t, 1, issuer.calls)

	_, _, err = mgr.EnsureCertificates()
	require.NoError(t, err)
	assert.Equal(t, 1, issuer.calls, "existing certificate is reused")

	mgr.hosts = func() ([]string, error) {
		return []string{"localhost", "127.0.0.1", "192.168.1.50"}, nil
	}
	_, _, err = mgr.EnsureCertificates()
	require.NoError(t, err)
	assert.Equal(t, 2, issuer.calls)
	assert.Equal(t, []string{"localhost", "127.0.0.1", "192.168.1.50"}, issuer.hosts[1])
}

func TestEnsureCertificates_HostLookupFails(t *testing.T) {
	mgr, issuer := newTestManager(t)
	mgr.hosts = func() ([]string, error) { return nil, errors.New("no interfaces") }

	_, _, err := mgr.EnsureCertificates()
	require.NoError(t, err)
	require.Len(t, issuer.hosts, 1)
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, issuer.hosts[0])
}

func TestEnsureCertificates_IssuerError(t *testing.T) {
	mgr, issuer := newTestManager(t, "localhost")
	issuer.err = errors.New("trust store locked")

	_, _, err := mgr.EnsureCertificates()
	assert.ErrorContains(t, err, "trust store locked")
	assert.NoFileExists(t, mgr.CertFile())
}

func TestCAFingerprint(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.CAFingerprint()
	assert.Error(t, err, "no CA yet")

	certPEM := selfSignedPEM(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(mgr.CACertFile()), 0700))
	require.NoError(t, os.WriteFile(mgr.CACertFile(), certPEM, 0600))

	fingerprint, err := mgr.CAFingerprint()
	require.NoError(t, err)

	block, _ := pem.Decode(certPEM)
	sum := sha256.Sum256(block.Bytes)
	assert.Len(t, strings.Split(fingerprint, ":"), len(sum))
	assert.True(t, strings.HasPrefix(fingerprint, fmt.Sprintf("%02X:%02X", sum[0], sum[1])))

	_, err = Fingerprint([]byte("not pem"))
	assert.Error(t, err)
}

func TestCAHandler(t *testing.T) {
	mgr, _ := newTestManager(t)

	rec := httptest.NewRecorder()
	mgr.CAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ca.pem", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	certPEM := selfSignedPEM(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(mgr.CACertFile()), 0700))
	require.NoError(t, os.WriteFile(mgr.CACertFile(), certPEM, 0600))

	rec = httptest.NewRecorder()
	mgr.CAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ca.pem", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-pem-file", rec.Header().Get("Content-Type"))
	assert.Equal(t, certPEM, rec.Body.Bytes())
}
