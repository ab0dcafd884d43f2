package tls

import (
	"bufio"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jittering/truststore"
	"github.com/rs/zerolog"
)

// Issuer creates a server certificate for hosts, signed by a local CA kept
// in caDir, and writes it under tlsDir. It returns the written file paths.
type Issuer func(caDir, tlsDir string, hosts []string) (certFile, keyFile string, err error)

// Manager keeps a locally trusted server certificate for localhost and the
// machine's LAN addresses. The certificate is regenerated whenever that
// host set changes.
type Manager struct {
	tlsDir     string
	caDir      string
	caCertFile string
	certFile   string
	keyFile    string
	hostsFile  string
	issue      Issuer
	hosts      func() ([]string, error)
	logger     zerolog.Logger
}

// NewManager creates a TLS manager storing its files under configDir.
func NewManager(configDir string, logger zerolog.Logger) *Manager {
	tlsDir := filepath.Join(configDir, "tls")
	caDir := filepath.Join(configDir, "ca")
	m := &Manager{
		tlsDir:     tlsDir,
		caDir:      caDir,
		caCertFile: filepath.Join(caDir, "rootCA.pem"),
		certFile:   filepath.Join(tlsDir, "server.crt"),
		keyFile:    filepath.Join(tlsDir, "server.key"),
		hostsFile:  filepath.Join(tlsDir, "hosts.txt"),
		hosts:      GetAllHosts,
		logger:     logger.With().Str("component", "tls").Logger(),
	}
	m.issue = m.issueWithTruststore
	return m
}

// SetIssuer replaces the certificate issuer.
func (m *Manager) SetIssuer(issue Issuer) {
	m.issue = issue
}

// EnsureCertificates returns the server certificate and key paths,
// generating them first when they are missing or the host set changed.
// Installing the CA may prompt the user for a password.
func (m *Manager) EnsureCertificates() (certFile, keyFile string, err error) {
	if err := os.MkdirAll(m.tlsDir, 0700); err != nil {
		return "", "", fmt.Errorf("failed to create TLS directory: %w", err)
	}

	hosts, err := m.hosts()
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to get LAN IPs")
		hosts = []string{"localhost", "127.0.0.1"}
	}

	switch {
	case !m.certsExist():
		m.logger.Info().Strs("hosts", hosts).Msg("certificates not found, generating")
	case m.hostsChanged(hosts):
		m.logger.Info().Strs("hosts", hosts).Msg("network configuration changed, regenerating certificates")
	default:
		m.logger.Debug().Msg("using existing certificates")
		return m.certFile, m.keyFile, nil
	}

	if err := m.generate(hosts); err != nil {
		return "", "", err
	}
	return m.certFile, m.keyFile, nil
}

func (m *Manager) certsExist() bool {
	_, certErr := os.Stat(m.certFile)
	_, keyErr := os.Stat(m.keyFile)
	return certErr == nil && keyErr == nil
}

// hostsChanged compares hosts with the cached set, ignoring order.
func (m *Manager) hostsChanged(hosts []string) bool {
	cached, err := m.readCachedHosts()
	if err != nil {
		return true
	}

	a := slices.Clone(cached)
	b := slices.Clone(hosts)
	slices.Sort(a)
	slices.Sort(b)
	return !slices.Equal(a, b)
}

func (m *Manager) readCachedHosts() ([]string, error) {
	file, err := os.Open(m.hostsFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var hosts []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if host := strings.TrimSpace(scanner.Text()); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts, scanner.Err()
}

func (m *Manager) writeCachedHosts(hosts []string) error {
	return os.WriteFile(m.hostsFile, []byte(strings.Join(hosts, "\n")+"\n"), 0600)
}

func (m *Manager) generate(hosts []string) error {
	certFile, keyFile, err := m.issue(m.caDir, m.tlsDir, hosts)
	if err != nil {
		return err
	}

	if certFile != m.certFile {
		if err := os.Rename(certFile, m.certFile); err != nil {
			return fmt.Errorf("failed to rename cert file: %w", err)
		}
	}
	if keyFile != m.keyFile {
		if err := os.Rename(keyFile, m.keyFile); err != nil {
			return fmt.Errorf("failed to rename key file: %w", err)
		}
	}

	if err := m.writeCachedHosts(hosts); err != nil {
		m.logger.Warn().Err(err).Msg("failed to cache hosts")
	}

	event := m.logger.Info().Str("cert", m.certFile)
	if fingerprint, err := m.CAFingerprint(); err == nil {
		event = event.Str("ca_fingerprint", fingerprint)
	}
	event.Msg("certificate generated")
	return nil
}

// issueWithTruststore is the default Issuer. truststore keeps its CA in
// $CAROOT.
func (m *Manager) issueWithTruststore(caDir, tlsDir string, hosts []string) (string, string, error) {
	if err := os.MkdirAll(caDir, 0700); err != nil {
		return "", "", fmt.Errorf("failed to create CA directory: %w", err)
	}
	os.Setenv("CAROOT", caDir)

	ml, err := truststore.NewLib()
	if err != nil {
		return "", "", fmt.Errorf("failed to initialize truststore: %w", err)
	}

	m.logger.Info().Msg("ensuring CA is installed in system trust store (you may be prompted for your password)")
	if err := ml.Install(); err != nil {
		return "", "", fmt.Errorf("failed to install CA: %w", err)
	}

	cert, err := ml.MakeCert(hosts, tlsDir)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate certificate: %w", err)
	}
	return cert.CertFile, cert.KeyFile, nil
}

// CertFile returns the path to the server certificate.
func (m *Manager) CertFile() string {
	return m.certFile
}

// KeyFile returns the path to the server key.
func (m *Manager) KeyFile() string {
	return m.keyFile
}

// CACertFile returns the path to the CA certificate.
func (m *Manager) CACertFile() string {
	return m.caCertFile
}

// CAFingerprint returns the SHA256 fingerprint of the CA certificate as
// colon separated hex.
func (m *Manager) CAFingerprint() (string, error) {
	certPEM, err := m.ReadCACert()
	if err != nil {
		return "", fmt.Errorf("failed to read CA certificate: %w", err)
	}
	return Fingerprint(certPEM)
}

// Fingerprint returns the SHA256 fingerprint of the first certificate in
// certPEM.
func Fingerprint(certPEM []byte) (string, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", fmt.Errorf("failed to decode PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse certificate: %w", err)
	}

	sum := sha256.Sum256(cert.Raw)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}

// ReadCACert reads the CA certificate PEM data.
func (m *Manager) ReadCACert() ([]byte, error) {
	return os.ReadFile(m.caCertFile)
}
