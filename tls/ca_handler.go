package tls

import (
	"net/http"
)

// CAHandler serves the CA certificate so phones can install it before
// connecting over wss.
func (m *Manager) CAHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caCert, err := m.ReadCACert()
		if err != nil {
			http.Error(w, "CA certificate not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/x-pem-file")
		w.Header().Set("Content-Disposition", `attachment; filename="davi-nfc-ca.pem"`)
		w.Write(caCert)

		m.logger.Info().Str("remote", r.RemoteAddr).Msg("CA certificate downloaded")
	})
}
