package webservice

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taskbox/taskbox/internal/config"
)

type DConfigManager = dConfigManager

// HTTPServer returns the HTTP server for testing purposes.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// GenerateTestRuntimeConfig generates a temporary runtime config file for testing.
func GenerateTestRuntimeConfig(t *testing.T, conf *config.Conf) string {
	t.Helper()

	d, err := json.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal runtime config for tests")
	confPath := filepath.Join(t.TempDir(), "runtime-testconfig.json")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write runtime config for tests")

	return confPath
}
