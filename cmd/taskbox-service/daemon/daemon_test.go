package daemon_test

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbox/taskbox/cmd/taskbox-service/daemon"
	"github.com/taskbox/taskbox/internal/constants"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/metricserver"
	"github.com/taskbox/taskbox/internal/testutils"
	"github.com/taskbox/taskbox/internal/webservice"
)

func TestConfigArg(t *testing.T) {
	filename := "conf.yaml"
	configPath := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(configPath, []byte("Verbosity: 1"), 0600), "Setup: couldn't write config file")

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("version", "--config", configPath)

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")
	require.Equal(t, 1, a.Config().Verbosity)
}

func TestConfigEnv(t *testing.T) {
	// Set the environment variable to point to the config file
	t.Setenv("TASKBOX_SERVICE_DAEMON_READTIMEOUT", "1s")

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("version")

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")
	require.Equal(t, time.Second, a.Config().Daemon.ReadTimeout)
}

func TestBadConfigReturnsError(t *testing.T) {
	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	// Use version to still run preExec to load no config but without running server
	a.SetArgs("version", "--config", "/does/not/exist.yaml")

	err = a.Run()
	require.Error(t, err, "Run should return an error on config file")
}

func TestNoUsageError(t *testing.T) {
	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("completion", "bash")

	err = a.Run()
	require.NoError(t, err, "Run should not return an error")

	isUsageError := a.UsageError()
	require.False(t, isUsageError, "No usage error is reported as such")
}

func TestUsageError(t *testing.T) {
	t.Parallel()

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")
	a.SetArgs("doesnotexist")

	err = a.Run()
	require.Error(t, err, "Run should return an error")
	isUsageError := a.UsageError()
	require.True(t, isUsageError, "Usage error is reported as such")

	// Test when SilenceUsage is true
	a.SetSilenceUsage(true)
	assert.False(t, a.UsageError())

	// Test when SilenceUsage is false
	a.SetSilenceUsage(false)
	assert.True(t, a.UsageError())
}

func TestRunFailsWithoutDatabase(t *testing.T) {
	t.Parallel()

	conf := &daemon.AppConfig{
		Daemon: webservice.StaticConfig{
			ListenHost: "localhost",
			ListenPort: testutils.GetFreePort(t, "localhost"),
		},
		DBConfig: database.Config{
			Host: "localhost",
			Port: testutils.GetFreePort(t, "localhost"),
			User: "taskbox",
		},
	}
	a := daemon.NewForTests(t, conf)

	err := a.Run()
	require.Error(t, err, "Run should return an error when the database is unreachable")
}

func TestAppCanSigHup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping Hup test on Windows")
	}
	r, w, err := os.Pipe()
	require.NoError(t, err, "Setup: pipe shouldn't fail")

	a, err := daemon.New()
	require.NoError(t, err, "Setup: New should not return an error")

	orig := os.Stdout
	os.Stdout = w

	shouldQuit := a.Hup()

	os.Stdout = orig
	w.Close()

	require.False(t, shouldQuit, "Hup should not request a quit")

	var out bytes.Buffer
	_, err = io.Copy(&out, r)
	require.NoError(t, err, "Couldn't copy stdout to buffer")
	require.NotEmpty(t, out.String(), "Stacktrace is printed")
}

func TestRootCmd(t *testing.T) {
	app, err := daemon.New()
	require.NoError(t, err)

	cmd := app.RootCmd()

	assert.NotNil(t, cmd, "Returned root cmd should not be nil")
	assert.Equal(t, constants.CmdName, cmd.Name())
}

func TestRunsDaemon(t *testing.T) {
	t.Parallel()

	db := testutils.StartPostgresContainer(t)
	t.Cleanup(func() {
		if err := db.Stop(t.Context()); err != nil {
			t.Logf("Teardown: failed to stop container: %v", err)
		}
	})
	require.NoError(t, db.IsReady(t, 5*time.Second, 10), "Setup: database container was not ready in time")
	testutils.ApplyMigrations(t, db.DSN, filepath.Join(testutils.ModuleRoot(), "migrations"))

	dbPort, err := strconv.Atoi(db.Port)
	require.NoError(t, err, "Setup: failed to parse container port")

	conf := &daemon.AppConfig{
		Daemon: webservice.StaticConfig{
			ListenHost: "localhost",
			ListenPort: testutils.GetFreePort(t, "localhost"),
		},
		MetricsConfig: metricserver.Config{
			Host: "localhost",
			Port: testutils.GetFreePort(t, "localhost"),
		},
		DBConfig: database.Config{
			Host:     db.Host,
			Port:     dbPort,
			User:     db.User,
			Password: db.Password,
			DBName:   db.Name,
			SSLMode:  "disable",
		},
	}

	a, wait := startDaemon(t, conf)

	url := fmt.Sprintf("http://localhost:%d/version", conf.Daemon.ListenPort)
	client := &http.Client{Timeout: 2 * time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get(url)
		return err == nil
	}, 5*time.Second, 100*time.Millisecond, "Server should come up and serve the version endpoint")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "version endpoint should respond OK")

	a.Quit()
	wait()
}

// startDaemon prepares and starts the daemon in the background. The done function should be called
// to wait for the daemon to stop.
//
// The done function should be called in the main goroutine for the test.
func startDaemon(t *testing.T, conf *daemon.AppConfig) (app *daemon.App, done func()) {
	t.Helper()

	a := daemon.NewForTests(t, conf)

	chErr := make(chan error, 1)
	go func() {
		chErr <- a.Run()
	}()
	a.WaitReady()
	time.Sleep(50 * time.Millisecond)

	return a, func() {
		err := <-chErr
		require.NoError(t, err, "Run should return without an error")
	}
}
