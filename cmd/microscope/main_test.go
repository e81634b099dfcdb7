package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/microscope/internal/config"
	"github.com/vango-dev/microscope/internal/logging"
	"github.com/vango-dev/microscope/pkg/storage"
)

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestKVSQLite(t *testing.T) {
	cfgPath := writeConfig(t, `{"storage": {"backend": "sqlite", "path": "data/store.db"}, "log": {"level": "error"}}`)

	_, err := run(t, "", "-c", cfgPath, "kv", "set", "todos", `["milk"]`)
	require.NoError(t, err)
	_, err = run(t, "{\"dark\":true}\n", "-c", cfgPath, "kv", "set", "prefs")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "data", "store.db"))

	out, err := run(t, "", "-c", cfgPath, "kv", "get", "todos")
	require.NoError(t, err)
	assert.Equal(t, "[\"milk\"]\n", out)

	out, err = run(t, "", "-c", cfgPath, "kv", "get", "prefs")
	require.NoError(t, err)
	assert.Equal(t, "{\"dark\":true}\n", out)

	out, err = run(t, "", "-c", cfgPath, "kv", "ls")
	require.NoError(t, err)
	assert.Equal(t, "prefs\ntodos\n", out)

	_, err = run(t, "", "-c", cfgPath, "kv", "rm", "todos")
	require.NoError(t, err)

	_, err = run(t, "", "-c", cfgPath, "kv", "get", "todos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"todos" not found`)
}

func TestKVFlagsOverrideConfig(t *testing.T) {
	cfgPath := writeConfig(t, `{"storage": {"backend": "sqlite"}}`)
	dbPath := filepath.Join(t.TempDir(), "other.db")

	_, err := run(t, "", "-c", cfgPath, "kv", "set", "k", "v", "--path", dbPath)
	require.NoError(t, err)
	assert.FileExists(t, dbPath)

	_, err = run(t, "", "-c", cfgPath, "kv", "ls", "--backend", "redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C002")

	_, err = run(t, "", "-c", cfgPath, "kv", "ls", "--backend", "s3")
	require.Error(t, err, "s3 without a bucket")
}

func TestKVSetAnnouncesToRelay(t *testing.T) {
	relay := storage.NewRelayServer(logging.Nop())
	ts := httptest.NewServer(relay)
	t.Cleanup(func() {
		relay.Close()
		ts.Close()
	})
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	remote := storage.NewMemory()
	hub := storage.NewHub()
	events := make(chan storage.Event, 1)
	hub.Subscribe(func(ev storage.Event) { events <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := storage.DialRelay(ctx, url, hub, remote, storage.WithRelayLogger(logging.Nop()))
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return relay.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cfgPath := writeConfig(t, `{"storage": {"backend": "memory"}}`)
	_, err = run(t, "", "-c", cfgPath, "kv", "set", "count", "3", "--relay", url)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "count", ev.Key)
		require.NotNil(t, ev.NewValue)
		assert.Equal(t, "3", *ev.NewValue)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not deliver the write")
	}

	v, ok, err := remote.GetItem("count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

// isolateAWS keeps the default credential chain away from the host's files.
func isolateAWS(t *testing.T) {
	t.Helper()
	empty := filepath.Join(t.TempDir(), "aws")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	t.Setenv("AWS_CONFIG_FILE", empty)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", empty)
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
}

func TestNewS3Client(t *testing.T) {
	isolateAWS(t)

	client, err := newS3Client(context.Background(), config.StorageConfig{Region: "eu-west-2", Endpoint: "http://localhost:9000"})
	require.NoError(t, err)
	opts := client.Options()
	assert.Equal(t, "eu-west-2", opts.Region)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key", creds.AccessKeyID)

	client, err = newS3Client(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", client.Options().Region)
	assert.Nil(t, client.Options().BaseEndpoint)
}

func TestOpenBackend(t *testing.T) {
	isolateAWS(t)
	cfg := config.New()
	cfg.Storage = config.StorageConfig{Backend: config.BackendS3, Bucket: "state", Prefix: "p/", Endpoint: "http://localhost:9000"}

	b, err := openBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.S3{}, b.Engine)
	assert.NoError(t, b.Close())

	cfg.Storage = config.StorageConfig{Backend: config.BackendMemory}
	b, err = openBackend(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, b.Engine)
}

func TestIsTerminalRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}
