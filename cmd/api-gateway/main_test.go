package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/jwt-auth-gateway/config"
	"github.com/upb/jwt-auth-gateway/policy"
	"github.com/upb/jwt-auth-gateway/token"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	out, err := runCmd(t, "keygen")
	require.NoError(t, err)

	key, err := token.ParseSecretKey(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, token.GeneratedKeySize, key.Size())

	again, err := runCmd(t, "keygen")
	require.NoError(t, err)
	assert.NotEqual(t, out, again)
}

func TestRoutesCommand(t *testing.T) {
	t.Run("default table", func(t *testing.T) {
		os.Clearenv()

		out, err := runCmd(t, "routes")
		require.NoError(t, err)
		assert.Contains(t, out, "bypass: /api/register,/api/login,/api/refresh")
		assert.Contains(t, out, "/api/users")
		assert.Contains(t, out, "role:ADMIN")
		assert.Equal(t, len(policy.DefaultRules())+1, strings.Count(out, "\n"))
	})

	t.Run("configured table", func(t *testing.T) {
		os.Clearenv()
		t.Setenv("AUTH_ROUTE_POLICIES", "/api/admin/**=role:ADMIN")

		out, err := runCmd(t, "routes")
		require.NoError(t, err)
		assert.Contains(t, out, "/api/admin/**")
		assert.NotContains(t, out, "/api/greet")
	})

	t.Run("invalid table", func(t *testing.T) {
		os.Clearenv()
		t.Setenv("AUTH_ROUTE_POLICIES", "/api/admin/**=sometimes")

		_, err := runCmd(t, "routes")
		assert.Error(t, err)
	})
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCmd(t, "launch")
	assert.Error(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServe(t *testing.T) {
	port := freePort(t)
	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            port,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Store: config.StoreConfig{Driver: config.StoreMemory},
		Auth: config.AuthConfig{
			AccessTokenTTL: time.Minute,
			GenerateKey:    true,
			BcryptCost:     bcrypt.MinCost,
			BypassPaths:    policy.DefaultBypassPaths(),
			Rules:          policy.DefaultRules(),
		},
		LoginLimit:    config.LoginLimitConfig{Enabled: false},
		Observability: config.ObservabilityConfig{LogLevel: "info"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zap.NewNop()) }()

	url := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(url + "/api/greet")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
