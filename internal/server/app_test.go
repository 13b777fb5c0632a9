package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/autherr"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestNewApp_BadConfig(t *testing.T) {
	_, err := NewApp(context.Background(), []string{"-d", ""}, io.Discard)
	assert.True(t, autherr.IsKind(err, autherr.ConfigurationError), "got %v", err)

	_, err = NewApp(context.Background(), []string{"-d", "mysql://nope"}, io.Discard)
	assert.Error(t, err)
}

func TestNewCodec_UnknownAlgorithm(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SigningAlgorithm = "none"

	_, err := NewCodec(cfg)
	assert.True(t, autherr.IsKind(err, autherr.ConfigurationError), "got %v", err)
}

func TestNewCodec_ExternalIssuer(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ExternalIssuer = "https://idp.example.com/"
	cfg.ExternalAudience = "authkeeper-api"
	cfg.ExternalJWKSURL = "http://127.0.0.1:1/jwks.json"

	codec, err := NewCodec(cfg)
	require.NoError(t, err)

	tok, err := codec.Issue(auth.Claims{Subject: "alice"}, time.Minute)
	require.NoError(t, err)
	claims, err := codec.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "authkeeper", claims.Issuer)
}

func TestApp_RunServesHTTP(t *testing.T) {
	addr := freeAddr(t)
	app, err := NewApp(context.Background(), []string{"-a", addr, "-g", "", "-d", "memory"}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(stopped)
	}()

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	body := `{"username":"alice","password":"Secr3t!"}`
	resp, err := http.Post(base+"/users/signup", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(base+"/users/login", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	_ = resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, base+"/users/homepage", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tok.AccessToken))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	greeting, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Contains(greeting, []byte("alice")))

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
