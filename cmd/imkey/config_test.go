package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/imkey/imkey-go/crypto"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseConfig(t *testing.T, args ...string) (*config, error) {
	fs := pflag.NewFlagSet("imkey", pflag.ContinueOnError)
	registerFlags(fs)
	require.NoError(t, fs.Parse(args))

	v, err := newViper(fs)
	if err != nil {
		return nil, err
	}

	return loadConfig(v)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t)
	require.NoError(t, err)

	assert.Equal(t, log.LvlInfo, cfg.LogLevel)
	assert.Equal(t, uint16(0x096e), cfg.VendorID)
	assert.Equal(t, uint16(0x0891), cfg.ProductID)
	assert.Equal(t, 60*time.Second, cfg.ExchangeTO)
	assert.Equal(t, 1024, cfg.MaxStallFrames)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Nil(t, cfg.AuthCodeKey)

	tc := cfg.transportConfig()
	assert.Equal(t, cfg.ExchangeTO, tc.ExchangeTimeout)
	assert.Equal(t, cfg.MaxStallFrames, tc.MaxStallFrames)
}

func TestLoadConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("IMKEY_LOG_LEVEL", "trace")
	t.Setenv("IMKEY_METRICS_ADDR", "127.0.0.1:9100")

	cfg, err := parseConfig(t,
		"--vault-dir", "/tmp/vault",
		"--exchange-timeout", "5s",
		"--max-stall-frames", "0",
		"--auth-code-modulus", crypto.AuthCodeModulusHex,
	)
	require.NoError(t, err)

	assert.Equal(t, log.LvlTrace, cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.Equal(t, "/tmp/vault", cfg.VaultDir)
	assert.Equal(t, 5*time.Second, cfg.ExchangeTO)
	assert.Equal(t, 0, cfg.MaxStallFrames)
	require.NotNil(t, cfg.AuthCodeKey)
	assert.Equal(t, crypto.DefaultAuthCodeKey().N, cfg.AuthCodeKey.N)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imkey.yaml")
	content := "vault-dir: /var/lib/imkey\nproduct-id: 4660\ntsm-url: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := parseConfig(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/imkey", cfg.VaultDir)
	assert.Equal(t, uint16(0x1234), cfg.ProductID)
	assert.Empty(t, cfg.TSMURL)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := parseConfig(t, "--log-level", "loud")
	assert.Error(t, err)

	_, err = parseConfig(t, "--vendor-id", "65536")
	assert.ErrorIs(t, err, errInvalidUSBID)

	_, err = parseConfig(t, "--auth-code-modulus", "not-hex")
	var cryptoErr *crypto.Error
	assert.ErrorAs(t, err, &cryptoErr)

	_, err = parseConfig(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd(&app{})

	for _, name := range []string{"bind-check", "bind-acquire", "display-code", "seid", "sn", "cert", "send"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, root.PersistentFlags().Lookup(keyVaultDir))
}

func TestRunShutsDownMetricsOnFailure(t *testing.T) {
	a := &app{}

	err := run(a, []string{"--metrics-addr", "127.0.0.1:0", "bind-acquire", "NOT-A-CODE"})
	require.Error(t, err)
	require.NotNil(t, a.metrics)

	assert.ErrorIs(t, a.metrics.ListenAndServe(), http.ErrServerClosed)
}
