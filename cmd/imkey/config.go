package main

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/imkey/imkey-go/crypto"
	"github.com/imkey/imkey-go/transport"
	"github.com/imkey/imkey-go/tsm"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	keyConfig         = "config"
	keyVaultDir       = "vault-dir"
	keyLogLevel       = "log-level"
	keyTSMURL         = "tsm-url"
	keyExchangeTO     = "exchange-timeout"
	keyMaxStallFrames = "max-stall-frames"
	keyVendorID       = "vendor-id"
	keyProductID      = "product-id"
	keyMetricsAddr    = "metrics-addr"
	keyAuthModulus    = "auth-code-modulus"

	defaultVendorID  = 0x096e
	defaultProductID = 0x0891
)

var errInvalidUSBID = errors.New("usb id out of range")

type config struct {
	VaultDir       string
	LogLevel       log.Lvl
	TSMURL         string
	ExchangeTO     time.Duration
	MaxStallFrames int
	VendorID       uint16
	ProductID      uint16
	MetricsAddr    string
	AuthCodeKey    *rsa.PublicKey
}

func defaultVaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imkey"
	}

	return filepath.Join(home, ".imkey")
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String(keyConfig, "", "config file (yaml, json or toml)")
	fs.String(keyVaultDir, defaultVaultDir(), "directory holding the identity vault")
	fs.String(keyLogLevel, "info", `log level, one of: "error", "warn", "info", "debug", and "trace"`)
	fs.String(keyTSMURL, tsm.DefaultBaseURL, "trust service base url, empty disables notifications")
	fs.Duration(keyExchangeTO, transport.DefaultConfig().ExchangeTimeout, "timeout of a single device exchange")
	fs.Int(keyMaxStallFrames, transport.DefaultConfig().MaxStallFrames, "keepalive frames tolerated per exchange")
	fs.Uint(keyVendorID, defaultVendorID, "usb vendor id")
	fs.Uint(keyProductID, defaultProductID, "usb product id")
	fs.String(keyMetricsAddr, "", "serve prometheus metrics on this address")
	fs.String(keyAuthModulus, "", "hex RSA modulus wrapping binding codes for the trust service")
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("IMKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if file := v.GetString(keyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	return v, nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	level, err := log.LvlFromString(strings.ToLower(v.GetString(keyLogLevel)))
	if err != nil {
		return nil, err
	}

	vendorID, err := usbID(v, keyVendorID)
	if err != nil {
		return nil, err
	}

	productID, err := usbID(v, keyProductID)
	if err != nil {
		return nil, err
	}

	cfg := &config{
		VaultDir:       v.GetString(keyVaultDir),
		LogLevel:       level,
		TSMURL:         v.GetString(keyTSMURL),
		ExchangeTO:     v.GetDuration(keyExchangeTO),
		MaxStallFrames: v.GetInt(keyMaxStallFrames),
		VendorID:       vendorID,
		ProductID:      productID,
		MetricsAddr:    v.GetString(keyMetricsAddr),
	}

	if modulus := v.GetString(keyAuthModulus); modulus != "" {
		cfg.AuthCodeKey, err = crypto.ParseAuthCodeKey(modulus)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func usbID(v *viper.Viper, key string) (uint16, error) {
	id := v.GetUint(key)
	if id > 0xffff {
		return 0, fmt.Errorf("%s %#x: %w", key, id, errInvalidUSBID)
	}

	return uint16(id), nil
}

func (c *config) transportConfig() *transport.Config {
	tc := transport.DefaultConfig()
	tc.ExchangeTimeout = c.ExchangeTO
	tc.MaxStallFrames = c.MaxStallFrames

	return tc
}

func initLogger(level log.Lvl) {
	handler := log.StreamHandler(os.Stderr, log.TerminalFormat(true))
	filteredHandler := log.LvlFilterHandler(level, handler)
	log.Root().SetHandler(filteredHandler)
}
