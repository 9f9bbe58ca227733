package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	imkey "github.com/imkey/imkey-go"
	"github.com/imkey/imkey-go/keymanager"
	"github.com/imkey/imkey-go/transport"
	"github.com/imkey/imkey-go/tsm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var logger = log.New("package", "imkey/cmd")

// app carries the state shared by the subcommands of one invocation.
type app struct {
	cfg      *config
	notifier *tsm.AsyncNotifier
	metrics  *http.Server
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "imkey",
		Short: "imkey - bind this host to an imKey hardware wallet",
		Long: `imkey talks to an imKey hardware wallet over USB HID. It checks and
establishes the binding between this host and the device, and exposes
the device identity queries used around the binding flow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}

			a.cfg, err = loadConfig(v)
			if err != nil {
				return err
			}

			initLogger(a.cfg.LogLevel)
			a.startMetrics()

			return nil
		},
	}

	registerFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		bindCheckCmd(a),
		bindAcquireCmd(a),
		displayCodeCmd(a),
		seidCmd(a),
		snCmd(a),
		certCmd(a),
		sendCmd(a),
	)

	return rootCmd
}

func (a *app) startMetrics() {
	if a.cfg.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", a.cfg.MetricsAddr)
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}

// openDevice connects to the first matching device. The returned manager owns
// the transport and must be closed by the caller.
func (a *app) openDevice() (*imkey.DeviceManager, error) {
	device, err := transport.OpenUSB(a.cfg.VendorID, a.cfg.ProductID)
	if err != nil {
		return nil, err
	}

	t := transport.NewHIDTransport(device, a.cfg.transportConfig())

	var opts []imkey.Option
	if a.cfg.TSMURL != "" {
		a.notifier = tsm.NewAsyncNotifier(tsm.NewClient(a.cfg.TSMURL, nil), tsm.DefaultTimeout)
		opts = append(opts, imkey.WithNotifier(a.notifier))
	}
	if a.cfg.AuthCodeKey != nil {
		opts = append(opts, imkey.WithAuthCodeKey(a.cfg.AuthCodeKey))
	}

	return imkey.NewDeviceManager(t, keymanager.New(), opts...), nil
}

// withDevice runs fn against a freshly opened device and closes it afterwards.
func (a *app) withDevice(fn func(dm *imkey.DeviceManager) error) error {
	dm, err := a.openDevice()
	if err != nil {
		return err
	}

	defer func() {
		if err := dm.Close(); err != nil {
			logger.Debug("closing device", "error", err)
		}
		if a.notifier != nil {
			a.notifier.Wait()
		}
	}()

	return fn(dm)
}

func (a *app) shutdown() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
}
