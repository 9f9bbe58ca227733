package main

import (
	"fmt"
	"os"
	"os/signal"

	imkey "github.com/imkey/imkey-go"
	"github.com/imkey/imkey-go/types"
	"github.com/spf13/cobra"
)

func bindCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bind-check",
		Short: "Check whether this host is bound to the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDevice(func(dm *imkey.DeviceManager) error {
				status, err := dm.BindCheck(a.cfg.VaultDir)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func bindAcquireCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bind-acquire CODE",
		Short: "Bind this host using the code shown on the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := imkey.ValidateBindingCode(args[0])
			if err != nil {
				return err
			}

			return a.withDevice(func(dm *imkey.DeviceManager) error {
				status, err := dm.BindCheck(a.cfg.VaultDir)
				if err != nil {
					return err
				}

				if status == types.BindingStatusBoundThis {
					fmt.Fprintln(cmd.OutOrStdout(), status)
					return nil
				}

				status, err = dm.BindAcquire(code)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func displayCodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "display-code",
		Short: "Show a new binding code on the device screen",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.withDevice(func(dm *imkey.DeviceManager) error {
				return dm.DisplayBindCode()
			})
		},
	}
}

func seidCmd(a *app) *cobra.Command {
	return queryCmd(a, "seid", "Print the secure element id", (*imkey.DeviceManager).GetSEID)
}

func snCmd(a *app) *cobra.Command {
	return queryCmd(a, "sn", "Print the device serial number", (*imkey.DeviceManager).GetSN)
}

func certCmd(a *app) *cobra.Command {
	return queryCmd(a, "cert", "Print the secure element certificate", (*imkey.DeviceManager).GetCert)
}

func queryCmd(a *app, use, short string, query func(*imkey.DeviceManager) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDevice(func(dm *imkey.DeviceManager) error {
				out, err := query(dm)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func sendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send APDU...",
		Short: "Send raw hex APDUs and print each response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDevice(func(dm *imkey.DeviceManager) error {
				stop := cancelOnInterrupt(dm)
				defer stop()

				responses, sw, err := dm.SendBatch(args)
				for _, resp := range responses {
					fmt.Fprintln(cmd.OutOrStdout(), resp)
				}
				if err != nil {
					return err
				}

				logger.Debug("batch finished", "count", len(responses), "sw", sw)
				return nil
			})
		},
	}
}

// cancelOnInterrupt aborts the running exchange on SIGINT.
func cancelOnInterrupt(dm *imkey.DeviceManager) func() {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt)

	go func() {
		select {
		case <-sigs:
			logger.Info("interrupted, cancelling exchange")
			if err := dm.Cancel(); err != nil {
				logger.Warn("cancel failed", "error", err)
			}
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
