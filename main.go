package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/elijahnyp/station_controller/station"
	"github.com/elijahnyp/station_controller/telemetry"
	. "github.com/elijahnyp/station_controller/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	// arguments
	argConfigFile string
	argLogLevel   string
	argDeviceURL  string
	argPanelPort  int
	argYes        bool

	rootCmd = &cobra.Command{
		Use:               "station_controller",
		Short:             "Poll and drive the station antenna routing matrix",
		PersistentPreRunE: setup,
		RunE:              runController,
		SilenceUsage:      true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the controller with its operator panel (default)",
		RunE:  runController,
	}

	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Fetch the device state once and print the active cells",
		RunE:  printState,
	}

	selectCmd = &cobra.Command{
		Use:   "select <cell-id>",
		Short: "Select one matrix cell",
		Args:  cobra.ExactArgs(1),
		RunE:  selectCell,
	}

	offCmd = &cobra.Command{
		Use:   "off",
		Short: "Switch off all systems",
		RunE:  masterOff,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&argConfigFile, "config", "", "Path of the config file (default: search for station_controller.*)")
	flags.StringVar(&argLogLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.StringVar(&argDeviceURL, "device-url", "", "Base URL of the control service")
	flags.IntVar(&argPanelPort, "panel-port", 8080, "Port of the operator panel")

	offCmd.Flags().BoolVarP(&argYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(runCmd, stateCmd, selectCmd, offCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	LogInit(argLogLevel)
	BindFlags(cmd.Flags())
	SetupConfig()
	LogInit(Config.GetString("log_level"))
	return nil
}

func syncInterval() time.Duration {
	return time.Duration(Config.GetInt("sync_interval_ms")) * time.Millisecond
}

func newController(metrics telemetry.Collector) (*station.Controller, error) {
	cells, err := BuildMatrix()
	if err != nil {
		return nil, err
	}
	client := station.NewClient(Config.GetString("device_url"), Config.GetDuration("request_timeout"))
	return station.NewController(station.Options{
		Device:   client,
		Interval: syncInterval(),
		Metrics:  metrics,
		Cells:    cells,
	}), nil
}

func runController(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewPrometheusCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	ctrl, err := newController(metrics)
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	hub := NewHub()
	go hub.Run(ctx)
	ctrl.OnChange(func(p station.Projection) { hub.BroadcastUpdate(matrixMessage, p) })

	bridge := newMQTTBridge(ctrl)
	bridge.Start()
	defer bridge.Stop()

	deviceURL, interval, panelPort := Config.GetString("device_url"), syncInterval(), Config.GetInt("panel_port")
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		cells, err := BuildMatrix()
		if err != nil {
			Logger.Error().Msgf("Error building matrix: %v", err)
			return
		}
		ctrl.SetCells(cells)
		hub.BroadcastUpdate(matrixMessage, ctrl.Projection())
	})
	RegisterNewConfigListener(func() {
		if Config.GetString("device_url") != deviceURL || syncInterval() != interval {
			Logger.Warn().Msg("device_url or sync_interval_ms changed, restart to apply")
		}
	})
	RegisterNewConfigListener(func() {
		if _, err := MqttReconfigure(); err != nil {
			Logger.Error().Err(err).Msg("mqtt unavailable")
		}
	})
	OnNewConfig()

	if err := ctrl.Start(ctx); err != nil {
		Logger.Warn().Err(err).Msg("initial sync failed, polling continues")
	}

	monitor := NewMonitorServer()
	newPanel(ctrl, hub).Register(monitor)
	monitor.AddRawHandler("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() {
		if port := Config.GetInt("panel_port"); port != panelPort {
			panelPort = port
			monitor.Restart()
		}
	})

	Logger.Info().Msg("ready")
	<-ctx.Done()
	Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		Logger.Error().Msgf("Error shutting down monitor server: %v", err)
	}
	return nil
}

func printState(cmd *cobra.Command, args []string) error {
	cells, err := BuildMatrix()
	if err != nil {
		return err
	}
	client := station.NewClient(Config.GetString("device_url"), Config.GetDuration("request_timeout"))
	s, err := client.FetchState(cmd.Context())
	if err != nil {
		return err
	}
	p := station.NewView(cells).Project(s)
	writeProjection(cmd.OutOrStdout(), p)
	return nil
}

func selectCell(cmd *cobra.Command, args []string) error {
	ctrl, err := newController(nil)
	if err != nil {
		return err
	}
	defer ctrl.Stop()
	if err := ctrl.Start(cmd.Context()); err != nil {
		return err
	}
	results, err := ctrl.Click(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := firstError(results); err != nil {
		return err
	}
	writeProjection(cmd.OutOrStdout(), ctrl.Projection())
	return nil
}

func masterOff(cmd *cobra.Command, args []string) error {
	ctrl, err := newController(nil)
	if err != nil {
		return err
	}
	defer ctrl.Stop()
	if err := ctrl.Start(cmd.Context()); err != nil {
		return err
	}

	var confirmer station.Confirmer = terminalConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	if argYes {
		confirmer = station.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	}
	sent, err := ctrl.MasterOff(cmd.Context(), confirmer)
	if err != nil {
		return err
	}
	if !sent {
		fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
		return nil
	}
	writeProjection(cmd.OutOrStdout(), ctrl.Projection())
	return nil
}

// terminalConfirmer asks on the terminal and accepts y or yes.
type terminalConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (t terminalConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(t.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func writeProjection(w io.Writer, p station.Projection) {
	fmt.Fprintf(w, "state: %v\n", p.State)
	if len(p.Active) == 0 {
		fmt.Fprintln(w, "active: none")
		return
	}
	fmt.Fprintf(w, "active: %s\n", strings.Join(p.Active, ", "))
}

func firstError(results []station.Result) error {
	for _, res := range results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
