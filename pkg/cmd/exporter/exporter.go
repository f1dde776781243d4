package exporter

import (
	"context"
	"errors"
	goflag "flag"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/marcan/pacemaker-exporter/pkg/collector"
	"github.com/marcan/pacemaker-exporter/pkg/crmmon"
	"github.com/marcan/pacemaker-exporter/pkg/server"
)

const (
	defaultListenPort = 9202
	defaultCrmMonPath = "crm_mon"

	shutdownTimeout = 5 * time.Second
)

type exporterOpts struct {
	listenHost                     string
	listenPort                     uint16
	crmMonPath                     string
	suppressStoppedClonePlacements bool
}

func newExporterOpts() *exporterOpts {
	return &exporterOpts{
		listenPort:                     defaultListenPort,
		crmMonPath:                     defaultCrmMonPath,
		suppressStoppedClonePlacements: true,
	}
}

// NewExporterCommand creates the pacemaker-exporter command, an HTTP server
// exposing Pacemaker cluster status as Prometheus metrics.
func NewExporterCommand() *cobra.Command {
	opts := newExporterOpts()
	cmd := &cobra.Command{
		Use:   "pacemaker-exporter",
		Short: "Serve Pacemaker cluster status as Prometheus metrics",
		Run: func(cmd *cobra.Command, args []string) {
			defer klog.Flush()

			if err := opts.Validate(); err != nil {
				klog.Fatal(err)
			}
			if err := opts.Run(); err != nil {
				klog.Fatal(err)
			}
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

func (o *exporterOpts) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.listenHost, "host", o.listenHost, "IP address or hostname to listen on. Default all interfaces")
	fs.Uint16Var(&o.listenPort, "port", o.listenPort, "Port to listen on. Default 9202")
	fs.StringVar(&o.crmMonPath, "crm-mon-path", o.crmMonPath, "Path to the crm_mon binary")
	fs.BoolVar(&o.suppressStoppedClonePlacements, "suppress-stopped-clone-placements", o.suppressStoppedClonePlacements,
		"Do not generate timeseries for nodes an anonymous clone member is *not* running on")
	// adding klog flags to tune verbosity better
	gfs := goflag.NewFlagSet("", goflag.ExitOnError)
	klog.InitFlags(gfs)
	fs.AddGoFlagSet(gfs)
}

// Validate verifies the inputs.
func (o *exporterOpts) Validate() error {
	if o.listenPort == 0 {
		return errors.New("invalid --port: must be non-zero")
	}
	if len(o.crmMonPath) == 0 {
		return errors.New("missing required flag: --crm-mon-path")
	}
	return nil
}

// Run wires the pipeline once and serves until SIGINT or SIGTERM. All
// configuration is read-only after this point; requests share nothing else.
func (o *exporterOpts) Run() error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := crmmon.NewClient(o.crmMonPath)
	builder := collector.NewBuilder(o.suppressStoppedClonePlacements)
	srv := server.New(client, builder)

	addr := net.JoinHostPort(o.listenHost, strconv.Itoa(int(o.listenPort)))
	klog.Infof("Listening on %s", addr)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     srv.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return shutdownCtx },
	}
	go func() {
		<-shutdownCtx.Done()
		klog.Info("Received SIGTERM or SIGINT signal, shutting down.")
		ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := httpServer.Shutdown(ctx); err != nil {
			klog.Errorf("Error while shutting down: %v", err)
		}
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		err = nil
	}
	return err
}
