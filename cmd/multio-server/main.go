package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/fieldmux/fieldmux/internal/action/sink"
	"github.com/fieldmux/fieldmux/internal/bootstrap"
	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/plan"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/internal/transport"

	_ "github.com/fieldmux/fieldmux/internal/transport/mpi"
	_ "github.com/fieldmux/fieldmux/internal/transport/nats"
	_ "github.com/fieldmux/fieldmux/internal/transport/tcp"
)

var (
	app        = kingpin.New("multio-server", "Runs one server process of a multiplexing I/O pipeline.")
	configPath = app.Flag("config", "Path to the server's YAML configuration.").Required().String()
	serverID   = app.Flag("server-id", "This process's index within the configured server group.").Required().Uint64()
	sinkDir    = app.Flag("sink-dir", "Directory the default file sink writes into.").Default("./sink").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logging.NewDefault()
	runID := uuid.NewString()
	log.Infof("starting server run=%s", runID)

	f, err := os.Open(*configPath)
	if err != nil {
		log.Errorf("open config: %v", err)
		os.Exit(1)
	}
	tree, err := config.Load(f)
	f.Close()
	if err != nil {
		log.Errorf("load config: %v", err)
		os.Exit(1)
	}

	reporter := stats.NewPrometheusReporter(prometheus.NewRegistry())

	servers := bootstrap.ServerPeers(tree)
	clients := bootstrap.ClientPeers(tree, tree.Count)
	if int(*serverID) >= len(servers) {
		log.Errorf("server-id %d out of range for %d configured servers", *serverID, len(servers))
		os.Exit(1)
	}
	self := servers[*serverID]

	sinks, err := bootstrap.BuildSinks(context.Background(), tree)
	if err != nil {
		log.Errorf("build sinks: %v", err)
		os.Exit(2)
	}
	if _, ok := sinks["primary"]; !ok {
		fileSink, err := sink.NewFileSink(*sinkDir)
		if err != nil {
			log.Errorf("create file sink: %v", err)
			os.Exit(2)
		}
		sinks["primary"] = fileSink
	}

	dispatcher, err := bootstrap.BuildDispatcher(tree, bootstrap.ServerDeps{
		Registry: domain.NewRegistry(len(clients)),
		Reporter: reporter,
		Log:      log,
		Sinks:    sinks,
	})
	if err != nil {
		log.Errorf("build dispatcher: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	discovered, err := bootstrap.ResolveServerAddresses(ctx, tree)
	if err != nil {
		log.Errorf("resolve discovery: %v", err)
		os.Exit(2)
	}

	tr, err := transport.New(tree.Transport, bootstrap.BuildTransportConfig(tree, self, servers, clients, discovered))
	if err != nil {
		log.Errorf("start transport: %v", err)
		os.Exit(2)
	}
	defer tr.Close()

	server := plan.NewServer(tr, dispatcher, clients, log)
	if err := server.Run(ctx); err != nil {
		log.Errorf("server loop: %v", err)
		os.Exit(3)
	}
}
