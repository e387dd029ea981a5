package main

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/fieldmux/fieldmux/internal/bootstrap"
	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/client"
	"github.com/fieldmux/fieldmux/pkg/message"

	_ "github.com/fieldmux/fieldmux/internal/transport/mpi"
	_ "github.com/fieldmux/fieldmux/internal/transport/nats"
	_ "github.com/fieldmux/fieldmux/internal/transport/tcp"
)

var (
	app         = kingpin.New("multio-client", "Writes one or more fields into a multiplexing I/O server group.")
	configPath  = app.Flag("config", "Path to the shared YAML configuration.").Required().String()
	clientID    = app.Flag("client-id", "This process's index within the configured client group.").Required().Uint64()
	category    = app.Flag("category", "Field metadata: category (e.g. \"ocean\").").Required().String()
	name        = app.Flag("name", "Field metadata: short name (e.g. \"sst\").").Required().String()
	level       = app.Flag("level", "Field metadata: vertical level.").Default("1").String()
	domainName  = app.Flag("domain", "Domain name this field's values partition.").String()
	dataPath    = app.Flag("data", "Path to a file of whitespace-separated doubles; \"-\" reads stdin.").Default("-").String()
	bufferedArg = app.Flag("buffered", "Use buffered (coalescing) sends instead of blocking sends.").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logging.NewDefault()

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

	servers := bootstrap.ServerPeers(tree)
	clients := bootstrap.ClientPeers(tree, tree.Count)
	if int(*clientID) >= len(clients) {
		log.Errorf("client-id %d out of range for %d configured clients", *clientID, len(clients))
		os.Exit(1)
	}
	self := clients[*clientID]

	ctx := context.Background()

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

	selector := bootstrap.BuildSelector(tree, servers, *clientID, len(clients))
	c := client.New(tr, selector, *bufferedArg, nil, log)

	values, err := readValues(*dataPath)
	if err != nil {
		log.Errorf("read data: %v", err)
		os.Exit(1)
	}

	md := client.NewMetadata()
	md.Set("category", message.StringValue(*category))
	md.Set("name", message.StringValue(*name))
	md.Set("level", message.StringValue(*level))
	if *domainName != "" {
		md.Set("domain", message.StringValue(*domainName))
	}

	if err := c.WriteField(ctx, md, values); err != nil {
		log.Errorf("write field: %v", err)
		os.Exit(3)
	}
	if err := c.Flush(ctx, md.Clone()); err != nil {
		log.Errorf("flush: %v", err)
		os.Exit(3)
	}
	if err := c.Close(ctx); err != nil {
		log.Errorf("close: %v", err)
		os.Exit(3)
	}
}

func readValues(path string) ([]float64, error) {
	var r *os.File
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var values []float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, scanner.Err()
}
