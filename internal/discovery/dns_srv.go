package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/fieldmux/fieldmux/pkg/message"
)

// SRVStrategy resolves a group's peers from a DNS SRV record, e.g.
// "_multio-server._tcp.example.internal", grounded on
// sandia-minimega-minimega's protonuke dns.go use of dns.Exchange for
// ad-hoc queries (generalized here from random A/AAAA lookups to one SRV
// lookup against a configured resolver).
type SRVStrategy struct {
	// Service is the SRV name to query, e.g. "_multio-server._tcp.example.internal.".
	Service string
	// Resolver is the "host:port" of the DNS server to query.
	Resolver string
	// Group is the peer group name assigned to every resolved target
	// (spec.md §3's Peer.group).
	Group string
}

// Discover issues a single SRV query and returns one ResolvedPeer per
// answer, ordered by SRV priority then weight (miekg/dns does not guarantee
// any order for dns.Msg.Answer, so the records are sorted here).
func (s SRVStrategy) Discover(ctx context.Context) ([]ResolvedPeer, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(s.Service), dns.TypeSRV)

	client := new(dns.Client)
	in, _, err := client.ExchangeContext(ctx, m, s.Resolver)
	if err != nil {
		return nil, fmt.Errorf("discovery: SRV exchange for %s via %s: %w", s.Service, s.Resolver, err)
	}

	var records []*dns.SRV
	for _, rr := range in.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	sortSRV(records)

	peers := make([]ResolvedPeer, 0, len(records))
	for i, rr := range records {
		target := strings.TrimSuffix(rr.Target, ".")
		addr := target + ":" + strconv.Itoa(int(rr.Port))
		peers = append(peers, ResolvedPeer{
			Peer:    message.NewPeer(s.Group, uint64(i)),
			Address: addr,
		})
	}
	return peers, nil
}

// sortSRV orders by priority then weight, ascending — lower priority is
// preferred, matching standard SRV selection semantics (RFC 2782), enough
// determinism for assigning stable peer ids across identical queries.
func sortSRV(records []*dns.SRV) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0; j-- {
			a, b := records[j-1], records[j]
			if a.Priority < b.Priority || (a.Priority == b.Priority && a.Weight <= b.Weight) {
				break
			}
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}
