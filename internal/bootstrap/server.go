// Package bootstrap wires an internal/config.Tree into live components,
// realizing spec.md §9's "registry-plus-factory" design note for the
// action chain: each ActionConfig.Type is looked up in a small
// name→constructor table and chained back-to-front into one Plan's head
// Action, exactly the way internal/transport.Register/New already does
// for transport backends.
package bootstrap

import (
	"fmt"

	"github.com/fieldmux/fieldmux/internal/action"
	"github.com/fieldmux/fieldmux/internal/action/aggregation"
	"github.com/fieldmux/fieldmux/internal/action/encode"
	"github.com/fieldmux/fieldmux/internal/action/selectaction"
	"github.com/fieldmux/fieldmux/internal/action/sink"
	"github.com/fieldmux/fieldmux/internal/action/statistics"
	"github.com/fieldmux/fieldmux/internal/config"
	"github.com/fieldmux/fieldmux/internal/domain"
	"github.com/fieldmux/fieldmux/internal/logging"
	"github.com/fieldmux/fieldmux/internal/plan"
	"github.com/fieldmux/fieldmux/internal/stats"
	"github.com/fieldmux/fieldmux/internal/transport"
	"github.com/fieldmux/fieldmux/pkg/message"
)

// ServerDeps carries the shared, process-wide collaborators every built
// Plan's actions may need (spec.md §5: "the domain-map registry is
// process-wide... initialize-once, read-many").
type ServerDeps struct {
	Registry *domain.Registry
	Reporter stats.Reporter
	Log      logging.Logger
	Sinks    map[string]sink.Sink // keyed by SinkConfig "name"
}

// BuildDispatcher turns every configured Plan into an internal/plan.Plan
// with its action chain wired tail-to-head, and returns a ready Dispatcher.
func BuildDispatcher(tree *config.Tree, deps ServerDeps) (*plan.Dispatcher, error) {
	hashKeys := tree.HashKeys
	if len(hashKeys) == 0 {
		hashKeys = message.DefaultHashKeys
	}

	plans := make([]plan.Plan, 0, len(tree.Plans))
	for _, pc := range tree.Plans {
		head, err := buildChain(pc.Actions, hashKeys, tree.Count, deps)
		if err != nil {
			return nil, &config.Error{Path: "plans[" + pc.Name + "]", Reason: err.Error()}
		}

		onError := plan.Abort
		if pc.OnError == "continue" {
			onError = plan.Continue
		}

		plans = append(plans, plan.Plan{
			Name:      pc.Name,
			Predicate: buildPredicate(pc.Match),
			Head:      head,
			OnError:   onError,
		})
	}

	return plan.New(plans, deps.Log), nil
}

// buildChain instantiates configs from last to first, passing each built
// action as the next link of the one before it, so configs[0] is the
// chain's head and the last config's next is nil, matching the natural
// top-to-bottom reading order of a YAML "actions" list.
func buildChain(configs []config.ActionConfig, hashKeys []string, clientCount int, deps ServerDeps) (action.Action, error) {
	var next action.Action
	for i := len(configs) - 1; i >= 0; i-- {
		built, err := buildAction(configs[i], next, hashKeys, clientCount, deps)
		if err != nil {
			return nil, err
		}
		next = built
	}
	return next, nil
}

func buildAction(ac config.ActionConfig, next action.Action, hashKeys []string, clientCount int, deps ServerDeps) (action.Action, error) {
	switch ac.Type {
	case "aggregation":
		return aggregation.New(next, deps.Registry, hashKeys, clientCount, deps.Reporter, deps.Log), nil

	case "select":
		matches, err := parseMatches(ac.Raw["match"])
		if err != nil {
			return nil, err
		}
		return selectaction.New(next, matches, deps.Reporter, deps.Log), nil

	case "encode":
		format, _ := ac.Raw["format"].(string)
		codec := encode.Codec(encode.RawCodec{})
		if format == "grib" {
			return nil, fmt.Errorf("encode: format \"grib\" requires a GribEncoder wired by the caller, not by name")
		}
		return encode.New(next, codec, deps.Reporter, deps.Log), nil

	case "statistics":
		ops, err := parseOperations(ac.Raw["operations"])
		if err != nil {
			return nil, err
		}
		window := int64(1)
		if w, ok := ac.Raw["output-frequency"]; ok {
			if n, ok := w.(int); ok {
				window = int64(n)
			}
		}
		return statistics.New(next, hashKeys, ops, window, deps.Reporter, deps.Log), nil

	case "sink":
		name, _ := ac.Raw["name"].(string)
		s, ok := deps.Sinks[name]
		if !ok {
			return nil, fmt.Errorf("sink: no Sink registered under name %q", name)
		}
		return sink.New(next, s, nil, deps.Reporter, deps.Log), nil

	default:
		return nil, fmt.Errorf("unrecognized action type %q", ac.Type)
	}
}

func buildPredicate(match map[string]any) plan.Predicate {
	if len(match) == 0 {
		return plan.MatchAll
	}
	wants := make(map[string]string, len(match))
	for k, v := range match {
		if s, ok := v.(string); ok {
			wants[k] = s
		}
	}
	return func(msg message.Message) bool {
		for k, want := range wants {
			v, ok := msg.Metadata.GetOpt(k)
			if !ok || v.StringOrEmpty() != want {
				return false
			}
		}
		return true
	}
}

func parseMatches(raw any) ([]selectaction.Match, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("select: \"match\" must be a mapping")
	}
	matches := make([]selectaction.Match, 0, len(m))
	for key, v := range m {
		switch val := v.(type) {
		case string:
			matches = append(matches, selectaction.Match{Key: key, Values: []string{val}})
		case []any:
			values := make([]string, 0, len(val))
			for _, e := range val {
				if s, ok := e.(string); ok {
					values = append(values, s)
				}
			}
			matches = append(matches, selectaction.Match{Key: key, Values: values})
		default:
			return nil, fmt.Errorf("select: match[%q] must be a string or list of strings", key)
		}
	}
	return matches, nil
}

func parseOperations(raw any) ([]statistics.Operation, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("statistics: \"operations\" must be a list")
	}
	ops := make([]statistics.Operation, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("statistics: each operation must be a string")
		}
		ops = append(ops, statistics.Operation(s))
	}
	return ops, nil
}

// BuildTransportConfig derives a transport.Config from tree for the local
// peer self, resolving server addresses from tree.Servers in order and then
// overlaying discovered, which ResolveServerAddresses produces when
// tree.Discovery is configured — discovery wins where both name the same
// peer, since it reflects the live set rather than the static config.
func BuildTransportConfig(tree *config.Tree, self message.Peer, servers, clients []message.Peer, discovered map[message.Peer]string) transport.Config {
	addresses := make(map[message.Peer]string)
	i := 0
	for _, sg := range tree.Servers {
		for _, port := range sg.Ports {
			if i >= len(servers) {
				break
			}
			addresses[servers[i]] = fmt.Sprintf("%s:%d", sg.Host, port)
			i++
		}
	}
	for peer, addr := range discovered {
		addresses[peer] = addr
	}
	return transport.Config{
		Self:      self,
		Servers:   servers,
		Clients:   clients,
		Integrity: tree.Integrity,
		Addresses: addresses,
	}
}
