// Package collector translates one parsed cluster status document into a
// complete set of named, labeled metric samples.
//
// The translation is a pure function of the document plus a single policy
// flag fixed at construction. The metric catalog is a set of fixed tables
// (name, help text, coercion, label shape) iterated explicitly, so the full
// set of emitted series is readable from the source. Collection is
// all-or-nothing: any missing required attribute or unparsable scalar aborts
// the whole pass, and callers see either a complete, internally consistent
// snapshot or an error.
package collector

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/marcan/pacemaker-exporter/pkg/crmmon"
)

const namespace = "pacemaker"

// summaryMetric binds one cluster-level metric to its coercion from the
// summary section.
type summaryMetric struct {
	desc  *prometheus.Desc
	value func(s *crmmon.Summary) (float64, error)
}

// nodeMetric binds one per-node metric to its coercion from a node entry.
type nodeMetric struct {
	desc  *prometheus.Desc
	value func(n *crmmon.Node) (float64, error)
}

// resourceMetric binds one per-resource-instance metric to its coercion
// from a resource entry.
type resourceMetric struct {
	desc  *prometheus.Desc
	value func(r *crmmon.Resource) (float64, error)
}

func clusterDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(namespace+"_"+name, help, nil, nil)
}

func nodeDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(namespace+"_"+name, help, []string{"node"}, nil)
}

func resourceDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(namespace+"_"+name, help, []string{"id", "instance"}, nil)
}

func boolValue(s string) (float64, error) { return coerceBool(s), nil }

var summaryMetrics = []summaryMetric{
	{clusterDesc("last_update", "Last update time of cluster info"),
		func(s *crmmon.Summary) (float64, error) { return coerceTime("summary/last_update", s.LastUpdate.Time) }},
	{clusterDesc("last_change", "Last CIB change time"),
		func(s *crmmon.Summary) (float64, error) { return coerceTime("summary/last_change", s.LastChange.Time) }},
	{clusterDesc("dc_present", "Whether the cluster has an active DC"),
		func(s *crmmon.Summary) (float64, error) { return boolValue(s.CurrentDC.Present) }},
	{clusterDesc("dc_with_quorum", "Whether the cluster has quorum"),
		func(s *crmmon.Summary) (float64, error) { return boolValue(s.CurrentDC.WithQuorum) }},
	{clusterDesc("nodes_configured", "Number of configured nodes"),
		func(s *crmmon.Summary) (float64, error) {
			return coerceInt("summary/nodes_configured", s.NodesConfigured.Number)
		}},
	{clusterDesc("resources_configured", "Number of configured resources"),
		func(s *crmmon.Summary) (float64, error) {
			return coerceInt("summary/resources_configured", s.ResourcesConfigured.Number)
		}},
	{clusterDesc("stonith_enabled", "Whether STONITH is enabled"),
		func(s *crmmon.Summary) (float64, error) { return boolValue(s.ClusterOptions.StonithEnabled) }},
}

var nodeMetrics = []nodeMetric{
	{nodeDesc("node_id", "Node ID"),
		func(n *crmmon.Node) (float64, error) { return coerceInt("node/"+n.Name+"@id", n.ID) }},
	{nodeDesc("node_online", "Node is online"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.Online) }},
	{nodeDesc("node_standby", "Node is standby"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.Standby) }},
	{nodeDesc("node_maintenance", "Node is in maintenance mode"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.Maintenance) }},
	{nodeDesc("node_pending", "Node is pending"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.Pending) }},
	{nodeDesc("node_unclean", "Node is unclean"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.Unclean) }},
	{nodeDesc("node_shutdown", "Node is shutdown"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.Shutdown) }},
	{nodeDesc("node_expected_up", "Node is expected up"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.ExpectedUp) }},
	{nodeDesc("node_is_dc", "Node is the DC"),
		func(n *crmmon.Node) (float64, error) { return boolValue(n.IsDC) }},
	{nodeDesc("node_resources_running", "Number of resources running on the node"),
		func(n *crmmon.Node) (float64, error) {
			return coerceInt("node/"+n.Name+"@resources_running", n.ResourcesRunning)
		}},
}

var resourceMetrics = []resourceMetric{
	{resourceDesc("resource_active", "Resource is active"),
		func(r *crmmon.Resource) (float64, error) { return boolValue(r.Active) }},
	{resourceDesc("resource_orphaned", "Resource is orphaned"),
		func(r *crmmon.Resource) (float64, error) { return boolValue(r.Orphaned) }},
	{resourceDesc("resource_managed", "Resource is managed"),
		func(r *crmmon.Resource) (float64, error) { return boolValue(r.Managed) }},
	{resourceDesc("resource_failed", "Resource failed"),
		func(r *crmmon.Resource) (float64, error) { return boolValue(r.Failed) }},
	{resourceDesc("resource_failure_ignored", "Resource failure ignored"),
		func(r *crmmon.Resource) (float64, error) { return boolValue(r.FailureIgnored) }},
	{resourceDesc("resource_nodes_running_on", "Number of nodes the resource is running on"),
		func(r *crmmon.Resource) (float64, error) {
			return coerceInt("resource/"+r.ID+"@nodes_running_on", r.NodesRunningOn)
		}},
}

var (
	nodeAttributeValueDesc = prometheus.NewDesc(namespace+"_node_attribute_value",
		"Node attribute", []string{"node", "name"}, nil)
	nodeAttributeExpectedDesc = prometheus.NewDesc(namespace+"_node_attribute_expected",
		"Node attribute", []string{"node", "name"}, nil)
	resourceNodeDesc = prometheus.NewDesc(namespace+"_resource_node",
		"Whether a resource is running on each node", []string{"id", "instance", "node"}, nil)
)

// Builder translates status documents into metric snapshots. It holds no
// per-request state; the only configuration is the placement suppression
// policy, read-only after construction.
type Builder struct {
	suppressStoppedClonePlacements bool
}

// NewBuilder returns a Builder. With suppression enabled (the default
// policy), zero-valued placement rows are not emitted for anonymous clone
// members: those are expected to run on every node, and materializing a row
// per missing node multiplies the series count by node count with no
// diagnostic value.
func NewBuilder(suppressStoppedClonePlacements bool) *Builder {
	return &Builder{suppressStoppedClonePlacements: suppressStoppedClonePlacements}
}

// Build translates one document into a complete, normalized metric snapshot.
// On any coercion or structural failure it returns the error and no metrics.
func (b *Builder) Build(result *crmmon.Result) ([]*dto.MetricFamily, error) {
	metrics, err := b.collect(result)
	if err != nil {
		return nil, err
	}

	// A fresh pedantic registry per snapshot checks label consistency and
	// normalizes family and sample ordering, which keeps the rendered
	// output deterministic for identical input documents.
	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(constCollector(metrics)); err != nil {
		return nil, err
	}
	return registry.Gather()
}

func (b *Builder) collect(result *crmmon.Result) ([]prometheus.Metric, error) {
	var metrics []prometheus.Metric

	emit := func(desc *prometheus.Desc, value float64, labels ...string) error {
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, labels...)
		if err != nil {
			return err
		}
		metrics = append(metrics, m)
		return nil
	}

	for _, sm := range summaryMetrics {
		v, err := sm.value(&result.Summary)
		if err != nil {
			return nil, err
		}
		if err := emit(sm.desc, v); err != nil {
			return nil, err
		}
	}

	knownNodes := make([]string, 0, len(result.Nodes.Node))
	for i := range result.Nodes.Node {
		node := &result.Nodes.Node[i]
		knownNodes = append(knownNodes, node.Name)
		for _, nm := range nodeMetrics {
			v, err := nm.value(node)
			if err != nil {
				return nil, err
			}
			if err := emit(nm.desc, v, node.Name); err != nil {
				return nil, err
			}
		}
	}

	for _, attrNode := range result.NodeAttributes.Node {
		for _, attr := range attrNode.Attribute {
			field := "node_attributes/" + attrNode.Name + "/" + attr.Name

			v, err := coerceFloat(field+"@value", attr.Value)
			if err != nil {
				return nil, err
			}
			if err := emit(nodeAttributeValueDesc, v, attrNode.Name, attr.Name); err != nil {
				return nil, err
			}

			expected, err := coerceFloat(field+"@expected", attr.Expected)
			if err != nil {
				return nil, err
			}
			if err := emit(nodeAttributeExpectedDesc, expected, attrNode.Name, attr.Name); err != nil {
				return nil, err
			}
		}
	}

	for _, inst := range resourceInstances(&result.Resources) {
		for _, rm := range resourceMetrics {
			v, err := rm.value(inst.resource)
			if err != nil {
				return nil, err
			}
			if err := emit(rm.desc, v, inst.id, inst.instance); err != nil {
				return nil, err
			}
		}

		runningOn := make(map[string]bool, len(inst.resource.Node))
		for _, ref := range inst.resource.Node {
			runningOn[ref.Name] = true
			if err := emit(resourceNodeDesc, 1, inst.id, inst.instance, ref.Name); err != nil {
				return nil, err
			}
		}

		// Zero rows are materialized for unique instances so "this specific
		// instance is NOT running here" stays queryable. For anonymous clone
		// members they are policy-controlled.
		if inst.unique || !b.suppressStoppedClonePlacements {
			for _, name := range knownNodes {
				if runningOn[name] {
					continue
				}
				if err := emit(resourceNodeDesc, 0, inst.id, inst.instance, name); err != nil {
					return nil, err
				}
			}
		}
	}

	return metrics, nil
}

// resourceInstance is one addressable (id, instance) pair of the catalog.
type resourceInstance struct {
	id       string
	instance string
	unique   bool
	resource *crmmon.Resource
}

// resourceInstances flattens the resources section into uniquely addressed
// instances. A bare resource is one instance with an empty instance label.
// A clone member's instance label is the suffix after the last colon in its
// id when the resource agent embeds an instance number, or the member's
// zero-based ordinal within the clone when it does not. The clone's own
// unique attribute decides the uniqueness flag for all of its members;
// bare resources are always unique.
func resourceInstances(resources *crmmon.Resources) []resourceInstance {
	var instances []resourceInstance

	add := func(resource *crmmon.Resource, unique bool, ordinal string) {
		id, instance := resource.ID, ordinal
		if i := strings.LastIndex(id, ":"); i >= 0 {
			id, instance = id[:i], id[i+1:]
		}
		instances = append(instances, resourceInstance{
			id:       id,
			instance: instance,
			unique:   unique,
			resource: resource,
		})
	}

	for i := range resources.Resource {
		add(&resources.Resource[i], true, "")
	}
	for ci := range resources.Clone {
		clone := &resources.Clone[ci]
		unique := coerceBool(clone.Unique) == 1
		for i := range clone.Resource {
			add(&clone.Resource[i], unique, strconv.Itoa(i))
		}
	}

	return instances
}

// constCollector adapts an already-built metric slice to the
// prometheus.Collector interface so a per-snapshot registry can gather it.
type constCollector []prometheus.Metric

func (c constCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c {
		ch <- m.Desc()
	}
}

func (c constCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c {
		ch <- m
	}
}
