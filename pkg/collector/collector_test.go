package collector

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"

	"github.com/marcan/pacemaker-exporter/pkg/crmmon"
)

// loadTestXML loads a test XML file from the testdata directory
func loadTestXML(t *testing.T, filename string) []byte {
	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read test XML file: %s", filename)
	return data
}

func parseTestXML(t *testing.T, doc []byte) *crmmon.Result {
	result, err := crmmon.Parse(doc)
	require.NoError(t, err)
	return result
}

func buildHealthyCluster(t *testing.T, suppress bool) []*dto.MetricFamily {
	result := parseTestXML(t, loadTestXML(t, "healthy_cluster.xml"))
	families, err := NewBuilder(suppress).Build(result)
	require.NoError(t, err)
	return families
}

// findFamily returns the metric family with the given name, or nil.
func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

// labelMap flattens a sample's label pairs for lookup by name.
func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.Label))
	for _, pair := range m.Label {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

// singleValue returns the value of the only sample in a family.
func singleValue(t *testing.T, families []*dto.MetricFamily, name string) float64 {
	family := findFamily(families, name)
	require.NotNil(t, family, "missing family %s", name)
	require.Len(t, family.Metric, 1)
	return family.Metric[0].GetGauge().GetValue()
}

// placementRows returns node → value for every placement sample of one
// (id, instance) pair.
func placementRows(t *testing.T, families []*dto.MetricFamily, id, instance string) map[string]float64 {
	family := findFamily(families, "pacemaker_resource_node")
	require.NotNil(t, family)

	rows := make(map[string]float64)
	for _, m := range family.Metric {
		labels := labelMap(m)
		if labels["id"] == id && labels["instance"] == instance {
			rows[labels["node"]] = m.GetGauge().GetValue()
		}
	}
	return rows
}

func TestBuild_ClusterMetrics(t *testing.T) {
	families := buildHealthyCluster(t, true)

	lastUpdate, err := time.ParseInLocation(pacemakerTimeFormat, "Mon Jan 10 20:35:28 2022", time.Local)
	require.NoError(t, err)
	lastChange, err := time.ParseInLocation(pacemakerTimeFormat, "Fri Jan  7 09:10:03 2022", time.Local)
	require.NoError(t, err)

	require.Equal(t, float64(lastUpdate.Unix()), singleValue(t, families, "pacemaker_last_update"))
	require.Equal(t, float64(lastChange.Unix()), singleValue(t, families, "pacemaker_last_change"))
	require.Equal(t, 1.0, singleValue(t, families, "pacemaker_dc_present"))
	require.Equal(t, 1.0, singleValue(t, families, "pacemaker_dc_with_quorum"))
	require.Equal(t, 3.0, singleValue(t, families, "pacemaker_nodes_configured"))
	require.Equal(t, 6.0, singleValue(t, families, "pacemaker_resources_configured"))
	require.Equal(t, 1.0, singleValue(t, families, "pacemaker_stonith_enabled"))
}

func TestBuild_NodeSampleCounts(t *testing.T) {
	families := buildHealthyCluster(t, true)

	nodeFamilies := []string{
		"pacemaker_node_id",
		"pacemaker_node_online",
		"pacemaker_node_standby",
		"pacemaker_node_maintenance",
		"pacemaker_node_pending",
		"pacemaker_node_unclean",
		"pacemaker_node_shutdown",
		"pacemaker_node_expected_up",
		"pacemaker_node_is_dc",
		"pacemaker_node_resources_running",
	}

	wantNodes := map[string]bool{"node-1": true, "node-2": true, "node-3": true}
	for _, name := range nodeFamilies {
		family := findFamily(families, name)
		require.NotNil(t, family, "missing family %s", name)
		require.Len(t, family.Metric, len(wantNodes), "family %s", name)

		seen := map[string]bool{}
		for _, m := range family.Metric {
			seen[labelMap(m)["node"]] = true
		}
		require.Equal(t, wantNodes, seen, "family %s", name)
	}
}

func TestBuild_NodeValues(t *testing.T) {
	families := buildHealthyCluster(t, true)

	family := findFamily(families, "pacemaker_node_online")
	require.NotNil(t, family)
	online := map[string]float64{}
	for _, m := range family.Metric {
		online[labelMap(m)["node"]] = m.GetGauge().GetValue()
	}
	require.Equal(t, map[string]float64{"node-1": 1, "node-2": 1, "node-3": 0}, online)

	family = findFamily(families, "pacemaker_node_id")
	require.NotNil(t, family)
	ids := map[string]float64{}
	for _, m := range family.Metric {
		ids[labelMap(m)["node"]] = m.GetGauge().GetValue()
	}
	require.Equal(t, map[string]float64{"node-1": 1, "node-2": 2, "node-3": 3}, ids)
}

func TestBuild_NodeAttributes(t *testing.T) {
	families := buildHealthyCluster(t, true)

	value := findFamily(families, "pacemaker_node_attribute_value")
	require.NotNil(t, value)
	require.Len(t, value.Metric, 2)

	expected := findFamily(families, "pacemaker_node_attribute_expected")
	require.NotNil(t, expected)
	require.Len(t, expected.Metric, 2)

	for _, m := range expected.Metric {
		labels := labelMap(m)
		require.Equal(t, "master-drbd0", labels["name"])
		require.Equal(t, 10000.0, m.GetGauge().GetValue(), "node %s", labels["node"])
	}
}

// Instance labels for a colon-suffixed clone are exactly the id suffixes.
func TestBuild_UniqueCloneInstanceLabels(t *testing.T) {
	families := buildHealthyCluster(t, true)

	family := findFamily(families, "pacemaker_resource_active")
	require.NotNil(t, family)

	instances := map[string]bool{}
	for _, m := range family.Metric {
		labels := labelMap(m)
		if labels["id"] == "web" {
			require.False(t, instances[labels["instance"]], "instance label collision: %s", labels["instance"])
			instances[labels["instance"]] = true
		}
	}
	require.Equal(t, map[string]bool{"0": true, "1": true}, instances)
}

// Anonymous clone members without embedded instance numbers fall back to
// their ordinal position in document order.
func TestBuild_AnonymousCloneOrdinalLabels(t *testing.T) {
	families := buildHealthyCluster(t, true)

	family := findFamily(families, "pacemaker_resource_active")
	require.NotNil(t, family)

	instances := map[string]bool{}
	for _, m := range family.Metric {
		labels := labelMap(m)
		if labels["id"] == "dlm" {
			instances[labels["instance"]] = true
		}
	}
	require.Equal(t, map[string]bool{"0": true, "1": true}, instances)
}

func TestBuild_BareResourceEmptyInstanceLabel(t *testing.T) {
	families := buildHealthyCluster(t, true)

	family := findFamily(families, "pacemaker_resource_nodes_running_on")
	require.NotNil(t, family)

	for _, m := range family.Metric {
		labels := labelMap(m)
		if labels["id"] == "virtual-ip" {
			require.Equal(t, "", labels["instance"])
			require.Equal(t, 1.0, m.GetGauge().GetValue())
			return
		}
	}
	t.Fatal("virtual-ip sample not found")
}

func TestCoerceBool(t *testing.T) {
	for input, want := range map[string]float64{
		"true":   1,
		"1":      1,
		"false":  0,
		"0":      0,
		"":       0,
		"TRUE":   0,
		"banana": 0,
	} {
		require.Equal(t, want, coerceBool(input), "input %q", input)
	}
}

// A unique resource gets an explicit zero row for every node it is not
// running on, regardless of the suppression policy.
func TestBuild_PlacementMatrix_UniqueResource(t *testing.T) {
	families := buildHealthyCluster(t, true)

	require.Equal(t, map[string]float64{"node-1": 1, "node-2": 0, "node-3": 0},
		placementRows(t, families, "virtual-ip", ""))
	require.Equal(t, map[string]float64{"node-1": 1, "node-2": 0, "node-3": 0},
		placementRows(t, families, "web", "0"))
	require.Equal(t, map[string]float64{"node-1": 0, "node-2": 0, "node-3": 0},
		placementRows(t, families, "web", "1"))
}

// Anonymous clone members only report the nodes they run on under the
// default policy; disabling suppression materializes the full matrix.
func TestBuild_PlacementMatrix_AnonymousSuppression(t *testing.T) {
	suppressed := buildHealthyCluster(t, true)
	require.Equal(t, map[string]float64{"node-1": 1},
		placementRows(t, suppressed, "dlm", "0"))
	require.Equal(t, map[string]float64{"node-2": 1},
		placementRows(t, suppressed, "dlm", "1"))

	full := buildHealthyCluster(t, false)
	require.Equal(t, map[string]float64{"node-1": 1, "node-2": 0, "node-3": 0},
		placementRows(t, full, "dlm", "0"))
	require.Equal(t, map[string]float64{"node-1": 0, "node-2": 1, "node-3": 0},
		placementRows(t, full, "dlm", "1"))
}

const missingLastUpdateXML = `<crm_mon>
  <summary>
    <current_dc present="true" with_quorum="true"/>
    <last_change time="Mon Jan 10 20:35:28 2022"/>
    <nodes_configured number="1"/>
    <resources_configured number="0"/>
    <cluster_options stonith-enabled="false"/>
  </summary>
  <nodes/>
  <resources/>
  <node_attributes/>
</crm_mon>`

func TestBuild_MissingLastUpdateFailsWholePass(t *testing.T) {
	result := parseTestXML(t, []byte(missingLastUpdateXML))

	families, err := NewBuilder(true).Build(result)
	require.Error(t, err)
	require.Nil(t, families, "no partial metric set on failure")

	var coercionErr *CoercionError
	require.True(t, errors.As(err, &coercionErr), "expected CoercionError, got %T", err)
	require.Contains(t, err.Error(), "summary/last_update")
}

const badTimestampXML = `<crm_mon>
  <summary>
    <current_dc present="true" with_quorum="true"/>
    <last_update time="2022-01-10T20:35:28Z"/>
    <last_change time="Mon Jan 10 20:35:28 2022"/>
    <nodes_configured number="1"/>
    <resources_configured number="0"/>
    <cluster_options stonith-enabled="false"/>
  </summary>
</crm_mon>`

func TestBuild_UnrecognizedTimestampFailsWholePass(t *testing.T) {
	result := parseTestXML(t, []byte(badTimestampXML))

	families, err := NewBuilder(true).Build(result)
	require.Error(t, err)
	require.Nil(t, families)
	require.Contains(t, err.Error(), "2022-01-10T20:35:28Z")
}

const missingNodeCountXML = `<crm_mon>
  <summary>
    <current_dc present="true" with_quorum="true"/>
    <last_update time="Mon Jan 10 20:35:28 2022"/>
    <last_change time="Mon Jan 10 20:35:28 2022"/>
    <resources_configured number="0"/>
    <cluster_options stonith-enabled="false"/>
  </summary>
</crm_mon>`

// A required numeric attribute that is absent is a hard error, not zero.
func TestBuild_MissingCountFailsWholePass(t *testing.T) {
	result := parseTestXML(t, []byte(missingNodeCountXML))

	_, err := NewBuilder(true).Build(result)
	require.Error(t, err)

	var coercionErr *CoercionError
	require.True(t, errors.As(err, &coercionErr))
	require.Contains(t, err.Error(), "summary/nodes_configured")
	require.Contains(t, err.Error(), "missing")
}

const missingAttributeExpectedXML = `<crm_mon>
  <summary>
    <current_dc present="true" with_quorum="true"/>
    <last_update time="Mon Jan 10 20:35:28 2022"/>
    <last_change time="Mon Jan 10 20:35:28 2022"/>
    <nodes_configured number="1"/>
    <resources_configured number="0"/>
    <cluster_options stonith-enabled="false"/>
  </summary>
  <node_attributes>
    <node name="node-1">
      <attribute name="master-drbd0" value="10000"/>
    </node>
  </node_attributes>
</crm_mon>`

func TestBuild_MissingAttributeExpectedFailsWholePass(t *testing.T) {
	result := parseTestXML(t, []byte(missingAttributeExpectedXML))

	_, err := NewBuilder(true).Build(result)
	require.Error(t, err)
	require.Contains(t, err.Error(), "node_attributes/node-1/master-drbd0@expected")
}

func encodeFamilies(t *testing.T, families []*dto.MetricFamily) []byte {
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		require.NoError(t, encoder.Encode(family))
	}
	return buf.Bytes()
}

// Byte-identical input documents must render byte-identical output.
func TestBuild_Deterministic(t *testing.T) {
	first := encodeFamilies(t, buildHealthyCluster(t, true))
	second := encodeFamilies(t, buildHealthyCluster(t, true))
	require.Equal(t, first, second)
}
