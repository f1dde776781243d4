package crmmon

// XML structures for parsing crm_mon XML output. These map directly to
// pacemaker's XML schema. Boolean attributes are strings ("true"/"false")
// in pacemaker XML; coercion to sample values happens in the collector.
//
// The root element name varies across pacemaker versions (<crm_mon> in 1.x,
// <pacemaker-result> in 2.x), so it is deliberately not pinned here.

// Result is the parsed cluster status document.
type Result struct {
	Summary        Summary        `xml:"summary"`
	Nodes          Nodes          `xml:"nodes"`
	Resources      Resources      `xml:"resources"`
	NodeAttributes NodeAttributes `xml:"node_attributes"`
}

type Summary struct {
	LastUpdate          Timestamp      `xml:"last_update"`
	LastChange          Timestamp      `xml:"last_change"`
	CurrentDC           CurrentDC      `xml:"current_dc"`
	NodesConfigured     Count          `xml:"nodes_configured"`
	ResourcesConfigured Count          `xml:"resources_configured"`
	ClusterOptions      ClusterOptions `xml:"cluster_options"`
}

// Timestamp carries a wall-clock attribute like "Mon Jan 10 20:35:28 2022".
type Timestamp struct {
	Time string `xml:"time,attr"`
}

type CurrentDC struct {
	Present    string `xml:"present,attr"`
	WithQuorum string `xml:"with_quorum,attr"`
}

type Count struct {
	Number string `xml:"number,attr"`
}

type ClusterOptions struct {
	StonithEnabled string `xml:"stonith-enabled,attr"`
}

type Nodes struct {
	Node []Node `xml:"node"`
}

// Node represents a pacemaker cluster node with its operational state.
type Node struct {
	Name             string `xml:"name,attr"`
	ID               string `xml:"id,attr"`
	Online           string `xml:"online,attr"`
	Standby          string `xml:"standby,attr"`
	Maintenance      string `xml:"maintenance,attr"`
	Pending          string `xml:"pending,attr"`
	Unclean          string `xml:"unclean,attr"`
	Shutdown         string `xml:"shutdown,attr"`
	ExpectedUp       string `xml:"expected_up,attr"`
	IsDC             string `xml:"is_dc,attr"`
	ResourcesRunning string `xml:"resources_running,attr"`
}

type NodeAttributes struct {
	Node []NodeAttributeSet `xml:"node"`
}

type NodeAttributeSet struct {
	Name      string          `xml:"name,attr"`
	Attribute []NodeAttribute `xml:"attribute"`
}

type NodeAttribute struct {
	Name     string `xml:"name,attr"`
	Value    string `xml:"value,attr"`
	Expected string `xml:"expected,attr"`
}

type Resources struct {
	Resource []Resource `xml:"resource"`
	Clone    []Clone    `xml:"clone"`
}

// Clone is a replicated resource definition. Its unique attribute marks
// whether members are individually addressable or anonymous copies.
type Clone struct {
	ID       string     `xml:"id,attr"`
	Unique   string     `xml:"unique,attr"`
	Resource []Resource `xml:"resource"`
}

// Resource represents a pacemaker-managed resource. A resource can report
// more than one <node> child when it runs on several nodes at once.
type Resource struct {
	ID             string    `xml:"id,attr"`
	ResourceAgent  string    `xml:"resource_agent,attr"`
	Role           string    `xml:"role,attr"`
	Active         string    `xml:"active,attr"`
	Orphaned       string    `xml:"orphaned,attr"`
	Managed        string    `xml:"managed,attr"`
	Failed         string    `xml:"failed,attr"`
	FailureIgnored string    `xml:"failure_ignored,attr"`
	NodesRunningOn string    `xml:"nodes_running_on,attr"`
	Node           []NodeRef `xml:"node"`
}

type NodeRef struct {
	Name string `xml:"name,attr"`
}
