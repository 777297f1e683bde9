package model

import "strings"

// NADLookup resolves a NetworkAttachmentDefinition to the device-plugin
// resource name it carries. A missing mapping is reported as ("", nil);
// errors are reserved for failures talking to the cluster.
type NADLookup interface {
	ResourceName(namespace, nad string) (string, error)
}

// NetworkRef names the network a plan item runs over. Primary
// distinguishes "use the cluster default network" from a not-yet-resolved
// zero value.
type NetworkRef struct {
	Primary bool   `json:"primary"`
	NAD     string `json:"nad,omitempty"`
}

func (n NetworkRef) String() string {
	if n.Primary {
		return "primary"
	}
	return n.NAD
}

// PlanItem is one (test case, connection) pairing with its network fully
// resolved.
type PlanItem struct {
	Case         TestCase    `json:"test_case"`
	Connection   *Connection `json:"-"`
	ConnIndex    int         `json:"connection_index"`
	Network      NetworkRef  `json:"network"`
	ResourceName string      `json:"resource_name,omitempty"`
}

// Plan is the resolved execution order for one test suite. It is derived
// once, never mutated, and consumed read-only by the controller.
type Plan struct {
	Suite *TestSuite `json:"-"`
	Items []PlanItem `json:"items"`
}

// ResolvePlan expands a suite into its ordered plan items: test cases in
// selector expansion order, connections in declaration order within each
// case. Secondary-network cases default their NAD to the namespace-qualified
// "tft-secondary" and derive the SR-IOV resource name through the lookup
// when unset.
func ResolvePlan(suite *TestSuite, lookup NADLookup) (*Plan, error) {
	plan := &Plan{Suite: suite}
	for _, tc := range suite.TestCases {
		for i, conn := range suite.Connections {
			item, err := resolveItem(tc, conn, lookup)
			if err != nil {
				return nil, err
			}
			item.ConnIndex = i
			plan.Items = append(plan.Items, item)
		}
	}
	return plan, nil
}

func resolveItem(tc TestCase, conn *Connection, lookup NADLookup) (PlanItem, error) {
	item := PlanItem{
		Case:       tc,
		Connection: conn,
	}

	if !tc.RequiresSecondaryNetwork() && conn.SecondaryNetworkNAD == "" {
		item.Network = NetworkRef{Primary: true}
		// SR-IOV endpoints on the primary network still carry the
		// connection's explicit device-plugin resource.
		item.ResourceName = conn.ResourceName
		return item, nil
	}

	item.Network = NetworkRef{NAD: conn.EffectiveNAD()}
	item.ResourceName = conn.ResourceName
	if item.ResourceName == "" && lookup != nil {
		namespace, name, _ := strings.Cut(item.Network.NAD, "/")
		resource, err := lookup.ResourceName(namespace, name)
		if err != nil {
			return PlanItem{}, err
		}
		// No mapping is fine; the scheduler then requests no extra
		// resource for the attachment.
		item.ResourceName = resource
	}
	return item, nil
}
