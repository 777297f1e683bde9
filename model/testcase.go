package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TestCase identifies one traffic topology. The numeric values are part of
// the configuration format and must never be renumbered: users select cases
// by number, name or ranges of either.
type TestCase int

const (
	PodToPodSameNode              TestCase = 1
	PodToPodDiffNode              TestCase = 2
	PodToHostSameNode             TestCase = 3
	PodToHostDiffNode             TestCase = 4
	PodToClusterIPToPodSameNode   TestCase = 5
	PodToClusterIPToPodDiffNode   TestCase = 6
	PodToClusterIPToHostSameNode  TestCase = 7
	PodToClusterIPToHostDiffNode  TestCase = 8
	PodToNodePortToPodSameNode    TestCase = 9
	PodToNodePortToPodDiffNode    TestCase = 10
	HostToPodSameNode             TestCase = 15
	HostToPodDiffNode             TestCase = 16
	HostToClusterIPToPodSameNode  TestCase = 17
	HostToClusterIPToPodDiffNode  TestCase = 18
	HostToClusterIPToHostSameNode TestCase = 19
	HostToClusterIPToHostDiffNode TestCase = 20
	HostToNodePortToPodSameNode   TestCase = 21
	HostToNodePortToPodDiffNode   TestCase = 22
	HostToNodePortToHostSameNode  TestCase = 23
	HostToNodePortToHostDiffNode  TestCase = 24
	PodToExternal                 TestCase = 25
	PodToPod2ndInterfaceSameNode  TestCase = 27
	PodToPod2ndInterfaceDiffNode  TestCase = 28
	PodToPodMultiNetworkPolicy    TestCase = 29
)

// ConnectionMode is the intermediate hop (if any) between client and server.
type ConnectionMode string

const (
	ConnectionModeDirect       ConnectionMode = "direct"
	ConnectionModeClusterIP    ConnectionMode = "cluster_ip"
	ConnectionModeNodePortIP   ConnectionMode = "nodeport_ip"
	ConnectionModeExternalIP   ConnectionMode = "external_ip"
	ConnectionModeMultiNetwork ConnectionMode = "multi_network"
	ConnectionModeMultiHome    ConnectionMode = "multi_home"
)

// TestCaseInfo describes the placement a test case requires. The scheduler
// derives pod manifests from these four fields alone.
type TestCaseInfo struct {
	Mode             ConnectionMode
	SameNode         bool
	ServerHostBacked bool
	ClientHostBacked bool
}

type testCaseEntry struct {
	name string
	info TestCaseInfo
}

var testCaseTable = map[TestCase]testCaseEntry{
	PodToPodSameNode:              {"POD_TO_POD_SAME_NODE", TestCaseInfo{ConnectionModeDirect, true, false, false}},
	PodToPodDiffNode:              {"POD_TO_POD_DIFF_NODE", TestCaseInfo{ConnectionModeDirect, false, false, false}},
	PodToHostSameNode:             {"POD_TO_HOST_SAME_NODE", TestCaseInfo{ConnectionModeDirect, true, true, false}},
	PodToHostDiffNode:             {"POD_TO_HOST_DIFF_NODE", TestCaseInfo{ConnectionModeDirect, false, true, false}},
	PodToClusterIPToPodSameNode:   {"POD_TO_CLUSTER_IP_TO_POD_SAME_NODE", TestCaseInfo{ConnectionModeClusterIP, true, false, false}},
	PodToClusterIPToPodDiffNode:   {"POD_TO_CLUSTER_IP_TO_POD_DIFF_NODE", TestCaseInfo{ConnectionModeClusterIP, false, false, false}},
	PodToClusterIPToHostSameNode:  {"POD_TO_CLUSTER_IP_TO_HOST_SAME_NODE", TestCaseInfo{ConnectionModeClusterIP, true, true, false}},
	PodToClusterIPToHostDiffNode:  {"POD_TO_CLUSTER_IP_TO_HOST_DIFF_NODE", TestCaseInfo{ConnectionModeClusterIP, false, true, false}},
	PodToNodePortToPodSameNode:    {"POD_TO_NODE_PORT_TO_POD_SAME_NODE", TestCaseInfo{ConnectionModeNodePortIP, true, false, false}},
	PodToNodePortToPodDiffNode:    {"POD_TO_NODE_PORT_TO_POD_DIFF_NODE", TestCaseInfo{ConnectionModeNodePortIP, false, false, false}},
	HostToPodSameNode:             {"HOST_TO_POD_SAME_NODE", TestCaseInfo{ConnectionModeDirect, true, false, true}},
	HostToPodDiffNode:             {"HOST_TO_POD_DIFF_NODE", TestCaseInfo{ConnectionModeDirect, false, false, true}},
	HostToClusterIPToPodSameNode:  {"HOST_TO_CLUSTER_IP_TO_POD_SAME_NODE", TestCaseInfo{ConnectionModeClusterIP, true, false, true}},
	HostToClusterIPToPodDiffNode:  {"HOST_TO_CLUSTER_IP_TO_POD_DIFF_NODE", TestCaseInfo{ConnectionModeClusterIP, false, false, true}},
	HostToClusterIPToHostSameNode: {"HOST_TO_CLUSTER_IP_TO_HOST_SAME_NODE", TestCaseInfo{ConnectionModeClusterIP, true, true, true}},
	HostToClusterIPToHostDiffNode: {"HOST_TO_CLUSTER_IP_TO_HOST_DIFF_NODE", TestCaseInfo{ConnectionModeClusterIP, false, true, true}},
	HostToNodePortToPodSameNode:   {"HOST_TO_NODE_PORT_TO_POD_SAME_NODE", TestCaseInfo{ConnectionModeNodePortIP, true, false, true}},
	HostToNodePortToPodDiffNode:   {"HOST_TO_NODE_PORT_TO_POD_DIFF_NODE", TestCaseInfo{ConnectionModeNodePortIP, false, false, true}},
	HostToNodePortToHostSameNode:  {"HOST_TO_NODE_PORT_TO_HOST_SAME_NODE", TestCaseInfo{ConnectionModeNodePortIP, true, true, true}},
	HostToNodePortToHostDiffNode:  {"HOST_TO_NODE_PORT_TO_HOST_DIFF_NODE", TestCaseInfo{ConnectionModeNodePortIP, false, true, true}},
	PodToExternal:                 {"POD_TO_EXTERNAL", TestCaseInfo{ConnectionModeExternalIP, false, false, false}},
	PodToPod2ndInterfaceSameNode:  {"POD_TO_POD_2ND_INTERFACE_SAME_NODE", TestCaseInfo{ConnectionModeMultiHome, true, false, false}},
	PodToPod2ndInterfaceDiffNode:  {"POD_TO_POD_2ND_INTERFACE_DIFF_NODE", TestCaseInfo{ConnectionModeMultiHome, false, false, false}},
	PodToPodMultiNetworkPolicy:    {"POD_TO_POD_MULTI_NETWORK_POLICY", TestCaseInfo{ConnectionModeMultiNetwork, false, false, false}},
}

var (
	testCaseByName map[string]TestCase
	allTestCases   []TestCase
)

func init() {
	testCaseByName = make(map[string]TestCase, len(testCaseTable))
	for tc, entry := range testCaseTable {
		testCaseByName[entry.name] = tc
		allTestCases = append(allTestCases, tc)
	}
	sort.Slice(allTestCases, func(i, j int) bool { return allTestCases[i] < allTestCases[j] })
}

func (tc TestCase) Valid() bool {
	_, ok := testCaseTable[tc]
	return ok
}

func (tc TestCase) String() string {
	entry, ok := testCaseTable[tc]
	if !ok {
		return fmt.Sprintf("TestCase(%d)", int(tc))
	}
	return entry.name
}

func (tc TestCase) Info() TestCaseInfo {
	return testCaseTable[tc].info
}

// RequiresSecondaryNetwork reports whether the case runs over a secondary
// network attachment rather than the cluster default network.
func (tc TestCase) RequiresSecondaryNetwork() bool {
	switch tc.Info().Mode {
	case ConnectionModeMultiHome, ConnectionModeMultiNetwork:
		return true
	}
	return false
}

// AllTestCases returns every known case in ascending numeric order.
func AllTestCases() []TestCase {
	out := make([]TestCase, len(allTestCases))
	copy(out, allTestCases)
	return out
}

// lookupTestCase resolves a single selector token that is not a range: a
// numeric id or a case name.
func lookupTestCase(token string) (TestCase, error) {
	if n, err := strconv.Atoi(token); err == nil {
		tc := TestCase(n)
		if !tc.Valid() {
			return 0, newInvalidSelector(token, "unknown test case id")
		}
		return tc, nil
	}
	if tc, ok := testCaseByName[token]; ok {
		return tc, nil
	}
	return 0, newInvalidSelector(token, "unknown test case name")
}

// ParseTestCases expands a selector into test cases. The selector is either
// a single string or a YAML list whose items are strings or integers. Each
// token is an id, a name, an inclusive range "A-B" (ids and names can be
// mixed as bounds) or "*" for all cases. Duplicates are dropped, keeping
// first-occurrence order. A nil or empty selector means "*".
func ParseTestCases(selector interface{}) ([]TestCase, error) {
	tokens, err := selectorTokens(selector)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		tokens = []string{"*"}
	}

	var expanded []TestCase
	for _, token := range tokens {
		cases, err := expandToken(token)
		if err != nil {
			return nil, err
		}
		expanded = append(expanded, cases...)
	}

	seen := make(map[TestCase]bool, len(expanded))
	result := make([]TestCase, 0, len(expanded))
	for _, tc := range expanded {
		if seen[tc] {
			continue
		}
		seen[tc] = true
		result = append(result, tc)
	}
	return result, nil
}

func selectorTokens(selector interface{}) ([]string, error) {
	var raw []string
	switch v := selector.(type) {
	case nil:
	case string:
		raw = strings.Split(v, ",")
	case []interface{}:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				raw = append(raw, strings.Split(it, ",")...)
			case int:
				raw = append(raw, strconv.Itoa(it))
			default:
				return nil, newInvalidSelector(fmt.Sprintf("%v", item), "selector items must be strings or integers")
			}
		}
	default:
		return nil, newInvalidSelector(fmt.Sprintf("%v", selector), "selector must be a string or a list")
	}

	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

func expandToken(token string) ([]TestCase, error) {
	if token == "*" {
		return AllTestCases(), nil
	}

	// Only treat "-" as a range separator when neither side parses as a
	// plain token on its own. Case names contain no dashes, so splitting on
	// the first dash is unambiguous.
	if tc, err := lookupTestCase(token); err == nil {
		return []TestCase{tc}, nil
	}

	sep := strings.Index(token, "-")
	if sep <= 0 || sep == len(token)-1 {
		return nil, newInvalidSelector(token, "not a test case id, name or range")
	}
	lo, err := lookupTestCase(strings.TrimSpace(token[:sep]))
	if err != nil {
		return nil, newInvalidSelector(token, "range bound is not a known test case")
	}
	hi, err := lookupTestCase(strings.TrimSpace(token[sep+1:]))
	if err != nil {
		return nil, newInvalidSelector(token, "range bound is not a known test case")
	}
	if lo > hi {
		return nil, newInvalidSelector(token, "range lower bound is greater than upper bound")
	}

	var cases []TestCase
	for n := lo; n <= hi; n++ {
		if n.Valid() {
			cases = append(cases, n)
		}
	}
	return cases, nil
}

// FormatTestCases is the canonical re-serialization of a resolved selector.
// Parsing the result yields the same sequence back.
func FormatTestCases(cases []TestCase) string {
	names := make([]string, len(cases))
	for i, tc := range cases {
		names[i] = tc.String()
	}
	return strings.Join(names, ",")
}
