package model

// Flow is one deployed (test case, connection) pairing: the pods on the
// cluster plus the address the client has to hit. ServerPod is empty when
// the target is external to the cluster.
type Flow struct {
	Namespace   string `json:"namespace"`
	ServerPod   string `json:"server_pod,omitempty"`
	ClientPod   string `json:"client_pod"`
	ServerNode  string `json:"server_node"`
	ClientNode  string `json:"client_node"`
	ServerAddr  string `json:"server_addr"`
	Port        int32  `json:"port"`
	ServiceName string `json:"service_name,omitempty"`
	PolicyName  string `json:"policy_name,omitempty"`
	Persistent  bool   `json:"persistent"`
}

// PodReadiness is the result of one readiness wait, reported over a
// channel so both flow pods can be waited on at the same time.
type PodReadiness struct {
	Pod string
	Err error
}
