package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	nadv1 "github.com/k8snetworkplumbingwg/network-attachment-definition-client/pkg/apis/k8s.cni.cncf.io/v1"
	log "github.com/sirupsen/logrus"
	apiv1 "k8s.io/api/core/v1"
	v1networking "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/tft-perf/traffic-flow-tests/config"
	"github.com/tft-perf/traffic-flow-tests/model"
	smodel "github.com/tft-perf/traffic-flow-tests/scheduler/model"
)

const (
	trafficContainer = "traffic"

	resourceNameAnnotation = "k8s.v1.cni.cncf.io/resourceName"

	// SR-IOV endpoints swap the pod's default network for the VF-backed
	// attachment named on the endpoint.
	defaultNetworkAnnotation = "v1.multus-cni.io/default-network"

	podReadyInterval = 2 * time.Second
)

type K8sManager struct {
	clients        *config.Clients
	infraClients   *config.Clients
	testImage      string
	externalServer string
}

// NewK8sManager builds the scheduler for one tenant cluster. infra may be
// nil; it is only set for DPU clusters where the NIC side lives behind a
// separate API server.
func NewK8sManager(clients, infra *config.Clients, settings *config.Settings) *K8sManager {
	return &K8sManager{
		clients:        clients,
		infraClients:   infra,
		testImage:      settings.TestImage,
		externalServer: settings.ExternalServer,
	}
}

func makeNodeAffinity(key, value string) *apiv1.NodeAffinity {
	nodeAffinity := &apiv1.NodeAffinity{
		RequiredDuringSchedulingIgnoredDuringExecution: &apiv1.NodeSelector{
			NodeSelectorTerms: []apiv1.NodeSelectorTerm{
				{
					MatchExpressions: []apiv1.NodeSelectorRequirement{
						{
							Key:      key,
							Operator: apiv1.NodeSelectorOpIn,
							Values: []string{
								value,
							},
						},
					},
				},
			},
		},
	}
	return nodeAffinity
}

func nodePinAffinity(node string) *apiv1.Affinity {
	return &apiv1.Affinity{
		NodeAffinity: makeNodeAffinity("kubernetes.io/hostname", node),
	}
}

func (m *K8sManager) generateFlowPod(name, role, node string, suite *model.TestSuite,
	item *model.PlanItem, ep *model.Endpoint, hostNetwork bool) *apiv1.Pod {
	privileged := suite.PrivilegedPod || hostNetwork
	pod := &apiv1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Labels:      makeFlowLabels(role, item),
			Annotations: map[string]string{},
		},
		Spec: apiv1.PodSpec{
			Affinity:                      nodePinAffinity(node),
			HostNetwork:                   hostNetwork,
			RestartPolicy:                 apiv1.RestartPolicyNever,
			TerminationGracePeriodSeconds: new(int64),
			Containers: []apiv1.Container{
				{
					Name:    trafficContainer,
					Image:   m.testImage,
					Command: []string{"sleep", "infinity"},
					SecurityContext: &apiv1.SecurityContext{
						Privileged: &privileged,
					},
				},
			},
		},
	}
	// Secondary networks ride on a NAD annotation; the device plugin
	// resource keeps the pod on a node with a free VF.
	if !item.Network.Primary && !hostNetwork {
		pod.ObjectMeta.Annotations[nadv1.NetworkAttachmentAnnot] = item.Network.NAD
	}
	if ep.Sriov && !hostNetwork {
		pod.ObjectMeta.Annotations[defaultNetworkAnnotation] = ep.DefaultNetwork
	}
	attached := !item.Network.Primary || ep.Sriov
	if item.ResourceName != "" && attached && !hostNetwork {
		quantity := resource.MustParse("1")
		pod.Spec.Containers[0].Resources = apiv1.ResourceRequirements{
			Requests: apiv1.ResourceList{
				apiv1.ResourceName(item.ResourceName): quantity,
			},
			Limits: apiv1.ResourceList{
				apiv1.ResourceName(item.ResourceName): quantity,
			},
		}
	}
	return pod
}

func (m *K8sManager) makeFlowService(name string, labels map[string]string, port int32,
	serviceType apiv1.ServiceType) *apiv1.Service {
	return &apiv1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
		Spec: apiv1.ServiceSpec{
			Type:     serviceType,
			Selector: labels,
			Ports: []apiv1.ServicePort{
				{
					Port:       port,
					TargetPort: intstr.FromInt(int(port)),
				},
			},
		},
	}
}

// makeFlowPolicy admits traffic between the flow pods once a deny-style
// NetworkPolicy selects them. Covering the pods with any policy at all is
// the point of the MULTI_NETWORK_POLICY case.
func (m *K8sManager) makeFlowPolicy(name string, item *model.PlanItem) *v1networking.NetworkPolicy {
	return &v1networking.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: makeBaseLabels(item),
		},
		Spec: v1networking.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchLabels: makeBaseLabels(item),
			},
			PolicyTypes: []v1networking.PolicyType{
				v1networking.PolicyTypeIngress,
			},
			Ingress: []v1networking.NetworkPolicyIngressRule{
				{
					From: []v1networking.NetworkPolicyPeer{
						{
							PodSelector: &metav1.LabelSelector{
								MatchLabels: map[string]string{"tft": "true"},
							},
						},
					},
				},
			},
		},
	}
}

func (m *K8sManager) deployPod(ctx context.Context, namespace string, pod *apiv1.Pod) error {
	_, err := m.clients.Kubernetes.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{})
	if errors.IsAlreadyExists(err) {
		// Persistent servers and retried runs land here.
		return nil
	}
	return err
}

func (m *K8sManager) waitPodRunning(ctx context.Context, namespace, name string) error {
	for {
		pod, err := m.clients.Kubernetes.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err == nil {
			switch pod.Status.Phase {
			case apiv1.PodRunning:
				return nil
			case apiv1.PodFailed, apiv1.PodSucceeded:
				return makePodNotRunningError(name, pod.Status.Phase)
			}
		} else {
			log.Warn(err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for pod %s: %w", name, ctx.Err())
		case <-time.After(podReadyInterval):
		}
	}
}

func (m *K8sManager) getPod(ctx context.Context, namespace, name string) (*apiv1.Pod, error) {
	return m.clients.Kubernetes.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
}

// secondaryPodIP reads the multus network-status annotation and returns
// the first address that does not belong to the default network.
func secondaryPodIP(pod *apiv1.Pod) (string, error) {
	raw := pod.Annotations[nadv1.NetworkStatusAnnot]
	if raw == "" {
		return "", &NoResourcesFoundErr{
			Message: fmt.Sprintf("pod %s carries no network-status annotation", pod.Name),
		}
	}
	var statuses []nadv1.NetworkStatus
	if err := json.Unmarshal([]byte(raw), &statuses); err != nil {
		return "", fmt.Errorf("cannot parse network-status of pod %s: %w", pod.Name, err)
	}
	for _, status := range statuses {
		if status.Default || len(status.IPs) == 0 {
			continue
		}
		return status.IPs[0], nil
	}
	return "", &NoResourcesFoundErr{
		Message: fmt.Sprintf("pod %s has no secondary network address", pod.Name),
	}
}

// SetupFlow deploys everything one plan item needs and returns the flow
// with the address the client has to target. Same-node cases pin the
// client onto the server's node regardless of the configured client node.
func (m *K8sManager) SetupFlow(ctx context.Context, suite *model.TestSuite,
	item *model.PlanItem, port int32) (*smodel.Flow, error) {
	info := item.Case.Info()
	conn := item.Connection
	serverNode := conn.Server.Name
	clientNode := conn.Client.Name
	if info.SameNode {
		clientNode = serverNode
	}
	flow := &smodel.Flow{
		Namespace:  suite.Namespace,
		ServerNode: serverNode,
		ClientNode: clientNode,
		Port:       port,
		Persistent: conn.Server.Persistent,
	}

	if info.Mode != model.ConnectionModeExternalIP {
		flow.ServerPod = makePodName("server", item)
		if conn.Server.Persistent {
			flow.ServerPod = makePersistentServerName(serverNode)
		}
		server := m.generateFlowPod(flow.ServerPod, "server", serverNode, suite, item, conn.Server, info.ServerHostBacked)
		if err := m.deployPod(ctx, suite.Namespace, server); err != nil {
			return nil, err
		}
	}
	flow.ClientPod = makePodName("client", item)
	client := m.generateFlowPod(flow.ClientPod, "client", clientNode, suite, item, conn.Client, info.ClientHostBacked)
	if err := m.deployPod(ctx, suite.Namespace, client); err != nil {
		return nil, err
	}

	if err := m.waitFlowReady(ctx, flow); err != nil {
		return nil, err
	}
	if err := m.resolveServerAddr(ctx, suite, item, flow); err != nil {
		return nil, err
	}
	log.Infof("flow %s ready, client %s targets %s:%d",
		item.Case, flow.ClientPod, flow.ServerAddr, flow.Port)
	return flow, nil
}

func (m *K8sManager) waitFlowReady(ctx context.Context, flow *smodel.Flow) error {
	pods := []string{flow.ClientPod}
	if flow.ServerPod != "" {
		pods = append(pods, flow.ServerPod)
	}
	result := make(chan smodel.PodReadiness, len(pods))
	for _, pod := range pods {
		go func(pod string) {
			result <- smodel.PodReadiness{Pod: pod, Err: m.waitPodRunning(ctx, flow.Namespace, pod)}
		}(pod)
	}
	for range pods {
		if r := <-result; r.Err != nil {
			return r.Err
		}
	}
	return nil
}

func (m *K8sManager) resolveServerAddr(ctx context.Context, suite *model.TestSuite,
	item *model.PlanItem, flow *smodel.Flow) error {
	info := item.Case.Info()
	if info.Mode == model.ConnectionModeExternalIP {
		flow.ServerAddr = m.externalServer
		return nil
	}
	server, err := m.getPod(ctx, suite.Namespace, flow.ServerPod)
	if err != nil {
		return err
	}

	switch info.Mode {
	case model.ConnectionModeClusterIP:
		svc, err := m.createService(ctx, suite.Namespace, item, flow.Port, apiv1.ServiceTypeClusterIP)
		if err != nil {
			return err
		}
		flow.ServiceName = svc.Name
		flow.ServerAddr = svc.Spec.ClusterIP
	case model.ConnectionModeNodePortIP:
		svc, err := m.createService(ctx, suite.Namespace, item, flow.Port, apiv1.ServiceTypeNodePort)
		if err != nil {
			return err
		}
		flow.ServiceName = svc.Name
		flow.ServerAddr = server.Status.HostIP
		flow.Port = svc.Spec.Ports[0].NodePort
	case model.ConnectionModeMultiHome:
		addr, err := secondaryPodIP(server)
		if err != nil {
			return err
		}
		flow.ServerAddr = addr
	case model.ConnectionModeMultiNetwork:
		policy := m.makeFlowPolicy(makePolicyName(item), item)
		if _, err := m.clients.Kubernetes.NetworkingV1().NetworkPolicies(suite.Namespace).
			Create(ctx, policy, metav1.CreateOptions{}); err != nil && !errors.IsAlreadyExists(err) {
			return err
		}
		flow.PolicyName = policy.Name
		addr, err := secondaryPodIP(server)
		if err != nil {
			return err
		}
		flow.ServerAddr = addr
	default:
		flow.ServerAddr = server.Status.PodIP
	}
	return nil
}

func (m *K8sManager) createService(ctx context.Context, namespace string, item *model.PlanItem,
	port int32, serviceType apiv1.ServiceType) (*apiv1.Service, error) {
	service := m.makeFlowService(makeServiceName(item), makeFlowLabels("server", item), port, serviceType)
	created, err := m.clients.Kubernetes.CoreV1().Services(namespace).Create(ctx, service, metav1.CreateOptions{})
	if errors.IsAlreadyExists(err) {
		return m.clients.Kubernetes.CoreV1().Services(namespace).Get(ctx, service.Name, metav1.GetOptions{})
	}
	return created, err
}

// TeardownFlow removes what SetupFlow created. Persistent server pods are
// left running on their node.
func (m *K8sManager) TeardownFlow(ctx context.Context, flow *smodel.Flow) error {
	deleteOpts := metav1.DeleteOptions{GracePeriodSeconds: new(int64)}
	pods := m.clients.Kubernetes.CoreV1().Pods(flow.Namespace)
	if err := pods.Delete(ctx, flow.ClientPod, deleteOpts); err != nil && !errors.IsNotFound(err) {
		return err
	}
	if flow.ServerPod != "" && !flow.Persistent {
		if err := pods.Delete(ctx, flow.ServerPod, deleteOpts); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}
	if flow.ServiceName != "" {
		if err := m.clients.Kubernetes.CoreV1().Services(flow.Namespace).
			Delete(ctx, flow.ServiceName, deleteOpts); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}
	if flow.PolicyName != "" {
		if err := m.clients.Kubernetes.NetworkingV1().NetworkPolicies(flow.Namespace).
			Delete(ctx, flow.PolicyName, deleteOpts); err != nil && !errors.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func (m *K8sManager) exec(ctx context.Context, clients *config.Clients,
	namespace, pod string, command []string) (string, string, error) {
	req := clients.Kubernetes.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&apiv1.PodExecOptions{
			Container: trafficContainer,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)
	executor, err := remotecommand.NewSPDYExecutor(clients.RestConfig, "POST", req.URL())
	if err != nil {
		return "", "", err
	}
	var stdout, stderr bytes.Buffer
	err = executor.Stream(remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	return stdout.String(), stderr.String(), err
}

// Exec runs a command inside a pod on the tenant cluster and returns its
// stdout and stderr.
func (m *K8sManager) Exec(ctx context.Context, namespace, pod string, command []string) (string, string, error) {
	return m.exec(ctx, m.clients, namespace, pod, command)
}

// HostExec runs a command on the infra cluster when one is configured,
// otherwise on the tenant cluster. BMC and NIC-side readings live there
// on DPU setups.
func (m *K8sManager) HostExec(ctx context.Context, namespace, pod string, command []string) (string, string, error) {
	clients := m.clients
	if m.infraClients != nil {
		clients = m.infraClients
	}
	return m.exec(ctx, clients, namespace, pod, command)
}

// PodCPU returns the pod's current CPU usage in millicores, summed over
// its containers.
func (m *K8sManager) PodCPU(ctx context.Context, namespace, pod string) (int64, error) {
	podMetrics, err := m.clients.Metrics.MetricsV1beta1().PodMetricses(namespace).
		Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return 0, err
	}
	var milli int64
	for _, container := range podMetrics.Containers {
		milli += container.Usage.Cpu().MilliValue()
	}
	return milli, nil
}

// ResourceName implements model.NADLookup against the cluster: the
// device-plugin resource is published as an annotation on the
// NetworkAttachmentDefinition. A missing NAD or annotation is not an
// error, the attachment then runs without a resource request.
func (m *K8sManager) ResourceName(namespace, nad string) (string, error) {
	definition, err := m.clients.NetAttach.K8sCniCncfIoV1().NetworkAttachmentDefinitions(namespace).
		Get(context.TODO(), nad, metav1.GetOptions{})
	if errors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return definition.Annotations[resourceNameAnnotation], nil
}

// PurgeFlow force-removes everything labelled for one plan item,
// persistent servers included. This is the cleanup path, not the normal
// teardown.
func (m *K8sManager) PurgeFlow(ctx context.Context, namespace string, item *model.PlanItem) error {
	selector := metav1.ListOptions{LabelSelector: makeFlowSelector(item)}
	deleteOpts := metav1.DeleteOptions{GracePeriodSeconds: new(int64)}
	if err := m.clients.Kubernetes.CoreV1().Pods(namespace).
		DeleteCollection(ctx, deleteOpts, selector); err != nil {
		return err
	}
	// Deleting services by selector is not supported server-side, so the
	// service goes by name.
	if err := m.clients.Kubernetes.CoreV1().Services(namespace).
		Delete(ctx, makeServiceName(item), deleteOpts); err != nil && !errors.IsNotFound(err) {
		return err
	}
	return m.clients.Kubernetes.NetworkingV1().NetworkPolicies(namespace).
		DeleteCollection(ctx, deleteOpts, selector)
}
