package scheduler

import (
	"fmt"
	"strconv"

	"github.com/tft-perf/traffic-flow-tests/model"
)

func makePodName(role string, item *model.PlanItem) string {
	return fmt.Sprintf("tft-%s-%d-%d", role, int(item.Case), item.ConnIndex)
}

// Persistent servers keep one pod per node so later test cases and later
// runs find it again instead of churning pods.
func makePersistentServerName(node string) string {
	return fmt.Sprintf("tft-server-%s", node)
}

func makeServiceName(item *model.PlanItem) string {
	return fmt.Sprintf("tft-svc-%d-%d", int(item.Case), item.ConnIndex)
}

func makePolicyName(item *model.PlanItem) string {
	return fmt.Sprintf("tft-netpol-%d-%d", int(item.Case), item.ConnIndex)
}

func makeBaseLabels(item *model.PlanItem) map[string]string {
	return map[string]string{
		"tft":  "true",
		"case": strconv.Itoa(int(item.Case)),
		"conn": strconv.Itoa(item.ConnIndex),
	}
}

func makeFlowLabels(role string, item *model.PlanItem) map[string]string {
	labels := makeBaseLabels(item)
	labels["kind"] = role
	return labels
}

func makeFlowSelector(item *model.PlanItem) string {
	return fmt.Sprintf("tft=true,case=%d,conn=%d", int(item.Case), item.ConnIndex)
}
