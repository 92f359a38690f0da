// Package router decides whether an AI operation runs on-device, on the
// remote quota-metered backend, or not at all.
package router

import (
	"fmt"
	"strings"

	"github.com/hrygo/synapse/store"
)

// Mode is the execution path chosen for an operation.
type Mode int

const (
	ModeLocal Mode = iota
	ModeRemote
	ModeDisabled
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	case ModeDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Complexity is the routing weight of a task kind.
type Complexity int

const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
)

// TaskKind enumerates every AI-capable operation. The set is closed; adding a
// kind requires adding it to each switch below.
type TaskKind int

const (
	TaskSemanticSearch TaskKind = iota
	TaskSimilarNodes
	TaskMultiModalSearch
	TaskInsightGeneration
	TaskMultiNodeSynthesis
	TaskNodeAnalysis
)

// AllTaskKinds lists every task kind.
var AllTaskKinds = []TaskKind{
	TaskSemanticSearch,
	TaskSimilarNodes,
	TaskMultiModalSearch,
	TaskInsightGeneration,
	TaskMultiNodeSynthesis,
	TaskNodeAnalysis,
}

func (k TaskKind) String() string {
	switch k {
	case TaskSemanticSearch:
		return "semantic_search"
	case TaskSimilarNodes:
		return "similar_nodes"
	case TaskMultiModalSearch:
		return "multimodal_search"
	case TaskInsightGeneration:
		return "insight_generation"
	case TaskMultiNodeSynthesis:
		return "multi_node_synthesis"
	case TaskNodeAnalysis:
		return "node_analysis"
	default:
		return fmt.Sprintf("task(%d)", int(k))
	}
}

// HasLocalPath reports whether the kind can run on-device.
func (k TaskKind) HasLocalPath() bool {
	switch k {
	case TaskSemanticSearch, TaskSimilarNodes, TaskMultiModalSearch, TaskNodeAnalysis:
		return true
	default:
		return false
	}
}

// Complexity returns the routing weight of the kind.
func (k TaskKind) Complexity() Complexity {
	switch k {
	case TaskSemanticSearch, TaskSimilarNodes:
		return ComplexityLow
	case TaskMultiModalSearch, TaskNodeAnalysis:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// Tier is a subscription tier.
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
	TierTeam Tier = "team"
)

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierPlus, TierPro, TierTeam:
		return t, nil
	default:
		return "", fmt.Errorf("unknown subscription tier %q", s)
	}
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

func (t Tier) rank() int {
	switch t {
	case TierPlus:
		return 1
	case TierPro:
		return 2
	case TierTeam:
		return 3
	default:
		return 0
	}
}

// Task describes one operation to route.
type Task struct {
	Kind      TaskKind
	ItemCount int
}

// Environment is the state a routing decision depends on.
type Environment struct {
	Network           store.NetworkState
	Tier              Tier
	RemainingQuota    int
	HasUserCredential bool
}

// Decision is the outcome of routing one call.
type Decision struct {
	Mode   Mode
	Reason string
}

// Decision reasons.
const (
	ReasonUserCredential   = "user supplied credential"
	ReasonProxyDisabled    = "platform remote calls disabled"
	ReasonOffline          = "network not online"
	ReasonQuotaExhausted   = "remote quota exhausted"
	ReasonTierRemote       = "tier routes task to remote"
	ReasonTierLocal        = "tier routes task to local"
	ReasonNoLocalPath      = "task has no local path"
	ReasonNoUserCredential = "no user credential"
)

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
