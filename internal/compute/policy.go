package compute

import "fmt"

// Policy governs how queued deliveries are applied to a compute.
type Policy int

const (
	// LatestOnly applies a delivery only if no newer execution of the same
	// compute has started since the delivering one. Superseded work is not
	// stopped; its result is ignored.
	LatestOnly Policy = iota
	// EveryDelivery applies every delivery in arrival order. The compute only
	// leaves Pending when the latest execution delivers.
	EveryDelivery
)

func (p Policy) String() string {
	switch p {
	case LatestOnly:
		return "latest_only"
	case EveryDelivery:
		return "every_delivery"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy reads the manifest spelling of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "latest_only":
		return LatestOnly, nil
	case "every_delivery":
		return EveryDelivery, nil
	default:
		return 0, fmt.Errorf("unknown delivery policy %q: expected latest_only or every_delivery", s)
	}
}

// Verdict is the decision taken for one delivery.
type Verdict struct {
	// Apply is true when the delivered value replaces the cached output.
	Apply bool
	// Finish is true when the compute moves to Finished.
	Finish bool
}

// Decide applies policy to a delivery from execution gen when the most
// recently started execution is latest. A gen of zero is a direct delivery not
// tied to any execution (a command's output) and is always applied.
func Decide(policy Policy, gen, latest uint64) Verdict {
	if gen == 0 {
		return Verdict{Apply: true, Finish: true}
	}
	current := gen >= latest
	switch policy {
	case EveryDelivery:
		return Verdict{Apply: true, Finish: current}
	default:
		return Verdict{Apply: current, Finish: current}
	}
}
