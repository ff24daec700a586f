package soma

import "somacore/internal/errors"

// slotConstraints lists, per container kind, the reserved member names and
// the single kind each accepts. Names not listed are unconstrained.
var slotConstraints = map[Kind]map[string]Kind{
	KindExperiment: {
		"obs": KindDataFrame,
		"ms":  KindCollection,
	},
	KindMeasurement: {
		"var": KindDataFrame,
		"X":   KindCollection,
	},
}

// ReservedSlots returns the reserved member names of container kind k.
func ReservedSlots(k Kind) map[string]Kind {
	out := make(map[string]Kind, len(slotConstraints[k]))
	for slot, want := range slotConstraints[k] {
		out[slot] = want
	}
	return out
}

// CheckSlot decides whether an entity of kind candidate may be stored under
// slot in a container of kind container.
func CheckSlot(container Kind, slot string, candidate Kind) error {
	want, reserved := slotConstraints[container][slot]
	if !reserved || candidate == want {
		return nil
	}
	return errors.Wrapf(ErrTypeConstraint, "%s slot %q accepts %s, got %s", container, slot, want, candidate)
}
