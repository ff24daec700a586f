package soma

import "somacore/internal/engine"

// Kind is the closed set of entity kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindDataFrame
	KindDenseNDArray
	KindSparseNDArray
	KindCollection
	KindMeasurement
	KindExperiment
)

// Metadata keys every entity carries.
const (
	MetaObjectType      = "soma_object_type"
	MetaEncodingVersion = "soma_encoding_version"
	EncodingVersion     = "1"
)

var kindNames = map[Kind]string{
	KindDataFrame:     "SOMADataFrame",
	KindDenseNDArray:  "SOMADenseNDArray",
	KindSparseNDArray: "SOMASparseNDArray",
	KindCollection:    "SOMACollection",
	KindMeasurement:   "SOMAMeasurement",
	KindExperiment:    "SOMAExperiment",
}

// String returns the soma_object_type tag of k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindFromTag parses a soma_object_type value.
func KindFromTag(tag string) Kind {
	for k, s := range kindNames {
		if s == tag {
			return k
		}
	}
	return KindUnknown
}

// IsContainer reports whether k is backed by an engine group.
func (k Kind) IsContainer() bool {
	return k == KindCollection || k == KindMeasurement || k == KindExperiment
}

func (k Kind) backendType() engine.ObjectType {
	switch {
	case k == KindUnknown:
		return engine.Invalid
	case k.IsContainer():
		return engine.Group
	}
	return engine.Array
}

func tagMetadata(k Kind) map[string]string {
	return map[string]string{MetaObjectType: k.String(), MetaEncodingVersion: EncodingVersion}
}
