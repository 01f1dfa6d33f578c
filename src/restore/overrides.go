package restore

// ChildKind classifies a child recovery point by its declared resource type.
// The override shape is fixed per kind; an unrecognized type maps to
// ChildOther and an empty override.
type ChildKind int

const (
	ChildOther ChildKind = iota
	ChildVolume
	ChildFilesystem
)

func childKindFor(resourceType string) ChildKind {
	switch resourceType {
	case "EBS":
		return ChildVolume
	case "EFS":
		return ChildFilesystem
	default:
		return ChildOther
	}
}

// Override is the kind-specific restore parameter set for one child
// recovery point. The populated fields depend on Kind.
type Override struct {
	Kind ChildKind
	// AvailabilityZone places a restored volume (ChildVolume only).
	AvailabilityZone string
	// NewFileSystem and CreationToken apply to ChildFilesystem only: the
	// restore creates a fresh filesystem instead of writing into the
	// original one.
	NewFileSystem bool
	CreationToken string
}

// Metadata renders the override as restore-service parameters. An empty
// override renders as an empty map, never nil, so serialization keeps the
// one-entry-per-child invariant visible.
func (o Override) Metadata() map[string]string {
	switch o.Kind {
	case ChildVolume:
		return map[string]string{"availabilityZone": o.AvailabilityZone}
	case ChildFilesystem:
		return map[string]string{
			"newFileSystem": "true",
			"CreationToken": o.CreationToken,
		}
	default:
		return map[string]string{}
	}
}
