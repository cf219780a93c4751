package models

// Registry maps a contract type name to its deployment records, oldest first.
// One Registry exists per network.
type Registry map[string][]DeploymentRecord

// NewRegistry returns an empty registry
func NewRegistry() Registry {
	return make(Registry)
}

// Records returns the records for a contract type (nil when none)
func (r Registry) Records(contractType string) []DeploymentRecord {
	return r[contractType]
}

// WithRecord returns a copy of the registry with record appended to
// contractType's sequence. The receiver is left untouched.
func (r Registry) WithRecord(contractType string, record DeploymentRecord) Registry {
	next := make(Registry, len(r)+1)
	for name, records := range r {
		next[name] = records
	}

	existing := r[contractType]
	records := make([]DeploymentRecord, len(existing), len(existing)+1)
	copy(records, existing)
	next[contractType] = append(records, record)

	return next
}

// Len returns the total number of records across all contract types
func (r Registry) Len() int {
	total := 0
	for _, records := range r {
		total += len(records)
	}
	return total
}
