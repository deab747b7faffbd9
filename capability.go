package dockwright

// Action names exposed to the model.
const (
	ActionSearch = "search_in_file"
	ActionTest   = "test_dockerfile"
)

// CapabilitySet is the set of actions a run exposes to the model. It is
// computed once per run and has no setters.
type CapabilitySet struct {
	search bool
	test   bool
}

// ComputeCapabilities exposes search only for large files and test only when
// the sandbox answered.
func ComputeCapabilities(isLarge, sandboxAvailable bool) CapabilitySet {
	return CapabilitySet{search: isLarge, test: sandboxAvailable}
}

// Search reports whether the search action is exposed.
func (c CapabilitySet) Search() bool { return c.search }

// Test reports whether the test action is exposed.
func (c CapabilitySet) Test() bool { return c.test }

// Has reports whether the named action is exposed.
func (c CapabilitySet) Has(action string) bool {
	switch action {
	case ActionSearch:
		return c.search
	case ActionTest:
		return c.test
	}
	return false
}

// List returns the exposed action names in a fixed order.
func (c CapabilitySet) List() []string {
	list := []string{}
	if c.search {
		list = append(list, ActionSearch)
	}
	if c.test {
		list = append(list, ActionTest)
	}
	return list
}
