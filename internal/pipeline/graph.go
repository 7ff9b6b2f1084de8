package pipeline

import "sort"

// Graph is the validated, immutable set of jobs and their dependency edges.
// Construction proves the edge set is acyclic; after that the graph is safe
// for concurrent reads. Declaration order is preserved for reporting.
type Graph struct {
	jobs  []Job
	index map[string]int
	needs [][]int // by declaration index
}

// NewGraph validates the job list and builds a Graph.
// It fails with DuplicateNameError, UnknownDependencyError or CycleError.
func NewGraph(jobs []Job) (*Graph, error) {
	index := make(map[string]int, len(jobs))
	for i, j := range jobs {
		if _, ok := index[j.Name]; ok {
			return nil, &DuplicateNameError{Name: j.Name}
		}
		index[j.Name] = i
	}

	needs := make([][]int, len(jobs))
	for i, j := range jobs {
		for _, dep := range j.Needs {
			di, ok := index[dep]
			if !ok {
				return nil, &UnknownDependencyError{Job: j.Name, Dependency: dep}
			}
			needs[i] = append(needs[i], di)
		}
	}

	g := &Graph{jobs: append([]Job(nil), jobs...), index: index, needs: needs}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// checkAcyclic runs Kahn's algorithm; any node left without a topological
// order after all zero-in-degree nodes are consumed is part of a cycle.
func (g *Graph) checkAcyclic() error {
	n := len(g.jobs)
	indeg := make([]int, n)
	dependents := make([][]int, n)
	for i, ds := range g.needs {
		indeg[i] = len(ds)
		for _, d := range ds {
			dependents[d] = append(dependents[d], i)
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	ordered := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		ordered++
		for _, v := range dependents[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if ordered == n {
		return nil
	}
	return &CycleError{Path: g.findCycle(indeg)}
}

// findCycle walks prerequisite edges among the unordered nodes until a node
// repeats, producing one witness path for the error message.
func (g *Graph) findCycle(indeg []int) []string {
	start := -1
	for i, d := range indeg {
		if d > 0 {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}

	seen := make(map[int]int) // node -> position in walk
	var walk []int
	cur := start
	for {
		if pos, ok := seen[cur]; ok {
			cycle := append([]int(nil), walk[pos:]...)
			cycle = append(cycle, cur)
			names := make([]string, 0, len(cycle))
			for _, idx := range cycle {
				names = append(names, g.jobs[idx].Name)
			}
			return names
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)

		// An unordered node always has at least one unordered prerequisite,
		// so the walk stays inside the cycle region and must repeat a node.
		next := -1
		for _, d := range g.needs[cur] {
			if indeg[d] > 0 {
				next = d
				break
			}
		}
		if next == -1 {
			return nil
		}
		cur = next
	}
}

// Jobs returns the jobs in declaration order.
func (g *Graph) Jobs() []Job {
	return append([]Job(nil), g.jobs...)
}

// Job returns the declared job by name.
func (g *Graph) Job(name string) (Job, bool) {
	i, ok := g.index[name]
	if !ok {
		return Job{}, false
	}
	return g.jobs[i], true
}

// Names returns all job names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.jobs))
	for i, j := range g.jobs {
		names[i] = j.Name
	}
	return names
}

// ReadyJobs returns, in declaration order, the names of pending jobs whose
// prerequisites are all terminal. Pure: it inspects statuses and mutates
// nothing.
func (g *Graph) ReadyJobs(statuses map[string]Status) []string {
	var ready []string
	for i, j := range g.jobs {
		if statuses[j.Name] != StatusPending {
			continue
		}
		ok := true
		for _, d := range g.needs[i] {
			if !statuses[g.jobs[d].Name].Terminal() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, j.Name)
		}
	}
	return ready
}

// IsComplete reports whether every job has reached a terminal status.
func (g *Graph) IsComplete(statuses map[string]Status) bool {
	for _, j := range g.jobs {
		if !statuses[j.Name].Terminal() {
			return false
		}
	}
	return true
}

// BlockedBy returns the first prerequisite of name (in declaration order of
// the prerequisite list) that terminated as failure or was skipped, if any.
// A job that is not AlwaysRun must not run when BlockedBy reports one.
func (g *Graph) BlockedBy(name string, statuses map[string]Status) (string, bool) {
	i, ok := g.index[name]
	if !ok {
		return "", false
	}
	for _, d := range g.needs[i] {
		switch statuses[g.jobs[d].Name] {
		case StatusFailure, StatusSkipped:
			return g.jobs[d].Name, true
		}
	}
	return "", false
}

// pendingNames returns non-terminal job names, sorted, for error reporting.
func (g *Graph) pendingNames(statuses map[string]Status) []string {
	var out []string
	for _, j := range g.jobs {
		if !statuses[j.Name].Terminal() {
			out = append(out, j.Name)
		}
	}
	sort.Strings(out)
	return out
}
