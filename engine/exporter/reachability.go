package exporter

import (
	"fmt"
	"sort"
)

// refGraph maps every registered object to the objects it declares references to.
type refGraph map[referencedObject][]referencedObject

// collectReferences builds the reference graph. Objects run against a disabled
// writer so any attempt to serialize during collection is caught.
//
// Parameters:
//   - ctx: a context whose writer is disabled
//
// Returns:
//   - refGraph: the declared references of every registered object
//   - error: a lookup failure, or ErrWriterDisabled if an object wrote
func collectReferences(ctx *writeContext) (refGraph, error) {
	if !ctx.w.disabled() {
		return nil, fmt.Errorf("reference collection needs a disabled writer")
	}
	graph := make(refGraph)
	for _, obj := range ctx.reg.all() {
		graph[obj] = obj.iterReferences(ctx)
		if err := ctx.w.Err(); err != nil {
			return nil, err
		}
	}
	if ctx.err != nil {
		return nil, ctx.err
	}
	return graph, nil
}

// transitiveClosure returns every object reachable from roots, roots included.
func transitiveClosure(graph refGraph, roots []referencedObject) map[referencedObject]struct{} {
	marked := make(map[referencedObject]struct{}, len(graph))
	queue := append([]referencedObject(nil), roots...)
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		if _, ok := marked[obj]; ok {
			continue
		}
		marked[obj] = struct{}{}
		queue = append(queue, graph[obj]...)
	}
	return marked
}

// assignIndices numbers the reachable objects of each collection from zero in
// registration order. The result is the position each object is written at.
func assignIndices(reg *registry, reachable map[referencedObject]struct{}) map[referencedObject]int {
	index := make(map[referencedObject]int, len(reachable))
	for k := objectKind(0); k < numKinds; k++ {
		i := 0
		for _, obj := range reg.collections[k] {
			if _, ok := reachable[obj]; ok {
				index[obj] = i
				i++
			}
		}
	}
	return index
}

// checkEmitted compares what an object wrote with what it declared.
//
// Returns:
//   - error: ErrInconsistentReferences if the two sets differ
func checkEmitted(obj referencedObject, declared []referencedObject, emitted map[referencedObject]struct{}) error {
	want := make(map[referencedObject]struct{}, len(declared))
	for _, d := range declared {
		want[d] = struct{}{}
	}
	same := len(want) == len(emitted)
	if same {
		for o := range emitted {
			if _, ok := want[o]; !ok {
				same = false
				break
			}
		}
	}
	if same {
		return nil
	}
	return ErrInconsistentReferences.New(obj.Name(), sortedNames(emitted), sortedNames(want))
}

func sortedNames(set map[referencedObject]struct{}) []string {
	names := make([]string, 0, len(set))
	for o := range set {
		names = append(names, o.Name())
	}
	sort.Strings(names)
	return names
}
