package seqload

// ClassLookup remaps raw label-schema class ids onto the contiguous training
// ids 0..n-1 fixed by the class selection order. Built once per dataset
// configuration and never mutated afterwards.
type ClassLookup struct {
	names []string
	fwd   map[int]int
}

// BuildClassLookup builds the remapping table from a label schema
// (class name -> raw id) and an ordered class selection. The selection order
// is externally observable: selection[i] always trains as class i.
func BuildClassLookup(schema map[string]int, selection []string) (*ClassLookup, error) {
	if len(selection) == 0 {
		return nil, configErrorf("class selection must not be empty")
	}
	lookup := &ClassLookup{
		names: make([]string, len(selection)),
		fwd:   make(map[int]int, len(selection)),
	}
	for trainID, name := range selection {
		rawID, ok := schema[name]
		if !ok {
			return nil, configErrorf("class %q not present in label schema", name)
		}
		if _, dup := lookup.fwd[rawID]; dup {
			return nil, configErrorf("class %q selected twice (raw id %d)", name, rawID)
		}
		lookup.names[trainID] = name
		lookup.fwd[rawID] = trainID
	}
	return lookup, nil
}

// Remap translates a raw class id to its training id. The second return is
// false for classes outside the selection; their boxes are dropped downstream.
func (c *ClassLookup) Remap(rawID int) (int, bool) {
	trainID, ok := c.fwd[rawID]
	return trainID, ok
}

// NumClasses returns the number of selected classes.
func (c *ClassLookup) NumClasses() int {
	return len(c.names)
}

// Name returns the class name for a training id.
func (c *ClassLookup) Name(trainID int) string {
	return c.names[trainID]
}
