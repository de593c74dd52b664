package fields

// pendingField is a field whose description is still being collected.
type pendingField struct {
	name  string
	parts []string
}

func (p *pendingField) description() string {
	return NormalizeDescription(p.parts...)
}

// accumulator turns verdicts into records for one section. Under the single
// policy the queue never holds more than one field.
type accumulator struct {
	section    string
	policy     Accumulation
	normalizer Normalizer

	queue   []*pendingField
	records []FieldRecord
	index   map[string]int

	// placeholder is the position of the last emitted record while its
	// description is empty, or -1.
	placeholder    int
	placeholderRaw string

	duplicates  int
	retractions int
}

func newAccumulator(section string, policy Accumulation, normalizer Normalizer) *accumulator {
	return &accumulator{
		section:     section,
		policy:      policy,
		normalizer:  normalizer,
		index:       make(map[string]int),
		placeholder: -1,
	}
}

// State reports the state the next line is classified against.
func (a *accumulator) State() State {
	st := State{}

	if len(a.queue) > 0 {
		head := a.queue[0]
		desc := head.description()
		st.Active = true
		st.HasDescription = desc != ""
		st.DescriptionComplete = endsSentence(desc)

		if tail := a.queue[len(a.queue)-1]; len(tail.parts) == 0 {
			st.MergeBase = tail.name
		}
		return st
	}

	if a.placeholder >= 0 {
		st.MergeBase = a.placeholderRaw
	}
	return st
}

// Apply updates the accumulator with one verdict.
func (a *accumulator) Apply(v Verdict) {
	switch v.Kind {
	case VerdictNewField:
		if a.policy == AccumulateQueue && v.Description == "" && !v.Terminated && a.waiting() {
			// Consecutive bare names wait in line for their descriptions
			a.queue = append(a.queue, &pendingField{name: v.Name})
			return
		}
		a.flush()
		a.start(v.Name, v.Description)
		if v.Terminated {
			a.finalizeHead()
		}

	case VerdictNewFieldNoDescription:
		a.flush()
		a.emit(v.Name, "")

	case VerdictCompoundNameMerge:
		a.merge(v)

	case VerdictContinuation:
		if len(a.queue) == 0 {
			return
		}
		if v.Description != "" {
			head := a.queue[0]
			head.parts = append(head.parts, v.Description)
		}
		if v.Terminated {
			a.finalizeHead()
		}

	case VerdictTerminator:
		a.finalizeHead()
	}
}

// waiting reports whether every pending field still lacks a description.
func (a *accumulator) waiting() bool {
	if len(a.queue) == 0 {
		return false
	}
	for _, p := range a.queue {
		if len(p.parts) > 0 {
			return false
		}
	}
	return true
}

func (a *accumulator) start(name, desc string) {
	p := &pendingField{name: name}
	if desc != "" {
		p.parts = append(p.parts, desc)
	}
	a.queue = append(a.queue, p)
}

func (a *accumulator) merge(v Verdict) {
	if n := len(a.queue); n > 0 {
		tail := a.queue[n-1]
		tail.name = v.Name
		if v.Description != "" {
			tail.parts = append(tail.parts, v.Description)
		}
		if v.Terminated {
			a.flush()
		}
		return
	}

	// The name was already emitted with an empty description: take it back
	if a.placeholder >= 0 {
		a.retract()
	}
	a.start(v.Name, v.Description)
	if v.Terminated {
		a.finalizeHead()
	}
}

func (a *accumulator) retract() {
	record := a.records[a.placeholder]
	delete(a.index, a.normalizer.Key(record.FieldName))
	a.records = append(a.records[:a.placeholder], a.records[a.placeholder+1:]...)
	a.placeholder = -1
	a.placeholderRaw = ""
	a.retractions++
}

func (a *accumulator) finalizeHead() {
	if len(a.queue) == 0 {
		return
	}
	head := a.queue[0]
	a.queue = a.queue[1:]
	a.emit(head.name, head.description())
}

// flush finalizes every pending field in order.
func (a *accumulator) flush() {
	for len(a.queue) > 0 {
		a.finalizeHead()
	}
}

// emit normalizes and records a field. The first occurrence of a name wins,
// except that an empty description is replaced by a later non-empty one.
func (a *accumulator) emit(rawName, desc string) {
	name := a.normalizer.FieldName(rawName)
	if name == "" {
		return
	}
	key := a.normalizer.Key(name)

	if i, ok := a.index[key]; ok {
		if a.records[i].FieldDescription == "" && desc != "" {
			a.records[i].FieldDescription = desc
		} else {
			a.duplicates++
		}
		a.placeholder = -1
		a.placeholderRaw = ""
		return
	}

	a.records = append(a.records, FieldRecord{
		Section:          a.section,
		FieldName:        name,
		FieldDescription: desc,
	})
	a.index[key] = len(a.records) - 1

	if desc == "" {
		a.placeholder = len(a.records) - 1
		a.placeholderRaw = rawName
	} else {
		a.placeholder = -1
		a.placeholderRaw = ""
	}
}

// Records returns the records emitted so far.
func (a *accumulator) Records() []FieldRecord {
	return a.records
}
