package factor

type pair struct {
	source string
	region string
}

// Snapshot is an immutable, indexed view of one Table.
type Snapshot struct {
	table      Table
	intensity  map[pair]float64
	baselines  map[string]float64
	wastePoint map[string]float64
}

// Compile validates t and indexes it by normalized key. Later duplicates win.
func Compile(t Table) (*Snapshot, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	s := &Snapshot{
		table:      t,
		intensity:  make(map[pair]float64, len(t.Intensities)),
		baselines:  make(map[string]float64, len(t.InstanceBaselines)),
		wastePoint: make(map[string]float64, len(t.WastePoints)),
	}
	for _, item := range t.Intensities {
		s.intensity[pair{source: Key(item.Source), region: Key(item.Region)}] = item.Value
	}
	for _, item := range t.InstanceBaselines {
		s.baselines[Key(item.InstanceType)] = item.Value
	}
	for _, item := range t.WastePoints {
		s.wastePoint[Key(item.WasteType)] = item.Points
	}
	return s, nil
}

// Table returns the table the snapshot was compiled from.
func (s *Snapshot) Table() Table {
	return s.table
}

// Source hands out the snapshot currently in force.
type Source interface {
	Snapshot() *Snapshot
}

type staticSource struct {
	snapshot *Snapshot
}

func (s staticSource) Snapshot() *Snapshot { return s.snapshot }

// Registry answers factor lookups against the snapshot its Source currently holds.
// A reload swaps the snapshot; lookups in flight keep the one they started with.
type Registry struct {
	source Source
}

func NewRegistry(source Source) *Registry {
	return &Registry{source: source}
}

// NewStaticRegistry builds a registry over a fixed table.
func NewStaticRegistry(t Table) (*Registry, error) {
	snapshot, err := Compile(t)
	if err != nil {
		return nil, err
	}
	return NewRegistry(staticSource{snapshot: snapshot}), nil
}

// Lookup returns the intensity for (source, region), or the table default.
func (r *Registry) Lookup(source, region string) float64 {
	s := r.source.Snapshot()
	if v, ok := s.intensity[pair{source: Key(source), region: Key(region)}]; ok {
		return v
	}
	return s.table.DefaultIntensity
}

// InstanceBaseline returns the full-utilization emission of an instance type.
func (r *Registry) InstanceBaseline(instanceType string) float64 {
	s := r.source.Snapshot()
	if v, ok := s.baselines[Key(instanceType)]; ok {
		return v
	}
	return s.table.DefaultInstanceBaseline
}

// BasePoints returns the reward multiplier of a waste type.
func (r *Registry) BasePoints(wasteType string) float64 {
	s := r.source.Snapshot()
	if v, ok := s.wastePoint[Key(wasteType)]; ok {
		return v
	}
	return s.table.DefaultWastePoints
}

// Table returns a copy of the table in force.
func (r *Registry) Table() Table {
	return r.source.Snapshot().Table()
}
