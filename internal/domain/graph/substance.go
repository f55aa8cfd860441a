package graph

import "time"

// Substance is an active pharmaceutical ingredient with chemical data.
// It is the central vertex of the knowledge graph: documents mention it,
// enrichment fills it, and most edges radiate from it.
//
// A Substance is a STUB until enrichment completes, at which point IsEnriched
// becomes true.  The transition is monotonic: once enriched, no later write
// may flip it back.
type Substance struct {
	VertexKey       string
	Name            string
	UNII            string
	RxCUI           string
	Formula         string
	MolecularWeight float64
	SMILES          string
	InChI           string
	InChIKey        string
	CASNumber       string
	PubChemID       string
	SubstanceClass  string
	Stereochemistry string
	IsEnriched      bool
	EnrichedAt      *time.Time
}

// NewSubstance constructs a stub Substance keyed by the normalized name.
func NewSubstance(name string) *Substance {
	return &Substance{
		VertexKey: NormalizeKey(name),
		Name:      name,
	}
}

func (s *Substance) Collection() string { return CollectionSubstances }
func (s *Substance) Key() string        { return s.VertexKey }

// Merge folds other into s.  Incoming non-zero fields overwrite; incoming
// zero fields never erase existing data.  IsEnriched only ever moves from
// false to true.
func (s *Substance) Merge(other Vertex) {
	o, ok := other.(*Substance)
	if !ok {
		return
	}
	mergeString(&s.Name, o.Name)
	mergeString(&s.UNII, o.UNII)
	mergeString(&s.RxCUI, o.RxCUI)
	mergeString(&s.Formula, o.Formula)
	mergeFloat(&s.MolecularWeight, o.MolecularWeight)
	mergeString(&s.SMILES, o.SMILES)
	mergeString(&s.InChI, o.InChI)
	mergeString(&s.InChIKey, o.InChIKey)
	mergeString(&s.CASNumber, o.CASNumber)
	mergeString(&s.PubChemID, o.PubChemID)
	mergeString(&s.SubstanceClass, o.SubstanceClass)
	mergeString(&s.Stereochemistry, o.Stereochemistry)
	if o.IsEnriched {
		s.IsEnriched = true
	}
	if o.EnrichedAt != nil {
		s.EnrichedAt = o.EnrichedAt
	}
}

// MarkEnriched flips the substance to the enriched state at the given time.
// Calling it again is a no-op for the flag; the timestamp is not rewound.
func (s *Substance) MarkEnriched(at time.Time) {
	s.IsEnriched = true
	if s.EnrichedAt == nil {
		s.EnrichedAt = &at
	}
}
