package graph

// Drug is a marketed drug product family as registered with the FDA.
// Brand and generic names accumulate as different sources report them.
type Drug struct {
	VertexKey         string
	ApplicationNumber string
	BrandNames        []string
	GenericNames      []string
	NDCCodes          []string
	RxCUIs            []string
	SPLIDs            []string
	SponsorName       string
	DrugType          string
	Source            string
	IsAlias           bool
}

// NewDrug constructs a Drug keyed by the normalized name.
func NewDrug(name string) *Drug {
	return &Drug{
		VertexKey: NormalizeKey(name),
		Source:    "api",
	}
}

func (d *Drug) Collection() string { return CollectionDrugs }
func (d *Drug) Key() string        { return d.VertexKey }

// IsGeneric reports whether the drug was approved under an ANDA, which the
// FDA reserves for generics.
func (d *Drug) IsGeneric() bool {
	return len(d.ApplicationNumber) >= 4 && d.ApplicationNumber[:4] == "ANDA"
}

// Merge folds other into d; name lists are unioned, scalars follow the
// non-zero-overwrites rule, and the alias flag is sticky once set.
func (d *Drug) Merge(other Vertex) {
	o, ok := other.(*Drug)
	if !ok {
		return
	}
	mergeString(&d.ApplicationNumber, o.ApplicationNumber)
	d.BrandNames = unionStrings(d.BrandNames, o.BrandNames)
	d.GenericNames = unionStrings(d.GenericNames, o.GenericNames)
	d.NDCCodes = unionStrings(d.NDCCodes, o.NDCCodes)
	d.RxCUIs = unionStrings(d.RxCUIs, o.RxCUIs)
	d.SPLIDs = unionStrings(d.SPLIDs, o.SPLIDs)
	mergeString(&d.SponsorName, o.SponsorName)
	mergeString(&d.DrugType, o.DrugType)
	mergeString(&d.Source, o.Source)
	if o.IsAlias {
		d.IsAlias = true
	}
}
