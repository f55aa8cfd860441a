package graph

// Manufacturer is a drug manufacturer or labeler.
type Manufacturer struct {
	VertexKey string
	Name      string
}

func NewManufacturer(name string) *Manufacturer {
	return &Manufacturer{VertexKey: NormalizeKey(name), Name: name}
}

func (m *Manufacturer) Collection() string { return CollectionManufacturers }
func (m *Manufacturer) Key() string        { return m.VertexKey }
func (m *Manufacturer) Merge(other Vertex) {
	if o, ok := other.(*Manufacturer); ok {
		mergeString(&m.Name, o.Name)
	}
}

// Route is an administration route (oral, intravenous, topical...).
type Route struct {
	VertexKey string
	Name      string
}

func NewRoute(name string) *Route {
	return &Route{VertexKey: NormalizeKey(name), Name: name}
}

func (r *Route) Collection() string { return CollectionRoutes }
func (r *Route) Key() string        { return r.VertexKey }
func (r *Route) Merge(other Vertex) {
	if o, ok := other.(*Route); ok {
		mergeString(&r.Name, o.Name)
	}
}

// DosageForm is a drug dosage form (tablet, capsule, injection...).
type DosageForm struct {
	VertexKey string
	Name      string
}

func NewDosageForm(name string) *DosageForm {
	return &DosageForm{VertexKey: NormalizeKey(name), Name: name}
}

func (f *DosageForm) Collection() string { return CollectionDosageForms }
func (f *DosageForm) Key() string        { return f.VertexKey }
func (f *DosageForm) Merge(other Vertex) {
	if o, ok := other.(*DosageForm); ok {
		mergeString(&f.Name, o.Name)
	}
}

// PharmClass is a pharmacologic class (EPC, MOA, PE, CS).
type PharmClass struct {
	VertexKey string
	Name      string
	ClassType string
}

func NewPharmClass(name, classType string) *PharmClass {
	return &PharmClass{VertexKey: NormalizeKey(name), Name: name, ClassType: classType}
}

func (p *PharmClass) Collection() string { return CollectionPharmClasses }
func (p *PharmClass) Key() string        { return p.VertexKey }
func (p *PharmClass) Merge(other Vertex) {
	if o, ok := other.(*PharmClass); ok {
		mergeString(&p.Name, o.Name)
		mergeString(&p.ClassType, o.ClassType)
	}
}

// Reaction is an adverse reaction (MedDRA term) reported in drug events.
type Reaction struct {
	VertexKey     string
	Name          string
	MedDRAVersion string
}

func NewReaction(name string) *Reaction {
	return &Reaction{VertexKey: NormalizeKey(name), Name: name}
}

func (r *Reaction) Collection() string { return CollectionReactions }
func (r *Reaction) Key() string        { return r.VertexKey }
func (r *Reaction) Merge(other Vertex) {
	if o, ok := other.(*Reaction); ok {
		mergeString(&r.Name, o.Name)
		mergeString(&r.MedDRAVersion, o.MedDRAVersion)
	}
}

// Interaction is a drug-drug interaction reported by RxNorm.
type Interaction struct {
	VertexKey       string
	Severity        string
	Description     string
	SourceDrugRxCUI string
	SourceDrugName  string
	TargetDrugRxCUI string
	TargetDrugName  string
	SourceAPI       string
}

// NewInteraction keys the interaction by the ordered drug pair so the same
// pair reported twice collapses to one vertex.
func NewInteraction(sourceName, targetName string) *Interaction {
	return &Interaction{
		VertexKey: NormalizeKey(sourceName, targetName),
		SourceAPI: "rxnorm",
	}
}

func (i *Interaction) Collection() string { return CollectionInteractions }
func (i *Interaction) Key() string        { return i.VertexKey }
func (i *Interaction) Merge(other Vertex) {
	o, ok := other.(*Interaction)
	if !ok {
		return
	}
	mergeString(&i.Severity, o.Severity)
	mergeString(&i.Description, o.Description)
	mergeString(&i.SourceDrugRxCUI, o.SourceDrugRxCUI)
	mergeString(&i.SourceDrugName, o.SourceDrugName)
	mergeString(&i.TargetDrugRxCUI, o.TargetDrugRxCUI)
	mergeString(&i.TargetDrugName, o.TargetDrugName)
	mergeString(&i.SourceAPI, o.SourceAPI)
}

// DrugLabel is a structured product label (package insert) section set.
type DrugLabel struct {
	VertexKey               string
	SPLID                   string
	SetID                   string
	Version                 string
	EffectiveTime           string
	Description             string
	ClinicalPharmacology    string
	MechanismOfAction       string
	IndicationsAndUsage     string
	DosageAndAdministration string
	Contraindications       string
	WarningsAndCautions     string
	BoxedWarning            string
	AdverseReactions        string
	DrugInteractions        string
}

// NewDrugLabel keys the label by its SPL set id.
func NewDrugLabel(setID string) *DrugLabel {
	return &DrugLabel{VertexKey: NormalizeKey(setID), SetID: setID}
}

func (l *DrugLabel) Collection() string { return CollectionDrugLabels }
func (l *DrugLabel) Key() string        { return l.VertexKey }
func (l *DrugLabel) Merge(other Vertex) {
	o, ok := other.(*DrugLabel)
	if !ok {
		return
	}
	mergeString(&l.SPLID, o.SPLID)
	mergeString(&l.SetID, o.SetID)
	mergeString(&l.Version, o.Version)
	mergeString(&l.EffectiveTime, o.EffectiveTime)
	mergeString(&l.Description, o.Description)
	mergeString(&l.ClinicalPharmacology, o.ClinicalPharmacology)
	mergeString(&l.MechanismOfAction, o.MechanismOfAction)
	mergeString(&l.IndicationsAndUsage, o.IndicationsAndUsage)
	mergeString(&l.DosageAndAdministration, o.DosageAndAdministration)
	mergeString(&l.Contraindications, o.Contraindications)
	mergeString(&l.WarningsAndCautions, o.WarningsAndCautions)
	mergeString(&l.BoxedWarning, o.BoxedWarning)
	mergeString(&l.AdverseReactions, o.AdverseReactions)
	mergeString(&l.DrugInteractions, o.DrugInteractions)
}

// Application is an FDA drug application submission (NDA, ANDA, BLA).
type Application struct {
	VertexKey            string
	ApplicationNumber    string
	SubmissionType       string
	SubmissionNumber     string
	SubmissionStatus     string
	SubmissionStatusDate string
	ReviewPriority       string
}

// NewApplication keys the application by number plus submission so each
// regulatory submission stays its own vertex.
func NewApplication(applicationNumber, submissionType, submissionNumber string) *Application {
	return &Application{
		VertexKey:         NormalizeKey(applicationNumber, submissionType, submissionNumber),
		ApplicationNumber: applicationNumber,
		SubmissionType:    submissionType,
		SubmissionNumber:  submissionNumber,
	}
}

func (a *Application) Collection() string { return CollectionApplications }
func (a *Application) Key() string        { return a.VertexKey }
func (a *Application) Merge(other Vertex) {
	o, ok := other.(*Application)
	if !ok {
		return
	}
	mergeString(&a.ApplicationNumber, o.ApplicationNumber)
	mergeString(&a.SubmissionType, o.SubmissionType)
	mergeString(&a.SubmissionNumber, o.SubmissionNumber)
	mergeString(&a.SubmissionStatus, o.SubmissionStatus)
	mergeString(&a.SubmissionStatusDate, o.SubmissionStatusDate)
	mergeString(&a.ReviewPriority, o.ReviewPriority)
}

// Product is a specific drug product packaging/formulation with NDC info.
type Product struct {
	VertexKey       string
	ProductNumber   string
	PackageNDC      string
	BrandName       string
	DosageForm      string
	Route           string
	MarketingStatus string
	Description     string
}

// NewProduct keys the product by application number and product number so the
// same product in different submissions collapses to one vertex.
func NewProduct(applicationNumber, productNumber string) *Product {
	return &Product{
		VertexKey:     NormalizeKey(applicationNumber, productNumber),
		ProductNumber: productNumber,
	}
}

func (p *Product) Collection() string { return CollectionProducts }
func (p *Product) Key() string        { return p.VertexKey }
func (p *Product) Merge(other Vertex) {
	o, ok := other.(*Product)
	if !ok {
		return
	}
	mergeString(&p.ProductNumber, o.ProductNumber)
	mergeString(&p.PackageNDC, o.PackageNDC)
	mergeString(&p.BrandName, o.BrandName)
	mergeString(&p.DosageForm, o.DosageForm)
	mergeString(&p.Route, o.Route)
	mergeString(&p.MarketingStatus, o.MarketingStatus)
	mergeString(&p.Description, o.Description)
}
