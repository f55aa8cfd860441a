// Package aggregator assembles heterogeneous source data into graph bundles.
// It is pure translation: no I/O, no persistence, and every vertex and edge
// it emits is deduplicated by natural key so the same fact reported by two
// sources lands on one vertex.
package aggregator

import (
	"strings"
	"time"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/sources"
)

// Aggregator builds graph bundles from registry, nomenclature and chemistry
// data.
type Aggregator struct {
	logger logging.Logger
}

// New constructs an Aggregator.
func New(logger logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Aggregator{logger: logger.Named("aggregator")}
}

// BuildBundle translates one substance's registry and nomenclature data into
// a bundle.  Either input may be nil when its source failed; whatever
// arrived is still assembled.  The returned map pairs drug keys with SPL
// identifiers for drugs that exactly matched the search term, so the caller
// can fetch their labels.
func (a *Aggregator) BuildBundle(searchTerm string, fda *sources.FDAData, rx *sources.RxNormData) (*graph.Bundle, map[string]string) {
	b := graph.NewBundle(searchTerm)
	splMap := make(map[string]string)

	if fda != nil {
		a.addNDCData(b, fda.NDC, searchTerm, splMap)
		a.addDrugsFDAData(b, fda.DrugsFDA)
		a.addEnforcementData(b, fda.Enforcement)
		a.addEventData(b, fda.Events)
	}
	if rx != nil {
		a.addRxNormData(b, rx)
	}

	b.Found = len(b.Vertices(graph.CollectionDrugs)) > 0 ||
		len(b.Vertices(graph.CollectionSubstances)) > 0
	return b, splMap
}

// addNDCData creates one drug per NDC directory listing plus its package
// products.  A listing whose brand or generic name equals the search term
// contributes its SPL id to the label-fetch map.
func (a *Aggregator) addNDCData(b *graph.Bundle, records []sources.NDCRecord, searchTerm string, splMap map[string]string) {
	searchLower := strings.ToLower(searchTerm)

	for _, rec := range records {
		if rec.ProductNDC == "" {
			continue
		}

		drug := graph.NewDrug(rec.ProductNDC)
		if rec.BrandName != "" {
			drug.BrandNames = []string{rec.BrandName}
		}
		if rec.GenericName != "" {
			drug.GenericNames = []string{rec.GenericName}
		}
		drug.NDCCodes = []string{rec.ProductNDC}
		if rec.SPLID != "" {
			drug.SPLIDs = []string{rec.SPLID}
		}
		drug.Source = "ndc"
		stored := b.AddVertex(drug)
		if stored == nil {
			continue
		}

		exactMatch := strings.ToLower(rec.BrandName) == searchLower ||
			strings.ToLower(rec.GenericName) == searchLower
		if exactMatch && rec.SPLID != "" {
			splMap[stored.Key()] = rec.SPLID
		}

		for _, pkg := range rec.Packaging {
			if pkg.PackageNDC == "" {
				continue
			}
			product := &graph.Product{
				VertexKey:   graph.NormalizeKey(pkg.PackageNDC),
				PackageNDC:  pkg.PackageNDC,
				Description: pkg.Description,
			}
			if b.AddVertex(product) != nil {
				b.AddEdge(graph.Connect(product, stored, graph.EdgeProductOfDrug))
			}
		}
	}
}

// addDrugsFDAData creates drugs, applications, products and the satellite
// vertices named in each approval record's harmonized block.
func (a *Aggregator) addDrugsFDAData(b *graph.Bundle, records []sources.DrugsFDARecord) {
	for _, rec := range records {
		of := rec.OpenFDA

		drugName := rec.ApplicationNumber
		if drugName == "" && len(of.BrandNames) > 0 {
			drugName = of.BrandNames[0]
		}
		drug := graph.NewDrug(drugName)
		drug.ApplicationNumber = rec.ApplicationNumber
		drug.BrandNames = of.BrandNames
		drug.GenericNames = of.GenericNames
		drug.NDCCodes = of.ProductNDCs
		drug.RxCUIs = of.RxCUIs
		drug.SPLIDs = of.SPLIDs
		drug.SponsorName = rec.SponsorName
		if len(rec.ApplicationNumber) >= 3 {
			drug.DrugType = rec.ApplicationNumber[:3]
		}
		drug.Source = "drugsfda"
		stored := b.AddVertex(drug)

		for _, sub := range rec.Submissions {
			app := graph.NewApplication(rec.ApplicationNumber, sub.SubmissionType, sub.SubmissionNumber)
			app.SubmissionStatus = sub.SubmissionStatus
			app.SubmissionStatusDate = sub.SubmissionStatusDate
			app.ReviewPriority = sub.ReviewPriority
			if b.AddVertex(app) != nil && stored != nil {
				b.AddEdge(graph.Connect(app, stored, graph.EdgeApplicationForDrug).
					WithProperty("type", sub.SubmissionType).
					WithProperty("status", sub.SubmissionStatus))
			}
		}

		a.addOpenFDASatellites(b, stored, of)

		for _, prod := range rec.Products {
			product := graph.NewProduct(rec.ApplicationNumber, prod.ProductNumber)
			product.BrandName = prod.BrandName
			product.DosageForm = prod.DosageForm
			product.Route = prod.Route
			product.MarketingStatus = prod.MarketingStatus
			if b.AddVertex(product) != nil && stored != nil {
				b.AddEdge(graph.Connect(product, stored, graph.EdgeProductOfDrug))
			}
		}
	}
}

// addOpenFDASatellites adds the manufacturer, substance, route, dosage-form
// and pharmacologic-class vertices a harmonized block names, each linked to
// the owning drug.
func (a *Aggregator) addOpenFDASatellites(b *graph.Bundle, drug graph.Vertex, of sources.OpenFDA) {
	for _, name := range of.ManufacturerNames {
		a.addManufacturer(b, drug, name)
	}
	for i, name := range of.SubstanceNames {
		unii := ""
		if i < len(of.UNIIs) {
			unii = of.UNIIs[i]
		}
		a.addSubstance(b, drug, name, unii, "")
	}
	for _, name := range of.Routes {
		a.addRoute(b, drug, name)
	}
	for _, name := range of.DosageForms {
		if form := b.AddVertex(graph.NewDosageForm(name)); form != nil && drug != nil {
			b.AddEdge(graph.Connect(drug, form, graph.EdgeDrugHasForm))
		}
	}
	for _, name := range of.PharmClassEPC {
		a.addPharmClass(b, drug, name, "EPC")
	}
	for _, name := range of.PharmClassMOA {
		a.addPharmClass(b, drug, name, "MOA")
	}
}

func (a *Aggregator) addManufacturer(b *graph.Bundle, drug graph.Vertex, name string) {
	if mfr := b.AddVertex(graph.NewManufacturer(name)); mfr != nil && drug != nil {
		b.AddEdge(graph.Connect(drug, mfr, graph.EdgeDrugByManufacturer))
	}
}

func (a *Aggregator) addSubstance(b *graph.Bundle, drug graph.Vertex, name, unii, rxcui string) {
	sub := graph.NewSubstance(name)
	sub.UNII = unii
	sub.RxCUI = rxcui
	if stored := b.AddVertex(sub); stored != nil && drug != nil {
		b.AddEdge(graph.Connect(drug, stored, graph.EdgeDrugHasSubstance))
	}
}

func (a *Aggregator) addRoute(b *graph.Bundle, drug graph.Vertex, name string) {
	if route := b.AddVertex(graph.NewRoute(name)); route != nil && drug != nil {
		b.AddEdge(graph.Connect(drug, route, graph.EdgeDrugHasRoute))
	}
}

func (a *Aggregator) addPharmClass(b *graph.Bundle, drug graph.Vertex, name, classType string) {
	if pc := b.AddVertex(graph.NewPharmClass(name, classType)); pc != nil && drug != nil {
		b.AddEdge(graph.Connect(drug, pc, graph.EdgeDrugInClass))
	}
}

// addEnforcementData folds recall records into drug and satellite vertices.
func (a *Aggregator) addEnforcementData(b *graph.Bundle, records []sources.EnforcementRecord) {
	for _, rec := range records {
		of := rec.OpenFDA
		drugName := firstNonEmpty(of.BrandNames, of.GenericNames)
		if drugName == "" {
			continue
		}

		drug := graph.NewDrug(drugName)
		drug.BrandNames = of.BrandNames
		drug.GenericNames = of.GenericNames
		drug.RxCUIs = of.RxCUIs
		drug.Source = "enforcement"
		stored := b.AddVertex(drug)

		for _, name := range of.ManufacturerNames {
			a.addManufacturer(b, stored, name)
		}
		for i, name := range of.SubstanceNames {
			unii := ""
			if i < len(of.UNIIs) {
				unii = of.UNIIs[i]
			}
			a.addSubstance(b, stored, name, unii, "")
		}
		for _, name := range of.Routes {
			a.addRoute(b, stored, name)
		}
	}
}

// addEventData folds adverse-event reports into drug, substance, route and
// reaction vertices, with outcome details on the reaction edges.
func (a *Aggregator) addEventData(b *graph.Bundle, records []sources.EventRecord) {
	for _, rec := range records {
		for _, evDrug := range rec.Patient.Drugs {
			of := evDrug.OpenFDA
			drugName := firstNonEmpty(of.BrandNames, of.GenericNames)
			if drugName == "" {
				drugName = evDrug.MedicinalProduct
			}
			if drugName == "" {
				continue
			}

			drug := graph.NewDrug(drugName)
			drug.BrandNames = of.BrandNames
			drug.GenericNames = of.GenericNames
			drug.RxCUIs = of.RxCUIs
			drug.Source = "adverse_event"
			stored := b.AddVertex(drug)

			for i, name := range of.SubstanceNames {
				unii := ""
				if i < len(of.UNIIs) {
					unii = of.UNIIs[i]
				}
				a.addSubstance(b, stored, name, unii, "")
			}
			for _, name := range of.Routes {
				a.addRoute(b, stored, name)
			}

			for _, reaction := range rec.Patient.Reactions {
				if reaction.MedDRATerm == "" {
					continue
				}
				vertex := graph.NewReaction(reaction.MedDRATerm)
				vertex.MedDRAVersion = reaction.MedDRAVersion
				if r := b.AddVertex(vertex); r != nil && stored != nil {
					b.AddEdge(graph.Connect(stored, r, graph.EdgeDrugCausesReaction).
						WithProperty("outcome", reaction.Outcome).
						WithProperty("drug_characterization", evDrug.DrugCharacterization))
				}
			}
		}
	}
}

// addRxNormData folds nomenclature concepts into the bundle: ingredients as
// substances, brand concepts as drugs, NDC codes onto the main drug, and
// interaction pairs as interaction vertices linked from both drugs.
func (a *Aggregator) addRxNormData(b *graph.Bundle, rx *sources.RxNormData) {
	if !rx.Found {
		return
	}

	mainDrug := a.findMainDrug(b, rx)

	for _, ing := range rx.Ingredients {
		if ing.Name != "" {
			a.addSubstance(b, mainDrug, ing.Name, "", ing.RxCUI)
		}
	}

	for _, brand := range rx.Brands {
		if brand.Name == "" {
			continue
		}
		drug := graph.NewDrug(brand.Name)
		drug.BrandNames = []string{brand.Name}
		if brand.RxCUI != "" {
			drug.RxCUIs = []string{brand.RxCUI}
		}
		drug.Source = "rxnorm"
		b.AddVertex(drug)
	}

	if len(rx.NDCCodes) > 0 && mainDrug != nil {
		update := &graph.Drug{VertexKey: mainDrug.Key(), NDCCodes: rx.NDCCodes}
		b.AddVertex(update)
	}

	a.addInteractions(b, rx, mainDrug)
}

// findMainDrug locates the drug the nomenclature data is about: the first
// drug already carrying the resolved concept id, else a new vertex named
// after the resolved concept.
func (a *Aggregator) findMainDrug(b *graph.Bundle, rx *sources.RxNormData) graph.Vertex {
	if rx.RxCUI != "" {
		for _, v := range b.Vertices(graph.CollectionDrugs) {
			if drug, ok := v.(*graph.Drug); ok {
				for _, id := range drug.RxCUIs {
					if id == rx.RxCUI {
						return drug
					}
				}
			}
		}
	}
	if rx.Name != "" {
		drug := graph.NewDrug(rx.Name)
		if rx.RxCUI != "" {
			drug.RxCUIs = []string{rx.RxCUI}
		}
		drug.Source = "rxnorm"
		return b.AddVertex(drug)
	}
	drugs := b.Vertices(graph.CollectionDrugs)
	if len(drugs) > 0 {
		return drugs[0]
	}
	return nil
}

func (a *Aggregator) addInteractions(b *graph.Bundle, rx *sources.RxNormData, mainDrug graph.Vertex) {
	sourceName := rx.Name
	if sourceName == "" {
		sourceName = rx.SearchTerm
	}

	for _, di := range rx.Interactions {
		if di.Description == "" {
			continue
		}
		targetName := di.Target.Name

		vertex := graph.NewInteraction(firstString(di.Source.Name, sourceName), targetName)
		vertex.Severity = di.Severity
		vertex.Description = di.Description
		vertex.SourceDrugRxCUI = firstString(di.Source.RxCUI, rx.RxCUI)
		vertex.SourceDrugName = firstString(di.Source.Name, sourceName)
		vertex.TargetDrugRxCUI = di.Target.RxCUI
		vertex.TargetDrugName = targetName
		stored := b.AddVertex(vertex)
		if stored == nil {
			continue
		}

		if mainDrug != nil {
			b.AddEdge(graph.Connect(mainDrug, stored, graph.EdgeDrugInteractsWith).
				WithProperty("severity", di.Severity).
				WithProperty("role", "source"))
		}

		if targetName != "" {
			targetDrug := graph.NewDrug(targetName)
			if di.Target.RxCUI != "" {
				targetDrug.RxCUIs = []string{di.Target.RxCUI}
			}
			targetDrug.Source = "rxnorm_interaction"
			if target := b.AddVertex(targetDrug); target != nil {
				b.AddEdge(graph.Connect(target, stored, graph.EdgeDrugInteractsWith).
					WithProperty("severity", di.Severity).
					WithProperty("role", "target"))
			}
		}
	}
}

// AttachLabel adds a label vertex for the fetched SPL document and links it
// to the owning drug.
func (a *Aggregator) AttachLabel(b *graph.Bundle, drugKey, splID string, label *sources.LabelRecord) {
	if label == nil || drugKey == "" {
		return
	}

	keySource := label.SetID
	if keySource == "" {
		keySource = splID
	}
	vertex := graph.NewDrugLabel(keySource)
	vertex.SPLID = splID
	vertex.SetID = label.SetID
	vertex.Version = label.Version
	vertex.EffectiveTime = label.EffectiveTime
	vertex.Description = firstText(label.Description)
	vertex.ClinicalPharmacology = firstText(label.ClinicalPharmacology)
	vertex.MechanismOfAction = firstText(label.MechanismOfAction)
	vertex.IndicationsAndUsage = firstText(label.IndicationsAndUsage)
	vertex.DosageAndAdministration = firstText(label.DosageAndAdministration)
	vertex.Contraindications = firstText(label.Contraindications)
	vertex.WarningsAndCautions = firstString(firstText(label.WarningsAndCautions), firstText(label.Warnings))
	vertex.BoxedWarning = firstText(label.BoxedWarning)
	vertex.AdverseReactions = firstText(label.AdverseReactions)
	vertex.DrugInteractions = firstText(label.DrugInteractions)

	if stored := b.AddVertex(vertex); stored != nil {
		b.AddEdge(graph.NewEdge(graph.CollectionDrugs, drugKey,
			graph.CollectionDrugLabels, stored.Key(), graph.EdgeDrugHasLabel))
	}
}

// ChemistryRefs lists the substances in the bundle as lookup references for
// the chemistry source.
func (a *Aggregator) ChemistryRefs(b *graph.Bundle) []sources.SubstanceRef {
	var refs []sources.SubstanceRef
	for _, v := range b.Vertices(graph.CollectionSubstances) {
		if sub, ok := v.(*graph.Substance); ok {
			refs = append(refs, sources.SubstanceRef{UNII: sub.UNII, Name: sub.Name})
		}
	}
	return refs
}

// ApplyChemistry folds chemical data into the bundle's substances, matching
// by UNII first and name second, and marks each substance that received
// chemistry as enriched.  Returns how many substances were enriched.
func (a *Aggregator) ApplyChemistry(b *graph.Bundle, chem map[string]*sources.ChemicalData, at time.Time) int {
	if len(chem) == 0 {
		return 0
	}
	enriched := 0
	for _, v := range b.Vertices(graph.CollectionSubstances) {
		sub, ok := v.(*graph.Substance)
		if !ok {
			continue
		}
		data := chem[sub.UNII]
		if data == nil {
			data = chem[sub.Name]
		}
		if data == nil {
			data = chem[strings.ToUpper(sub.Name)]
		}
		if data == nil {
			continue
		}

		if sub.UNII == "" {
			sub.UNII = data.UNII
		}
		sub.Formula = data.Formula
		sub.MolecularWeight = data.MolecularWeight
		sub.SMILES = data.SMILES
		sub.InChI = data.InChI
		sub.InChIKey = data.InChIKey
		sub.CASNumber = data.CASNumber
		sub.PubChemID = data.PubChemID
		sub.SubstanceClass = data.SubstanceClass
		sub.Stereochemistry = data.Stereochemistry
		sub.MarkEnriched(at)
		enriched++
	}
	return enriched
}

// EnsureMainSubstance guarantees the searched substance has its own vertex
// linked from every drug in the bundle, creating it when no source named it
// outright.
func (a *Aggregator) EnsureMainSubstance(b *graph.Bundle, searchTerm string) *graph.Substance {
	key := graph.NormalizeKey(searchTerm)
	if v := b.Vertex(graph.CollectionSubstances, key); v != nil {
		if sub, ok := v.(*graph.Substance); ok {
			return sub
		}
	}
	searchLower := strings.ToLower(searchTerm)
	for _, v := range b.Vertices(graph.CollectionSubstances) {
		if sub, ok := v.(*graph.Substance); ok && strings.ToLower(sub.Name) == searchLower {
			return sub
		}
	}

	main := graph.NewSubstance(searchTerm)
	main.Name = strings.ToUpper(searchTerm)
	stored := b.AddVertex(main)
	if stored == nil {
		return nil
	}
	for _, drug := range b.Vertices(graph.CollectionDrugs) {
		b.AddEdge(graph.Connect(drug, stored, graph.EdgeDrugHasSubstance))
	}
	a.logger.Debug("main substance created",
		logging.String("substance", searchTerm),
		logging.Int("linked_drugs", len(b.Vertices(graph.CollectionDrugs))))
	return stored.(*graph.Substance)
}

// LinkAliases materializes resolved same-document links as alias edges
// between drug vertices, creating stub drugs for names no source reported.
func (a *Aggregator) LinkAliases(b *graph.Bundle, links []extraction.ResolvedLink) {
	for _, link := range links {
		if link.FromName == "" || link.ToName == "" {
			continue
		}
		from := graph.NewDrug(link.FromName)
		from.IsAlias = true
		to := graph.NewDrug(link.ToName)
		switch link.Relationship {
		case extraction.RelGenericOf:
			from.GenericNames = []string{link.FromName}
			to.BrandNames = []string{link.ToName}
		default:
			from.BrandNames = []string{link.FromName}
			to.GenericNames = []string{link.ToName}
		}
		storedFrom := b.AddVertex(from)
		storedTo := b.AddVertex(to)

		if storedFrom == nil || storedTo == nil || storedFrom.Key() == storedTo.Key() {
			continue
		}
		b.AddEdge(graph.Connect(storedFrom, storedTo, graph.EdgeDrugAliasOf).
			WithProperty("relationship", string(link.Relationship)).
			WithProperty("confidence", link.Confidence).
			WithProperty("source", link.Source))
	}
}

func firstText(blocks []string) string {
	if len(blocks) > 0 {
		return blocks[0]
	}
	return ""
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(lists ...[]string) string {
	for _, list := range lists {
		if len(list) > 0 && list[0] != "" {
			return list[0]
		}
	}
	return ""
}
