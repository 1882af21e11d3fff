package types

// Family groups symbol categories.
type Family string

// Symbol families.
const (
	FamilyAgent    Family = "AGENT"
	FamilyResource Family = "RESOURCE"
	FamilyEvent    Family = "EVENT"
	FamilyFlow     Family = "FLOW"
	FamilyRule     Family = "RULE"
	FamilyUnit     Family = "UNIT"
	FamilyQuery    Family = "QUERY"
)

// Category is the kind of thing a symbol names.
type Category string

// Symbol categories.
const (
	CategoryCompany      Category = "COMPANY"
	CategoryPerson       Category = "PERSON"
	CategoryOrganization Category = "ORGANIZATION"
	CategoryAgent        Category = "AGENT"
	CategoryAsset        Category = "ASSET"
	CategoryDocument     Category = "DOCUMENT"
	CategoryTool         Category = "TOOL"
	CategoryEvent        Category = "EVENT"
	CategoryMilestone    Category = "MILESTONE"
	CategoryIncident     Category = "INCIDENT"
	CategoryWorkflow     Category = "WORKFLOW"
	CategoryProcess      Category = "PROCESS"
	CategoryPolicy       Category = "POLICY"
	CategoryConstraint   Category = "CONSTRAINT"
	CategoryRegulation   Category = "REGULATION"
	CategoryMetric       Category = "METRIC"
	CategoryKPI          Category = "KPI"
	CategoryQuery        Category = "QUERY"
	CategoryHypothesis   Category = "HYPOTHESIS"
)

// categoryInfo ties a category to its identifier code and family.
type categoryInfo struct {
	code   string
	family Family
}

var categoryTable = map[Category]categoryInfo{
	CategoryCompany:      {"C", FamilyAgent},
	CategoryPerson:       {"P", FamilyAgent},
	CategoryOrganization: {"O", FamilyAgent},
	CategoryAgent:        {"AI", FamilyAgent},
	CategoryAsset:        {"A", FamilyResource},
	CategoryDocument:     {"D", FamilyResource},
	CategoryTool:         {"T", FamilyResource},
	CategoryEvent:        {"E", FamilyEvent},
	CategoryMilestone:    {"M", FamilyEvent},
	CategoryIncident:     {"I", FamilyEvent},
	CategoryWorkflow:     {"W", FamilyFlow},
	CategoryProcess:      {"PR", FamilyFlow},
	CategoryPolicy:       {"PL", FamilyRule},
	CategoryConstraint:   {"CN", FamilyRule},
	CategoryRegulation:   {"RG", FamilyRule},
	CategoryMetric:       {"MT", FamilyUnit},
	CategoryKPI:          {"K", FamilyUnit},
	CategoryQuery:        {"Q", FamilyQuery},
	CategoryHypothesis:   {"H", FamilyQuery},
}

// categoryByCode is the reverse index of categoryTable, built at init.
var categoryByCode = map[string]Category{}

// AllCategories lists every category in taxonomy order.
var AllCategories = []Category{
	CategoryCompany, CategoryPerson, CategoryOrganization, CategoryAgent,
	CategoryAsset, CategoryDocument, CategoryTool,
	CategoryEvent, CategoryMilestone, CategoryIncident,
	CategoryWorkflow, CategoryProcess,
	CategoryPolicy, CategoryConstraint, CategoryRegulation,
	CategoryMetric, CategoryKPI,
	CategoryQuery, CategoryHypothesis,
}

// AllFamilies lists every family.
var AllFamilies = []Family{
	FamilyAgent, FamilyResource, FamilyEvent, FamilyFlow, FamilyRule, FamilyUnit, FamilyQuery,
}

func init() {
	for _, c := range AllCategories {
		info, ok := categoryTable[c]
		if !ok {
			panic("types: category " + string(c) + " has no code")
		}
		if prev, dup := categoryByCode[info.code]; dup {
			panic("types: category code " + info.code + " used by " + string(prev) + " and " + string(c))
		}
		categoryByCode[info.code] = c
	}
	if len(categoryTable) != len(AllCategories) {
		panic("types: category table and AllCategories disagree")
	}
}

// CategoryForCode returns the category for a 1–2 letter identifier code.
func CategoryForCode(code string) (Category, bool) {
	c, ok := categoryByCode[code]
	return c, ok
}

// Code returns the identifier code for the category, or "" if unknown.
func (c Category) Code() string { return categoryTable[c].code }

// Family returns the family the category belongs to, or "" if unknown.
func (c Category) Family() Family { return categoryTable[c].family }

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	for _, known := range AllFamilies {
		if f == known {
			return true
		}
	}
	return false
}

// CategoriesInFamily returns the categories of f in taxonomy order.
func CategoriesInFamily(f Family) []Category {
	var out []Category
	for _, c := range AllCategories {
		if categoryTable[c].family == f {
			out = append(out, c)
		}
	}
	return out
}
