package extract

// FieldKind describes how a field value is typed and validated.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindPhone  FieldKind = "phone"
	KindEmail  FieldKind = "email"
	KindDate   FieldKind = "date"
	KindBool   FieldKind = "bool"
	KindEnum   FieldKind = "enum"
	KindList   FieldKind = "list"
)

// Canonical field names of the assignment record.
const (
	FieldInsuranceCompany   = "Requesting Party Insurance Company"
	FieldHandler            = "Handler"
	FieldCarrierClaimNumber = "Carrier Claim Number"
	FieldInsuredName        = "Insured Name"
	FieldInsuredContact     = "Insured Contact Number"
	FieldLossAddress        = "Loss Address"
	FieldPublicAdjuster     = "Public Adjuster"
	FieldOwnership          = "Ownership"
	FieldAdjusterName       = "Adjuster Name"
	FieldAdjusterPhone      = "Adjuster Phone Number"
	FieldAdjusterEmail      = "Adjuster Email"
	FieldJobTitle           = "Job Title"
	FieldAdjusterAddress    = "Adjuster Address"
	FieldPolicyNumber       = "Policy Number"
	FieldDateOfLoss         = "Date of Loss"
	FieldCauseOfLoss        = "Cause of Loss"
	FieldFactsOfLoss        = "Facts of Loss"
	FieldLossDescription    = "Loss Description"
	FieldResidenceOccupied  = "Residence Occupied During Loss"
	FieldSomeoneHome        = "Someone Home at Time of Damage"
	FieldRepairProgress     = "Repair or Mitigation Progress"
	FieldPropertyType       = "Property Type"
	FieldInspectionType     = "Inspection Type"
	FieldTypeWind           = "Assignment Type - Wind"
	FieldTypeStructural     = "Assignment Type - Structural"
	FieldTypeHail           = "Assignment Type - Hail"
	FieldTypeFoundation     = "Assignment Type - Foundation"
	FieldTypeOther          = "Assignment Type - Other"
	FieldAdditionalDetails  = "Additional Details"
	FieldAttachments        = "Attachments"
)

// FieldSpec describes one field of the assignment record.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	Enum     []string
}

// Schema returns the canonical assignment field set, in report order.
// The same schema drives rule-based patterns, the model prompt, and
// schema validation.
func Schema() []FieldSpec {
	return []FieldSpec{
		{Name: FieldInsuranceCompany, Kind: KindString, Required: true},
		{Name: FieldHandler, Kind: KindString, Required: true},
		{Name: FieldCarrierClaimNumber, Kind: KindString, Required: true},
		{Name: FieldInsuredName, Kind: KindString, Required: true},
		{Name: FieldInsuredContact, Kind: KindPhone, Required: true},
		{Name: FieldLossAddress, Kind: KindString, Required: true},
		{Name: FieldPublicAdjuster, Kind: KindString, Required: false},
		{Name: FieldOwnership, Kind: KindEnum, Required: true, Enum: []string{"Owner", "Tenant"}},
		{Name: FieldAdjusterName, Kind: KindString, Required: true},
		{Name: FieldAdjusterPhone, Kind: KindPhone, Required: true},
		{Name: FieldAdjusterEmail, Kind: KindEmail, Required: true},
		{Name: FieldJobTitle, Kind: KindString, Required: false},
		{Name: FieldAdjusterAddress, Kind: KindString, Required: false},
		{Name: FieldPolicyNumber, Kind: KindString, Required: true},
		{Name: FieldDateOfLoss, Kind: KindDate, Required: true},
		{Name: FieldCauseOfLoss, Kind: KindString, Required: true},
		{Name: FieldFactsOfLoss, Kind: KindString, Required: false},
		{Name: FieldLossDescription, Kind: KindString, Required: true},
		{Name: FieldResidenceOccupied, Kind: KindString, Required: false},
		{Name: FieldSomeoneHome, Kind: KindString, Required: false},
		{Name: FieldRepairProgress, Kind: KindString, Required: false},
		{Name: FieldPropertyType, Kind: KindString, Required: false},
		{Name: FieldInspectionType, Kind: KindString, Required: false},
		{Name: FieldTypeWind, Kind: KindBool, Required: false},
		{Name: FieldTypeStructural, Kind: KindBool, Required: false},
		{Name: FieldTypeHail, Kind: KindBool, Required: false},
		{Name: FieldTypeFoundation, Kind: KindBool, Required: false},
		{Name: FieldTypeOther, Kind: KindBool, Required: false},
		{Name: FieldAdditionalDetails, Kind: KindString, Required: false},
		{Name: FieldAttachments, Kind: KindList, Required: false},
	}
}

// RequiredFields returns the names of all required fields.
func RequiredFields() []string {
	var names []string
	for _, spec := range Schema() {
		if spec.Required {
			names = append(names, spec.Name)
		}
	}
	return names
}

// SpecFor returns the spec of the named field.
func SpecFor(name string) (FieldSpec, bool) {
	for _, spec := range Schema() {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}
