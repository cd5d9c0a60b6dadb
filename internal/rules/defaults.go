package rules

import "github.com/ShayCichocki/claimflow/pkg/models"

// Intake field names shared by the extractor, the oracle and the tables.
const (
	FieldClaimType          = "claim_type"
	FieldIncidentDate       = "incident_date"
	FieldIdentifier         = "identifier"
	FieldDescription        = "description"
	FieldAmount             = "amount"
	FieldCustomerID         = "customer_id"
	FieldTreatmentType      = "treatment_type"
	FieldHospitalName       = "hospital_name"
	FieldHospitalizationDay = "hospitalization_date"
	FieldAssetAge           = "asset_age_years"
)

var allMotor = []models.ClaimSubType{
	models.SubTypeMotorAccident, models.SubTypeMotorTheft, models.SubTypeMotorFire, models.SubTypeMotorVandalism,
}

var allHome = []models.ClaimSubType{
	models.SubTypeHomeFire, models.SubTypeHomeTheft, models.SubTypeHomeFlood, models.SubTypeHomeEarthquake, models.SubTypeHomeStorm,
}

var allHealth = []models.ClaimSubType{
	models.SubTypeHealthAccident, models.SubTypeHealthHospitalization, models.SubTypeHealthSurgery, models.SubTypeHealthCritical,
}

// Default returns the built-in rule tables.
func Default() *Tables {
	return &Tables{
		ClaimTypes: map[models.ClaimType]TypeRule{
			models.ClaimTypeMotor: {
				Keywords: []string{"motor", "vehicle", "car", "bike", "scooter", "truck"},
				SubTypes: []SubTypeRule{
					{SubType: models.SubTypeMotorAccident, Keywords: []string{"accident", "collision", "crash", "hit"}},
					{SubType: models.SubTypeMotorTheft, Keywords: []string{"theft", "stolen"}},
					{SubType: models.SubTypeMotorFire, Keywords: []string{"fire"}},
					{SubType: models.SubTypeMotorVandalism, Keywords: []string{"vandal"}},
				},
				DefaultSubType: models.SubTypeMotorAccident,
			},
			models.ClaimTypeHome: {
				Keywords: []string{"home", "house", "property", "flat", "apartment"},
				SubTypes: []SubTypeRule{
					{SubType: models.SubTypeHomeFire, Keywords: []string{"fire", "burn"}},
					{SubType: models.SubTypeHomeTheft, Keywords: []string{"theft", "burglary", "stolen"}},
					{SubType: models.SubTypeHomeFlood, Keywords: []string{"flood", "water"}},
					{SubType: models.SubTypeHomeEarthquake, Keywords: []string{"earthquake", "quake"}},
					{SubType: models.SubTypeHomeStorm, Keywords: []string{"storm", "cyclone", "wind"}},
				},
				DefaultSubType: models.SubTypeHomeFire,
			},
			models.ClaimTypeHealth: {
				Keywords: []string{"health", "medical", "hospital"},
				SubTypes: []SubTypeRule{
					{SubType: models.SubTypeHealthAccident, Keywords: []string{"accident", "injury", "broke", "fracture"}},
					{SubType: models.SubTypeHealthSurgery, Keywords: []string{"surgery", "operation"}},
					{SubType: models.SubTypeHealthCritical, Keywords: []string{"critical", "heart", "cancer", "stroke"}},
				},
				DefaultSubType: models.SubTypeHealthHospitalization,
			},
		},
		Intake: IntakeRules{
			Common: []string{FieldClaimType, FieldIncidentDate, FieldIdentifier, FieldDescription, FieldAmount},
			ByType: map[models.ClaimType][]string{
				models.ClaimTypeHealth: {FieldTreatmentType, FieldHospitalName},
			},
			BySubType: map[models.ClaimSubType][]string{
				models.SubTypeHealthHospitalization: {FieldHospitalizationDay},
				models.SubTypeHealthSurgery:         {FieldHospitalizationDay},
				models.SubTypeHealthCritical:        {FieldHospitalizationDay},
			},
			Prompts: map[string]string{
				FieldClaimType:              "What type of insurance claim is this: motor, home or health?",
				FieldIncidentDate:           "When did the incident occur?",
				FieldIdentifier:             "What is your policy number?",
				"motor." + FieldIdentifier:  "What is your vehicle registration number?",
				"home." + FieldIdentifier:   "What is your property ID or policy number?",
				FieldDescription:            "Can you describe what happened in detail?",
				"motor." + FieldDescription: "Can you describe the damage to the vehicle?",
				"home." + FieldDescription:  "Can you describe the damage to the property?",
				FieldAmount:                 "What is the estimated amount you are claiming?",
				"motor." + FieldAmount:      "Do you have a repair estimate? If so, what is the amount?",
				"health." + FieldAmount:     "What was the total treatment cost?",
				FieldTreatmentType:          "What treatment did you receive?",
				FieldHospitalName:           "Which hospital were you admitted to?",
				FieldHospitalizationDay:     "On what date were you admitted?",
			},
			Greetings: []string{"hi", "hello", "hey", "hi there", "hello there"},
		},
		Coverage: map[models.ClaimType]CoverageRule{
			models.ClaimTypeMotor: {
				Plans: map[string][]models.ClaimSubType{
					"comprehensive": allMotor,
					"third_party":   nil,
				},
				Sections: map[models.ClaimSubType]string{
					models.SubTypeMotorAccident:  "Section 2.1: Own Damage",
					models.SubTypeMotorTheft:     "Section 2.1: Own Damage",
					models.SubTypeMotorFire:      "Section 2.1: Own Damage",
					models.SubTypeMotorVandalism: "Section 2.1: Own Damage",
				},
				DefaultSection: "Section 1: Third Party Liability",
				LimitField:     "idv",
			},
			models.ClaimTypeHome: {
				Plans: map[string][]models.ClaimSubType{
					"comprehensive": allHome,
					"basic":         {models.SubTypeHomeFire, models.SubTypeHomeTheft},
				},
				Sections: map[models.ClaimSubType]string{
					models.SubTypeHomeFire:       "Section 1: Fire and Allied Perils",
					models.SubTypeHomeTheft:      "Section 2: Burglary and Theft",
					models.SubTypeHomeFlood:      "Section 3: Natural Calamities - Flood",
					models.SubTypeHomeEarthquake: "Section 3: Natural Calamities - Earthquake",
					models.SubTypeHomeStorm:      "Section 3: Natural Calamities - Storm",
				},
				DefaultSection: "Section 1: General Property Damage",
				LimitField:     "sum_insured",
			},
			models.ClaimTypeHealth: {
				Plans: map[string][]models.ClaimSubType{
					"individual":     allHealth,
					"family_floater": allHealth,
				},
				Sections: map[models.ClaimSubType]string{
					models.SubTypeHealthHospitalization: "Section 1: Hospitalization Cover",
					models.SubTypeHealthAccident:        "Section 2: Accidental Injury Cover",
					models.SubTypeHealthSurgery:         "Section 3: Surgical Procedures",
					models.SubTypeHealthCritical:        "Section 4: Critical Illness Cover",
				},
				DefaultSection: "Section 1: Hospitalization Cover",
				LimitField:     "sum_insured",
			},
		},
		Exclusions: []Exclusion{
			{
				Name:     "DUI (Driving Under Influence)",
				Patterns: []string{"drunk", "dui", "under the influence", "intoxicated", "had been drinking"},
				Types:    []models.ClaimType{models.ClaimTypeMotor},
			},
			{
				Name:     "Invalid or Expired License",
				Patterns: []string{"no license", "no licence", "without a license", "without license", "expired license", "expired licence", "unlicensed"},
				Types:    []models.ClaimType{models.ClaimTypeMotor},
			},
			{
				Name:     "Commercial Use without Commercial Policy",
				Patterns: []string{"commercial use", "taxi service", "ride-hailing", "delivery job", "used for deliveries"},
				Types:    []models.ClaimType{models.ClaimTypeMotor},
			},
			{
				Name:     "War or Nuclear Risk",
				Patterns: []string{"war", "nuclear", "radioactive", "invasion"},
			},
			{
				Name:     "Consequential Losses",
				Patterns: []string{"consequential loss", "loss of income", "loss of use", "business interruption"},
			},
			{
				Name:     "Wear and Tear",
				Patterns: []string{"wear and tear", "gradual deterioration", "rust", "corrosion"},
				Types:    []models.ClaimType{models.ClaimTypeMotor, models.ClaimTypeHome},
			},
			{
				Name:     "Mechanical/Electrical Breakdown",
				Patterns: []string{"mechanical breakdown", "electrical breakdown", "engine seized", "gearbox failure"},
				Types:    []models.ClaimType{models.ClaimTypeMotor, models.ClaimTypeHome},
			},
		},
		Depreciation: DepreciationRules{
			Motor: []AgeBand{
				{MaxYears: 0.5, Rate: 0},
				{MaxYears: 1, Rate: 5},
				{MaxYears: 2, Rate: 10},
				{MaxYears: 3, Rate: 15},
				{MaxYears: 4, Rate: 25},
				{MaxYears: 5, Rate: 35},
				{MaxYears: 0, Rate: 50},
			},
			Home:   10,
			Health: 0,
		},
		Documents: map[string][]string{
			string(models.SubTypeMotorAccident):         {"Claim form", "Driving license", "Vehicle registration certificate", "Repair estimate", "Photos of damage", "FIR copy (if third party involved)"},
			string(models.SubTypeMotorTheft):            {"Claim form", "FIR copy", "Vehicle registration certificate", "Original keys", "Non-traceable certificate"},
			string(models.SubTypeMotorFire):             {"Claim form", "Fire brigade report", "Vehicle registration certificate", "Repair estimate", "Photos of damage"},
			string(models.SubTypeMotorVandalism):        {"Claim form", "FIR copy", "Repair estimate", "Photos of damage"},
			string(models.SubTypeHomeFire):              {"Claim form", "Fire brigade report", "Property ownership proof", "Repair estimate", "Photos of damage"},
			string(models.SubTypeHomeTheft):             {"Claim form", "FIR copy", "Property ownership proof", "List of stolen items", "Purchase invoices"},
			string(models.SubTypeHomeFlood):             {"Claim form", "Property ownership proof", "Repair estimate", "Photos of damage", "Weather report"},
			string(models.SubTypeHomeEarthquake):        {"Claim form", "Property ownership proof", "Structural engineer report", "Repair estimate", "Photos of damage"},
			string(models.SubTypeHomeStorm):             {"Claim form", "Property ownership proof", "Repair estimate", "Photos of damage", "Weather report"},
			string(models.SubTypeHealthHospitalization): {"Claim form", "Discharge summary", "Hospital bills", "Pharmacy bills", "Diagnostic reports"},
			string(models.SubTypeHealthSurgery):         {"Claim form", "Discharge summary", "Surgeon's notes", "Hospital bills", "Pre-authorization letter"},
			string(models.SubTypeHealthAccident):        {"Claim form", "Discharge summary", "Hospital bills", "FIR or MLC copy", "X-ray reports"},
			string(models.SubTypeHealthCritical):        {"Claim form", "Diagnosis certificate", "Specialist report", "Hospital bills", "Diagnostic reports"},
			"default":                                   {"Claim form", "Repair estimate", "Photos of damage", "Policy copy"},
		},
		Decision: DecisionRules{
			AutoApproveLimit: 0,
			MaxPriorClaims:   0,
		},
		Defaults: PolicyDefaults{
			Deductible:         2000,
			HealthCopayPercent: 10,
			AssetAgeYears:      1,
		},
	}
}
