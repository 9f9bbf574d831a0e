package observation

import "github.com/healthshare/healthshare/pkg/fhirmodels"

// CodeEntry is the terminology triple for one data type plus its default
// UCUM unit code and human-readable unit.
type CodeEntry struct {
	System   string `json:"system"`
	Code     string `json:"code"`
	Display  string `json:"display"`
	UnitCode string `json:"unitCode"`
	Unit     string `json:"unit"`
}

// GenericCode is the LOINC code used for tags without a dedicated entry.
const GenericCode = "38053-7"

// genericUnit is the unit code used for tags without a dedicated entry.
const genericUnit = "unit"

var codeTable = map[DataType]CodeEntry{
	Steps: {
		System:   fhirmodels.SystemLOINC,
		Code:     "41950-7",
		Display:  "Number of steps in 24 hour Measured",
		UnitCode: "steps",
		Unit:     "steps",
	},
	HeartRate: {
		System:   fhirmodels.SystemLOINC,
		Code:     "8867-4",
		Display:  "Heart rate",
		UnitCode: "/min",
		Unit:     "beats/minute",
	},
	Sleep: {
		System:   fhirmodels.SystemLOINC,
		Code:     "93832-4",
		Display:  "Sleep duration",
		UnitCode: "min",
		Unit:     "min",
	},
	BloodPressure: {
		System:   fhirmodels.SystemLOINC,
		Code:     "85354-9",
		Display:  "Blood pressure panel",
		UnitCode: "mm[Hg]",
		Unit:     "mmHg",
	},
	Weight: {
		System:   fhirmodels.SystemLOINC,
		Code:     "29463-7",
		Display:  "Body weight",
		UnitCode: "kg",
		Unit:     "kg",
	},
	BloodGlucose: {
		System:   fhirmodels.SystemLOINC,
		Code:     "41653-7",
		Display:  "Glucose [Mass/volume] in Blood",
		UnitCode: "mg/dL",
		Unit:     "mg/dL",
	},
}

// Component codings.
var (
	SystolicCoding = CodeEntry{
		System:   fhirmodels.SystemLOINC,
		Code:     "8480-6",
		Display:  "Systolic blood pressure",
		UnitCode: "mm[Hg]",
		Unit:     "mmHg",
	}
	DiastolicCoding = CodeEntry{
		System:   fhirmodels.SystemLOINC,
		Code:     "8462-4",
		Display:  "Diastolic blood pressure",
		UnitCode: "mm[Hg]",
		Unit:     "mmHg",
	}
	SleepQualityCoding = CodeEntry{
		System:  fhirmodels.SystemSNOMED,
		Code:    "248254009",
		Display: "Sleep quality",
	}
)

// alternateUnits maps a reported unit to its UCUM code for data types that
// accept more than one unit.
var alternateUnits = map[DataType]map[string]string{
	Weight:       {"lb": "[lb_av]"},
	BloodGlucose: {"mmol/L": "mmol/L"},
}

// CodeFor returns the code entry for tag. It is total: unknown tags get the
// generic LOINC code with the raw tag as display.
func CodeFor(tag DataType) CodeEntry {
	if e, ok := codeTable[tag]; ok {
		return e
	}
	return CodeEntry{
		System:   fhirmodels.SystemLOINC,
		Code:     GenericCode,
		Display:  string(tag),
		UnitCode: genericUnit,
		Unit:     genericUnit,
	}
}

// UnitCodeFor resolves the UCUM code for a reported unit. An alternate unit
// registered for tag wins; otherwise the tag's default code is used. Unknown
// tags echo the reported unit.
func UnitCodeFor(tag DataType, unit string) string {
	if alt, ok := alternateUnits[tag][unit]; ok {
		return alt
	}
	if !tag.Known() && unit != "" {
		return unit
	}
	return CodeFor(tag).UnitCode
}
