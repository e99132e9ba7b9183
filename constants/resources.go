package constants

// KnownInsurers is offered to the user when collecting insurance context. "Other" is always accepted.
var KnownInsurers = []string{
	"State Life Insurance",
	"Jubilee Life Insurance",
	"EFU Life Assurance",
	"Adamjee Life Assurance",
	"IGI Life Insurance",
	"TPL Life Insurance",
	"Sehat Sahulat Program",
}

// Resource is a static reference link surfaced next to analysis results.
type Resource struct {
	Section string `json:"section"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

var Resources = []Resource{
	{Section: "Patient Rights", Title: "Sehat Sahulat Program coverage details", URL: "https://www.google.com/search?q=Sehat+Sahulat+Program+Pakistan+Coverage+Details"},
	{Section: "Patient Rights", Title: "Consumer court procedure for medical billing", URL: "https://www.google.com/search?q=Consumer+Court+Pakistan+Procedure+Medical+Billing"},
	{Section: "Patient Rights", Title: "Medical negligence laws", URL: "https://www.google.com/search?q=Medical+Negligence+Laws+Pakistan"},
	{Section: "Billing Codes", Title: "Common CPT codes lookup", URL: "https://www.google.com/search?q=Common+CPT+Codes+Lookup"},
	{Section: "Billing Codes", Title: "Standard medical procedure rates", URL: "https://www.google.com/search?q=Standard+Medical+Procedure+Rates+Pakistan+2024"},
}
