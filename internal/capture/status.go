package capture

const blurSuffix = " BLURRY."

type statusRule struct {
	raw, derived bool
	// catalog is nil when the row matches regardless of catalog number.
	catalog  *bool
	status   string
	severity Severity
}

var (
	yes = true
	no  = false
)

// Evaluated top to bottom; first match wins.
var statusTable = []statusRule{
	{raw: true, derived: true, catalog: &yes, status: "Images complete.", severity: SeverityOK},
	{raw: true, derived: true, catalog: &no, status: "Images complete. No barcode.", severity: SeverityWarning},
	{raw: true, derived: false, status: "Raw image recorded.", severity: SeverityInfo},
	{raw: false, derived: true, status: "Derived image recorded.", severity: SeverityInfo},
	{raw: false, derived: false, status: "No images recorded.", severity: SeverityError},
}

// Classify derives the status text and severity of an event. A blurry derived
// image appends " BLURRY." and raises the severity to WARNING unless the base
// row is already ERROR.
func Classify(e *Event) (string, Severity) {
	hasCatalog := e.CatalogNumber != nil
	status, severity := "No images recorded.", SeverityError
	for _, rule := range statusTable {
		if rule.raw != e.HasRaw() || rule.derived != e.HasDerived() {
			continue
		}
		if rule.catalog != nil && *rule.catalog != hasCatalog {
			continue
		}
		status, severity = rule.status, rule.severity
		break
	}
	if e.IsBlurry != nil && *e.IsBlurry && severity != SeverityError {
		status += blurSuffix
		severity = SeverityWarning
	}
	return status, severity
}

func (e *Event) classify() {
	e.Status, e.StatusLevel = Classify(e)
}
