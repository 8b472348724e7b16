package domain

import (
	"regexp"
	"strings"
)

// ClientType distinguishes private individuals from companies.
type ClientType string

const (
	ClientParticulier   ClientType = "particulier"
	ClientProfessionnel ClientType = "professionnel"
)

// Label returns the record-store value for the client type.
func (c ClientType) Label() string {
	if c == ClientProfessionnel {
		return "Professionnel"
	}
	return "Particulier"
}

// ProjectType identifies the kind of work a visitor is asking about.
// The zero value means "not chosen yet".
type ProjectType string

const (
	ProjectUnset        ProjectType = ""
	ProjectRenovation   ProjectType = "renovation"
	ProjectConstruction ProjectType = "construction"
	ProjectAmenagement  ProjectType = "amenagement"
	ProjectExtension    ProjectType = "extension"
)

// workTypeLabels maps form values to the vocabulary used by the record store.
var workTypeLabels = map[string]string{
	string(ProjectRenovation):   "Rénovation",
	string(ProjectConstruction): "Construction neuve",
	string(ProjectAmenagement):  "Aménagement intérieur",
	string(ProjectExtension):    "Extension/Surélévation",
}

// WorkTypeLabel maps a project type to its record-store label.
// Unrecognized values pass through unchanged.
func WorkTypeLabel(projectType string) string {
	if label, ok := workTypeLabels[projectType]; ok {
		return label
	}
	return projectType
}

// FileRef is a binary file attached to a quote request: a plan or a photo.
type FileRef struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// QuoteFormData is the visitor's draft, owned exclusively by the wizard
// state machine.
type QuoteFormData struct {
	FirstName   string
	LastName    string
	Phone       string
	Email       string
	ClientType  ClientType
	CompanyName string

	ProjectType ProjectType
	Surface     string // free-text numeric, parsed server-side
	Location    string

	Description string
	Plans       []FileRef
	Photos      []FileRef

	RGPDAccepted bool
}

// NewQuoteFormData returns an empty draft with the defaults the wizard
// starts from.
func NewQuoteFormData() QuoteFormData {
	return QuoteFormData{ClientType: ClientParticulier}
}

// Wizard step indices.
const (
	StepIdentity = 0
	StepProject  = 1
	StepDetails  = 2
	StepSuccess  = 3
)

// emailPattern accepts the usual local@domain.tld shape without trying to
// be a full RFC 5322 parser.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateStep checks the form data for the given wizard step and returns
// field-keyed error messages. An empty map means the step is valid. The
// function is pure: same inputs always yield the same map.
func ValidateStep(step int, data QuoteFormData) map[string]string {
	errs := make(map[string]string)

	if step == StepIdentity {
		if strings.TrimSpace(data.FirstName) == "" {
			errs["firstName"] = "Prénom requis"
		}
		if strings.TrimSpace(data.LastName) == "" {
			errs["lastName"] = "Nom requis"
		}
		if strings.TrimSpace(data.Phone) == "" {
			errs["phone"] = "Téléphone requis"
		}
		if strings.TrimSpace(data.Email) == "" {
			errs["email"] = "Email requis"
		} else if !emailPattern.MatchString(data.Email) {
			errs["email"] = "Email invalide"
		}
		if data.ClientType == ClientProfessionnel && strings.TrimSpace(data.CompanyName) == "" {
			errs["companyName"] = "Nom d'entreprise requis"
		}
		if !data.RGPDAccepted {
			errs["rgpdAccepted"] = "Vous devez accepter la politique de confidentialité"
		}
	}

	if step == StepProject {
		if data.ProjectType == ProjectUnset {
			errs["projectType"] = "Choisissez un type de projet"
		}
		if strings.TrimSpace(data.Location) == "" {
			errs["location"] = "Localisation requise"
		}
	}

	// Steps 2 and 3 have no required fields.
	return errs
}

// HasErrors reports whether the map contains at least one non-empty message.
// The reducer clears individual errors by writing an empty string, so both
// absence and "" mean "no error".
func HasErrors(errs map[string]string) bool {
	for _, msg := range errs {
		if msg != "" {
			return true
		}
	}
	return false
}
