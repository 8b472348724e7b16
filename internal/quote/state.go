// Package quote implements the request-a-quote wizard: its state machine,
// the three-phase submission pipeline, and the service logic that builds
// linked records (contact, then demande, then attachments) in the external
// record store.
package quote

import (
	"github.com/atout-travaux/website/internal/domain"
)

// Direction drives the step transition animation, not business logic.
type Direction int

const (
	DirectionBackward Direction = -1
	DirectionForward  Direction = 1
)

// File list fields addressable by AddFiles / RemoveFile.
const (
	FileFieldPlans  = "plans"
	FileFieldPhotos = "photos"
)

// State is the wizard's full state. One instance lives per wizard session,
// entirely in memory, and is discarded when the session ends.
type State struct {
	CurrentStep int // 0=identity, 1=project, 2=details, 3=success
	Data        domain.QuoteFormData
	Errors      map[string]string
	Direction   Direction
	Submitted   bool
	Loading     bool

	// Record-store identifiers, set once the corresponding phase
	// succeeds and never cleared for the lifetime of the session.
	ContactID string
	DemandeID string
}

// NewState returns the state a freshly mounted wizard starts from.
func NewState() State {
	return State{
		CurrentStep: domain.StepIdentity,
		Data:        domain.NewQuoteFormData(),
		Errors:      map[string]string{},
		Direction:   DirectionForward,
	}
}

// Action is one discrete wizard transition. The concrete types below form
// a closed set; Reduce treats anything else as a no-op.
type Action interface {
	isAction()
}

// SetField writes one string field of the draft and clears its error.
type SetField struct {
	Field string
	Value string
}

// SetClientType switches between particulier and professionnel. Switching
// to particulier clears the company name.
type SetClientType struct {
	Value domain.ClientType
}

// SetProjectType picks the kind of work.
type SetProjectType struct {
	Value domain.ProjectType
}

// ToggleRGPD flips the consent flag.
type ToggleRGPD struct{}

// AddFiles appends files to the plans or photos list.
type AddFiles struct {
	Field string
	Files []domain.FileRef
}

// RemoveFile removes the file at Index from the given list.
type RemoveFile struct {
	Field string
	Index int
}

// GoToStep jumps to a step and clears all errors.
type GoToStep struct {
	Step      int
	Direction Direction
}

// PrevStep steps backward; a no-op on the first step.
type PrevStep struct{}

// SetErrors replaces the error map wholesale.
type SetErrors struct {
	Errors map[string]string
}

// SetLoading toggles the in-flight flag.
type SetLoading struct {
	Loading bool
}

// SetContactID stores the persisted contact identifier.
type SetContactID struct {
	ID string
}

// SetDemandeID stores the persisted demande identifier.
type SetDemandeID struct {
	ID string
}

// SetSubmitted moves the wizard to its terminal success step.
type SetSubmitted struct{}

func (SetField) isAction()       {}
func (SetClientType) isAction()  {}
func (SetProjectType) isAction() {}
func (ToggleRGPD) isAction()     {}
func (AddFiles) isAction()       {}
func (RemoveFile) isAction()     {}
func (GoToStep) isAction()       {}
func (PrevStep) isAction()       {}
func (SetErrors) isAction()      {}
func (SetLoading) isAction()     {}
func (SetContactID) isAction()   {}
func (SetDemandeID) isAction()   {}
func (SetSubmitted) isAction()   {}

// Reduce applies one action to the state and returns the next state. It is
// a pure, total function: the input state is never mutated and unknown
// actions return it unchanged.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetField:
		s.Data = setDataField(s.Data, act.Field, act.Value)
		s.Errors = withError(s.Errors, act.Field, "")

	case SetClientType:
		s.Data.ClientType = act.Value
		if act.Value == domain.ClientParticulier {
			s.Data.CompanyName = ""
		}
		s.Errors = withError(s.Errors, "companyName", "")

	case SetProjectType:
		s.Data.ProjectType = act.Value
		s.Errors = withError(s.Errors, "projectType", "")

	case ToggleRGPD:
		s.Data.RGPDAccepted = !s.Data.RGPDAccepted
		s.Errors = withError(s.Errors, "rgpdAccepted", "")

	case AddFiles:
		switch act.Field {
		case FileFieldPlans:
			s.Data.Plans = appendFiles(s.Data.Plans, act.Files)
		case FileFieldPhotos:
			s.Data.Photos = appendFiles(s.Data.Photos, act.Files)
		}

	case RemoveFile:
		switch act.Field {
		case FileFieldPlans:
			s.Data.Plans = removeFileAt(s.Data.Plans, act.Index)
		case FileFieldPhotos:
			s.Data.Photos = removeFileAt(s.Data.Photos, act.Index)
		}

	case GoToStep:
		s.CurrentStep = act.Step
		s.Direction = act.Direction
		s.Errors = map[string]string{}

	case PrevStep:
		if s.CurrentStep <= 0 {
			return s
		}
		s.CurrentStep--
		s.Direction = DirectionBackward
		s.Errors = map[string]string{}

	case SetErrors:
		s.Errors = cloneErrors(act.Errors)

	case SetLoading:
		s.Loading = act.Loading

	case SetContactID:
		s.ContactID = act.ID

	case SetDemandeID:
		s.DemandeID = act.ID

	case SetSubmitted:
		s.CurrentStep = domain.StepSuccess
		s.Submitted = true
		s.Errors = map[string]string{}
		s.Direction = DirectionForward
		s.Loading = false
	}

	return s
}

// setDataField writes one of the draft's free-text fields by its form name.
// Unknown field names leave the draft untouched.
func setDataField(d domain.QuoteFormData, field, value string) domain.QuoteFormData {
	switch field {
	case "firstName":
		d.FirstName = value
	case "lastName":
		d.LastName = value
	case "phone":
		d.Phone = value
	case "email":
		d.Email = value
	case "companyName":
		d.CompanyName = value
	case "surface":
		d.Surface = value
	case "location":
		d.Location = value
	case "description":
		d.Description = value
	}
	return d
}

func withError(errs map[string]string, field, msg string) map[string]string {
	next := cloneErrors(errs)
	next[field] = msg
	return next
}

func cloneErrors(errs map[string]string) map[string]string {
	next := make(map[string]string, len(errs))
	for k, v := range errs {
		next[k] = v
	}
	return next
}

func appendFiles(list, more []domain.FileRef) []domain.FileRef {
	next := make([]domain.FileRef, 0, len(list)+len(more))
	next = append(next, list...)
	next = append(next, more...)
	return next
}

func removeFileAt(list []domain.FileRef, index int) []domain.FileRef {
	if index < 0 || index >= len(list) {
		return list
	}
	next := make([]domain.FileRef, 0, len(list)-1)
	next = append(next, list[:index]...)
	next = append(next, list[index+1:]...)
	return next
}
