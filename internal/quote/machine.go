package quote

import (
	"context"
	"strconv"
	"sync"

	"github.com/atout-travaux/website/internal/domain"
	"github.com/atout-travaux/website/internal/metrics"
)

// Visitor-facing messages surfaced through the notifier.
const (
	msgContactSaveFailed   = "Erreur lors de la sauvegarde du contact"
	msgDemandeSaveFailed   = "Erreur lors de la création de la demande"
	msgDetailsSaveFailed   = "Erreur lors de l'envoi de la demande"
	msgContactMissing      = "Contact non enregistré. Retournez à l'étape précédente."
	msgDemandeMissing      = "Demande non créée. Retournez à l'étape précédente."
	msgSubmissionSucceeded = "Votre demande de devis a bien été envoyée !"
)

// Notifier surfaces transient, non-blocking messages to the visitor.
// *events.Bus satisfies it.
type Notifier interface {
	NotifyError(message string)
	NotifySuccess(message string)
}

// Submitter is the slice of Service the machine needs.
type Submitter interface {
	SaveContact(ctx context.Context, in ContactInput) (ContactResult, error)
	SaveDemande(ctx context.Context, in DemandeInput) (string, error)
	AttachDetails(ctx context.Context, in DetailsInput) error
}

// Machine drives one wizard session: it owns the State, applies dispatched
// actions through the reducer, and runs the per-step submission handlers.
// Construct one Machine per session and pass it explicitly to whatever
// renders or drives the wizard.
type Machine struct {
	mu       sync.Mutex
	state    State
	svc      Submitter
	notifier Notifier

	// inFlight rejects overlapping submissions even if the caller's own
	// gate (a disabled button) is bypassed.
	inFlight bool
}

// NewMachine creates a machine in the initial wizard state.
func NewMachine(svc Submitter, notifier Notifier) *Machine {
	return &Machine{
		state:    NewState(),
		svc:      svc,
		notifier: notifier,
	}
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispatch applies one action. Actions are applied in the order received.
func (m *Machine) Dispatch(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Reduce(m.state, a)
}

// SubmitCurrentStep validates the current step and, when valid, runs its
// submission phase against the record store. It reports success so the
// caller can gate navigation; it never returns an error. Every failure
// becomes a notification and the form keeps all entered data.
func (m *Machine) SubmitCurrentStep(ctx context.Context) bool {
	if !m.beginSubmission() {
		return false
	}
	defer m.endSubmission()

	st := m.State()

	errs := domain.ValidateStep(st.CurrentStep, st.Data)
	if domain.HasErrors(errs) {
		m.Dispatch(SetErrors{Errors: errs})
		m.countSubmission(st.CurrentStep, "validation_error")
		return false
	}

	switch st.CurrentStep {
	case domain.StepIdentity:
		return m.submitIdentity(ctx, st)
	case domain.StepProject:
		return m.submitProject(ctx, st)
	case domain.StepDetails:
		return m.submitDetails(ctx, st)
	default:
		return false
	}
}

func (m *Machine) submitIdentity(ctx context.Context, st State) bool {
	m.Dispatch(SetLoading{Loading: true})
	defer m.Dispatch(SetLoading{Loading: false})

	res, err := m.svc.SaveContact(ctx, ContactInput{
		FirstName:   st.Data.FirstName,
		LastName:    st.Data.LastName,
		Phone:       st.Data.Phone,
		Email:       st.Data.Email,
		ClientType:  st.Data.ClientType,
		CompanyName: st.Data.CompanyName,
	})
	if err != nil {
		m.notifyFailure(err, msgContactSaveFailed)
		m.countSubmission(domain.StepIdentity, "remote_error")
		return false
	}

	m.Dispatch(SetContactID{ID: res.ContactID})
	m.Dispatch(GoToStep{Step: domain.StepProject, Direction: DirectionForward})
	m.countSubmission(domain.StepIdentity, "ok")
	return true
}

func (m *Machine) submitProject(ctx context.Context, st State) bool {
	if st.ContactID == "" {
		// Broken client invariant, guarded defensively: no network call.
		m.notifier.NotifyError(msgContactMissing)
		m.countSubmission(domain.StepProject, "precondition_error")
		return false
	}

	m.Dispatch(SetLoading{Loading: true})
	defer m.Dispatch(SetLoading{Loading: false})

	demandeID, err := m.svc.SaveDemande(ctx, DemandeInput{
		ContactID:   st.ContactID,
		DemandeID:   st.DemandeID,
		ProjectType: string(st.Data.ProjectType),
		Surface:     st.Data.Surface,
		Location:    st.Data.Location,
	})
	if err != nil {
		m.notifyFailure(err, msgDemandeSaveFailed)
		m.countSubmission(domain.StepProject, "remote_error")
		return false
	}

	if st.DemandeID == "" {
		m.Dispatch(SetDemandeID{ID: demandeID})
	}
	m.Dispatch(GoToStep{Step: domain.StepDetails, Direction: DirectionForward})
	m.countSubmission(domain.StepProject, "ok")
	return true
}

func (m *Machine) submitDetails(ctx context.Context, st State) bool {
	if st.DemandeID == "" {
		m.notifier.NotifyError(msgDemandeMissing)
		m.countSubmission(domain.StepDetails, "precondition_error")
		return false
	}

	m.Dispatch(SetLoading{Loading: true})
	defer m.Dispatch(SetLoading{Loading: false})

	err := m.svc.AttachDetails(ctx, DetailsInput{
		DemandeID:   st.DemandeID,
		Description: st.Data.Description,
		Plans:       st.Data.Plans,
		Photos:      st.Data.Photos,
	})
	if err != nil {
		m.notifyFailure(err, msgDetailsSaveFailed)
		m.countSubmission(domain.StepDetails, "remote_error")
		return false
	}

	m.Dispatch(SetSubmitted{})
	m.notifier.NotifySuccess(msgSubmissionSucceeded)
	m.countSubmission(domain.StepDetails, "ok")
	return true
}

// notifyFailure surfaces a remote failure. Invalid-input errors carry a
// message meant for the visitor; anything else collapses to the step's
// generic fallback.
func (m *Machine) notifyFailure(err error, fallback string) {
	if domain.ErrorCode(err) == domain.EINVALID {
		m.notifier.NotifyError(domain.ErrorMessage(err))
		return
	}
	m.notifier.NotifyError(fallback)
}

func (m *Machine) beginSubmission() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return false
	}
	m.inFlight = true
	return true
}

func (m *Machine) endSubmission() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *Machine) countSubmission(step int, outcome string) {
	metrics.QuoteSubmissionsTotal.WithLabelValues(strconv.Itoa(step), outcome).Inc()
}
