package quote

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atout-travaux/website/internal/domain"
)

// mockSubmitter scripts the three submission phases.
type mockSubmitter struct {
	contactResult ContactResult
	contactErr    error
	demandeID     string
	demandeErr    error
	detailsErr    error

	contactCalls int
	demandeCalls int
	detailsCalls int
	lastDemande  DemandeInput
	lastDetails  DetailsInput

	// block, when non-nil, holds SaveContact mid-flight until closed;
	// entered is closed once SaveContact has been reached (for the
	// concurrency guard test).
	block   chan struct{}
	entered chan struct{}
}

func (m *mockSubmitter) SaveContact(ctx context.Context, in ContactInput) (ContactResult, error) {
	m.contactCalls++
	if m.entered != nil {
		close(m.entered)
	}
	if m.block != nil {
		<-m.block
	}
	return m.contactResult, m.contactErr
}

func (m *mockSubmitter) SaveDemande(ctx context.Context, in DemandeInput) (string, error) {
	m.demandeCalls++
	m.lastDemande = in
	return m.demandeID, m.demandeErr
}

func (m *mockSubmitter) AttachDetails(ctx context.Context, in DetailsInput) error {
	m.detailsCalls++
	m.lastDetails = in
	return m.detailsErr
}

// recordingNotifier captures surfaced notifications.
type recordingNotifier struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (n *recordingNotifier) NotifyError(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) NotifySuccess(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func fillIdentity(m *Machine) {
	m.Dispatch(SetField{Field: "firstName", Value: "Marie"})
	m.Dispatch(SetField{Field: "lastName", Value: "Dupont"})
	m.Dispatch(SetField{Field: "phone", Value: "0612345678"})
	m.Dispatch(SetField{Field: "email", Value: "marie@example.com"})
	m.Dispatch(ToggleRGPD{})
}

func TestSubmitCurrentStep_IdentityValidationFailureSkipsNetwork(t *testing.T) {
	svc := &mockSubmitter{}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)

	ok := m.SubmitCurrentStep(context.Background())

	assert.False(t, ok)
	assert.Equal(t, 0, svc.contactCalls, "validation failure must not reach the network")

	st := m.State()
	assert.Equal(t, domain.StepIdentity, st.CurrentStep)
	assert.Equal(t, "Prénom requis", st.Errors["firstName"])
	assert.False(t, st.Loading)
}

func TestSubmitCurrentStep_IdentitySuccessAdvances(t *testing.T) {
	svc := &mockSubmitter{contactResult: ContactResult{ContactID: "rec123", IsNew: true}}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	fillIdentity(m)

	ok := m.SubmitCurrentStep(context.Background())

	require.True(t, ok)
	st := m.State()
	assert.Equal(t, "rec123", st.ContactID)
	assert.Equal(t, domain.StepProject, st.CurrentStep)
	assert.Equal(t, DirectionForward, st.Direction)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Errors)
	assert.Empty(t, notifier.errors)
}

func TestSubmitCurrentStep_IdentityRemoteFailureStaysPut(t *testing.T) {
	svc := &mockSubmitter{
		contactErr: domain.Invalid("quote.contact", "Champs requis manquants"),
	}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	fillIdentity(m)

	ok := m.SubmitCurrentStep(context.Background())

	assert.False(t, ok)
	st := m.State()
	assert.Equal(t, domain.StepIdentity, st.CurrentStep)
	assert.False(t, st.Loading)
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Champs requis manquants", notifier.errors[0])

	// Entered data survives the failure.
	assert.Equal(t, "Marie", st.Data.FirstName)
}

func TestSubmitCurrentStep_IdentityUnavailableUsesFallbackMessage(t *testing.T) {
	svc := &mockSubmitter{
		contactErr: domain.Unavailable(errors.New("boom"), "airtable.request", "record store error (status 500)"),
	}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	fillIdentity(m)

	ok := m.SubmitCurrentStep(context.Background())

	assert.False(t, ok)
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Erreur lors de la sauvegarde du contact", notifier.errors[0])
}

func TestSubmitCurrentStep_ProjectRequiresContactID(t *testing.T) {
	svc := &mockSubmitter{}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(GoToStep{Step: domain.StepProject, Direction: DirectionForward})
	m.Dispatch(SetProjectType{Value: domain.ProjectRenovation})
	m.Dispatch(SetField{Field: "location", Value: "Lyon"})

	ok := m.SubmitCurrentStep(context.Background())

	assert.False(t, ok)
	assert.Equal(t, 0, svc.demandeCalls, "precondition failure must not reach the network")
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Contact non enregistré. Retournez à l'étape précédente.", notifier.errors[0])
	assert.Equal(t, domain.StepProject, m.State().CurrentStep)
}

func TestSubmitCurrentStep_ProjectFirstSubmissionStoresDemandeID(t *testing.T) {
	svc := &mockSubmitter{demandeID: "recABC"}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(SetContactID{ID: "rec123"})
	m.Dispatch(GoToStep{Step: domain.StepProject, Direction: DirectionForward})
	m.Dispatch(SetProjectType{Value: domain.ProjectRenovation})
	m.Dispatch(SetField{Field: "location", Value: "Lyon"})

	ok := m.SubmitCurrentStep(context.Background())

	require.True(t, ok)
	st := m.State()
	assert.Equal(t, "recABC", st.DemandeID)
	assert.Equal(t, domain.StepDetails, st.CurrentStep)
	assert.Equal(t, "rec123", svc.lastDemande.ContactID)
	assert.Equal(t, "", svc.lastDemande.DemandeID)
}

func TestSubmitCurrentStep_ProjectResubmissionKeepsDemandeID(t *testing.T) {
	svc := &mockSubmitter{demandeID: "recABC"}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(SetContactID{ID: "rec123"})
	m.Dispatch(SetDemandeID{ID: "recABC"})
	m.Dispatch(GoToStep{Step: domain.StepProject, Direction: DirectionForward})
	m.Dispatch(SetProjectType{Value: domain.ProjectExtension})
	m.Dispatch(SetField{Field: "location", Value: "Grenoble"})

	ok := m.SubmitCurrentStep(context.Background())

	require.True(t, ok)
	assert.Equal(t, "recABC", svc.lastDemande.DemandeID, "edit must update the existing demande")
	assert.Equal(t, "recABC", m.State().DemandeID)
}

func TestSubmitCurrentStep_DetailsRequiresDemandeID(t *testing.T) {
	svc := &mockSubmitter{}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(GoToStep{Step: domain.StepDetails, Direction: DirectionForward})

	ok := m.SubmitCurrentStep(context.Background())

	assert.False(t, ok)
	assert.Equal(t, 0, svc.detailsCalls)
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Demande non créée. Retournez à l'étape précédente.", notifier.errors[0])
}

func TestSubmitCurrentStep_DetailsSuccessTerminatesWizard(t *testing.T) {
	svc := &mockSubmitter{}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(SetDemandeID{ID: "recABC"})
	m.Dispatch(GoToStep{Step: domain.StepDetails, Direction: DirectionForward})
	m.Dispatch(SetField{Field: "description", Value: "Test"})
	m.Dispatch(AddFiles{Field: FileFieldPlans, Files: []domain.FileRef{
		{Name: "plan.pdf", Size: 4, Data: []byte("plan")},
	}})

	ok := m.SubmitCurrentStep(context.Background())

	require.True(t, ok)
	st := m.State()
	assert.True(t, st.Submitted)
	assert.Equal(t, domain.StepSuccess, st.CurrentStep)
	assert.False(t, st.Loading)

	assert.Equal(t, "recABC", svc.lastDetails.DemandeID)
	assert.Equal(t, "Test", svc.lastDetails.Description)
	require.Len(t, notifier.successes, 1)
	assert.Equal(t, "Votre demande de devis a bien été envoyée !", notifier.successes[0])
}

func TestSubmitCurrentStep_DetailsFailureStaysOnStep(t *testing.T) {
	svc := &mockSubmitter{
		detailsErr: domain.Unavailable(errors.New("boom"), "airtable.upload_attachment", "record store error (status 500)"),
	}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(SetDemandeID{ID: "recABC"})
	m.Dispatch(GoToStep{Step: domain.StepDetails, Direction: DirectionForward})

	ok := m.SubmitCurrentStep(context.Background())

	assert.False(t, ok)
	st := m.State()
	assert.Equal(t, domain.StepDetails, st.CurrentStep)
	assert.False(t, st.Submitted)
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Erreur lors de l'envoi de la demande", notifier.errors[0])
}

func TestSubmitCurrentStep_RetryAfterPartialFailureReuploadsEverything(t *testing.T) {
	// Documented behavior: resubmitting step 2 after a partial attachment
	// failure re-uploads already-succeeded files as new attachments.
	svc := &mockSubmitter{
		detailsErr: domain.Unavailable(errors.New("boom"), "airtable.upload_attachment", "record store error (status 500)"),
	}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(SetDemandeID{ID: "recABC"})
	m.Dispatch(GoToStep{Step: domain.StepDetails, Direction: DirectionForward})
	m.Dispatch(AddFiles{Field: FileFieldPlans, Files: []domain.FileRef{
		{Name: "a.pdf", Size: 1, Data: []byte("a")},
		{Name: "b.pdf", Size: 1, Data: []byte("b")},
	}})

	require.False(t, m.SubmitCurrentStep(context.Background()))
	require.Len(t, svc.lastDetails.Plans, 2)

	svc.detailsErr = nil
	require.True(t, m.SubmitCurrentStep(context.Background()))

	// The whole step is retried wholesale: both plans are sent again.
	assert.Equal(t, 2, svc.detailsCalls)
	assert.Len(t, svc.lastDetails.Plans, 2)
}

func TestSubmitCurrentStep_SuccessStepIsTerminal(t *testing.T) {
	svc := &mockSubmitter{}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	m.Dispatch(SetSubmitted{})

	assert.False(t, m.SubmitCurrentStep(context.Background()))
	assert.Equal(t, 0, svc.contactCalls+svc.demandeCalls+svc.detailsCalls)
}

func TestSubmitCurrentStep_RejectsOverlappingInvocations(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	svc := &mockSubmitter{
		contactResult: ContactResult{ContactID: "rec123"},
		block:         release,
		entered:       entered,
	}
	notifier := &recordingNotifier{}
	m := NewMachine(svc, notifier)
	fillIdentity(m)

	done := make(chan bool)
	go func() { done <- m.SubmitCurrentStep(context.Background()) }()

	// Wait for the first submission to be held inside SaveContact.
	<-entered

	// A second caller bypassing the disabled button is rejected without
	// touching the store.
	assert.False(t, m.SubmitCurrentStep(context.Background()))
	assert.Equal(t, 1, svc.contactCalls)

	close(release)
	assert.True(t, <-done)
}
