package escalate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/prahari-health/prahari/internal/model"
)

type fakeCaseStore struct {
	cases     []*model.EscalatedCase
	createErr error
	saveErr   error
}

func (f *fakeCaseStore) Create(_ context.Context, c *model.EscalatedCase) error {
	if f.createErr != nil {
		return f.createErr
	}
	c.ID = int64(len(f.cases) + 1)
	f.cases = append(f.cases, c)
	return nil
}

func (f *fakeCaseStore) GetByNumber(_ context.Context, caseNumber string) (*model.EscalatedCase, error) {
	for _, c := range f.cases {
		if c.CaseNumber == caseNumber {
			return c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeCaseStore) Save(_ context.Context, c *model.EscalatedCase) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	for i, existing := range f.cases {
		if existing.ID == c.ID {
			f.cases[i] = c
			return nil
		}
	}
	return model.ErrNotFound
}

func (f *fakeCaseStore) Pending(_ context.Context, expertID *int64) ([]model.EscalatedCase, error) {
	var pending []model.EscalatedCase
	for _, c := range f.cases {
		if c.Status.Terminal() {
			continue
		}
		if expertID != nil && (c.AssignedExpertID == nil || *c.AssignedExpertID != *expertID) {
			continue
		}
		pending = append(pending, *c)
	}
	return pending, nil
}

type fakeExpertStore struct {
	experts []model.Expert
	err     error
}

func (f *fakeExpertStore) FirstAvailable(_ context.Context) (*model.Expert, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.experts {
		if f.experts[i].IsActive && f.experts[i].IsAvailable {
			return &f.experts[i], nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeExpertStore) Get(_ context.Context, id int64) (*model.Expert, error) {
	for i := range f.experts {
		if f.experts[i].ID == id {
			return &f.experts[i], nil
		}
	}
	return nil, model.ErrNotFound
}

type fakeNotifier struct {
	phones []string
	texts  []string
	err    error
}

func (f *fakeNotifier) SendText(_ context.Context, phone, text string) error {
	if f.err != nil {
		return f.err
	}
	f.phones = append(f.phones, phone)
	f.texts = append(f.texts, text)
	return nil
}

func onDuty() *fakeExpertStore {
	return &fakeExpertStore{experts: []model.Expert{
		{ID: 1, Name: "Dr. Asha Verma", PhoneNumber: "+911112223334", IsActive: true, IsAvailable: true},
		{ID: 2, Name: "Dr. Ravi Nair", PhoneNumber: "+915556667778", IsActive: true, IsAvailable: true},
	}}
}

func openInput() OpenCaseInput {
	return OpenCaseInput{
		UserID:   "+919876543210",
		Query:    "My father has chest pain and can't breathe.",
		Response: "Call 108 immediately.",
		Severity: model.RiskCritical,
		Reason:   "Emergency situation detected: chest pain, can't breathe",
		Keywords: []string{"chest pain", "can't breathe"},
	}
}

func TestOpenCaseAssignsAndNotifies(t *testing.T) {
	cases := &fakeCaseStore{}
	notifier := &fakeNotifier{}
	m := NewManager(cases, onDuty(), notifier, nil)

	c, err := m.OpenCase(context.Background(), openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}

	if c.Status != model.CaseOpen {
		t.Errorf("status = %s, want open", c.Status)
	}
	if c.AssignedExpertID == nil || *c.AssignedExpertID != 1 {
		t.Errorf("assigned expert = %v, want 1", c.AssignedExpertID)
	}
	if len(cases.cases) != 1 {
		t.Fatalf("cases persisted = %d, want 1", len(cases.cases))
	}

	if len(notifier.texts) != 1 {
		t.Fatalf("notifications sent = %d, want 1", len(notifier.texts))
	}
	if notifier.phones[0] != "+911112223334" {
		t.Errorf("notified %s, want the assigned expert's phone", notifier.phones[0])
	}
	text := notifier.texts[0]
	for _, want := range []string{
		"Case: " + c.CaseNumber,
		"Severity: critical",
		"Reason: Emergency situation detected",
		"Patient: +919876543210",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("notification %q does not contain %q", text, want)
		}
	}
}

func TestOpenCaseWithoutExpertStaysUnassigned(t *testing.T) {
	cases := &fakeCaseStore{}
	notifier := &fakeNotifier{}
	m := NewManager(cases, &fakeExpertStore{}, notifier, nil)

	c, err := m.OpenCase(context.Background(), openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if c.AssignedExpertID != nil {
		t.Errorf("assigned expert = %v, want unassigned", c.AssignedExpertID)
	}
	if len(notifier.texts) != 0 {
		t.Errorf("notifications sent = %d, want 0", len(notifier.texts))
	}
	if len(cases.cases) != 1 {
		t.Errorf("cases persisted = %d, want 1", len(cases.cases))
	}
}

func TestOpenCaseCreateFailure(t *testing.T) {
	cases := &fakeCaseStore{createErr: errors.New("connection refused")}
	notifier := &fakeNotifier{}
	m := NewManager(cases, onDuty(), notifier, nil)

	if _, err := m.OpenCase(context.Background(), openInput()); err == nil {
		t.Fatal("expected an error when the insert fails")
	}
	if len(notifier.texts) != 0 {
		t.Errorf("notifications sent = %d, want 0 for a failed case", len(notifier.texts))
	}
}

func TestOpenCaseSurvivesNotificationFailure(t *testing.T) {
	cases := &fakeCaseStore{}
	m := NewManager(cases, onDuty(), &fakeNotifier{err: errors.New("channel down")}, nil)

	c, err := m.OpenCase(context.Background(), openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if c == nil || len(cases.cases) != 1 {
		t.Error("case must stand when notification fails")
	}
}

func TestOpenCaseDefaultsSeverity(t *testing.T) {
	m := NewManager(&fakeCaseStore{}, &fakeExpertStore{}, nil, nil)

	input := openInput()
	input.Severity = ""
	c, err := m.OpenCase(context.Background(), input)
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if c.Severity != model.RiskHigh {
		t.Errorf("severity = %s, want the high default", c.Severity)
	}
}

func TestCaseNumberFormat(t *testing.T) {
	m := NewManager(&fakeCaseStore{}, &fakeExpertStore{}, nil, nil)

	format := regexp.MustCompile(`^CASE-[0-9A-F]{8}$`)
	first, err := m.OpenCase(context.Background(), openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	second, err := m.OpenCase(context.Background(), openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}

	for _, c := range []*model.EscalatedCase{first, second} {
		if !format.MatchString(c.CaseNumber) {
			t.Errorf("case number %q does not match CASE-XXXXXXXX", c.CaseNumber)
		}
	}
	if first.CaseNumber == second.CaseNumber {
		t.Errorf("case numbers collide: %s", first.CaseNumber)
	}
}

func TestCaseLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&fakeCaseStore{}, onDuty(), nil, nil)

	c, err := m.OpenCase(ctx, openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}

	inProgress, err := m.StartReview(ctx, c.CaseNumber, nil)
	if err != nil {
		t.Fatalf("StartReview: %v", err)
	}
	if inProgress.Status != model.CaseInProgress {
		t.Errorf("status = %s, want in_progress", inProgress.Status)
	}

	resolved, err := m.ResolveCase(ctx, c.CaseNumber, "Advised immediate hospital visit, patient confirmed.")
	if err != nil {
		t.Fatalf("ResolveCase: %v", err)
	}
	if resolved.Status != model.CaseResolved {
		t.Errorf("status = %s, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolved case must carry a resolution timestamp")
	}
	if resolved.ResolutionNotes == "" {
		t.Error("resolution notes were dropped")
	}

	// Terminal cases accept no further transitions.
	if _, err := m.StartReview(ctx, c.CaseNumber, nil); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("StartReview after resolve: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.CloseCase(ctx, c.CaseNumber, ""); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("CloseCase after resolve: err = %v, want ErrInvalidTransition", err)
	}
}

func TestCloseWithoutReview(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&fakeCaseStore{}, onDuty(), nil, nil)

	c, err := m.OpenCase(ctx, openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}

	closed, err := m.CloseCase(ctx, c.CaseNumber, "duplicate of an earlier case")
	if err != nil {
		t.Fatalf("CloseCase: %v", err)
	}
	if closed.Status != model.CaseClosed {
		t.Errorf("status = %s, want closed", closed.Status)
	}
}

func TestStartReviewReassigns(t *testing.T) {
	ctx := context.Background()
	experts := onDuty()
	m := NewManager(&fakeCaseStore{}, experts, nil, nil)

	c, err := m.OpenCase(ctx, openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}

	second := int64(2)
	reviewed, err := m.StartReview(ctx, c.CaseNumber, &second)
	if err != nil {
		t.Fatalf("StartReview: %v", err)
	}
	if reviewed.AssignedExpertID == nil || *reviewed.AssignedExpertID != 2 {
		t.Errorf("assigned expert = %v, want 2", reviewed.AssignedExpertID)
	}

	missing := int64(99)
	if _, err := m.StartReview(ctx, c.CaseNumber, &missing); err == nil {
		t.Error("expected an error for an unknown expert")
	}
}

func TestListPendingFiltersByExpert(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&fakeCaseStore{}, onDuty(), nil, nil)

	first, err := m.OpenCase(ctx, openInput())
	if err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if _, err := m.OpenCase(ctx, openInput()); err != nil {
		t.Fatalf("OpenCase: %v", err)
	}
	if _, err := m.ResolveCase(ctx, first.CaseNumber, "done"); err != nil {
		t.Fatalf("ResolveCase: %v", err)
	}

	pending, err := m.ListPending(ctx, nil)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1 after resolving the first", len(pending))
	}

	other := int64(2)
	filtered, err := m.ListPending(ctx, &other)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("pending for expert 2 = %d, want 0", len(filtered))
	}
}
