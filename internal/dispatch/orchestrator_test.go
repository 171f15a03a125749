package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lusosms/dispatch-engine/internal/dispatch"
	"github.com/lusosms/dispatch-engine/internal/gateway"
	"github.com/lusosms/dispatch-engine/internal/models"
	"github.com/lusosms/dispatch-engine/internal/override"
)

type fakeGateway struct {
	id      models.GatewayID
	calls   int
	result  *models.SendResult
	err     error
	lastReq *gateway.SendRequest
	onSend  func()
}

func (f *fakeGateway) ID() models.GatewayID { return f.id }

func (f *fakeGateway) Send(_ context.Context, req *gateway.SendRequest) (*models.SendResult, error) {
	f.calls++
	f.lastReq = req
	if f.onSend != nil {
		f.onSend()
	}
	return f.result, f.err
}

func succeeding(id models.GatewayID, providerID string) *fakeGateway {
	return &fakeGateway{id: id, result: &models.SendResult{Success: true, MessageID: providerID, Gateway: id}}
}

func failing(id models.GatewayID, reason string) *fakeGateway {
	err := gateway.WrapRejected(errors.New(reason))
	return &fakeGateway{id: id, result: &models.SendResult{Gateway: id, Error: err.Error()}, err: err}
}

type fakeResolver struct {
	resolved string
	err      error
}

func (f *fakeResolver) ResolveEffectiveSenderID(context.Context, string, string) (string, error) {
	return f.resolved, f.err
}

type recordingLogger struct {
	calls   int
	last    *models.DispatchResult
	failErr error
}

func (r *recordingLogger) Record(_ context.Context, result *models.DispatchResult) error {
	r.calls++
	r.last = result
	return r.failErr
}

type recordingLedger struct {
	calls   int
	userID  string
	credits int
	failErr error
}

func (r *recordingLedger) Debit(_ context.Context, userID, _ string, credits int) error {
	r.calls++
	r.userID = userID
	r.credits = credits
	return r.failErr
}

type fixture struct {
	bulksms  *fakeGateway
	mimo     *fakeGateway
	resolver *fakeResolver
	logger   *recordingLogger
	ledger   *recordingLedger
	override models.GatewayOverride
}

func newOrchestrator(t *testing.T, f *fixture) *dispatch.Orchestrator {
	t.Helper()
	if f.resolver == nil {
		f.resolver = &fakeResolver{}
	}
	if f.logger == nil {
		f.logger = &recordingLogger{}
	}
	if f.ledger == nil {
		f.ledger = &recordingLedger{}
	}

	o, err := dispatch.New(
		dispatch.Config{DefaultSenderID: "LUSOSMS"},
		dispatch.Dependencies{
			Gateways:      gateway.Registry{f.bulksms.ID(): f.bulksms, f.mimo.ID(): f.mimo},
			Resolver:      f.resolver,
			Override:      override.Static(f.override),
			AttemptLogger: f.logger,
			Ledger:        f.ledger,
			Logger:        zerolog.Nop(),
		},
	)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return o
}

func message(to, text string) *models.OutboundMessage {
	return &models.OutboundMessage{To: to, Text: text}
}

func TestDispatchPrimarySuccessSkipsFallback(t *testing.T) {
	f := &fixture{
		bulksms: succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:    succeeding(models.GatewayMimo, "mm-1"),
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+351912345678", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.bulksms.calls != 1 {
		t.Fatalf("expected one primary call, got %d", f.bulksms.calls)
	}
	if f.mimo.calls != 0 {
		t.Fatalf("fallback invoked despite primary success")
	}
	if len(result.Attempts) != 1 || result.FallbackUsed {
		t.Fatalf("unexpected attempts: %+v", result)
	}
	if !result.FinalResult.Success || result.FinalResult.MessageID != "bk-1" {
		t.Fatalf("unexpected final result: %+v", result.FinalResult)
	}
	if result.Country != models.CountryPT {
		t.Fatalf("expected PT, got %s", result.Country)
	}
}

func TestDispatchPalopRoutesToMimoFirst(t *testing.T) {
	f := &fixture{
		bulksms: succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:    succeeding(models.GatewayMimo, "mm-1"),
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+244923456789", "olá"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.mimo.calls != 1 || f.bulksms.calls != 0 {
		t.Fatalf("expected mimo primary for AO, got mimo=%d bulksms=%d", f.mimo.calls, f.bulksms.calls)
	}
	if result.FinalResult.Gateway != models.GatewayMimo {
		t.Fatalf("unexpected gateway: %s", result.FinalResult.Gateway)
	}
	if !f.mimo.lastReq.Unicode {
		t.Fatalf("accented body should be flagged unicode")
	}
}

func TestDispatchFallbackOnPrimaryFailure(t *testing.T) {
	f := &fixture{
		bulksms: failing(models.GatewayBulkSMS, "upstream down"),
		mimo:    succeeding(models.GatewayMimo, "mm-2"),
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+351912345678", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.bulksms.calls != 1 || f.mimo.calls != 1 {
		t.Fatalf("expected one call each, got bulksms=%d mimo=%d", f.bulksms.calls, f.mimo.calls)
	}
	if len(result.Attempts) != 2 || !result.FallbackUsed {
		t.Fatalf("expected two attempts with fallback, got %+v", result)
	}
	if result.FinalResult != result.Attempts[1].Result {
		t.Fatalf("final result must equal last attempt result")
	}
	if !result.FinalResult.Success || result.FinalResult.MessageID != "mm-2" {
		t.Fatalf("unexpected final result: %+v", result.FinalResult)
	}
}

func TestDispatchBothFailingIsANormalResult(t *testing.T) {
	f := &fixture{
		bulksms: failing(models.GatewayBulkSMS, "down"),
		mimo:    failing(models.GatewayMimo, "also down"),
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+351912345678", "hello"))
	if err != nil {
		t.Fatalf("both attempts failing must not surface an error, got %v", err)
	}
	if result.FinalResult.Success {
		t.Fatalf("expected failed final result")
	}
	if len(result.Attempts) != 2 || !result.FallbackUsed {
		t.Fatalf("expected two recorded attempts, got %+v", result)
	}
	if result.FinalResult.Cost != 0 {
		t.Fatalf("failed dispatch must not be costed, got %d", result.FinalResult.Cost)
	}
	if f.ledger.calls != 0 {
		t.Fatalf("ledger debited on failure")
	}
	if f.logger.calls != 1 {
		t.Fatalf("attempt logger expected exactly once, got %d", f.logger.calls)
	}
}

func TestDispatchCostsAndDebitsOnlyTheFinalSuccess(t *testing.T) {
	f := &fixture{
		bulksms: succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:    succeeding(models.GatewayMimo, "mm-1"),
	}
	o := newOrchestrator(t, f)

	text := make([]byte, 161)
	for i := range text {
		text[i] = 'a'
	}

	result, err := o.Dispatch(context.Background(), "user-7", message("+351912345678", string(text)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FinalResult.Cost != 2 {
		t.Fatalf("expected 2 segments for 161 ascii chars, got %d", result.FinalResult.Cost)
	}
	if f.ledger.calls != 1 || f.ledger.userID != "user-7" || f.ledger.credits != 2 {
		t.Fatalf("unexpected ledger debit: %+v", f.ledger)
	}
}

func TestDispatchOverrideForcesPrimary(t *testing.T) {
	f := &fixture{
		bulksms:  succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:     succeeding(models.GatewayMimo, "mm-1"),
		override: models.OverrideForceBulkSMS,
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+244923456789", "olá"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.bulksms.calls != 1 || f.mimo.calls != 0 {
		t.Fatalf("override ignored: bulksms=%d mimo=%d", f.bulksms.calls, f.mimo.calls)
	}
	if result.OverrideUsed != models.OverrideForceBulkSMS {
		t.Fatalf("override not recorded, got %q", result.OverrideUsed)
	}
}

func TestDispatchSenderIDFallsBackToDefault(t *testing.T) {
	f := &fixture{
		bulksms:  succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:     succeeding(models.GatewayMimo, "mm-1"),
		resolver: &fakeResolver{resolved: ""},
	}
	o := newOrchestrator(t, f)

	msg := message("+351912345678", "hello")
	msg.From = "UNAPPROVED"
	result, err := o.Dispatch(context.Background(), "user-1", msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EffectiveSenderID != "LUSOSMS" {
		t.Fatalf("expected default sender id, got %q", result.EffectiveSenderID)
	}
	if f.bulksms.lastReq.SenderID != "LUSOSMS" {
		t.Fatalf("default sender id not forwarded to gateway")
	}
}

func TestDispatchResolverFailureIsNonFatal(t *testing.T) {
	f := &fixture{
		bulksms:  succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:     succeeding(models.GatewayMimo, "mm-1"),
		resolver: &fakeResolver{err: errors.New("backend unreachable")},
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+351912345678", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EffectiveSenderID != "LUSOSMS" {
		t.Fatalf("expected default sender id, got %q", result.EffectiveSenderID)
	}
}

func TestDispatchValidation(t *testing.T) {
	f := &fixture{
		bulksms: succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:    succeeding(models.GatewayMimo, "mm-1"),
	}
	o := newOrchestrator(t, f)

	cases := []struct {
		name   string
		userID string
		msg    *models.OutboundMessage
	}{
		{"missing user", "", message("+351912345678", "hello")},
		{"missing message", "user-1", nil},
		{"missing destination", "user-1", message("", "hello")},
		{"missing text", "user-1", message("+351912345678", "")},
	}

	for _, tc := range cases {
		result, err := o.Dispatch(context.Background(), tc.userID, tc.msg)
		var invalid *dispatch.ValidationError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if result != nil {
			t.Fatalf("%s: expected nil result", tc.name)
		}
	}

	if f.bulksms.calls != 0 || f.mimo.calls != 0 {
		t.Fatalf("providers contacted for invalid requests")
	}
	if f.logger.calls != 0 {
		t.Fatalf("attempts recorded for invalid requests")
	}
}

func TestDispatchSideEffectFailuresDoNotChangeOutcome(t *testing.T) {
	f := &fixture{
		bulksms: succeeding(models.GatewayBulkSMS, "bk-1"),
		mimo:    succeeding(models.GatewayMimo, "mm-1"),
		logger:  &recordingLogger{failErr: errors.New("kafka down")},
		ledger:  &recordingLedger{failErr: errors.New("postgres down")},
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(context.Background(), "user-1", message("+351912345678", "hello"))
	if err != nil {
		t.Fatalf("side effect failure leaked into dispatch outcome: %v", err)
	}
	if !result.FinalResult.Success {
		t.Fatalf("expected successful result, got %+v", result.FinalResult)
	}
}

func TestDispatchCancellationSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := failing(models.GatewayBulkSMS, "interrupted")
	primary.onSend = cancel

	f := &fixture{
		bulksms: primary,
		mimo:    succeeding(models.GatewayMimo, "mm-1"),
	}
	o := newOrchestrator(t, f)

	result, err := o.Dispatch(ctx, "user-1", message("+351912345678", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.mimo.calls != 0 {
		t.Fatalf("fallback attempted after cancellation")
	}
	if len(result.Attempts) != 1 || result.FallbackUsed {
		t.Fatalf("unexpected attempts after cancellation: %+v", result)
	}
	if result.FinalResult.Success {
		t.Fatalf("cancelled dispatch cannot succeed")
	}
}
