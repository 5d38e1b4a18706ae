package flow

import (
	"strings"
	"testing"
	"time"
)

func testReconstructor() *Reconstructor {
	r := NewReconstructor(DefaultCatalog())
	r.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return r
}

func at(minutesAgo int) time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).Add(-time.Duration(minutesAgo) * time.Minute)
}

func renderedNode(c *Catalog, id NodeID, ctx RenderContext) string {
	node, _ := c.Get(id)
	return Render(node.Template, ctx)
}

func TestReconstruct_EmptyHistory_SuggestsConfirmation(t *testing.T) {
	r := testReconstructor()

	result := r.Reconstruct(nil, RenderContext{ContactName: "Ana"})

	if result.Waiting {
		t.Fatal("expected not waiting on empty history")
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Node.ID != NodeConfirmation {
		t.Fatalf("expected confirmation node, got %s", result.Candidates[0].Node.ID)
	}
	if !strings.Contains(result.Candidates[0].Rendered, "Hi Ana!") {
		t.Fatalf("expected rendered name, got %q", result.Candidates[0].Rendered)
	}
}

func TestReconstruct_IsIdempotent(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	ctx := RenderContext{ContactName: "Ana", ClinicName: "Core Clinic"}
	history := []Message{
		{Direction: DirectionOutbound, Body: renderedNode(catalog, NodeConfirmation, ctx), CreatedAt: at(30)},
		{Direction: DirectionInbound, Body: "yes", CreatedAt: at(20)},
	}

	first := r.Reconstruct(history, ctx)
	second := r.Reconstruct(history, ctx)

	if len(first.Candidates) != len(second.Candidates) {
		t.Fatalf("candidate counts differ: %d vs %d", len(first.Candidates), len(second.Candidates))
	}
	for i := range first.Candidates {
		if first.Candidates[i].Node.ID != second.Candidates[i].Node.ID {
			t.Fatalf("candidate %d differs: %s vs %s", i, first.Candidates[i].Node.ID, second.Candidates[i].Node.ID)
		}
		if first.Candidates[i].Rendered != second.Candidates[i].Rendered {
			t.Fatalf("rendered text differs at %d", i)
		}
	}
}

func TestReconstruct_OutboundUnanswered_Waits(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	history := []Message{
		{Direction: DirectionOutbound, Body: renderedNode(catalog, NodeConfirmation, RenderContext{}), CreatedAt: at(10)},
	}

	result := r.Reconstruct(history, RenderContext{})

	if !result.Waiting {
		t.Fatal("expected waiting state")
	}
	if len(result.Candidates) != 0 {
		t.Fatalf("expected no candidates while waiting, got %d", len(result.Candidates))
	}
	if result.LastNode == nil || *result.LastNode != NodeConfirmation {
		t.Fatalf("expected last node classified as confirmation, got %v", result.LastNode)
	}
}

func TestReconstruct_ConfirmationYes_AdvancesToQualifying(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	history := []Message{
		{Direction: DirectionOutbound, Body: renderedNode(catalog, NodeConfirmation, RenderContext{ContactName: "Ana"}), CreatedAt: at(30)},
		{Direction: DirectionInbound, Body: "Yes please", CreatedAt: at(25)},
	}

	result := r.Reconstruct(history, RenderContext{ContactName: "Ana"})

	if len(result.Candidates) != 1 || result.Candidates[0].Node.ID != NodeQualifying {
		t.Fatalf("expected qualifying node, got %+v", result.Candidates)
	}
}

func TestReconstruct_MultiSelectDigits_SummarizesAllSelections(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	history := []Message{
		{Direction: DirectionOutbound, Body: renderedNode(catalog, NodeQualifying, RenderContext{}), CreatedAt: at(30)},
		{Direction: DirectionInbound, Body: "1,3,7", CreatedAt: at(25)},
	}

	result := r.Reconstruct(history, RenderContext{ContactName: "Ana", BookingLink: "https://book.example/c"})

	if len(result.Candidates) != 1 || result.Candidates[0].Node.ID != NodeQualifyingSummary {
		t.Fatalf("expected qualifying summary, got %+v", result.Candidates)
	}
	rendered := result.Candidates[0].Rendered
	if !strings.Contains(rendered, "Pain relief, Strength, General fitness") {
		t.Fatalf("expected all three selections joined in order, got %q", rendered)
	}
}

func TestReconstruct_FitOrFreeReplyTwo_SuggestsNotInterested(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	history := []Message{
		{Direction: DirectionOutbound, Body: renderedNode(catalog, NodeFitOrFree, RenderContext{ClinicName: "Core Clinic"}), CreatedAt: at(30)},
		{Direction: DirectionInbound, Body: "2", CreatedAt: at(25)},
	}

	result := r.Reconstruct(history, RenderContext{ContactName: "Ana"})

	if len(result.Candidates) != 1 || result.Candidates[0].Node.ID != NodeNotInterested {
		t.Fatalf("expected not-interested node, got %+v", result.Candidates)
	}
	if result.PendingAction != nil {
		t.Fatal("declining an offer must not trigger any scheduling action")
	}
}

func TestReconstruct_MoveEarlierReplyOne_RequestsRescheduleToday(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	apptAt := time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)
	ctx := RenderContext{ContactName: "Ana", AppointmentAt: &apptAt, Location: time.UTC}
	history := []Message{
		{Direction: DirectionOutbound, Body: renderedNode(catalog, NodeOfferMoveEarlier, ctx), CreatedAt: at(30)},
		{Direction: DirectionInbound, Body: "1", CreatedAt: at(25)},
	}

	result := r.Reconstruct(history, ctx)

	if result.PendingAction == nil || result.PendingAction.Kind != ActionRescheduleToday {
		t.Fatalf("expected pending reschedule-today action, got %+v", result.PendingAction)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].Node.ID != NodeMoveConfirmed {
		t.Fatalf("expected optimistic move-confirmed candidate, got %+v", result.Candidates)
	}
}

func TestReconstruct_CancelKeyword_WorksFromAnyNode(t *testing.T) {
	r := testReconstructor()
	catalog := DefaultCatalog()
	for _, node := range []NodeID{NodeConfirmation, NodeQualifying, NodeFitOrFree, NodeOfferMoveEarlier} {
		history := []Message{
			{Direction: DirectionOutbound, Body: renderedNode(catalog, node, RenderContext{}), CreatedAt: at(30)},
			{Direction: DirectionInbound, Body: "CANCEL", CreatedAt: at(25)},
		}

		result := r.Reconstruct(history, RenderContext{})

		if result.PendingAction == nil || result.PendingAction.Kind != ActionCancel {
			t.Fatalf("node %s: expected pending cancel action, got %+v", node, result.PendingAction)
		}
	}
}

func TestReconstruct_UnclassifiedExchange_QuietWindowSuppressesSuggestions(t *testing.T) {
	r := testReconstructor()
	history := []Message{
		{Direction: DirectionOutbound, Body: "Sure, see you then - street parking is free after 6.", CreatedAt: at(4)},
		{Direction: DirectionInbound, Body: "where do I park?", CreatedAt: at(3)},
	}

	result := r.Reconstruct(history, RenderContext{})

	if len(result.Candidates) != 0 {
		t.Fatalf("expected no suggestions within quiet window, got %d", len(result.Candidates))
	}
}

func TestReconstruct_UnclassifiedExchange_OffersGenericNodesAfterQuietWindow(t *testing.T) {
	r := testReconstructor()
	history := []Message{
		{Direction: DirectionOutbound, Body: "Sure, see you then - street parking is free after 6.", CreatedAt: at(20)},
		{Direction: DirectionInbound, Body: "where do I park?", CreatedAt: at(10)},
	}

	result := r.Reconstruct(history, RenderContext{ContactName: "Ana"})

	if len(result.Candidates) != 2 {
		t.Fatalf("expected the generic suggestion set, got %d candidates", len(result.Candidates))
	}
	if result.Candidates[0].Node.ID != NodeCheckIn || result.Candidates[1].Node.ID != NodeHelp {
		t.Fatalf("expected check-in then help, got %s, %s", result.Candidates[0].Node.ID, result.Candidates[1].Node.ID)
	}
}

func TestReconstruct_UnclassifiedExchange_QuietWindowKeyedToLastOutbound(t *testing.T) {
	r := testReconstructor()
	history := []Message{
		{Direction: DirectionOutbound, Body: "Sure, see you then - street parking is free after 6.", CreatedAt: at(20)},
		{Direction: DirectionInbound, Body: "great, thanks!", CreatedAt: at(2)},
	}

	result := r.Reconstruct(history, RenderContext{ContactName: "Ana"})

	if len(result.Candidates) != 2 {
		t.Fatalf("a fresh inbound reply must not restart the quiet window, got %d candidates", len(result.Candidates))
	}
	if result.Candidates[0].Node.ID != NodeCheckIn || result.Candidates[1].Node.ID != NodeHelp {
		t.Fatalf("expected check-in then help, got %s, %s", result.Candidates[0].Node.ID, result.Candidates[1].Node.ID)
	}
}

func TestReconstruct_DoesNotMutateInputHistory(t *testing.T) {
	r := testReconstructor()
	history := []Message{
		{Direction: DirectionInbound, Body: "hello", CreatedAt: at(5)},
		{Direction: DirectionOutbound, Body: "older", CreatedAt: at(50)},
	}

	r.Reconstruct(history, RenderContext{})

	if history[0].Body != "hello" || history[1].Body != "older" {
		t.Fatal("input history order was mutated")
	}
}

func TestParseIntent_Keywords(t *testing.T) {
	cases := []struct {
		body string
		want IntentKind
	}{
		{"yes", IntentYes},
		{"Yeah sure", IntentYes},
		{"no thanks", IntentNo},
		{"Now is fine", IntentUnknown},
		{"CANCEL", IntentCancel},
		{"please cancel 1", IntentCancel},
		{"can we reschedule", IntentReschedule},
		{"HELP", IntentHelp},
		{"book", IntentBook},
		{"", IntentUnknown},
		{"???", IntentUnknown},
	}
	for _, tc := range cases {
		got := ParseIntent(tc.body)
		if got.Kind != tc.want {
			t.Fatalf("ParseIntent(%q) = %s, want %s", tc.body, got.Kind, tc.want)
		}
	}
}

func TestParseIntent_Digits(t *testing.T) {
	got := ParseIntent("1, 3 7")
	if got.Kind != IntentDigits {
		t.Fatalf("expected digits intent, got %s", got.Kind)
	}
	if len(got.Digits) != 3 || got.Digits[0] != 1 || got.Digits[1] != 3 || got.Digits[2] != 7 {
		t.Fatalf("expected [1 3 7], got %v", got.Digits)
	}

	if ParseIntent("1 and 2").Kind == IntentDigits {
		t.Fatal("mixed digit/word reply must not parse as digits")
	}
	if ParseIntent("10").Kind == IntentDigits {
		t.Fatal("out-of-range number must not parse as a selection")
	}
}

func TestRender_MissingValuesFallBackToReadablePhrases(t *testing.T) {
	node, _ := DefaultCatalog().Get(NodeKeepCurrentTime)

	rendered := Render(node.Template, RenderContext{})

	if strings.Contains(rendered, "{{") {
		t.Fatalf("raw placeholder leaked: %q", rendered)
	}
	if !strings.Contains(rendered, "your scheduled time") {
		t.Fatalf("expected appointment_time fallback, got %q", rendered)
	}
}

func TestClassifyOutbound_RoundTripsEveryNode(t *testing.T) {
	catalog := DefaultCatalog()
	apptAt := time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)
	ctx := RenderContext{
		ContactName:      "Ana",
		ClinicName:       "Core Clinic",
		BookingLink:      "https://book.example/c",
		AppointmentAt:    &apptAt,
		Location:         time.UTC,
		SelectionSummary: "Mobility",
	}

	for id, node := range catalog.nodes {
		rendered := Render(node.Template, ctx)
		got, ok := catalog.ClassifyOutbound(rendered)
		if !ok {
			t.Fatalf("node %s: rendered body did not classify", id)
		}
		if got != id {
			t.Fatalf("node %s classified as %s", id, got)
		}
	}
}
