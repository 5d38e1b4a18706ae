// Package flow reconstructs a contact's position in the scripted SMS dialogue
// from message history alone and selects the next candidate reply scripts.
// No conversation state is persisted; the message list is the ground truth,
// so the UI can never show a stored step that disagrees with what was sent.
package flow

// NodeID identifies a script node in the fixed conversation graph.
type NodeID string

const (
	NodeConfirmation     NodeID = "confirmation"
	NodeQualifying       NodeID = "qualifying_question"
	NodeQualifyingSummary NodeID = "qualifying_summary"
	NodeFitOrFree        NodeID = "fit_or_free_offer"
	NodeMoreInfo         NodeID = "more_info"
	NodeNotInterested    NodeID = "not_interested_referrals"
	NodeBookingLink      NodeID = "booking_link"
	NodeOfferMoveEarlier NodeID = "offer_move_earlier"
	NodeMoveConfirmed    NodeID = "move_confirmed"
	NodeKeepCurrentTime  NodeID = "keep_current_time"
	NodeRescheduleError  NodeID = "reschedule_error"
	NodeCancelConfirmed  NodeID = "cancel_confirmed"
	NodeCancelError      NodeID = "cancel_error"
	NodeHelp             NodeID = "help_menu"
	NodeCheckIn          NodeID = "check_in"
	NodeReminder         NodeID = "appointment_reminder"
)

// Category groups script nodes by purpose.
type Category string

const (
	CategoryConfirmation Category = "confirmation"
	CategoryQualifying   Category = "qualifying-question"
	CategoryOffer        Category = "offer"
	CategoryObjection    Category = "objection-handling"
	CategoryAutoReply    Category = "auto-reply"
	CategoryError        Category = "error"
)

// Node is one fixed, templated SMS reply in the scripted conversation graph.
// Immutable at runtime.
type Node struct {
	ID        NodeID
	Category  Category
	Template  string
	Variables []string
	// signature is the stable substring used to classify an already-sent
	// outbound message back to this node. Placeholders never appear in it.
	signature string
}

// Catalog is the immutable script graph, injected into the reconstructor.
type Catalog struct {
	nodes map[NodeID]Node
	// classifyOrder is the signature match order. More specific phrases come
	// before generic ones; first match wins.
	classifyOrder []NodeID
	// qualifyingLabels maps a digit reply on the qualifying question to its label.
	qualifyingLabels map[int]string
}

// DefaultCatalog returns the clinic's hand-authored script graph.
func DefaultCatalog() *Catalog {
	nodes := []Node{
		{
			ID:        NodeConfirmation,
			Category:  CategoryConfirmation,
			Template:  "Hi {{name}}! This is {{clinic_name}} confirming your interest in a first session. Reply YES to pick a time, NO if now isn't right, or HELP for options.",
			Variables: []string{"name", "clinic_name"},
			signature: "confirming your interest in a first session",
		},
		{
			ID:        NodeQualifying,
			Category:  CategoryQualifying,
			Template:  "Great! What would you like to work on? Reply with all the numbers that apply: 1 Pain relief, 2 Mobility, 3 Strength, 4 Posture, 5 Stress, 6 Injury recovery, 7 General fitness.",
			signature: "all the numbers that apply",
		},
		{
			ID:        NodeQualifyingSummary,
			Category:  CategoryQualifying,
			Template:  "Thanks {{name}}! Noted: {{selection_summary}}. Your practitioner will tailor the first session around that. You can pick a time here: {{booking_link}}",
			Variables: []string{"name", "selection_summary", "booking_link"},
			signature: "tailor the first session around that",
		},
		{
			ID:        NodeFitOrFree,
			Category:  CategoryOffer,
			Template:  "Fit or Free first session at {{clinic_name}} — if it's not a fit, it's free. Reply 1 to book now, 2 if you're not interested, 3 for more info.",
			Variables: []string{"clinic_name"},
			signature: "Fit or Free first session",
		},
		{
			ID:        NodeMoreInfo,
			Category:  CategoryOffer,
			Template:  "The first session is 45 minutes: a movement assessment, a treatment plan, and your first hands-on treatment. If it's not a fit, you pay nothing. Reply 1 to book now or 2 if it's not for you.",
			signature: "a movement assessment, a treatment plan",
		},
		{
			ID:        NodeNotInterested,
			Category:  CategoryObjection,
			Template:  "No problem {{name}}, thanks for letting us know. If you're looking elsewhere, Riverside Physio and the Hartley Clinic are both excellent. Reply START anytime if you change your mind.",
			Variables: []string{"name"},
			signature: "thanks for letting us know",
		},
		{
			ID:        NodeBookingLink,
			Category:  CategoryOffer,
			Template:  "Wonderful! You can pick a time that suits you here: {{booking_link}}. Slots open up to a few days ahead.",
			Variables: []string{"booking_link"},
			signature: "pick a time that suits you here",
		},
		{
			ID:        NodeOfferMoveEarlier,
			Category:  CategoryOffer,
			Template:  "Good news {{name}} — an earlier time just opened up. Reply 1 to move to today, 2 for tomorrow, or 3 to keep your current time ({{appointment_time}}).",
			Variables: []string{"name", "appointment_time"},
			signature: "an earlier time just opened up",
		},
		{
			ID:        NodeMoveConfirmed,
			Category:  CategoryConfirmation,
			Template:  "Done! Your session has been moved to {{appointment_time}}. See you then!",
			Variables: []string{"appointment_time"},
			signature: "Your session has been moved to",
		},
		{
			ID:        NodeKeepCurrentTime,
			Category:  CategoryConfirmation,
			Template:  "No changes made — we'll see you at {{appointment_time}}.",
			Variables: []string{"appointment_time"},
			signature: "No changes made",
		},
		{
			ID:        NodeRescheduleError,
			Category:  CategoryError,
			Template:  "Sorry {{name}}, we couldn't move your appointment just now. Your original time ({{appointment_time}}) is unchanged and our front desk will follow up shortly.",
			Variables: []string{"name", "appointment_time"},
			signature: "couldn't move your appointment just now",
		},
		{
			ID:        NodeCancelConfirmed,
			Category:  CategoryConfirmation,
			Template:  "Your appointment has been cancelled. Reply BOOK whenever you'd like to come back — we'd love to see you.",
			signature: "Your appointment has been cancelled",
		},
		{
			ID:        NodeCancelError,
			Category:  CategoryError,
			Template:  "Sorry, we couldn't cancel your appointment automatically. Our front desk will reach out to confirm — nothing else needed from you.",
			signature: "couldn't cancel your appointment automatically",
		},
		{
			ID:        NodeHelp,
			Category:  CategoryAutoReply,
			Template:  "You can reply BOOK to schedule, RESCHEDULE to change your time, CANCEL to cancel, or HELP to see this menu again.",
			signature: "to see this menu again",
		},
		{
			ID:        NodeCheckIn,
			Category:  CategoryAutoReply,
			Template:  "Hi {{name}}, just checking in — still interested in booking your first session? Reply YES and we'll sort it out.",
			Variables: []string{"name"},
			signature: "just checking in",
		},
		{
			ID:        NodeReminder,
			Category:  CategoryAutoReply,
			Template:  "Hi {{name}}, a friendly reminder of your session at {{clinic_name}} on {{appointment_time}}. Reply RESCHEDULE to change your time or CANCEL if you can't make it.",
			Variables: []string{"name", "clinic_name", "appointment_time"},
			signature: "friendly reminder of your session",
		},
	}

	catalog := &Catalog{
		nodes: make(map[NodeID]Node, len(nodes)),
		// Longer, more specific signatures are listed before generic ones.
		// This order is a correctness contract for classification.
		classifyOrder: []NodeID{
			NodeQualifyingSummary,
			NodeQualifying,
			NodeOfferMoveEarlier,
			NodeRescheduleError,
			NodeCancelError,
			NodeMoveConfirmed,
			NodeKeepCurrentTime,
			NodeCancelConfirmed,
			NodeMoreInfo,
			NodeFitOrFree,
			NodeConfirmation,
			NodeNotInterested,
			NodeBookingLink,
			NodeReminder,
			NodeCheckIn,
			NodeHelp,
		},
		qualifyingLabels: map[int]string{
			1: "Pain relief",
			2: "Mobility",
			3: "Strength",
			4: "Posture",
			5: "Stress",
			6: "Injury recovery",
			7: "General fitness",
		},
	}
	for _, n := range nodes {
		catalog.nodes[n.ID] = n
	}
	return catalog
}

// Get returns a node by id.
func (c *Catalog) Get(id NodeID) (Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// ClassifyOutbound maps an already-sent outbound body back to the node it was
// rendered from. Matching is substring based over the fixed order; rendered
// placeholder values never participate in a signature.
func (c *Catalog) ClassifyOutbound(body string) (NodeID, bool) {
	for _, id := range c.classifyOrder {
		if containsFold(body, c.nodes[id].signature) {
			return id, true
		}
	}
	return "", false
}

// QualifyingLabel returns the label for a digit on the qualifying question.
func (c *Catalog) QualifyingLabel(digit int) (string, bool) {
	label, ok := c.qualifyingLabels[digit]
	return label, ok
}
