package flow

import (
	"sort"
	"strings"
	"time"
)

// quietWindow suppresses generic follow-up suggestions while our last
// free-form reply is still fresh, so operators aren't nudged
// mid-conversation. Measured from the last outbound send; new inbound
// replies do not restart it.
const quietWindow = 5 * time.Minute

// Direction mirrors the message direction without importing the repository.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Message is the minimal view of a stored message the reconstructor needs.
type Message struct {
	Direction Direction
	Body      string
	CreatedAt time.Time
}

// ActionKind names a side effect a reply has requested.
type ActionKind string

const (
	ActionRescheduleToday    ActionKind = "reschedule_today"
	ActionRescheduleTomorrow ActionKind = "reschedule_tomorrow"
	ActionCancel             ActionKind = "cancel"
)

// Action is a pending side effect implied by the last inbound reply. The
// reconstructor never executes it; the caller dispatches it explicitly and
// folds the outcome back into the suggested script.
type Action struct {
	Kind ActionKind
}

// Candidate is a script node rendered for the current contact, ready to send.
type Candidate struct {
	Node     Node
	Rendered string
}

// Result is the reconstructed conversation position.
type Result struct {
	// Waiting means the last message is ours and unanswered; suggest nothing.
	Waiting bool
	// LastNode is the classified node of the last outbound message, if any.
	LastNode *NodeID
	// Candidates are next scripts for the operator, in suggestion order.
	Candidates []Candidate
	// PendingAction, when set, must be dispatched before the conversation can
	// advance; Candidates then holds the optimistic success script.
	PendingAction *Action
}

// Reconstructor derives conversation position from message history. It is
// pure: same history and clock in, same result out.
type Reconstructor struct {
	catalog *Catalog
	now     func() time.Time
}

// NewReconstructor creates a reconstructor over the given script catalog.
func NewReconstructor(catalog *Catalog) *Reconstructor {
	return &Reconstructor{catalog: catalog, now: time.Now}
}

// Reconstruct determines where a contact stands in the scripted dialogue and
// what the operator should be offered next. The input slice is not mutated.
func (r *Reconstructor) Reconstruct(history []Message, ctx RenderContext) Result {
	msgs := make([]Message, len(history))
	copy(msgs, history)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	lastOut, lastIn := lastByDirection(msgs)

	// Never contacted: the conversation opener is the only sensible script.
	if lastOut == nil && lastIn == nil {
		return Result{Candidates: r.render([]NodeID{NodeConfirmation}, ctx)}
	}

	// Our message is the most recent one; the ball is in the contact's court.
	if lastOut != nil && (lastIn == nil || lastOut.CreatedAt.After(lastIn.CreatedAt)) {
		result := Result{Waiting: true}
		if id, ok := r.catalog.ClassifyOutbound(lastOut.Body); ok {
			result.LastNode = &id
		}
		return result
	}

	intent := ParseIntent(lastIn.Body)

	// Cancellation is honored from any position in the script.
	if intent.Kind == IntentCancel {
		return Result{
			PendingAction: &Action{Kind: ActionCancel},
			Candidates:    r.render([]NodeID{NodeCancelConfirmed}, ctx),
		}
	}

	// Inbound message with no prior outbound: treat like a fresh conversation,
	// but let explicit keywords steer.
	if lastOut == nil {
		return Result{Candidates: r.render(r.keywordNodes(intent, NodeConfirmation), ctx)}
	}

	nodeID, classified := r.catalog.ClassifyOutbound(lastOut.Body)
	if !classified {
		// Free-form exchange. Stay quiet briefly, then offer generic re-entry
		// points rather than guessing at script position.
		if r.now().Sub(lastOut.CreatedAt) < quietWindow {
			return Result{}
		}
		return Result{Candidates: r.render([]NodeID{NodeCheckIn, NodeHelp}, ctx)}
	}

	result := r.transition(nodeID, intent, ctx)
	result.LastNode = &nodeID
	return result
}

// transition is the (node, intent) table at the heart of the script graph.
func (r *Reconstructor) transition(node NodeID, intent Intent, ctx RenderContext) Result {
	switch node {
	case NodeConfirmation, NodeCheckIn:
		switch intent.Kind {
		case IntentYes, IntentBook:
			return Result{Candidates: r.render([]NodeID{NodeQualifying}, ctx)}
		case IntentNo:
			return Result{Candidates: r.render([]NodeID{NodeNotInterested}, ctx)}
		case IntentHelp:
			return Result{Candidates: r.render([]NodeID{NodeHelp}, ctx)}
		}

	case NodeQualifying:
		if intent.Kind == IntentDigits {
			ctx.SelectionSummary = r.summarizeSelection(intent.Digits)
			return Result{Candidates: r.render([]NodeID{NodeQualifyingSummary}, ctx)}
		}

	case NodeFitOrFree, NodeMoreInfo:
		switch {
		case intent.Kind == IntentDigits && len(intent.Digits) == 1:
			switch intent.Digits[0] {
			case 1:
				return Result{Candidates: r.render([]NodeID{NodeBookingLink}, ctx)}
			case 2:
				return Result{Candidates: r.render([]NodeID{NodeNotInterested}, ctx)}
			case 3:
				if node == NodeFitOrFree {
					return Result{Candidates: r.render([]NodeID{NodeMoreInfo}, ctx)}
				}
			}
		case intent.Kind == IntentYes || intent.Kind == IntentBook:
			return Result{Candidates: r.render([]NodeID{NodeBookingLink}, ctx)}
		case intent.Kind == IntentNo:
			return Result{Candidates: r.render([]NodeID{NodeNotInterested}, ctx)}
		}

	case NodeOfferMoveEarlier:
		if intent.Kind == IntentDigits && len(intent.Digits) == 1 {
			switch intent.Digits[0] {
			case 1:
				return Result{
					PendingAction: &Action{Kind: ActionRescheduleToday},
					Candidates:    r.render([]NodeID{NodeMoveConfirmed}, ctx),
				}
			case 2:
				return Result{
					PendingAction: &Action{Kind: ActionRescheduleTomorrow},
					Candidates:    r.render([]NodeID{NodeMoveConfirmed}, ctx),
				}
			case 3:
				return Result{Candidates: r.render([]NodeID{NodeKeepCurrentTime}, ctx)}
			}
		}

	case NodeNotInterested, NodeCancelConfirmed:
		if intent.Kind == IntentBook || intent.Kind == IntentYes {
			return Result{Candidates: r.render([]NodeID{NodeConfirmation}, ctx)}
		}
	}

	// Explicit keywords still work when the reply doesn't fit the node.
	switch intent.Kind {
	case IntentReschedule:
		return Result{Candidates: r.render([]NodeID{NodeOfferMoveEarlier}, ctx)}
	case IntentHelp:
		return Result{Candidates: r.render([]NodeID{NodeHelp}, ctx)}
	case IntentBook:
		return Result{Candidates: r.render([]NodeID{NodeBookingLink}, ctx)}
	}

	// Off-script reply: fall back to the generic re-entry set.
	return Result{Candidates: r.render([]NodeID{NodeCheckIn, NodeHelp}, ctx)}
}

func (r *Reconstructor) keywordNodes(intent Intent, fallback NodeID) []NodeID {
	switch intent.Kind {
	case IntentReschedule:
		return []NodeID{NodeOfferMoveEarlier}
	case IntentHelp:
		return []NodeID{NodeHelp}
	case IntentBook, IntentYes:
		return []NodeID{NodeQualifying}
	}
	return []NodeID{fallback}
}

// summarizeSelection joins the labels of selected qualifying options in the
// sender's order. Unknown digits are skipped rather than failing the reply.
func (r *Reconstructor) summarizeSelection(digits []int) string {
	labels := make([]string, 0, len(digits))
	for _, d := range digits {
		if label, ok := r.catalog.QualifyingLabel(d); ok {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return ""
	}
	return strings.Join(labels, ", ")
}

func (r *Reconstructor) render(ids []NodeID, ctx RenderContext) []Candidate {
	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		node, ok := r.catalog.Get(id)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Node: node, Rendered: Render(node.Template, ctx)})
	}
	return candidates
}

func lastByDirection(msgs []Message) (lastOut, lastIn *Message) {
	for i := range msgs {
		switch msgs[i].Direction {
		case DirectionOutbound:
			lastOut = &msgs[i]
		case DirectionInbound:
			lastIn = &msgs[i]
		}
	}
	return lastOut, lastIn
}
