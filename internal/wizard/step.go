package wizard

import "fmt"

// Step names a page of the invoice wizard.
type Step string

const (
	StepClientInfo     Step = "client_info"
	StepInvoiceDetails Step = "invoice_details"
	StepItems          Step = "items"
	StepOptions        Step = "options"
	StepReview         Step = "review"
)

// Steps lists every step in flow order.
var Steps = []Step{StepClientInfo, StepInvoiceDetails, StepItems, StepOptions, StepReview}

type transition struct {
	next, prev Step
	title      string
}

// transitions is the only source of step ordering. A step that is its own
// next (or prev) is a boundary.
var transitions = map[Step]transition{
	StepClientInfo:     {next: StepInvoiceDetails, prev: StepClientInfo, title: "Client Info"},
	StepInvoiceDetails: {next: StepItems, prev: StepClientInfo, title: "Invoice Details"},
	StepItems:          {next: StepOptions, prev: StepInvoiceDetails, title: "Items"},
	StepOptions:        {next: StepReview, prev: StepItems, title: "Options"},
	StepReview:         {next: StepReview, prev: StepOptions, title: "Review"},
}

func (s Step) String() string { return string(s) }

// Title is the human label of the step.
func (s Step) Title() string {
	if t, ok := transitions[s]; ok {
		return t.title
	}
	return string(s)
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Index is the zero-based position of the step, used for progress display.
func (s Step) Index() int {
	for i, st := range Steps {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following step; Review is terminal.
func (s Step) Next() Step { return transitions[s].next }

// Prev returns the preceding step; Client Info is the floor.
func (s Step) Prev() Step { return transitions[s].prev }

// ParseStep maps a stored step name back to a Step.
func ParseStep(name string) (Step, error) {
	s := Step(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown wizard step %q", name)
	}
	return s, nil
}
