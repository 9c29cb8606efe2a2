package core

// Result is the outcome of one provisioning step on one host.
type Result struct {
	// Changed reports whether anything was actuated.
	Changed bool

	// Message is shown to the operator.
	Message string

	// Items lists what was acted on (packages, URIs, instances).
	Items []string
}

// SuccessChange returns a result for a step that changed the host.
func SuccessChange(msg string, items ...string) Result {
	return Result{
		Changed: true,
		Message: msg,
		Items:   items,
	}
}

// SuccessNoChange returns a result for a step that found nothing to do.
func SuccessNoChange(msg string) Result {
	return Result{
		Changed: false,
		Message: msg,
	}
}
