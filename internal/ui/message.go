package ui

import (
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
)

// sessionStartedMsg reports the outcome of launching a discovery session.
type sessionStartedMsg struct {
	id  string
	sub *progress.Subscription
	err error
}

// eventMsg wraps one progress event received from the subscription.
type eventMsg models.ProgressEvent

// streamClosedMsg signals the event channel closed without a terminal event.
type streamClosedMsg struct{}

// cancelIssuedMsg reports the outcome of a cancel request.
type cancelIssuedMsg struct {
	err error
}
