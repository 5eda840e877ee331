// Package moderation owns the visibility lifecycle of posts and comments.
package moderation

import (
	"errors"
	"fmt"

	"github.com/agora-community/agora/internal/models"
)

// Trigger is an event that may move a record between statuses
type Trigger string

const (
	TriggerClassifierAllow   Trigger = "classifier_allow"
	TriggerClassifierReject  Trigger = "classifier_reject"
	TriggerClassifierFailure Trigger = "classifier_failure"
	TriggerReviewRequest     Trigger = "review_request"
	TriggerApprove           Trigger = "approve"
	TriggerReject            Trigger = "reject"
	TriggerHide              Trigger = "hide"
	TriggerReportThreshold   Trigger = "report_threshold"
	TriggerAuthorHide        Trigger = "author_hide"
	TriggerAuthorEdit        Trigger = "author_edit"
)

// ErrInvalidTransition is returned when a trigger does not apply to the current status
var ErrInvalidTransition = errors.New("moderation: transition not allowed")

type rule struct {
	from map[models.ModerationStatus]bool
	to   models.ModerationStatus
}

func from(statuses ...models.ModerationStatus) map[models.ModerationStatus]bool {
	m := make(map[models.ModerationStatus]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

var (
	decidable = from(models.StatusPendingReview, models.StatusActive, models.StatusHidden, models.StatusRejected)
	notHidden = from(models.StatusPendingAI, models.StatusPendingReview, models.StatusActive, models.StatusRejected)
)

var rules = map[Trigger]rule{
	TriggerClassifierAllow:   {from(models.StatusPendingAI), models.StatusActive},
	TriggerClassifierReject:  {from(models.StatusPendingAI), models.StatusRejected},
	TriggerClassifierFailure: {from(models.StatusPendingAI), models.StatusPendingReview},
	TriggerReviewRequest:     {from(models.StatusRejected, models.StatusPendingReview), models.StatusPendingReview},
	TriggerApprove:           {decidable, models.StatusActive},
	TriggerReject:            {decidable, models.StatusRejected},
	TriggerHide:              {decidable, models.StatusHidden},
	TriggerReportThreshold:   {from(models.StatusActive, models.StatusRejected, models.StatusPendingAI), models.StatusHidden},
	TriggerAuthorHide:        {notHidden, models.StatusHidden},
	TriggerAuthorEdit:        {notHidden, models.StatusPendingAI},
}

// Transition returns the status reached by applying trigger to current
func Transition(current models.ModerationStatus, trigger Trigger) (models.ModerationStatus, error) {
	r, ok := rules[trigger]
	if !ok {
		return current, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTransition, trigger)
	}
	if !r.from[current] {
		return current, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, current)
	}
	return r.to, nil
}

// CanTransition reports whether trigger applies to current
func CanTransition(current models.ModerationStatus, trigger Trigger) bool {
	_, err := Transition(current, trigger)
	return err == nil
}
