// Package businessflow contains the core business logic and use cases for campaign dispatch workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignUUIDRequired     = errors.New("campaign UUID is required")
	ErrInvalidStatusTransition  = errors.New("campaign status transition not allowed")
	ErrCampaignNotActive        = errors.New("campaign is not active")
	ErrCampaignAlreadyTerminal  = errors.New("campaign already reached a terminal status")
	ErrCampaignHasNoLeads       = errors.New("campaign has no sendable leads")
	ErrScheduleTimeNotPresent   = errors.New("schedule time is not present")
	ErrScheduleTimeTooSoon      = errors.New("schedule time is too soon")
	ErrSendingWindowInvalid     = errors.New("sending window is invalid")
	ErrAllowedWeekdaysRequired  = errors.New("at least one allowed weekday is required")
	ErrSalespersonNotFound      = errors.New("salesperson not found")
	ErrRecoveryCooldownInEffect = errors.New("queue recovery cooldown is in effect")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsCampaignNotActive(err error) bool {
	return errors.Is(err, ErrCampaignNotActive)
}

func IsCampaignAlreadyTerminal(err error) bool {
	return errors.Is(err, ErrCampaignAlreadyTerminal)
}

func IsCampaignHasNoLeads(err error) bool {
	return errors.Is(err, ErrCampaignHasNoLeads)
}

func IsScheduleTimeTooSoon(err error) bool {
	return errors.Is(err, ErrScheduleTimeTooSoon)
}

func IsRecoveryCooldownInEffect(err error) bool {
	return errors.Is(err, ErrRecoveryCooldownInEffect)
}
