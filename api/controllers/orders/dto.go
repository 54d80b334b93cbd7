package orders

type disputeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type ratingRequest struct {
	Rating   int     `json:"rating" validate:"required,min=1,max=5"`
	Feedback *string `json:"feedback,omitempty" validate:"omitempty,max=1000"`
}

// statusRequest keeps status as a raw string so unknown values reach the
// state machine and come back as INVALID_TRANSITION.
type statusRequest struct {
	Status             string  `json:"status" validate:"required"`
	CancellationReason *string `json:"cancellationReason,omitempty" validate:"omitempty,max=500"`
	EstimatedTime      *string `json:"estimatedTime,omitempty" validate:"omitempty,max=100"`
}
