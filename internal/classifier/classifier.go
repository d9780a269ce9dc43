// Package classifier maps gateway status records onto a normalised outcome.
//
// Tour and transfer backends answer with a success flag plus a status string;
// quick-payment and insurance backends answer with a status string only.
package classifier

import "github.com/iurnickita/bogstatus/internal/model"

type Func func(rec model.StatusRecord) model.Outcome

// ThreeState classifies tour and transfer responses. Status comparison is case-sensitive.
func ThreeState(rec model.StatusRecord) model.Outcome {
	if rec.Success != nil && *rec.Success {
		return model.OutcomePaid
	}
	switch rec.Status {
	case "PAID", "completed":
		return model.OutcomePaid
	}
	if rec.Success != nil && !*rec.Success {
		switch rec.Status {
		case "FAILED", "failed", "rejected":
			return model.OutcomeFailed
		}
	}
	return model.OutcomePending
}

// StatusOnly classifies quick-payment and insurance responses.
func StatusOnly(rec model.StatusRecord) model.Outcome {
	switch rec.Status {
	case "PAID":
		return model.OutcomePaid
	case "FAILED":
		return model.OutcomeFailed
	default:
		return model.OutcomePending
	}
}

// For returns the classifier the backend of the given order kind needs.
func For(kind model.OrderKind) Func {
	switch kind {
	case model.OrderKindQuickPayment, model.OrderKindInsurance:
		return StatusOnly
	default:
		return ThreeState
	}
}
