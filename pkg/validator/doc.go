// Package validator provides rule-based validation of request values.
//
// Rules are plain values built by constructor functions and evaluated together
// by Apply, which returns ValidationErrors listing every failed field:
//
//	err := validator.Apply(
//		validator.RequiredString("plan_id", req.PlanID),
//		validator.When(req.Email != "", validator.ValidEmail("email", req.Email)),
//	)
//	if validator.IsValidationError(err) {
//		// render 422 with err.(validator.ValidationErrors).Fields()
//	}
package validator
