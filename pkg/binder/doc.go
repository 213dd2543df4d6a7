// Package binder decodes HTTP requests into typed structs.
//
// Each binder is a func(*http.Request, any) error and reads one part of the
// request: BindJSON reads the body, BindQuery reads `query:"name"` tagged
// fields from the URL and Path reads `path:"name"` tagged fields through a
// router-specific extractor such as chi.URLParam.
//
//	type checkoutRequest struct {
//		PlanID string `json:"plan_id"`
//	}
//
//	var req checkoutRequest
//	if err := binder.BindJSON()(r, &req); err != nil {
//		// errors.Is(err, binder.ErrInvalidJSON)
//	}
//
// Tagged fields may be strings, booleans, integers, floats, pointers to those,
// slices of those (repeated or comma separated values) and any type that
// implements encoding.TextUnmarshaler, for example uuid.UUID.
package binder
