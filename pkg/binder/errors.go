package binder

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("binder.errors.unsupported_media_type")
	ErrMissingContentType   = errors.New("binder.errors.missing_content_type")
	ErrInvalidJSON          = errors.New("binder.errors.invalid_json")
	ErrBodyTooLarge         = errors.New("binder.errors.body_too_large")
	ErrInvalidQuery         = errors.New("binder.errors.invalid_query")
	ErrInvalidPath          = errors.New("binder.errors.invalid_path")
	ErrInvalidTarget        = errors.New("binder.errors.invalid_target")

	// ErrBinderNotApplicable is returned by a binder that has nothing to read
	// from the request. Callers chaining binders skip it.
	ErrBinderNotApplicable = errors.New("binder.errors.not_applicable")
)
