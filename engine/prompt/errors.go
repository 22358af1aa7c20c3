package prompt

import "errors"

// ErrRepeatedPlaceholder is returned for templates using a placeholder more than once.
var ErrRepeatedPlaceholder = errors.New("placeholder appears more than once")
