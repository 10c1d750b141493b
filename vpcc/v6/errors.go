package v6

import "errors"

// ErrMalformedContainer is returned for a bad magic/version or a field
// value that overruns the buffer.
var ErrMalformedContainer = errors.New("vpcc/v6: malformed container")

// ErrUnsupportedLayout is returned for a syntactically valid draft-6
// container that uses a feature this shim never implemented: P-type tile
// groups, inter/PCM patches, point local reconstruction, 45-degree
// projection, multiple attribute streams, or a multi-tile-group layout.
var ErrUnsupportedLayout = errors.New("vpcc/v6: unsupported bitstream layout")

// ErrMissingUnitOrder is returned when a unit references a parameter set
// that hasn't been parsed yet, or a top-level unit precedes the SPS. The
// order of the units after the SPS is not checked.
var ErrMissingUnitOrder = errors.New("vpcc/v6: unit referenced before its dependency")
