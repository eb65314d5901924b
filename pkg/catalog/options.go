package catalog

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrBadOption = errors.New("gstore: bad table option")

// Option is one name/value pair from the table definition.
type Option struct {
	Name  string
	Value string
}

// Options is the validated per-table option set. Pinning and Reference are
// mutually exclusive; at most one is present.
type Options struct {
	// Pinning is the GPU device index a loaded chunk is mirrored to, or
	// -1 when chunks stay CPU-only.
	Pinning int
	// Reference names the primary table this one projects, or "".
	Reference string
}

func (o Options) IsPinned() bool {
	return o.Pinning >= 0
}

func (o Options) IsReference() bool {
	return o.Reference != ""
}

// ParseOptions validates raw option pairs. deviceCount bounds the pinning
// index.
func ParseOptions(raw []Option, deviceCount int) (Options, error) {
	opts := Options{Pinning: -1}
	seenPinning := false
	seenReference := false
	for _, opt := range raw {
		switch opt.Name {
		case "pinning":
			if seenPinning {
				return opts, fmt.Errorf("%w: \"pinning\" appears twice", ErrBadOption)
			}
			seenPinning = true
			pinning, err := strconv.Atoi(opt.Value)
			if err != nil {
				return opts, fmt.Errorf("%w: pinning %q is not an integer", ErrBadOption, opt.Value)
			}
			if pinning < 0 || pinning >= deviceCount {
				return opts, fmt.Errorf("%w: pinning on unknown gpu device: %d", ErrBadOption, pinning)
			}
			opts.Pinning = pinning
		case "reference":
			if seenReference {
				return opts, fmt.Errorf("%w: \"reference\" appears twice", ErrBadOption)
			}
			seenReference = true
			if opt.Value == "" {
				return opts, fmt.Errorf("%w: empty reference table name", ErrBadOption)
			}
			opts.Reference = opt.Value
		default:
			return opts, fmt.Errorf("%w: unknown option %q=%q", ErrBadOption, opt.Name, opt.Value)
		}
	}
	if opts.IsPinned() && opts.IsReference() {
		return opts, fmt.Errorf("%w: cannot use \"reference\" and \"pinning\" together", ErrBadOption)
	}
	return opts, nil
}
