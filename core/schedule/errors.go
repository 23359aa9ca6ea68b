package schedule

import "fmt"

// NormalizationError reports that zero sources yielded a usable schedule for
// a (group, date). The caller must keep the previously cached timeline
// instead of overwriting it.
type NormalizationError struct {
	Group  string
	Date   string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s/%s: %s", e.Group, e.Date, e.Reason)
}
