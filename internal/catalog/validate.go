package catalog

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidateSchedule checks that s is empty, "adHoc", or a standard
// five-field cron expression (or descriptor such as "@daily").
func ValidateSchedule(s string) error {
	if s == "" || s == ScheduleAdHoc {
		return nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return fmt.Errorf("invalid schedule %q: %v", s, err)
	}
	return nil
}
