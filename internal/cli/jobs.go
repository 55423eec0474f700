package cli

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Job is a function run on a standard 5-field cron spec.
type Job struct {
	Name string
	Spec string
	Run  func()
}

// RegisterJobs adds jobs to scheduler. If any spec fails to parse, none of
// the jobs stay registered.
func RegisterJobs(scheduler *cron.Cron, jobs ...Job) error {
	ids := make([]cron.EntryID, 0, len(jobs))
	for _, j := range jobs {
		id, err := scheduler.AddFunc(j.Spec, j.Run)
		if err != nil {
			for _, added := range ids {
				scheduler.Remove(added)
			}
			return fmt.Errorf("%s schedule %q: %w", j.Name, j.Spec, err)
		}
		ids = append(ids, id)
	}
	return nil
}
