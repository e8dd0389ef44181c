package preflight

import "fmt"

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Line formats a result for single-line console output.
func (r Result) Line() string {
	mark := "ok"
	if !r.Passed {
		mark = "FAIL"
	}
	if r.Detail == "" {
		return fmt.Sprintf("[%s] %s", mark, r.Name)
	}
	return fmt.Sprintf("[%s] %s: %s", mark, r.Name, r.Detail)
}
