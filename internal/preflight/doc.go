// Package preflight provides readiness checks for the directories, binaries
// and services unmark depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll before accepting requests and logs every
//     failure so a misconfigured host is visible in the first lines of the log.
//   - The CLI "unmark doctor" command prints each Result and exits non-zero
//     when any required check fails.
//
// Redis is only checked when it is the selected progress backend.
package preflight
