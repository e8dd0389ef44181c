// Package staging reclaims disk space: expired outputs and their task rows,
// scratch frame directories left by crashed jobs, and abandoned uploads.
package staging
