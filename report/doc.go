// Package report classifies divergences by dominant axis (§4.H) and
// serializes them to the workspace's divergences directory.
package report
