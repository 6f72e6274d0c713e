// Package alerts evaluates KPI rules against each processed dataset and
// delivers webhook notifications to Teams, Slack or generic HTTP targets
// when a rule fires or resolves.
//
// Alerts are keyed by rule name and dataset name, so uploading a newer
// version of the same file resolves an alert that no longer holds.
package alerts
