// Package schedule runs the bot's recurring action families.
//
// Interval jobs (post, follow, engage, sweep) each run in their own
// supervised loop with a jittered period. Their next-fire times live in the
// bot state document, so a restarted process resumes the persisted schedule
// instead of firing early. Calendar jobs (the daily quota reset) run on
// robfig/cron.
//
// Every execution of a family goes through one in-flight guard: a run that
// starts while another run of the same family is active is skipped with
// ErrOverlapSkip. Manual runs from the dashboard or the operator channel use
// the same guard through Do.
package schedule
