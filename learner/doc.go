// Package learner implements the nightly routine-learning pass.
//
// At 00:15 local time the learner processes yesterday:
//
//  1. idempotence guard — a daily_scores row means the day is done
//  2. load the slot occupancy grid (missing cells read as inactive)
//  3. load the posterior model, seeding the prior on the very first run
//  4. compute the daily metrics against the PRE-update model — the NLL
//     answers "how much did today surprise yesterday's model"
//  5. Bayesian-update every (slot, channel) posterior
//  6. persist the posteriors
//  7. insert the daily score row (composite_z=0; the detector overwrites)
//
// Metric computation is a pure function in this package with no store
// access, so it is testable against literal grids.
package learner
