// Package beta implements the Beta-Binomial posterior algebra behind the
// routine model: one Posterior per (slot, channel) cell, conditioned on a
// single binary observation per day.
//
// 🚀 What does beta provide?
//
//	A small, allocation-free value type with:
//		• Mean, Variance, Std — posterior moments
//		• CredibleInterval / CIWidth — normal-approximation credible bounds
//		• NLL — negative log-likelihood of a binary observation
//		• Update — side-effect-free Bayesian conditioning
//
// The normal approximation keeps the package dependency-free: against the
// exact Beta quantile the interval error is at most ~2% once α+β ≥ 7 and is
// essentially zero from α+β ≥ 14. Behaviour at the extremes (mean below 0.01
// or above 0.99) is unspecified and irrelevant for day-scale occupancy data.
//
// Everything here is a pure computation: no storage, no clocks, no I/O.
package beta
