// Package analysis derives reactor-physics quantities from transients.
//
//   - [PromptJump]: prompt-jump estimate of the power level right after a step
//   - [Period]: asymptotic reactor period from the tail of a trajectory
//   - [Sweep]: final power, peak power and period over a range of reactivities
//   - [NewPhasePortrait]: two state components plotted against each other
//
// # Prompt criticality
//
// A step at or above beta_eff has no prompt-jump plateau; PromptJump then
// reports +Inf:
//
//	if math.IsInf(analysis.PromptJump(c, rho), 1) {
//	    // prompt critical
//	}
package analysis
