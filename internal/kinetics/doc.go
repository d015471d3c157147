// Package kinetics solves the point-reactor kinetics equations with six
// delayed-neutron precursor groups.
//
// The state vector is [P, C_1..C_6] where P is power relative to its value
// at t=0 and C_i is the concentration of precursor group i:
//
//	dP/dt   = (rho - beta_eff)/Lambda * P + sum(lambda_i * C_i)
//	dC_i/dt = beta_i/Lambda * P - lambda_i * C_i
//
// [Solve] starts from the zero-reactivity equilibrium, inserts a constant
// reactivity step at t=0 and advances with fixed-step classical RK4 while
// t < tEnd. The last sample may land up to one step past tEnd; nothing
// interpolates back onto the boundary.
//
// # Example
//
//	tr := kinetics.Solve(kinetics.DefaultConstants(), 0.002, 5.0, 1e-3)
//	fmt.Println(tr.Len(), tr.Final())
//
// The solver performs no input validation. Callers facing untrusted input
// use [Request.Validate] first.
package kinetics
